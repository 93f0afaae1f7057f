// Package engine is the sync engine for one signed-in user.
//
// # Writes
//
// Save, Update and Delete are optimistic. The change is dispatched to the
// in-memory state first, which also rewrites the local cache. Then the
// remote write is attempted. If it fails the error is logged and the
// mutation goes to the durable outbox. Nothing is rolled back and the
// caller is not told about the remote failure beyond WriteResult.Queued.
//
// # Loads
//
// Load fetches every collection in parallel and waits for all of them.
// Each successful fetch is merged with the queued mutations for that
// collection and replaces the projection. A failed fetch leaves the
// projection as it was. Writes and patches applied while the fetch was in
// flight are applied again on top of the merged rows. Afterwards queued mutations are pushed in seq order
// and acknowledged one by one; the first failure stops the replay.
//
// # Realtime
//
// Listen forwards backend pushes into an unbounded FIFO queue. Run drains
// it on a single goroutine, applying each patch by id. Drain applies
// whatever is queued without blocking, for callers that step the engine
// themselves.
package engine
