package store

import (
	"context"
	"fmt"

	"github.com/roach88/billbook/internal/record"
)

// PreviewKey is the unscoped key read by the invoice preview surface.
const PreviewKey = "billbook:preview"

// SnapshotKey namespaces a collection snapshot by user.
func SnapshotKey(userID string, c record.Collection) string {
	return "billbook:" + userID + ":" + string(c)
}

// SaveSnapshot replaces the cached copy of one collection.
//
// A write whose seq is older than the stored row is ignored, so snapshots
// written out of order still converge on the newest one.
func (s *Store) SaveSnapshot(ctx context.Context, userID string, c record.Collection, records []record.Object, seq int64) error {
	data, err := marshalRecords(records)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", c, err)
	}
	return s.upsertSnapshot(ctx, SnapshotKey(userID, c), userID, string(c), data, seq)
}

// SavePreview stores a single invoice under PreviewKey.
func (s *Store) SavePreview(ctx context.Context, invoice record.Object, seq int64) error {
	data, err := marshalRecords([]record.Object{invoice})
	if err != nil {
		return fmt.Errorf("save preview: %w", err)
	}
	return s.upsertSnapshot(ctx, PreviewKey, "", string(record.Invoices), data, seq)
}

func (s *Store) upsertSnapshot(ctx context.Context, key, userID, collection, data string, seq int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (key, user_id, collection, data, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data = excluded.data,
			seq = excluded.seq
		WHERE excluded.seq >= snapshots.seq
	`, key, userID, collection, data, seq)
	if err != nil {
		return fmt.Errorf("write snapshot %s: %w", key, err)
	}
	return nil
}

// ClearUser drops every snapshot and outbox entry for userID.
// The preview row is left alone.
func (s *Store) ClearUser(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("clear user: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear user: snapshots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM outbox WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clear user: outbox: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("clear user: commit: %w", err)
	}
	return nil
}

// Enqueue parks a mutation in the outbox.
// Uses ON CONFLICT(id) DO NOTHING: the id is a content hash, so a duplicate
// enqueue of the same mutation is silently ignored.
func (s *Store) Enqueue(ctx context.Context, m record.Mutation) error {
	if !m.Action.Valid() {
		return fmt.Errorf("enqueue: unknown action %q", m.Action)
	}
	payload, err := marshalPayload(m.Payload)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outbox
		(id, user_id, collection, action, record_id, payload, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		m.ID,
		m.UserID,
		string(m.Collection),
		string(m.Action),
		m.RecordID,
		payload,
		m.Seq,
	)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Ack removes a replayed mutation from the outbox.
// Returns ErrNotFound if no entry has that id.
func (s *Store) Ack(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ack %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ack %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("ack %s: %w", id, ErrNotFound)
	}
	return nil
}
