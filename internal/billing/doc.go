// Package billing is the application layer shared by the HTTP API and the
// CLI. It resolves a user's engine session, prepares and validates records
// before they enter the optimistic write path, and drives rendering,
// exports, imports, reports and recurring billing over the merged state.
package billing
