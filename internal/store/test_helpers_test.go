package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/billbook/internal/record"
)

// createTestStore creates a fresh store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestMutation builds a content-addressed mutation.
func createTestMutation(t *testing.T, userID string, action record.Action, recordID string, seq int64) record.Mutation {
	t.Helper()
	m, err := record.NewMutation(userID, record.Invoices, action, recordID, record.Object{
		"id":    record.String(recordID),
		"total": record.Int(100),
	}, seq)
	if err != nil {
		t.Fatalf("NewMutation() failed: %v", err)
	}
	return m
}
