package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/billbook/internal/record"
)

// LoadSnapshot returns the cached copy of one collection.
// found is false when nothing has been cached yet for that key.
func (s *Store) LoadSnapshot(ctx context.Context, userID string, c record.Collection) (records []record.Object, found bool, err error) {
	data, err := s.readSnapshot(ctx, SnapshotKey(userID, c))
	if errors.Is(err, ErrNotFound) {
		return []record.Object{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	records, err = unmarshalRecords(data)
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot %s: %w", c, err)
	}
	return records, true, nil
}

// LoadPreview returns the invoice stored under PreviewKey.
// Returns ErrNotFound if no invoice has been saved yet.
func (s *Store) LoadPreview(ctx context.Context) (record.Object, error) {
	data, err := s.readSnapshot(ctx, PreviewKey)
	if err != nil {
		return nil, err
	}
	records, err := unmarshalRecords(data)
	if err != nil {
		return nil, fmt.Errorf("load preview: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("load preview: %w", ErrNotFound)
	}
	return records[0], nil
}

func (s *Store) readSnapshot(ctx context.Context, key string) (string, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("read snapshot %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read snapshot %s: %w", key, err)
	}
	return data, nil
}

// Pending returns every queued mutation for userID in replay order.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the outbox is empty.
func (s *Store) Pending(ctx context.Context, userID string) ([]record.Mutation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, collection, action, record_id, payload, seq
		FROM outbox
		WHERE user_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var out []record.Mutation
	for rows.Next() {
		m, err := scanMutation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}

	if out == nil {
		out = []record.Mutation{}
	}
	return out, nil
}

// PendingCount returns how many mutations are queued for userID.
func (s *Store) PendingCount(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}

// MaxSeq returns the highest seq written to either table, or 0 for an
// empty database. The engine resumes its clock from here.
func (s *Store) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(
			COALESCE((SELECT MAX(seq) FROM snapshots), 0),
			COALESCE((SELECT MAX(seq) FROM outbox), 0)
		)
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq, nil
}

func scanMutation(rows *sql.Rows) (record.Mutation, error) {
	var m record.Mutation
	var collection, action, payload string

	if err := rows.Scan(&m.ID, &m.UserID, &collection, &action, &m.RecordID, &payload, &m.Seq); err != nil {
		return record.Mutation{}, fmt.Errorf("scan outbox row: %w", err)
	}

	obj, err := unmarshalPayload(payload)
	if err != nil {
		return record.Mutation{}, fmt.Errorf("outbox %s: %w", m.ID, err)
	}

	m.Collection = record.Collection(collection)
	m.Action = record.Action(action)
	m.Payload = obj
	return m, nil
}
