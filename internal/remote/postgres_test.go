package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/billbook/internal/record"
)

func TestDecodeNotification(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Patch
		ok      bool
	}{
		{
			name:    "insert",
			payload: `{"table":"messages","op":"INSERT","id":"m1","user_id":"u1","record":{"content":"hi"}}`,
			want: Patch{
				Collection: record.Messages,
				Action:     record.ActionInsert,
				ID:         "m1",
				UserID:     "u1",
				Record:     record.Object{"id": record.String("m1"), "content": record.String("hi")},
			},
			ok: true,
		},
		{
			name:    "delete has no record",
			payload: `{"table":"daily_reports","op":"DELETE","id":"d1","user_id":"u1","record":null}`,
			want:    Patch{Collection: record.DailyReports, Action: record.ActionDelete, ID: "d1", UserID: "u1"},
			ok:      true,
		},
		{name: "unknown table", payload: `{"table":"users","op":"INSERT","id":"x"}`},
		{name: "unknown op", payload: `{"table":"messages","op":"TRUNCATE","id":"x"}`},
		{name: "missing id", payload: `{"table":"messages","op":"INSERT"}`},
		{name: "garbage", payload: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decodeNotification(tt.payload)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42P01"}
	err := classify("fetch", pgErr)
	assert.False(t, errors.Is(err, ErrUnavailable))
	assert.ErrorAs(t, err, &pgErr)

	err = classify("fetch", errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, ErrUnavailable)

	err = classify("fetch", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrUnavailable))
}

func TestTableName(t *testing.T) {
	assert.Equal(t, `"daily_reports"`, tableName(record.DailyReports))
}

// TestPostgresIntegration runs the adapter against a live database.
func TestSchema_KeysRowsByUser(t *testing.T) {
	stmts := schemaStatements()
	var creates int
	for _, stmt := range stmts {
		if strings.HasPrefix(stmt, "CREATE TABLE") {
			creates++
			assert.Contains(t, stmt, "PRIMARY KEY (user_id, id)")
			assert.NotContains(t, stmt, "id TEXT PRIMARY KEY")
		}
	}
	assert.Equal(t, len(record.Collections), creates)
	assert.Contains(t, insertQuery(record.Invoices), "ON CONFLICT (user_id, id) DO NOTHING")
}

func TestPostgresIntegration(t *testing.T) {
	if os.Getenv("BILLBOOK_PG_INTEGRATION") != "true" {
		t.Skip("set BILLBOOK_PG_INTEGRATION=true to run this integration test")
	}
	for _, path := range []string{".env", "../.env", "../../.env"} {
		_ = godotenv.Overload(path)
	}
	dbURL := os.Getenv("BILLBOOK_DATABASE_URL")
	if dbURL == "" {
		t.Fatal("BILLBOOK_DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	p, err := NewPostgres(ctx, dbURL, nil)
	require.NoError(t, err)
	defer p.Close()

	userID := fmt.Sprintf("it_%d", time.Now().UnixNano())

	sub, err := p.Subscribe(ctx, userID)
	require.NoError(t, err)

	inv := record.Object{"id": record.String(userID + "-inv"), "status": record.String("draft")}
	require.NoError(t, p.Insert(ctx, userID, record.Invoices, inv))
	require.NoError(t, p.Insert(ctx, userID, record.Invoices, inv), "duplicate insert is a no-op")
	require.NoError(t, p.Update(ctx, userID, record.Invoices, inv.ID(), record.Object{"status": record.String("paid")}))
	assert.ErrorIs(t, p.Update(ctx, userID, record.Invoices, "missing", record.Object{}), ErrNotFound)

	rows, err := p.Fetch(ctx, userID, record.Invoices)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "paid", rows[0].Str("status"))

	// Another user may pick the same id without touching this user's row.
	otherID := userID + "-other"
	require.NoError(t, p.Insert(ctx, otherID, record.Invoices, inv))
	others, err := p.Fetch(ctx, otherID, record.Invoices)
	require.NoError(t, err)
	require.Len(t, others, 1)
	assert.Equal(t, "draft", others[0].Str("status"))
	require.NoError(t, p.Delete(ctx, otherID, record.Invoices, inv.ID()))

	msg := record.Object{"id": record.String(userID + "-msg"), "content": record.String("hello")}
	require.NoError(t, p.Insert(ctx, userID, record.Messages, msg))

	select {
	case patch := <-sub:
		assert.Equal(t, record.Messages, patch.Collection)
		assert.Equal(t, msg.ID(), patch.ID)
	case <-ctx.Done():
		t.Fatal("no realtime patch received")
	}

	require.NoError(t, p.Delete(ctx, userID, record.Invoices, inv.ID()))
	require.NoError(t, p.Delete(ctx, userID, record.Invoices, inv.ID()))
	require.NoError(t, p.Delete(ctx, userID, record.Messages, msg.ID()))
}
