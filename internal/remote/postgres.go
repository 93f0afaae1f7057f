package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/billbook/internal/record"
)

// RealtimeChannel is the LISTEN/NOTIFY channel fed by the row triggers.
const RealtimeChannel = "billbook_realtime"

var (
	_ Store      = (*Postgres)(nil)
	_ Subscriber = (*Postgres)(nil)
)

// Postgres stores each collection as a table of JSONB documents.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects to databaseURL and runs migrations.
func NewPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	p := &Postgres{pool: pool, logger: logger}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

// Close releases database resources.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

// schemaStatements creates one table per collection keyed by (user_id, id),
// plus the notify trigger on realtime collections. Tables from older
// versions keyed by id alone are rekeyed.
func schemaStatements() []string {
	var stmts []string
	for _, c := range record.Collections {
		table := tableName(c)
		pkey := pgx.Identifier{string(c) + "_pkey"}.Sanitize()
		stmts = append(stmts,
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				data JSONB NOT NULL DEFAULT '{}'::jsonb,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (user_id, id)
			);`, table),
			fmt.Sprintf(`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_index
					WHERE indrelid = '%[1]s'::regclass AND indisprimary AND indnatts = 2
				) THEN
					ALTER TABLE %[1]s DROP CONSTRAINT IF EXISTS %[2]s;
					ALTER TABLE %[1]s ADD PRIMARY KEY (user_id, id);
				END IF;
			END $$;`, table, pkey),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (user_id, created_at DESC);`,
				pgx.Identifier{string(c) + "_user_created_idx"}.Sanitize(), table),
		)
	}

	stmts = append(stmts, `CREATE OR REPLACE FUNCTION billbook_notify() RETURNS trigger AS $$
		DECLARE
			changed RECORD;
		BEGIN
			IF TG_OP = 'DELETE' THEN
				changed := OLD;
			ELSE
				changed := NEW;
			END IF;
			PERFORM pg_notify('`+RealtimeChannel+`', json_build_object(
				'table', TG_TABLE_NAME,
				'op', TG_OP,
				'id', changed.id,
				'user_id', changed.user_id,
				'record', CASE WHEN TG_OP = 'DELETE' THEN NULL ELSE changed.data END
			)::text);
			RETURN changed;
		END;
		$$ LANGUAGE plpgsql;`)

	for _, c := range record.Collections {
		if !c.Realtime() {
			continue
		}
		trigger := pgx.Identifier{string(c) + "_notify"}.Sanitize()
		stmts = append(stmts,
			fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s;`, trigger, tableName(c)),
			fmt.Sprintf(`CREATE TRIGGER %s AFTER INSERT OR UPDATE OR DELETE ON %s
				FOR EACH ROW EXECUTE FUNCTION billbook_notify();`, trigger, tableName(c)),
		)
	}

	return stmts
}

func (p *Postgres) Fetch(ctx context.Context, userID string, c record.Collection) ([]record.Object, error) {
	query := fmt.Sprintf(`
		SELECT data || jsonb_build_object('id', id)
		FROM %s
		WHERE user_id = $1
		ORDER BY created_at DESC, id ASC;`, tableName(c))

	rows, err := p.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, classify("fetch "+string(c), err)
	}
	defer rows.Close()

	out := []record.Object{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, classify("fetch "+string(c), err)
		}
		obj, err := record.ParseObject(raw)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: decode row: %w", c, err)
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("fetch "+string(c), err)
	}
	return out, nil
}

func (p *Postgres) Insert(ctx context.Context, userID string, c record.Collection, rec record.Object) error {
	data, err := record.MarshalCanonical(rec)
	if err != nil {
		return fmt.Errorf("insert %s: %w", c, err)
	}
	if _, err := p.pool.Exec(ctx, insertQuery(c), rec.ID(), userID, string(data)); err != nil {
		return classify("insert "+string(c), err)
	}
	return nil
}

// insertQuery ignores a second insert of the same record by the same user,
// which happens when a queued insert is replayed after the first attempt
// reached the server.
func insertQuery(c record.Collection) string {
	return fmt.Sprintf(`
		INSERT INTO %s (id, user_id, data)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (user_id, id) DO NOTHING;`, tableName(c))
}

func (p *Postgres) Update(ctx context.Context, userID string, c record.Collection, id string, patch record.Object) error {
	data, err := record.MarshalCanonical(patch)
	if err != nil {
		return fmt.Errorf("update %s: %w", c, err)
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET data = data || $3::jsonb, updated_at = NOW()
		WHERE id = $1 AND user_id = $2;`, tableName(c))

	tag, err := p.pool.Exec(ctx, query, id, userID, string(data))
	if err != nil {
		return classify("update "+string(c), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s %s: %w", c, id, ErrNotFound)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, userID string, c record.Collection, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND user_id = $2;`, tableName(c))
	if _, err := p.pool.Exec(ctx, query, id, userID); err != nil {
		return classify("delete "+string(c), err)
	}
	return nil
}

// Subscribe holds one pooled connection in LISTEN until ctx is done.
func (p *Postgres) Subscribe(ctx context.Context, userID string) (<-chan Patch, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, classify("subscribe", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{RealtimeChannel}.Sanitize()); err != nil {
		conn.Release()
		return nil, classify("subscribe", err)
	}

	out := make(chan Patch, 64)
	go func() {
		defer close(out)
		defer conn.Release()
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("realtime subscription ended", "user", userID, "error", err)
				}
				return
			}
			patch, ok := decodeNotification(n.Payload)
			if !ok {
				p.logger.Debug("ignoring realtime payload", "payload", n.Payload)
				continue
			}
			if patch.UserID != userID {
				continue
			}
			select {
			case out <- patch:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type notification struct {
	Table  string          `json:"table"`
	Op     string          `json:"op"`
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Record json.RawMessage `json:"record"`
}

func decodeNotification(payload string) (Patch, bool) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		return Patch{}, false
	}
	c, ok := record.ParseCollection(n.Table)
	if !ok || n.ID == "" {
		return Patch{}, false
	}

	var action record.Action
	switch n.Op {
	case "INSERT":
		action = record.ActionInsert
	case "UPDATE":
		action = record.ActionUpdate
	case "DELETE":
		action = record.ActionDelete
	default:
		return Patch{}, false
	}

	patch := Patch{Collection: c, Action: action, ID: n.ID, UserID: n.UserID}
	if action != record.ActionDelete && len(n.Record) > 0 && string(n.Record) != "null" {
		obj, err := record.ParseObject(n.Record)
		if err != nil {
			return Patch{}, false
		}
		obj[record.IDKey] = record.String(n.ID)
		patch.Record = obj
	}
	return patch, true
}

// tableName quotes a collection name. Collections come from a closed set,
// so this never sees user input.
func tableName(c record.Collection) string {
	return pgx.Identifier{string(c)}.Sanitize()
}

// classify keeps server-side errors as they are and marks everything else,
// such as refused connections and timeouts, as ErrUnavailable.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
