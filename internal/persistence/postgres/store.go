// Package postgres implements the document store on a PostgreSQL JSONB table
// through a pgx connection pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/lab-scheduler/internal/persistence"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	body JSONB NOT NULL,
	written_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
UPDATE documents
SET body = jsonb_set(body, '{startAt}', to_jsonb(to_char((body->>'startAt')::timestamptz AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"')))
WHERE collection IN ('bookings', 'events')
	AND body->>'startAt' <> ''
	AND body->>'startAt' !~ '^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$';
CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_active_slot
	ON documents ((body->>'lab'), (body->>'startAt'))
	WHERE collection = 'bookings' AND body->>'status' IN ('pending', 'approved');
CREATE INDEX IF NOT EXISTS idx_documents_date ON documents (collection, (body->>'date'));
CREATE INDEX IF NOT EXISTS idx_documents_start ON documents (collection, (body->>'startAt'));
`

// Postgres SQLSTATE codes mapped onto persistence errors.
const (
	uniqueViolation     = "23505"
	checkViolation      = "23514"
	foreignKeyViolation = "23503"
)

// Store is a persistence.DocumentStore backed by PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open creates the pool, verifies connectivity, and ensures the schema.
// Ensuring the schema also rewrites start instants stored with fractional
// seconds or an offset into persistence.TimestampLayout, which the
// active-slot index compares as text. It
// retries the connection a few times so the service can start alongside the
// database container.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = 20
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= 5; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		logger.WarnContext(ctx, "postgres connect attempt failed", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{pool: pool, logger: logger.With("store", "postgres")}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Query implements persistence.DocumentStore.
func (s *Store) Query(ctx context.Context, q persistence.Query) ([]persistence.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	sql, args := buildSelect(q)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var records []persistence.Record
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, mapError(err)
		}
		var doc persistence.Document
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("%w: %s/%s: %v", persistence.ErrCorruptDocument, q.Collection, id, err)
		}
		records = append(records, persistence.Record{ID: id, Doc: doc})
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return records, nil
}

// Get implements persistence.DocumentStore.
func (s *Store) Get(ctx context.Context, collection, id string) (persistence.Record, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`, collection, id,
	).Scan(&body)
	if err != nil {
		return persistence.Record{}, mapError(err)
	}
	var doc persistence.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return persistence.Record{}, fmt.Errorf("%w: %s/%s: %v", persistence.ErrCorruptDocument, collection, id, err)
	}
	return persistence.Record{ID: id, Doc: doc}, nil
}

// Commit implements persistence.DocumentStore in one transaction.
func (s *Store) Commit(ctx context.Context, writes []persistence.Write) error {
	if err := persistence.ValidateWrites(writes); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, w := range persistence.OrderedWrites(writes) {
			if err := applyWrite(ctx, tx, w); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		err = mapError(err)
		s.logger.WarnContext(ctx, "commit failed", "writes", len(writes), "error", err)
	}
	return err
}

func applyWrite(ctx context.Context, tx pgx.Tx, w persistence.Write) error {
	switch w.Kind {
	case persistence.WriteSet:
		body, err := json.Marshal(w.Doc)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", w.Collection, w.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3)
			ON CONFLICT (collection, id) DO UPDATE SET body = EXCLUDED.body, written_at = now()`,
			w.Collection, w.ID, body)
		return err
	case persistence.WriteUpdate:
		patch, err := json.Marshal(w.Doc)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", w.Collection, w.ID, err)
		}
		tag, err := tx.Exec(ctx, `
			UPDATE documents SET body = body || $1::jsonb, written_at = now()
			WHERE collection = $2 AND id = $3`,
			patch, w.Collection, w.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, persistence.ErrNotFound)
		}
		return nil
	case persistence.WriteDelete:
		_, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, w.Collection, w.ID)
		return err
	}
	return fmt.Errorf("%w: unknown write kind %q", persistence.ErrInvalidQuery, w.Kind)
}

func buildSelect(q persistence.Query) (string, []any) {
	var b strings.Builder
	args := []any{q.Collection}
	placeholder := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	b.WriteString(`SELECT id, body FROM documents WHERE collection = $1`)
	for _, f := range q.Filters {
		expr := jsonField(f.Field)
		switch f.Op {
		case persistence.OpEqual:
			b.WriteString(" AND " + expr + " = " + placeholder(f.Value))
		case persistence.OpGTE:
			b.WriteString(" AND " + expr + " >= " + placeholder(f.Value))
		case persistence.OpLTE:
			b.WriteString(" AND " + expr + " <= " + placeholder(f.Value))
		case persistence.OpIn:
			b.WriteString(" AND " + expr + " = ANY(" + placeholder(f.Value) + ")")
		}
	}

	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = "createdAt"
	}
	direction := "ASC"
	if q.Descending {
		direction = "DESC"
	}
	// COLLATE "C" keeps byte order so timestamps sort chronologically.
	b.WriteString(" ORDER BY " + jsonField(orderBy) + ` COLLATE "C" ` + direction + ", id " + direction)
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + placeholder(q.Limit))
	}
	return b.String(), args
}

func jsonField(field string) string {
	return "(body->>'" + field + "')"
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return persistence.ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) || errors.Is(err, persistence.ErrInvalidQuery) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", persistence.ErrDuplicate, pgErr.ConstraintName)
		case checkViolation, foreignKeyViolation:
			return fmt.Errorf("%w: %s", persistence.ErrConstraintViolation, pgErr.Message)
		}
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", persistence.ErrUnavailable, err)
}
