package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store is a persistence.DocumentStore over a single SQLite documents table.
type Store struct {
	pool   *ConnectionPool
	retry  *RetryHelper
	logger *slog.Logger
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	manager := migration.NewManager(migration.NewScanner(migrationFiles, "migrations"), migration.NewSQLiteExecutor(pool.DB()), logger)
	if err := manager.RunMigrations(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	return &Store{
		pool:   pool,
		retry:  NewRetryHelper(DefaultRetryConfig()),
		logger: logger.With("store", "sqlite"),
	}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.pool.Close()
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
	query, args := buildSelect(q)

	var records []persistence.Record
	err := s.retry.WithRetry(ctx, func() error {
		records = records[:0]
		rows, err := s.pool.DB().QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id, body string
			if err := rows.Scan(&id, &body); err != nil {
				return err
			}
			doc, err := decodeBody(body)
			if err != nil {
				return fmt.Errorf("%w: %s/%s: %v", persistence.ErrCorruptDocument, q.Collection, id, err)
			}
			records = append(records, persistence.Record{ID: id, Doc: doc})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// Get implements persistence.DocumentStore.
func (s *Store) Get(ctx context.Context, collection, id string) (persistence.Record, error) {
	var body string
	err := s.retry.WithRetry(ctx, func() error {
		return s.pool.DB().QueryRowContext(ctx,
			`SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id,
		).Scan(&body)
	})
	if err != nil {
		return persistence.Record{}, err
	}
	doc, err := decodeBody(body)
	if err != nil {
		return persistence.Record{}, fmt.Errorf("%w: %s/%s: %v", persistence.ErrCorruptDocument, collection, id, err)
	}
	return persistence.Record{ID: id, Doc: doc}, nil
}

// Commit implements persistence.DocumentStore. All writes share one
// transaction; the active-slot unique index is checked per statement, so
// deletes run first.
func (s *Store) Commit(ctx context.Context, writes []persistence.Write) error {
	if err := persistence.ValidateWrites(writes); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}
	ordered := persistence.OrderedWrites(writes)

	err := s.retry.WithRetry(ctx, func() error {
		return s.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, w := range ordered {
				if err := applyWrite(ctx, tx, w); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		s.logger.WarnContext(ctx, "commit failed", "writes", len(writes), "error", err)
	}
	return err
}

func applyWrite(ctx context.Context, tx *sql.Tx, w persistence.Write) error {
	switch w.Kind {
	case persistence.WriteSet:
		body, err := json.Marshal(w.Doc)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", w.Collection, w.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO documents (collection, id, body) VALUES (?, ?, ?)
			ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, written_at = CURRENT_TIMESTAMP`,
			w.Collection, w.ID, string(body))
		return err
	case persistence.WriteUpdate:
		patch, err := json.Marshal(w.Doc)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", w.Collection, w.ID, err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE documents SET body = json_patch(body, ?), written_at = CURRENT_TIMESTAMP
			WHERE collection = ? AND id = ?`,
			string(patch), w.Collection, w.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("update %s/%s: %w", w.Collection, w.ID, sql.ErrNoRows)
		}
		return nil
	case persistence.WriteDelete:
		_, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, w.Collection, w.ID)
		return err
	}
	return fmt.Errorf("%w: unknown write kind %q", persistence.ErrInvalidQuery, w.Kind)
}

func buildSelect(q persistence.Query) (string, []any) {
	var (
		b    strings.Builder
		args = []any{q.Collection}
	)
	b.WriteString(`SELECT id, body FROM documents WHERE collection = ?`)

	for _, f := range q.Filters {
		expr := jsonField(f.Field)
		switch f.Op {
		case persistence.OpEqual:
			b.WriteString(" AND " + expr + " = ?")
			args = append(args, f.Value)
		case persistence.OpGTE:
			b.WriteString(" AND " + expr + " >= ?")
			args = append(args, f.Value)
		case persistence.OpLTE:
			b.WriteString(" AND " + expr + " <= ?")
			args = append(args, f.Value)
		case persistence.OpIn:
			values := f.Value.([]string)
			if len(values) == 0 {
				b.WriteString(" AND 0")
				continue
			}
			b.WriteString(" AND " + expr + " IN (" + strings.TrimSuffix(strings.Repeat("?,", len(values)), ",") + ")")
			for _, v := range values {
				args = append(args, v)
			}
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
	b.WriteString(" ORDER BY " + jsonField(orderBy) + " " + direction + ", id " + direction)

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args
}

// jsonField renders a literal JSON path so expression indexes match.
// Field names are validated by persistence.Query.Validate.
func jsonField(field string) string {
	return "json_extract(body, '$." + field + "')"
}

func decodeBody(body string) (persistence.Document, error) {
	var doc persistence.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("empty document")
	}
	return doc, nil
}
