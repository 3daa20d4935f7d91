package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/lab-scheduler/internal/persistence"
	"github.com/example/lab-scheduler/internal/persistence/sqlite/migration"
)

// errBusy marks lock contention; only these failures are retried.
var errBusy = errors.New("database busy")

// ConnectionPool owns the *sql.DB behind a Store.
type ConnectionPool struct {
	db     *sql.DB
	config migration.SQLiteConfig
}

// NewConnectionPool opens the database described by config.
func NewConnectionPool(config migration.SQLiteConfig) (*ConnectionPool, error) {
	db, err := migration.Open(config)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", config.Path, err)
	}
	return &ConnectionPool{db: db, config: config}, nil
}

func (cp *ConnectionPool) DB() *sql.DB {
	return cp.db
}

func (cp *ConnectionPool) Close() error {
	if cp.db == nil {
		return nil
	}
	return cp.db.Close()
}

func (cp *ConnectionPool) Ping(ctx context.Context) error {
	return cp.db.PingContext(ctx)
}

// TransactionFunc runs inside a transaction opened by WithTransaction.
type TransactionFunc func(tx *sql.Tx) error

// WithTransaction commits when fn succeeds and rolls back otherwise,
// including when fn panics.
func (cp *ConnectionPool) WithTransaction(ctx context.Context, fn TransactionFunc) (err error) {
	tx, err := cp.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && err != nil {
			err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	committed = true
	return nil
}

// errorRule maps driver messages containing any of fragments onto a
// persistence error.
type errorRule struct {
	fragments []string
	target    error
	busy      bool
}

var errorRules = []errorRule{
	{fragments: []string{"UNIQUE constraint failed"}, target: persistence.ErrDuplicate},
	{fragments: []string{"CHECK constraint failed", "NOT NULL constraint failed", "FOREIGN KEY constraint failed"}, target: persistence.ErrConstraintViolation},
	{fragments: []string{"database is locked", "database table is locked", "SQLITE_BUSY"}, target: persistence.ErrUnavailable, busy: true},
	{fragments: []string{"unable to open database", "disk I/O error", "database disk image is malformed"}, target: persistence.ErrUnavailable},
}

// ErrorMapper translates driver errors into persistence errors.
type ErrorMapper struct {
	rules []errorRule
}

func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{rules: errorRules}
}

// MapError leaves unknown errors untouched.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", persistence.ErrNotFound, err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	for _, rule := range em.rules {
		for _, fragment := range rule.fragments {
			if !strings.Contains(msg, fragment) {
				continue
			}
			if rule.busy {
				return fmt.Errorf("%w: %w: %v", rule.target, errBusy, err)
			}
			return fmt.Errorf("%w: %v", rule.target, err)
		}
	}
	return err
}

// RetryConfig bounds the backoff applied to busy errors.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2,
	}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= c.BackoffFactor
	}
	return min(time.Duration(d), c.MaxDelay)
}

// RetryHelper reruns an operation while SQLite reports lock contention.
type RetryHelper struct {
	config RetryConfig
	mapper *ErrorMapper
}

func NewRetryHelper(config RetryConfig) *RetryHelper {
	return &RetryHelper{config: config, mapper: NewErrorMapper()}
}

// RetryableFunc is one attempt of a retried operation.
type RetryableFunc func() error

// WithRetry returns the mapped error of the last attempt.
func (rh *RetryHelper) WithRetry(ctx context.Context, fn RetryableFunc) error {
	var err error
	for attempt := 0; attempt <= rh.config.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(rh.config.delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
		if err = rh.mapper.MapError(fn()); err == nil || !errors.Is(err, errBusy) {
			return err
		}
	}
	return fmt.Errorf("sqlite: gave up after %d retries: %w", rh.config.MaxRetries, err)
}
