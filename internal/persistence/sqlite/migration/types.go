package migration

import (
	"context"
	"time"
)

// Migration is one versioned SQL file.
type Migration struct {
	Version     string // numeric, e.g. "001"
	Description string
	SQL         string
	FilePath    string
	Checksum    string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version       string
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarizes the migration state of a database.
type Status struct {
	CurrentVersion string
	Applied        []AppliedMigration
	Pending        []Migration
}

// Source lists the migrations available to apply.
type Source interface {
	ScanMigrations() ([]Migration, error)
}

// Executor runs migrations against a database.
type Executor interface {
	// ExecuteMigration runs a single migration within a transaction and
	// records it in schema_migrations.
	ExecuteMigration(ctx context.Context, migration Migration) (time.Duration, error)

	// InitializeVersionTable creates the schema_migrations table if it doesn't exist.
	InitializeVersionTable(ctx context.Context) error

	// GetAppliedVersions returns all applied migration versions with timestamps.
	GetAppliedVersions(ctx context.Context) ([]AppliedMigration, error)
}
