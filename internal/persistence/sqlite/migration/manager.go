package migration

import (
	"context"
	"fmt"
	"log/slog"
)

// Manager orchestrates scanning, sequence validation and execution.
type Manager struct {
	source   Source
	executor Executor
	logger   *slog.Logger
}

// NewManager creates a migration manager. A nil logger uses slog.Default.
func NewManager(source Source, executor Executor, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{source: source, executor: executor, logger: logger.With("component", "migration")}
}

// RunMigrations executes all pending migrations in version order. A failure
// stops the run; earlier migrations stay applied.
func (m *Manager) RunMigrations(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "migration status",
		"current_version", status.CurrentVersion,
		"pending", len(status.Pending),
	)
	if len(status.Pending) == 0 {
		return nil
	}

	for i, migration := range status.Pending {
		logger := m.logger.With("version", migration.Version, "description", migration.Description)
		logger.InfoContext(ctx, "applying migration", "position", i+1, "total", len(status.Pending))

		elapsed, err := m.executor.ExecuteMigration(ctx, migration)
		if err != nil {
			logger.ErrorContext(ctx, "migration failed", "error", err)
			return NewMigrationError(migration.Version, migration.FilePath, "execute migration",
				fmt.Errorf("%w: %v", ErrMigrationFailed, err))
		}
		logger.InfoContext(ctx, "migration applied", "elapsed", elapsed)
	}
	return nil
}

// Status reports applied and pending migrations after validating that the
// available files form a continuous sequence covering every applied version.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, fmt.Errorf("failed to initialize version table: %w", err)
	}

	available, err := m.source.ScanMigrations()
	if err != nil {
		return Status{}, fmt.Errorf("failed to scan migrations: %w", err)
	}
	applied, err := m.executor.GetAppliedVersions(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to get applied versions: %w", err)
	}
	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	appliedSet := make(map[string]struct{}, len(applied))
	status := Status{Applied: applied}
	for _, a := range applied {
		appliedSet[a.Version] = struct{}{}
		if versionNumber(a.Version) > versionNumber(status.CurrentVersion) {
			status.CurrentVersion = a.Version
		}
	}
	for _, migration := range available {
		if _, ok := appliedSet[migration.Version]; !ok {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}

func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for i, migration := range available {
		n := versionNumber(migration.Version)
		if i > 0 && n != versionNumber(available[i-1].Version)+1 {
			return fmt.Errorf("%w: missing migration before version %s", ErrVersionConflict, migration.Version)
		}
		byVersion[n] = migration
	}

	for _, a := range applied {
		migration, ok := byVersion[versionNumber(a.Version)]
		if !ok {
			return fmt.Errorf("%w: applied migration %s not found in available migrations", ErrVersionConflict, a.Version)
		}
		if a.Checksum != "" && migration.Checksum != "" && a.Checksum != migration.Checksum {
			return NewMigrationError(a.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
