// Package migration applies versioned SQL files to the scheduler's SQLite
// database.
//
// Migration files are named {version}_{description}.sql (for example
// "001_create_documents.sql") and are read from an fs.FS, normally an
// embed.FS compiled into the binary. Applied versions are tracked in the
// schema_migrations table; each file runs in its own transaction.
//
// Example usage:
//
//	manager := NewManager(NewScanner(files, "migrations"), NewSQLiteExecutor(db), logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
