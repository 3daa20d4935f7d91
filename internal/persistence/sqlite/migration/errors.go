package migration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMigrationFailed      = errors.New("migration execution failed")
	ErrInvalidMigrationFile = errors.New("invalid migration file")
	// ErrVersionConflict reports an applied version with no matching file.
	ErrVersionConflict  = errors.New("migration version conflict")
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrChecksumMismatch reports an applied file that was edited afterwards.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// MigrationError names the migration, the file and the step that failed.
// File is empty for failures in the bookkeeping table.
type MigrationError struct {
	Version string
	File    string
	Step    string
	Err     error
}

func (e *MigrationError) Error() string {
	var b strings.Builder
	b.WriteString("migration")
	if e.Version != "" {
		b.WriteString(" " + e.Version)
	}
	if e.File != "" {
		b.WriteString(" (" + e.File + ")")
	}
	fmt.Fprintf(&b, ": %s: %v", e.Step, e.Err)
	return b.String()
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

func NewMigrationError(version, file, step string, err error) *MigrationError {
	return &MigrationError{Version: version, File: file, Step: step, Err: err}
}

// NewDatabaseError is a MigrationError raised by the database rather than
// by a file.
func NewDatabaseError(version, step string, err error) *MigrationError {
	return &MigrationError{Version: version, Step: step, Err: err}
}
