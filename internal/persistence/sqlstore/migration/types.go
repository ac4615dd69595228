package migration

import "time"

// Migration is one versioned schema change.
type Migration struct {
	Version     int    // Numeric version parsed from the file name
	Description string // Human-readable description of the migration
	SQL         string // SQL statements to execute
	FileName    string // Name of the migration file
	Checksum    string // sha256 of the file content
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       int
	AppliedAt     time.Time
	ExecutionTime time.Duration
	Checksum      string
}

// Status summarises applied and pending migrations.
type Status struct {
	CurrentVersion int
	Applied        []AppliedMigration
	Pending        []Migration
}
