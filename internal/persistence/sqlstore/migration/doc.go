// Package migration applies the versioned SQL schema of the booking store.
//
// Migration files are embedded in the binary and follow the naming
// convention {version}_{description}.sql (e.g. "001_initial_schema.sql").
// Applied versions are tracked in a schema_migrations table so each file runs
// exactly once, inside its own transaction.
//
// The statements are written in the SQL subset shared by SQLite and
// PostgreSQL, so the same files serve both drivers.
//
// Example usage:
//
//	manager := migration.NewManager(db, migration.Embedded(), logger)
//	if err := manager.Run(ctx); err != nil {
//		return fmt.Errorf("apply migrations: %w", err)
//	}
package migration
