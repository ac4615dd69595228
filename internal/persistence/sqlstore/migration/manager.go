package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

const versionTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT NOT NULL,
	checksum TEXT NOT NULL,
	execution_time_ms BIGINT NOT NULL
)`

// Manager applies pending migrations in version order.
type Manager struct {
	db     *sqlx.DB
	files  fs.FS
	logger *slog.Logger
	now    func() time.Time
}

// NewManager constructs a Manager reading migration files from files.
func NewManager(db *sqlx.DB, files fs.FS, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{db: db, files: files, logger: logger.With("component", "migration"), now: time.Now}
}

// Run applies every pending migration. Each migration runs in its own
// transaction together with its schema_migrations record.
func (m *Manager) Run(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "schema version checked", "current_version", status.CurrentVersion, "pending", len(status.Pending))
	for _, migration := range status.Pending {
		start := m.now()
		if err := m.apply(ctx, migration); err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "file", migration.FileName, "error", err)
			return err
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration", m.now().Sub(start),
		)
	}
	return nil
}

// Status reports applied and pending migrations. Applied migrations whose
// file content changed since they ran are reported as ErrChecksumMismatch.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if _, err := m.db.ExecContext(ctx, versionTableSQL); err != nil {
		return Status{}, fmt.Errorf("initialize schema_migrations: %w", err)
	}

	migrations, err := Scan(m.files)
	if err != nil {
		return Status{}, err
	}
	applied, err := m.applied(ctx)
	if err != nil {
		return Status{}, err
	}

	byVersion := make(map[int]AppliedMigration, len(applied))
	status := Status{Applied: applied}
	for _, record := range applied {
		byVersion[record.Version] = record
		if record.Version > status.CurrentVersion {
			status.CurrentVersion = record.Version
		}
	}

	for _, migration := range migrations {
		record, ok := byVersion[migration.Version]
		if !ok {
			status.Pending = append(status.Pending, migration)
			continue
		}
		if record.Checksum != migration.Checksum {
			return Status{}, newMigrationError(migration.Version, migration.FileName, "verify checksum", ErrChecksumMismatch)
		}
	}
	return status, nil
}

func (m *Manager) applied(ctx context.Context) ([]AppliedMigration, error) {
	var rows []struct {
		Version         int    `db:"version"`
		AppliedAt       string `db:"applied_at"`
		Checksum        string `db:"checksum"`
		ExecutionTimeMS int64  `db:"execution_time_ms"`
	}
	query := `SELECT version, applied_at, checksum, execution_time_ms FROM schema_migrations ORDER BY version ASC`
	if err := m.db.SelectContext(ctx, &rows, query); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}

	applied := make([]AppliedMigration, 0, len(rows))
	for _, row := range rows {
		appliedAt, err := time.Parse(time.RFC3339, row.AppliedAt)
		if err != nil {
			return nil, fmt.Errorf("parse applied_at of version %d: %w", row.Version, err)
		}
		applied = append(applied, AppliedMigration{
			Version:       row.Version,
			AppliedAt:     appliedAt,
			ExecutionTime: time.Duration(row.ExecutionTimeMS) * time.Millisecond,
			Checksum:      row.Checksum,
		})
	}
	return applied, nil
}

func (m *Manager) apply(ctx context.Context, migration Migration) (err error) {
	start := m.now()
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return newMigrationError(migration.Version, migration.FileName, "begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for i, stmt := range splitStatements(migration.SQL) {
		if _, execErr := tx.ExecContext(ctx, stmt); execErr != nil {
			err = newMigrationError(migration.Version, migration.FileName,
				fmt.Sprintf("execute statement %d", i+1), fmt.Errorf("%w: %v", ErrMigrationFailed, execErr))
			return err
		}
	}

	record := tx.Rebind(`INSERT INTO schema_migrations (version, applied_at, checksum, execution_time_ms) VALUES (?, ?, ?, ?)`)
	if _, execErr := tx.ExecContext(ctx, record,
		migration.Version,
		m.now().UTC().Format(time.RFC3339),
		migration.Checksum,
		m.now().Sub(start).Milliseconds(),
	); execErr != nil {
		err = newMigrationError(migration.Version, migration.FileName, "record migration", execErr)
		return err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = newMigrationError(migration.Version, migration.FileName, "commit transaction", commitErr)
		return err
	}
	return nil
}
