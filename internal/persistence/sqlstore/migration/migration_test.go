package migration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", filepath.Join(t.TempDir(), "migration.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScanOrdersAndValidates(t *testing.T) {
	cases := []struct {
		name    string
		files   fstest.MapFS
		want    []int
		wantErr error
	}{
		{
			name: "ordered by version",
			files: fstest.MapFS{
				"002_add_index.sql":   {Data: []byte("CREATE INDEX idx ON t (a);")},
				"001_create_t.sql":    {Data: []byte("-- table\nCREATE TABLE t (a TEXT);")},
				"README.md":           {Data: []byte("ignored")},
				"nested/003_skip.sql": {Data: []byte("CREATE TABLE x (a TEXT);")},
			},
			want: []int{1, 2},
		},
		{
			name:    "bad file name",
			files:   fstest.MapFS{"create.sql": {Data: []byte("CREATE TABLE t (a TEXT);")}},
			wantErr: ErrInvalidMigrationFile,
		},
		{
			name:    "only comments",
			files:   fstest.MapFS{"001_empty.sql": {Data: []byte("-- nothing here\n")}},
			wantErr: ErrInvalidMigrationFile,
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"001_a.sql":  {Data: []byte("CREATE TABLE a (x TEXT);")},
				"0001_b.sql": {Data: []byte("CREATE TABLE b (x TEXT);")},
			},
			wantErr: ErrDuplicateVersion,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			migrations, err := Scan(tc.files)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if len(migrations) != len(tc.want) {
				t.Fatalf("expected %d migrations, got %d", len(tc.want), len(migrations))
			}
			for i, m := range migrations {
				if m.Version != tc.want[i] || m.Checksum == "" {
					t.Errorf("migration %d: %+v", i, m)
				}
			}
		})
	}
}

func TestEmbeddedMigrationsScan(t *testing.T) {
	migrations, err := Scan(Embedded())
	if err != nil {
		t.Fatalf("Scan(Embedded): %v", err)
	}
	if len(migrations) == 0 || migrations[0].Version != 1 {
		t.Fatalf("expected embedded initial schema, got %+v", migrations)
	}
}

func TestManagerRunAppliesPendingOnce(t *testing.T) {
	db := openTestDB(t)
	files := fstest.MapFS{
		"001_create_t.sql": {Data: []byte("CREATE TABLE t (a TEXT);\nINSERT INTO t (a) VALUES ('x');")},
	}
	manager := NewManager(db, files, quietLogger())
	ctx := context.Background()

	if err := manager.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("second Run: %v", err)
	}

	var rows int
	if err := db.Get(&rows, "SELECT COUNT(*) FROM t"); err != nil || rows != 1 {
		t.Fatalf("expected the migration to run once, rows=%d err=%v", rows, err)
	}

	files["002_add_b.sql"] = &fstest.MapFile{Data: []byte("ALTER TABLE t ADD COLUMN b TEXT;")}
	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.CurrentVersion != 1 || len(status.Pending) != 1 || status.Pending[0].Version != 2 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestManagerRejectsEditedMigration(t *testing.T) {
	db := openTestDB(t)
	files := fstest.MapFS{"001_create_t.sql": {Data: []byte("CREATE TABLE t (a TEXT);")}}
	ctx := context.Background()

	if err := NewManager(db, files, quietLogger()).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	files["001_create_t.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE t (a TEXT, b TEXT);")}
	if err := NewManager(db, files, quietLogger()).Run(ctx); !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestManagerRollsBackFailedMigration(t *testing.T) {
	db := openTestDB(t)
	files := fstest.MapFS{"001_broken.sql": {Data: []byte("CREATE TABLE t (a TEXT);\nINSERT INTO missing VALUES (1);")}}

	err := NewManager(db, files, quietLogger()).Run(context.Background())
	var migErr *MigrationError
	if !errors.As(err, &migErr) || !errors.Is(err, ErrMigrationFailed) || migErr.Version != 1 {
		t.Fatalf("expected MigrationError for version 1, got %v", err)
	}

	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 't'"); err != nil || count != 0 {
		t.Fatalf("expected table creation to be rolled back, count=%d err=%v", count, err)
	}
}
