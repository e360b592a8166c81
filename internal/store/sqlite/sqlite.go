// Package sqlite is the concrete C5 Store backend: a single-file SQLite
// database matching the service's "data directory" deployment model.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens the database at dsn (a filesystem path), applies idempotent
// migrations, and runs the legacy-schema backfill described in §4.5.
func New(dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := configurePragmas(db); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}

	if err := s.runMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if err := s.backfillLegacySchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("backfill legacy schema: %w", err)
	}

	return s, nil
}

func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 30000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("exec %s: %w", p, err)
		}
	}
	return nil
}

func (s *Store) runMigrations(dsn string) error {
	sourceDriver, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("iofs source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}
	// m.Close would also close the database driver, and with it s.db; only
	// the migration source is released here.
	defer sourceDriver.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// backfillLegacySchema is resilient to databases created by an earlier
// generation of the schema that used sync_interval_minutes instead of
// sync_interval_secs. It additively adds the missing columns (sources'
// public_ics/public_ics_path, and sync_interval_secs) and backfills seconds
// from minutes where the legacy column is present. Every step is idempotent:
// repeated runs against an already-migrated database are no-ops.
func (s *Store) backfillLegacySchema(ctx context.Context) error {
	for _, col := range []struct{ name, def string }{
		{"public_ics", "INTEGER NOT NULL DEFAULT 0"},
		{"public_ics_path", "TEXT"},
	} {
		has, err := s.columnExists(ctx, "sources", col.name)
		if err != nil {
			return err
		}
		if !has {
			if _, err := s.db.ExecContext(ctx, fmt.Sprintf("ALTER TABLE sources ADD COLUMN %s %s", col.name, col.def)); err != nil {
				return err
			}
		}
	}

	for _, table := range []string{"sources", "destinations"} {
		hasLegacy, err := s.columnExists(ctx, table, "sync_interval_minutes")
		if err != nil {
			return err
		}
		if !hasLegacy {
			continue
		}
		hasSecs, err := s.columnExists(ctx, table, "sync_interval_secs")
		if err != nil {
			return err
		}
		if !hasSecs {
			if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
				"ALTER TABLE %s ADD COLUMN sync_interval_secs INTEGER NOT NULL DEFAULT 0", table)); err != nil {
				return err
			}
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(
			"UPDATE %s SET sync_interval_secs = sync_interval_minutes * 60 WHERE sync_interval_secs = 0 AND sync_interval_minutes > 0", table)); err != nil {
			return err
		}
		s.logger.Info("backfilled sync_interval_secs from legacy minutes column", zap.String("table", table))
	}
	return nil
}

func (s *Store) columnExists(ctx context.Context, table, column string) (bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
