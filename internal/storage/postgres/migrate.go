package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

const migrationSuffix = ".up.sql"

// Migrator applies *.up.sql files from an fs.FS in filename order, once each.
type Migrator struct {
	db     *sqlx.DB
	files  fs.FS
	logger *slog.Logger
}

func NewMigrator(db *sqlx.DB, files fs.FS, logger *slog.Logger) *Migrator {
	return &Migrator{db: db, files: files, logger: logger}
}

// Up applies every pending migration and returns the versions it applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := fs.Glob(m.files, "*"+migrationSuffix)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	var applied []string
	for _, name := range names {
		version := strings.TrimSuffix(name, migrationSuffix)

		ok, err := m.apply(ctx, version, name)
		if err != nil {
			return applied, fmt.Errorf("migration %s: %w", version, err)
		}
		if ok {
			m.logger.Info("migration applied", "version", version)
			applied = append(applied, version)
		}
	}

	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, version, name string) (bool, error) {
	body, err := fs.ReadFile(m.files, name)
	if err != nil {
		return false, err
	}

	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var done bool
	if err := tx.GetContext(ctx, &done,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", version); err != nil {
		return false, err
	}
	if done {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
		return false, err
	}

	return true, tx.Commit()
}
