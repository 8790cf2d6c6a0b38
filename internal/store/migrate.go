package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

func migrationDir(dialect Dialect) (fs.FS, goose.Dialect, error) {
	switch dialect {
	case DialectSQLite:
		sub, err := fs.Sub(migrationsFS, "migrations/sqlite")
		return sub, goose.DialectSQLite3, err
	case DialectPostgres:
		sub, err := fs.Sub(migrationsFS, "migrations/postgres")
		return sub, goose.DialectPostgres, err
	}
	return nil, "", fmt.Errorf("unsupported dialect %q", dialect)
}

// migrate brings the schema up to date with the embedded migrations.
func migrate(ctx context.Context, db *sql.DB, dialect Dialect, logger *slog.Logger) error {
	dir, gooseDialect, err := migrationDir(dialect)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(gooseDialect, db, dir)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, r := range results {
		logger.Debug("migration applied", "dialect", dialect, "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// SchemaVersion reports the current migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int64, error) {
	dir, gooseDialect, err := migrationDir(s.dialect)
	if err != nil {
		return 0, err
	}
	provider, err := goose.NewProvider(gooseDialect, s.db, dir)
	if err != nil {
		return 0, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider.GetDBVersion(ctx)
}
