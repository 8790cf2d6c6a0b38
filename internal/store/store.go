// Package store provides the SQL backends of the intake bot.
//
// One Store serves both the domain repository (users, incidents, attachments,
// conversations and their log) and the checkpoint store. SQLite and Postgres
// share the same queries; placeholders are rebound per dialect.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JonathanLopez0327/chat-demo/internal/logging"
	"github.com/JonathanLopez0327/chat-demo/pkg/ports"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Database connection pool configuration for Postgres.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

// DefaultSQLitePath is used when no DSN is configured.
const DefaultSQLitePath = "data/incidentbot.db"

// sqliteParams are appended to plain sqlite paths.
const sqliteParams = "_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL"

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

var (
	_ ports.Repository      = (*Store)(nil)
	_ ports.CheckpointStore = (*Store)(nil)
)

// Opts holds configuration for the store.
type Opts struct {
	DSN    string
	Logger *slog.Logger
}

// Option configures a Store.
type Option func(*Opts)

// WithDSN sets the connection string: a sqlite path or a postgres URL.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithLogger sets the logger used around queries.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Opts) {
		o.Logger = logger
	}
}

// Store is a SQL-backed repository and checkpoint store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// DetectDialect picks postgres for postgres URLs and sqlite otherwise.
func DetectDialect(dsn string) Dialect {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Open connects to the backend named by the DSN and applies migrations.
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if DetectDialect(cfg.DSN) == DialectPostgres {
		return NewPostgresStore(ctx, opts...)
	}
	return NewSQLiteStore(ctx, opts...)
}

// NewSQLiteStore opens (or creates) a sqlite database and migrates it.
func NewSQLiteStore(ctx context.Context, opts ...Option) (*Store, error) {
	cfg := Opts{DSN: DefaultSQLitePath}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	dsn := cfg.DSN
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	if !strings.Contains(dsn, "?") {
		dsn += "?" + sqliteParams
	}

	logger.Debug("opening sqlite database", "path", path)
	db, err := sql.Open(string(DialectSQLite), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection serializes writers; busy_timeout covers other processes.
	db.SetMaxOpenConns(1)

	return finishOpen(ctx, db, DialectSQLite, logger)
}

// NewPostgresStore connects to postgres and migrates it.
func NewPostgresStore(ctx context.Context, opts ...Option) (*Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN not set")
	}

	logger.Debug("opening postgres connection")
	db, err := sql.Open(string(DialectPostgres), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	return finishOpen(ctx, db, DialectPostgres, logger)
}

func finishOpen(ctx context.Context, db *sql.DB, dialect Dialect, logger *slog.Logger) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}
	if err := migrate(ctx, db, dialect, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Debug("database ready", "dialect", dialect)
	return &Store{db: db, dialect: dialect, logger: logger}, nil
}

// Dialect reports the backend in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	return res, classify(err)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// classify maps driver errors to the ports sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrNotFound
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked {
			return fmt.Errorf("%w: %v", ports.ErrContention, err)
		}
		return err
	}

	var pgErr *pq.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %v", ports.ErrContention, err)
		}
	}
	return err
}
