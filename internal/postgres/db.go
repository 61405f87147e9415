// Package postgres implements the funnel and alert store on top of PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // Register postgres driver

	"github.com/bargn/bargn/internal/config"
	"github.com/bargn/bargn/pkg/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB provides access to the funnel analytics surface and the alert tables.
type DB struct {
	db           *sqlx.DB
	queryTimeout time.Duration
	log          *slog.Logger
}

// Options holds configuration for creating a new DB instance.
type Options struct {
	Config config.PostgresConfig
	Logger *slog.Logger
}

// New opens a connection pool, verifies it and optionally applies the
// embedded migrations.
func New(ctx context.Context, opts Options) (*DB, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	log = log.With("component", "postgres")

	conn, err := sqlx.Open("postgres", opts.Config.DSN)
	if err != nil {
		return nil, fmt.Errorf("error opening postgres database: %w", err)
	}

	conn.SetMaxOpenConns(opts.Config.MaxOpenConns)
	conn.SetMaxIdleConns(opts.Config.MaxIdleConns)
	conn.SetConnMaxLifetime(opts.Config.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("error pinging postgres database: %w", err)
	}

	if opts.Config.RunMigrations {
		if err := runMigrations(conn.DB, log); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	log.Debug("postgres initialized", "max_open_conns", opts.Config.MaxOpenConns)
	return NewWithDB(conn, opts.Config.QueryTimeout, log), nil
}

// NewWithDB wraps an existing connection. queryTimeout bounds every query
// that does not already carry an earlier deadline.
func NewWithDB(conn *sqlx.DB, queryTimeout time.Duration, log *slog.Logger) *DB {
	if log == nil {
		log = logger.Discard()
	}
	return &DB{db: conn, queryTimeout: queryTimeout, log: log}
}

// runMigrations applies the embedded migrations with golang-migrate.
func runMigrations(conn *sql.DB, log *slog.Logger) error {
	migrationFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("error creating migrations filesystem: %w", err)
	}

	sourceDriver, err := iofs.New(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("error creating migration source driver: %w", err)
	}

	driver, err := migratepg.WithInstance(conn, &migratepg.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("error creating postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("error creating migrate instance: %w", err)
	}

	currentVersion, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		log.Debug("no previous migrations found")
	case err != nil:
		log.Error("failed to get current migration version", "error", err)
	default:
		log.Debug("current migration version", "version", currentVersion, "dirty", dirty)
		if dirty {
			log.Warn("database is in a dirty migration state. Manual intervention may be required if migrations fail.")
		}
	}

	// m.Close would close the shared pool through the driver, so only the
	// source is released here.
	defer func() {
		if err := sourceDriver.Close(); err != nil {
			log.Warn("error closing migration source driver", "error", err)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Debug("migrations up to date")
			return nil
		}
		return fmt.Errorf("error applying migrations: %w", err)
	}

	if version, _, err := m.Version(); err == nil {
		log.Info("migrations applied", "version", version)
	}
	return nil
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.withTimeout(ctx)
	defer cancel()
	return db.db.PingContext(ctx)
}

// Close releases the connection pool.
func (db *DB) Close() error {
	db.log.Debug("closing database connections")
	return db.db.Close()
}

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, db.queryTimeout)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
