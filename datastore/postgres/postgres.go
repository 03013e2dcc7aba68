// Package postgres implements the datastore interfaces against PostgreSQL.
//
// Every method borrows a pool connection for the duration of the call. The
// pipeline's upsert sequences are deliberately not wrapped in transactions:
// each step is idempotent and a cancelled pass is repaired by the next one.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/quay/zlog"
	"github.com/remind101/migrate"

	"github.com/stackrook/vulnmirror/datastore"
	"github.com/stackrook/vulnmirror/datastore/postgres/migrations"
	"github.com/stackrook/vulnmirror/internal/poolstats"
)

// DefaultMaxConns bounds the pool when the connection string does not.
const DefaultMaxConns = 16

// Store implements [datastore.Store].
type Store struct {
	pool *pgxpool.Pool
}

var _ datastore.Store = (*Store)(nil)

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Connect initializes a [pgxpool.Pool] based on the connection string.
func Connect(ctx context.Context, connString string, applicationName string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxConns < DefaultMaxConns {
		cfg.MaxConns = DefaultMaxConns
	}
	const appnameKey = `application_name`
	params := cfg.ConnConfig.RuntimeParams
	if _, ok := params[appnameKey]; !ok {
		params[appnameKey] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := prometheus.Register(poolstats.NewCollector(pool, applicationName)); err != nil {
		zlog.Info(ctx).Msg("pool metrics already registered")
	}
	return pool, nil
}

// Init connects, applies migrations, and reports a ready Store.
func Init(ctx context.Context, connString string) (*Store, error) {
	ctx = zlog.ContextWithValues(ctx, "component", "datastore/postgres/Init")
	pool, err := Connect(ctx, connString, "vulnmirror")
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, connString); err != nil {
		pool.Close()
		return nil, err
	}
	zlog.Info(ctx).Msg("store initialized")
	return New(pool), nil
}

// Migrate applies the embedded migrations.
func Migrate(_ context.Context, connString string) error {
	// The migrate package doesn't use the context, which is... disconcerting.
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return err
	}
	db, err := sql.Open("pgx", stdlib.RegisterConnConfig(cfg))
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := migrate.NewPostgresMigrator(db)
	migrator.Table = migrations.MigrationTable
	if err := migrator.Exec(migrate.Up, migrations.Migrations...); err != nil {
		return fmt.Errorf("failed to perform migrations: %w", err)
	}
	return nil
}

// IsUnique reports whether the error is the expected unique-violation
// signal, which selects the update branch of the upserts.
func isUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
