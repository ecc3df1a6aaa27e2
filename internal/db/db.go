// Package db provides the PostgreSQL tag store.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/addrlens/internal/logger"
	"github.com/jonathan/addrlens/internal/tags"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool     *pgxpool.Pool
	resolver tags.Resolver
	log      *logger.Logger
}

// Option customizes a DB.
type Option func(*DB)

// WithResolver sets the resolver used by AllResolved.
func WithResolver(r tags.Resolver) Option {
	return func(db *DB) { db.resolver = r }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(db *DB) { db.log = logger.OrNop(l) }
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string, opts ...Option) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		pool:     pool,
		resolver: tags.NewResolver(""),
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
