package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/voxdial/voxdial/internal/biometric"
	"github.com/voxdial/voxdial/internal/config"
	"github.com/voxdial/voxdial/internal/lifecycle"
	"github.com/voxdial/voxdial/internal/registry"
	"github.com/voxdial/voxdial/internal/resilience"
	"github.com/voxdial/voxdial/internal/subscription"
)

// stores bundles the persistence layer handed to the engine.
type stores struct {
	Candidates    registry.Store
	Profiles      biometric.Store
	Subscriptions subscription.Store
	Records       lifecycle.Store

	// Pool is nil when running on in-memory stores.
	Pool *pgxpool.Pool

	// Breaker guards every PostgreSQL call; nil for in-memory stores.
	Breaker *resilience.CircuitBreaker
}

// Close releases the connection pool, if any.
func (s *stores) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// buildStores connects to PostgreSQL when a DSN is configured and runs the
// schema migrations; otherwise it falls back to in-memory stores.
func buildStores(ctx context.Context, cfg config.StorageConfig) (*stores, error) {
	if cfg.PostgresDSN == "" {
		return &stores{
			Candidates:    registry.NewMemStore(),
			Profiles:      biometric.NewMemStore(),
			Subscriptions: subscription.NewMemStore(),
			Records:       lifecycle.NewMemStore(),
		}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	// Voiceprint columns need the pgvector codec on every connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	breaker := resilience.NewCircuitBreaker(resilience.Config{
		Name:      "postgres",
		Threshold: cfg.BreakerThreshold,
		Cooldown:  cfg.BreakerCooldown,
		Ignore:    []error{pgx.ErrNoRows},
	})
	db := &guardedDB{pool: pool, breaker: breaker}

	s := &stores{
		Candidates:    registry.NewPostgresStore(db),
		Profiles:      biometric.NewPostgresStore(db),
		Subscriptions: subscription.NewPostgresStore(db),
		Records:       lifecycle.NewPostgresStore(db),
		Pool:          pool,
		Breaker:       breaker,
	}
	if err := migrate(ctx, s); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func migrate(ctx context.Context, s *stores) error {
	if err := s.Candidates.(*registry.PostgresStore).Migrate(ctx); err != nil {
		return err
	}
	if err := s.Profiles.(*biometric.PostgresStore).Migrate(ctx); err != nil {
		return err
	}
	if err := s.Subscriptions.(*subscription.PostgresStore).Migrate(ctx); err != nil {
		return err
	}
	return s.Records.(*lifecycle.PostgresStore).Migrate(ctx)
}

// guardedDB routes every query through the storage circuit breaker so a
// dead backend fails fast instead of stacking up timeouts.
type guardedDB struct {
	pool    *pgxpool.Pool
	breaker *resilience.CircuitBreaker
}

func (g *guardedDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	var tag pgconn.CommandTag
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var execErr error
		tag, execErr = g.pool.Exec(ctx, sql, args...)
		return execErr
	})
	return tag, err
}

func (g *guardedDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	var rows pgx.Rows
	err := g.breaker.Do(ctx, func(ctx context.Context) error {
		var queryErr error
		rows, queryErr = g.pool.Query(ctx, sql, args...)
		return queryErr
	})
	return rows, err
}

// QueryRow defers the breaker check to Scan, where pgx surfaces the error.
func (g *guardedDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &guardedRow{db: g, ctx: ctx, sql: sql, args: args}
}

type guardedRow struct {
	db   *guardedDB
	ctx  context.Context
	sql  string
	args []any
}

func (r *guardedRow) Scan(dest ...any) error {
	return r.db.breaker.Do(r.ctx, func(ctx context.Context) error {
		return r.db.pool.QueryRow(ctx, r.sql, r.args...).Scan(dest...)
	})
}
