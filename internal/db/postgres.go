package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/ehr-appointment-scheduling/internal/config"
)

const applicationName = "ehr-appointment-scheduling"

// poolConfig parses dsn and applies the configured pool sizing. Sessions are
// pinned to UTC so timestamptz values come back in the zone the domain uses.
func poolConfig(dsn string, pool config.PostgresPool) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	if pool.MaxConns > 0 {
		cfg.MaxConns = pool.MaxConns
	}
	if pool.MinConns > 0 {
		cfg.MinConns = min(pool.MinConns, cfg.MaxConns)
	}
	if pool.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = pool.MaxConnLifetime
	}
	if pool.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = pool.MaxConnIdleTime
	}
	cfg.HealthCheckPeriod = 30 * time.Second

	params := cfg.ConnConfig.RuntimeParams
	if params["application_name"] == "" {
		params["application_name"] = applicationName
	}
	params["timezone"] = "UTC"

	return cfg, nil
}

// ConnectPostgres opens the pool and pings it once so a bad DSN fails at startup.
func ConnectPostgres(ctx context.Context, dsn string, pool config.PostgresPool) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(dsn, pool)
	if err != nil {
		return nil, err
	}

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Ping(pingCtx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return p, nil
}
