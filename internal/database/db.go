package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roamium/discovery/internal/logging"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a PostgreSQL connection pool using pgx, verifies connectivity
// and checks that the PostGIS extension is installed.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN must not be empty")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}

	cfg.MaxConnLifetime = 1 * time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := PostGISVersion(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	logging.Info().Str("postgis", version).Int32("max_conns", cfg.MaxConns).Msg("database connected")

	return pool, nil
}

// PostGISVersion returns the installed PostGIS version.
func PostGISVersion(ctx context.Context, q rowQuerier) (string, error) {
	var version string
	if err := q.QueryRow(ctx, "SELECT postgis_lib_version()").Scan(&version); err != nil {
		return "", fmt.Errorf("postgis extension unavailable: %w", err)
	}
	return version, nil
}
