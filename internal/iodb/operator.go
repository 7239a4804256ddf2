// Package iodb connects to the WARNO PostgreSQL database and manages its
// tables as a whole. Row level access lives in iostore.
package iodb

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warno/warno/pkg/config"
	"github.com/warno/warno/pkg/db"
)

const (
	maxConns = 20
	minConns = 2

	// pingTries bounds waiting for a database that is still starting.
	pingTries = 4
)

type pgxOperator struct {
	pool *pgxpool.Pool
}

// NewPgxOperator creates an operator that is not connected yet.
func NewPgxOperator() db.Operator {
	return &pgxOperator{}
}

// Connect opens the pool and pings the server, retrying a few times with
// exponential delays.
func (p *pgxOperator) Connect(
	ctx context.Context,
	cfg *config.DatabaseConfig,
) error {
	connErr := func(err error) error {
		return ConnectionError(cfg.Host, cfg.Port, cfg.Database, cfg.User, err)
	}

	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return connErr(err)
	}
	// one connection per in-flight ingestion request
	poolCfg.MaxConns = maxConns
	poolCfg.MinConns = minConns
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return connErr(err)
	}

	ping := func() (struct{}, error) {
		return struct{}{}, pool.Ping(ctx)
	}
	_, err = backoff.Retry(ctx, ping,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(pingTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			slog.Warn("Database is not reachable yet",
				"host", cfg.Host, "port", cfg.Port, "retry_in", d, "error", err)
		}),
	)
	if err != nil {
		pool.Close()
		return connErr(err)
	}

	slog.Info("Connected to database",
		"host", cfg.Host, "port", cfg.Port, "database", cfg.Database)
	p.pool = pool
	return nil
}

// DSN builds a PostgreSQL connection URL from the configuration.
func DSN(cfg *config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Database,
		RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
	}
	return u.String()
}

func (p *pgxOperator) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}

func (p *pgxOperator) Pool() *pgxpool.Pool {
	return p.pool
}

// tables lists base tables of the current schema in name order.
func (p *pgxOperator) tables(ctx context.Context) ([]string, error) {
	if p.pool == nil {
		return nil, NotConnectedError()
	}
	rows, err := p.pool.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, QueryTablesError(err)
	}
	res, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, ScanTableError(err)
	}
	return res, nil
}

// TableExists reports whether name is a table of the current schema.
func (p *pgxOperator) TableExists(ctx context.Context, name string) (bool, error) {
	if p.pool == nil {
		return false, NotConnectedError()
	}
	var exists bool
	err := p.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1
		)`, name).Scan(&exists)
	if err != nil {
		return false, TableExistsCheckError(name, err)
	}
	return exists, nil
}

// HasTables reports whether the current schema has any table. create uses
// it to ask before dropping data.
func (p *pgxOperator) HasTables(ctx context.Context) (bool, error) {
	ts, err := p.tables(ctx)
	if err != nil {
		return false, TableCheckError(err)
	}
	return len(ts) > 0, nil
}

// DropAllTables drops every table of the current schema in one statement.
func (p *pgxOperator) DropAllTables(ctx context.Context) error {
	ts, err := p.tables(ctx)
	if err != nil {
		return err
	}
	if len(ts) == 0 {
		return nil
	}

	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = pgx.Identifier{t}.Sanitize()
	}
	q := "DROP TABLE IF EXISTS " + strings.Join(names, ", ") + " CASCADE"
	if _, err = p.pool.Exec(ctx, q); err != nil {
		return DropTableError(strings.Join(ts, ", "), err)
	}
	slog.Info("Dropped tables", "count", len(ts))
	return nil
}
