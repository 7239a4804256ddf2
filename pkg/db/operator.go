// Package db declares access to the WARNO PostgreSQL database as a whole.
package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warno/warno/pkg/config"
)

// Operator owns the connection pool. The schema manager and the
// relational store run their SQL on Pool(); the rest covers what
// 'warno create' needs to decide about existing tables.
type Operator interface {
	Connect(context.Context, *config.DatabaseConfig) error
	Close() error
	Pool() *pgxpool.Pool

	// TableExists reports whether the current schema has the table.
	TableExists(ctx context.Context, tableName string) (bool, error)

	// HasTables reports whether the current schema has any table.
	HasTables(ctx context.Context) (bool, error)

	// DropAllTables removes every table of the current schema.
	DropAllTables(ctx context.Context) error
}
