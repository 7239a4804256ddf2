// Package ioschema implements lifecycle.SchemaManager with GORM
// AutoMigrate on top of the pgx pool of a db.Operator.
package ioschema

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/warno/warno/pkg/db"
	"github.com/warno/warno/pkg/lifecycle"
	"github.com/warno/warno/pkg/protocol"
	"github.com/warno/warno/pkg/schema"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type manager struct {
	operator db.Operator
}

// NewManager creates a new SchemaManager.
func NewManager(op db.Operator) lifecycle.SchemaManager {
	return &manager{operator: op}
}

// Create creates the schema and seeds reserved event codes.
func (m *manager) Create(ctx context.Context) error {
	gormDB, err := m.open(ctx)
	if err != nil {
		return err
	}
	if err = schema.Migrate(gormDB); err != nil {
		return CreateSchemaError(err)
	}
	return seed(gormDB)
}

// Migrate updates the schema to the current models.
func (m *manager) Migrate(ctx context.Context) error {
	gormDB, err := m.open(ctx)
	if err != nil {
		return err
	}
	if err = schema.Migrate(gormDB); err != nil {
		return MigrateSchemaError(err)
	}
	return seed(gormDB)
}

func (m *manager) open(ctx context.Context) (*gorm.DB, error) {
	pool := m.operator.Pool()
	if pool == nil {
		return nil, NotConnectedError()
	}

	gormDB, err := gorm.Open(
		postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)}),
		&gorm.Config{Logger: logger.Discard},
	)
	if err != nil {
		return nil, GORMConnectionError(err)
	}
	return gormDB.WithContext(ctx), nil
}

// seed inserts reserved event codes that are missing.
func seed(gormDB *gorm.DB) error {
	codes := ReservedCodes()
	res := gormDB.Clauses(clause.OnConflict{DoNothing: true}).Create(&codes)
	if res.Error != nil {
		return SeedError(res.Error)
	}
	slog.Info("Reserved event codes are in place",
		"total", len(codes), "added", res.RowsAffected)
	return nil
}

// ReservedCodes returns rows of the reserved event codes ordered by code.
func ReservedCodes() []schema.EventCode {
	res := make([]schema.EventCode, 0, len(protocol.FixedCodes))
	for code := 1; code <= protocol.MaxReservedCode; code++ {
		if desc, ok := protocol.FixedCodes[code]; ok {
			res = append(res, schema.EventCode{EventCode: code, Description: desc})
		}
		if len(res) == len(protocol.FixedCodes) {
			break
		}
	}
	return res
}
