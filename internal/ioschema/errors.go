package ioschema

import (
	"errors"
	"fmt"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// NotConnectedError is returned when Create or Migrate run before the
// operator connected.
func NotConnectedError() error {
	return &gn.Error{
		Code: errcode.DBNotConnectedError,
		Msg:  "Cannot manage schema: no database connection",
		Err:  errors.New("schema manager: operator is not connected"),
	}
}

// GORMConnectionError is returned when gorm cannot be opened on top of
// the pgx pool.
func GORMConnectionError(err error) error {
	return &gn.Error{
		Code: errcode.SchemaGORMConnectionError,
		Msg:  "Cannot open the schema manager on the database connection",
		Err:  fmt.Errorf("open gorm on pgx pool: %w", err),
	}
}

// CreateSchemaError is returned when tables cannot be created.
func CreateSchemaError(err error) error {
	msg := `Cannot create WARNO tables

<em>How to fix:</em>
  1. Check that the database user may CREATE tables
  2. Drop conflicting tables with 'warno create --force'`

	return &gn.Error{
		Code: errcode.SchemaCreateError,
		Msg:  msg,
		Err:  fmt.Errorf("create schema: %w", err),
	}
}

// MigrateSchemaError is returned when existing tables cannot be brought
// up to date.
func MigrateSchemaError(err error) error {
	msg := `Cannot migrate WARNO tables

Migration only adds tables, columns and indexes. A column whose type
changed has to be converted by hand.`

	return &gn.Error{
		Code: errcode.SchemaMigrateError,
		Msg:  msg,
		Err:  fmt.Errorf("migrate schema: %w", err),
	}
}

// SeedError is returned when reserved event codes cannot be inserted.
func SeedError(err error) error {
	msg := `Cannot insert reserved event codes

Check that event_codes has no rows with reserved descriptions
under other codes.`

	return &gn.Error{
		Code: errcode.SchemaSeedError,
		Msg:  msg,
		Err:  fmt.Errorf("seed event codes: %w", err),
	}
}
