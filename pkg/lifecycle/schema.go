// Package lifecycle defines database lifecycle contracts of the
// Event-Manager.
package lifecycle

import (
	"context"
)

// SchemaManager creates and migrates the relational schema.
// Both operations are idempotent and leave the reserved event codes in
// place.
type SchemaManager interface {
	// Create creates all tables of an empty database and seeds the
	// reserved event codes.
	Create(ctx context.Context) error

	// Migrate brings an existing schema to the current model version
	// with GORM AutoMigrate. Missing reserved codes are added back.
	Migrate(ctx context.Context) error
}
