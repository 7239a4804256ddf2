package schema

import (
	"gorm.io/gorm"
)

// AllModels returns all schema models for GORM AutoMigrate.
func AllModels() []any {
	return []any{
		&Site{},
		&Instrument{},
		&EventCode{},
		&InstrumentDataReference{},
		&EventWithValue{},
		&EventWithText{},
		&PulseCapture{},
		&InstrumentLog{},
		&ProsensingPAF{},
		&IrisBite{},
	}
}

// SpecialTables lists tables that hold special attribute sets.
func SpecialTables() []string {
	return []string{
		ProsensingPAF{}.TableName(),
		IrisBite{}.TableName(),
	}
}

// Migrate runs GORM AutoMigrate to create or update schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
