// Package schema provides relational models of WARNO. Tables are created
// and migrated by GORM AutoMigrate, queries are issued with pgx.
package schema

import (
	"time"
)

// Site is a physical or mobile deployment location.
type Site struct {
	// SiteID is assigned by the central facility.
	SiteID int64 `gorm:"column:site_id;primaryKey;autoIncrement"`

	// NameShort is the natural key used for resolution.
	NameShort string `gorm:"column:name_short;type:varchar(32);not null;uniqueIndex"`

	NameLong     string  `gorm:"column:name_long"`
	Latitude     float64 `gorm:"column:latitude"`
	Longitude    float64 `gorm:"column:longitude"`
	Facility     string  `gorm:"column:facility;type:varchar(32)"`
	Mobile       bool    `gorm:"column:mobile"`
	LocationName string  `gorm:"column:location_name"`
}

// Instrument is a monitored device owned by exactly one site.
type Instrument struct {
	InstrumentID int64 `gorm:"column:instrument_id;primaryKey;autoIncrement"`
	SiteID       int64 `gorm:"column:site_id;not null;index"`

	// NameShort is the natural key used for resolution.
	NameShort string `gorm:"column:name_short;type:varchar(32);not null;uniqueIndex"`

	NameLong        string  `gorm:"column:name_long"`
	Type            string  `gorm:"column:type"`
	Vendor          string  `gorm:"column:vendor"`
	Description     string  `gorm:"column:description"`
	FrequencyBand   string  `gorm:"column:frequency_band;type:varchar(2)"`
	Latitude        float64 `gorm:"column:latitude;not null;default:-999"`
	Longitude       float64 `gorm:"column:longitude;not null;default:-999"`
	EffectiveRadius float64 `gorm:"column:effective_radius;not null;default:0"`
}

// EventCode is the canonical identifier of a telemetry attribute.
// Codes below 10000 are reserved for protocol operations.
type EventCode struct {
	EventCode   int    `gorm:"column:event_code;primaryKey;autoIncrement:false"`
	Description string `gorm:"column:description;not null;uniqueIndex"`
}

// InstrumentDataReference records how an attribute of an instrument is
// stored. Special attributes have a dedicated table named after the
// description.
type InstrumentDataReference struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	InstrumentID int64  `gorm:"column:instrument_id;not null;uniqueIndex:idx_idr_instrument_description"`
	Description  string `gorm:"column:description;not null;uniqueIndex:idx_idr_instrument_description"`
	Special      bool   `gorm:"column:special;not null"`
}

// EventWithValue is a numeric observation of a generic attribute.
type EventWithValue struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EventCode    int       `gorm:"column:event_code;not null;index"`
	InstrumentID int64     `gorm:"column:instrument_id;not null;index"`
	Time         time.Time `gorm:"column:time;not null;index"`
	Value        float64   `gorm:"column:value"`
}

// TableName overrides the GORM default.
func (EventWithValue) TableName() string { return "events_with_value" }

// EventWithText is a textual observation of a generic attribute.
type EventWithText struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EventCode    int       `gorm:"column:event_code;not null;index"`
	InstrumentID int64     `gorm:"column:instrument_id;not null;index"`
	Time         time.Time `gorm:"column:time;not null;index"`
	Text         string    `gorm:"column:text"`
}

// TableName overrides the GORM default.
func (EventWithText) TableName() string { return "events_with_text" }

// PulseCapture is a bulk array capture of an instrument.
type PulseCapture struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	InstrumentID int64     `gorm:"column:instrument_id;not null;index"`
	Time         time.Time `gorm:"column:time;not null"`
	Data         []float64 `gorm:"column:data;type:double precision[]"`
}

// InstrumentLog is an operator-authored status annotation.
type InstrumentLog struct {
	LogNumber        int64     `gorm:"column:log_number;primaryKey;autoIncrement"`
	Time             time.Time `gorm:"column:time;not null"`
	InstrumentID     int64     `gorm:"column:instrument_id;not null;index"`
	AuthorID         int64     `gorm:"column:author_id"`
	Status           int       `gorm:"column:status"`
	Contents         string    `gorm:"column:contents"`
	SupportingImages string    `gorm:"column:supporting_images"`
}
