// Package store defines persistence contracts of the Event-Manager.
//
// Lookups return (nil, nil) when a record does not exist. Create methods
// are idempotent on the natural key: when a concurrent request created the
// same record first, the existing record is returned.
package store

import (
	"context"
	"time"

	"github.com/warno/warno/pkg/protocol"
)

// EventCode is a resolved telemetry attribute.
type EventCode struct {
	Code        int    `json:"event_code"`
	Description string `json:"description"`
}

// DataReference tells how an attribute of an instrument is stored.
type DataReference struct {
	InstrumentID int64  `json:"instrument_id"`
	Description  string `json:"description"`
	Special      bool   `json:"special"`
}

// Registry keeps identifiers of sites, instruments and event codes.
type Registry interface {
	// SiteByName finds a site by its short name.
	SiteByName(ctx context.Context, name string) (*protocol.Site, error)

	// SiteByID finds a site by its identifier.
	SiteByID(ctx context.Context, id int64) (*protocol.Site, error)

	// CreateSite allocates a new site identifier. SiteID of the argument
	// is ignored.
	CreateSite(ctx context.Context, s protocol.Site) (*protocol.Site, error)

	// UpsertSite stores a site received from the central facility keeping
	// its identifier.
	UpsertSite(ctx context.Context, s protocol.Site) (*protocol.Site, error)

	// InstrumentByName finds an instrument by its short name.
	InstrumentByName(ctx context.Context, name string) (*protocol.Instrument, error)

	// InstrumentByID finds an instrument by its identifier.
	InstrumentByID(ctx context.Context, id int64) (*protocol.Instrument, error)

	// CreateInstrument allocates a new instrument identifier.
	CreateInstrument(ctx context.Context, i protocol.Instrument) (*protocol.Instrument, error)

	// UpsertInstrument stores an instrument received from the central
	// facility keeping its identifier.
	UpsertInstrument(ctx context.Context, i protocol.Instrument) (*protocol.Instrument, error)

	// EventCodeByDescription finds an event code by description.
	EventCodeByDescription(ctx context.Context, desc string) (*EventCode, error)

	// EventCodeByID finds an event code by its identifier.
	EventCodeByID(ctx context.Context, code int) (*EventCode, error)

	// AllocateEventCode gives desc the next dynamic identifier,
	// max(existing dynamic codes, 9999) + 1.
	AllocateEventCode(ctx context.Context, desc string) (*EventCode, error)

	// UpsertEventCode stores a code received from the central facility.
	UpsertEventCode(ctx context.Context, ec EventCode) (*EventCode, error)

	// EnsureDataReference returns the classification of an attribute of an
	// instrument, creating it on first sight. A new reference is special
	// when a table named after the description exists. An existing
	// reference is never reclassified.
	EnsureDataReference(ctx context.Context, instrumentID int64, desc string) (*DataReference, error)

	// IsSpecialTable reports whether a special attribute set table with
	// the given name exists.
	IsSpecialTable(ctx context.Context, name string) (bool, error)
}

// Recorder persists observations. All observations are append-only.
type Recorder interface {
	// SaveValue stores a numeric observation of a generic attribute.
	SaveValue(ctx context.Context, code int, instrumentID int64, t time.Time, v float64) error

	// SaveText stores a textual observation of a generic attribute.
	SaveText(ctx context.Context, code int, instrumentID int64, t time.Time, text string) error

	// SavePulseCapture stores an array capture.
	SavePulseCapture(ctx context.Context, pc protocol.PulseCapture) error

	// SaveInstrumentLog stores an operator log entry.
	SaveInstrumentLog(ctx context.Context, l protocol.InstrumentLog) error

	// SaveWideRow inserts one sample of a special attribute set into table.
	SaveWideRow(ctx context.Context, table string, row protocol.WideRow) error
}

// Store is everything the Event-Manager persists.
type Store interface {
	Registry
	Recorder
}

// Spooler keeps envelopes that could not be forwarded upstream.
type Spooler interface {
	// Put saves an envelope together with the reason it was not delivered.
	Put(ctx context.Context, env *protocol.Envelope, reason string) error
}
