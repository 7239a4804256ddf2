// Package iostore implements store.Store on PostgreSQL with pgx.
//
// Natural keys are protected by unique constraints. Concurrent creation
// of the same record is resolved with ON CONFLICT DO NOTHING followed by
// a second lookup. Event code allocation is serialized with a
// transaction-scoped advisory lock.
package iostore

import (
	"context"
	"errors"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/warno/warno/pkg/protocol"
	"github.com/warno/warno/pkg/store"
)

// allocLockKey identifies the advisory lock of event code allocation.
const allocLockKey = 0x5741524e4f // "WARNO"

// pgStore implements store.Store.
type pgStore struct {
	pool *pgxpool.Pool

	mu      sync.RWMutex
	columns map[string][]store.Column
}

// New creates a store on top of an open pool.
func New(pool *pgxpool.Pool) store.Store {
	return &pgStore{
		pool:    pool,
		columns: make(map[string][]store.Column),
	}
}

const siteColumns = `site_id, name_short, COALESCE(name_long, ''),
	COALESCE(latitude, 0), COALESCE(longitude, 0), COALESCE(facility, ''),
	COALESCE(mobile, false), COALESCE(location_name, '')`

func scanSite(row pgx.Row) (*protocol.Site, error) {
	var s protocol.Site
	err := row.Scan(&s.SiteID, &s.NameShort, &s.NameLong, &s.Latitude,
		&s.Longitude, &s.Facility, &s.Mobile, &s.LocationName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (p *pgStore) SiteByName(ctx context.Context, name string) (*protocol.Site, error) {
	res, err := scanSite(p.pool.QueryRow(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE name_short = $1`, name))
	if err != nil {
		return nil, QueryError("site "+name, err)
	}
	return res, nil
}

func (p *pgStore) SiteByID(ctx context.Context, id int64) (*protocol.Site, error) {
	res, err := scanSite(p.pool.QueryRow(ctx,
		`SELECT `+siteColumns+` FROM sites WHERE site_id = $1`, id))
	if err != nil {
		return nil, QueryError("site", err)
	}
	return res, nil
}

func (p *pgStore) CreateSite(ctx context.Context, s protocol.Site) (*protocol.Site, error) {
	res, err := scanSite(p.pool.QueryRow(ctx, `
INSERT INTO sites (name_short, name_long, latitude, longitude, facility,
	mobile, location_name)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (name_short) DO NOTHING
RETURNING `+siteColumns,
		s.NameShort, s.NameLong, s.Latitude, s.Longitude, s.Facility,
		s.Mobile, s.LocationName))
	if err != nil {
		return nil, InsertError("sites", err)
	}
	if res != nil {
		return res, nil
	}
	return p.SiteByName(ctx, s.NameShort)
}

func (p *pgStore) UpsertSite(ctx context.Context, s protocol.Site) (*protocol.Site, error) {
	res, err := scanSite(p.pool.QueryRow(ctx, `
INSERT INTO sites (site_id, name_short, name_long, latitude, longitude,
	facility, mobile, location_name)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (site_id) DO UPDATE SET
	name_short = EXCLUDED.name_short, name_long = EXCLUDED.name_long,
	latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
	facility = EXCLUDED.facility, mobile = EXCLUDED.mobile,
	location_name = EXCLUDED.location_name
RETURNING `+siteColumns,
		s.SiteID, s.NameShort, s.NameLong, s.Latitude, s.Longitude,
		s.Facility, s.Mobile, s.LocationName))
	if err != nil {
		if isUniqueViolation(err) {
			return p.SiteByName(ctx, s.NameShort)
		}
		return nil, InsertError("sites", err)
	}
	return res, nil
}

const instrumentColumns = `instrument_id, site_id, name_short,
	COALESCE(name_long, ''), COALESCE(type, ''), COALESCE(vendor, ''),
	COALESCE(description, ''), COALESCE(frequency_band, ''), latitude,
	longitude, effective_radius`

func scanInstrument(row pgx.Row) (*protocol.Instrument, error) {
	var i protocol.Instrument
	err := row.Scan(&i.InstrumentID, &i.SiteID, &i.NameShort, &i.NameLong,
		&i.Type, &i.Vendor, &i.Description, &i.FrequencyBand, &i.Latitude,
		&i.Longitude, &i.EffectiveRadius)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (p *pgStore) InstrumentByName(ctx context.Context, name string) (*protocol.Instrument, error) {
	res, err := scanInstrument(p.pool.QueryRow(ctx,
		`SELECT `+instrumentColumns+` FROM instruments WHERE name_short = $1`, name))
	if err != nil {
		return nil, QueryError("instrument "+name, err)
	}
	return res, nil
}

func (p *pgStore) InstrumentByID(ctx context.Context, id int64) (*protocol.Instrument, error) {
	res, err := scanInstrument(p.pool.QueryRow(ctx,
		`SELECT `+instrumentColumns+` FROM instruments WHERE instrument_id = $1`, id))
	if err != nil {
		return nil, QueryError("instrument by id", err)
	}
	return res, nil
}

func (p *pgStore) CreateInstrument(ctx context.Context, i protocol.Instrument) (*protocol.Instrument, error) {
	res, err := scanInstrument(p.pool.QueryRow(ctx, `
INSERT INTO instruments (site_id, name_short, name_long, type, vendor,
	description, frequency_band, latitude, longitude, effective_radius)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (name_short) DO NOTHING
RETURNING `+instrumentColumns,
		i.SiteID, i.NameShort, i.NameLong, i.Type, i.Vendor, i.Description,
		i.FrequencyBand, i.Latitude, i.Longitude, i.EffectiveRadius))
	if err != nil {
		return nil, InsertError("instruments", err)
	}
	if res != nil {
		return res, nil
	}
	return p.InstrumentByName(ctx, i.NameShort)
}

func (p *pgStore) UpsertInstrument(ctx context.Context, i protocol.Instrument) (*protocol.Instrument, error) {
	res, err := scanInstrument(p.pool.QueryRow(ctx, `
INSERT INTO instruments (instrument_id, site_id, name_short, name_long, type,
	vendor, description, frequency_band, latitude, longitude, effective_radius)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (instrument_id) DO UPDATE SET
	site_id = EXCLUDED.site_id, name_short = EXCLUDED.name_short,
	name_long = EXCLUDED.name_long, type = EXCLUDED.type,
	vendor = EXCLUDED.vendor, description = EXCLUDED.description,
	frequency_band = EXCLUDED.frequency_band, latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude, effective_radius = EXCLUDED.effective_radius
RETURNING `+instrumentColumns,
		i.InstrumentID, i.SiteID, i.NameShort, i.NameLong, i.Type, i.Vendor,
		i.Description, i.FrequencyBand, i.Latitude, i.Longitude,
		i.EffectiveRadius))
	if err != nil {
		if isUniqueViolation(err) {
			return p.InstrumentByName(ctx, i.NameShort)
		}
		return nil, InsertError("instruments", err)
	}
	return res, nil
}

func scanEventCode(row pgx.Row) (*store.EventCode, error) {
	var ec store.EventCode
	err := row.Scan(&ec.Code, &ec.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ec, nil
}

func (p *pgStore) EventCodeByDescription(ctx context.Context, desc string) (*store.EventCode, error) {
	res, err := scanEventCode(p.pool.QueryRow(ctx,
		`SELECT event_code, description FROM event_codes WHERE description = $1`, desc))
	if err != nil {
		return nil, QueryError("event code "+desc, err)
	}
	return res, nil
}

func (p *pgStore) EventCodeByID(ctx context.Context, code int) (*store.EventCode, error) {
	res, err := scanEventCode(p.pool.QueryRow(ctx,
		`SELECT event_code, description FROM event_codes WHERE event_code = $1`, code))
	if err != nil {
		return nil, QueryError("event code", err)
	}
	return res, nil
}

func (p *pgStore) AllocateEventCode(ctx context.Context, desc string) (*store.EventCode, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, AllocateError(desc, err)
	}
	defer tx.Rollback(ctx)

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(allocLockKey)); err != nil {
		return nil, AllocateError(desc, err)
	}

	res, err := scanEventCode(tx.QueryRow(ctx,
		`SELECT event_code, description FROM event_codes WHERE description = $1`, desc))
	if err != nil {
		return nil, AllocateError(desc, err)
	}
	if res != nil {
		return res, nil
	}

	res, err = scanEventCode(tx.QueryRow(ctx, `
INSERT INTO event_codes (event_code, description)
SELECT GREATEST(COALESCE(MAX(event_code), 0), $1) + 1, $2 FROM event_codes
RETURNING event_code, description`, protocol.MaxReservedCode, desc))
	if err != nil {
		return nil, AllocateError(desc, err)
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, AllocateError(desc, err)
	}
	return res, nil
}

func (p *pgStore) UpsertEventCode(ctx context.Context, ec store.EventCode) (*store.EventCode, error) {
	res, err := scanEventCode(p.pool.QueryRow(ctx, `
INSERT INTO event_codes (event_code, description) VALUES ($1, $2)
ON CONFLICT (event_code) DO UPDATE SET description = EXCLUDED.description
RETURNING event_code, description`, ec.Code, ec.Description))
	if err != nil {
		if isUniqueViolation(err) {
			return p.EventCodeByDescription(ctx, ec.Description)
		}
		return nil, InsertError("event_codes", err)
	}
	return res, nil
}

func (p *pgStore) dataReference(
	ctx context.Context,
	instrumentID int64,
	desc string,
) (*store.DataReference, error) {
	var res store.DataReference
	err := p.pool.QueryRow(ctx, `
SELECT instrument_id, description, special FROM instrument_data_references
WHERE instrument_id = $1 AND description = $2`, instrumentID, desc).
		Scan(&res.InstrumentID, &res.Description, &res.Special)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, QueryError("data reference "+desc, err)
	}
	return &res, nil
}

func (p *pgStore) EnsureDataReference(
	ctx context.Context,
	instrumentID int64,
	desc string,
) (*store.DataReference, error) {
	res, err := p.dataReference(ctx, instrumentID, desc)
	if err != nil || res != nil {
		return res, err
	}

	special, err := p.IsSpecialTable(ctx, desc)
	if err != nil {
		return nil, err
	}
	_, err = p.pool.Exec(ctx, `
INSERT INTO instrument_data_references (instrument_id, description, special)
VALUES ($1, $2, $3)
ON CONFLICT (instrument_id, description) DO NOTHING`, instrumentID, desc, special)
	if err != nil {
		return nil, InsertError("instrument_data_references", err)
	}
	return p.dataReference(ctx, instrumentID, desc)
}
