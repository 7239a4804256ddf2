package iostore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/warno/warno/pkg/protocol"
	"github.com/warno/warno/pkg/store"
)

// A special attribute set table has these columns besides its values.
var specialHeader = []string{"time", "site_id", "instrument_id"}

// IsSpecialTable reports whether a table named name exists and carries
// the header columns of a special attribute set.
func (p *pgStore) IsSpecialTable(ctx context.Context, name string) (bool, error) {
	cols, err := p.tableColumns(ctx, name)
	if err != nil {
		return false, err
	}
	return len(cols) > 0, nil
}

// tableColumns returns the columns of a special attribute set table, or
// nil if there is no such table. Found tables are cached.
func (p *pgStore) tableColumns(ctx context.Context, table string) ([]store.Column, error) {
	p.mu.RLock()
	cols, ok := p.columns[table]
	p.mu.RUnlock()
	if ok {
		return cols, nil
	}

	rows, err := p.pool.Query(ctx, `
SELECT column_name, data_type FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, QueryError("columns of "+table, err)
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var c store.Column
		if err = rows.Scan(&c.Name, &c.DataType); err != nil {
			return nil, QueryError("columns of "+table, err)
		}
		names[c.Name] = struct{}{}
		cols = append(cols, c)
	}
	if err = rows.Err(); err != nil {
		return nil, QueryError("columns of "+table, err)
	}

	for _, v := range specialHeader {
		if _, ok := names[v]; !ok {
			return nil, nil
		}
	}

	p.mu.Lock()
	p.columns[table] = cols
	p.mu.Unlock()
	return cols, nil
}

func (p *pgStore) SaveValue(
	ctx context.Context,
	code int,
	instrumentID int64,
	t time.Time,
	v float64,
) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO events_with_value (event_code, instrument_id, time, value)
VALUES ($1, $2, $3, $4)`, code, instrumentID, t, v)
	if err != nil {
		return InsertError("events_with_value", err)
	}
	return nil
}

func (p *pgStore) SaveText(
	ctx context.Context,
	code int,
	instrumentID int64,
	t time.Time,
	text string,
) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO events_with_text (event_code, instrument_id, time, text)
VALUES ($1, $2, $3, $4)`, code, instrumentID, t, text)
	if err != nil {
		return InsertError("events_with_text", err)
	}
	return nil
}

func (p *pgStore) SavePulseCapture(ctx context.Context, pc protocol.PulseCapture) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO pulse_captures (instrument_id, time, data) VALUES ($1, $2, $3)`,
		pc.InstrumentID, pc.Time.Time, pc.Values)
	if err != nil {
		return InsertError("pulse_captures", err)
	}
	return nil
}

func (p *pgStore) SaveInstrumentLog(ctx context.Context, l protocol.InstrumentLog) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO instrument_logs (time, instrument_id, author_id, status, contents,
	supporting_images)
VALUES ($1, $2, $3, $4, $5, $6)`,
		l.Time.Time, l.InstrumentID, l.AuthorID, l.Status, l.Contents,
		l.SupportingImages)
	if err != nil {
		return InsertError("instrument_logs", err)
	}
	return nil
}

func (p *pgStore) SaveWideRow(ctx context.Context, table string, row protocol.WideRow) error {
	cols, err := p.tableColumns(ctx, table)
	if err != nil {
		return err
	}
	q, args, err := store.BuildWideInsert(table, cols, row)
	if err != nil {
		return err
	}
	if _, err = p.pool.Exec(ctx, q, args...); err != nil {
		return InsertError(table, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
