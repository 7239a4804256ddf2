package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/warno/warno/pkg/protocol"
)

// Column describes a column of a special attribute set table as reported
// by information_schema.
type Column struct {
	Name     string
	DataType string
}

// headerColumns are filled from the row itself, never from its values.
var headerColumns = map[string]struct{}{
	"packet_id":     {},
	"id":            {},
	"time":          {},
	"site_id":       {},
	"instrument_id": {},
}

// BuildWideInsert builds a parameterized insert of one wide row. Every key
// of row.Values must be a column of the table. Identifiers are quoted and
// values are passed as bind parameters converted to the column type.
func BuildWideInsert(
	table string,
	cols []Column,
	row protocol.WideRow,
) (string, []any, error) {
	if len(cols) == 0 {
		return "", nil, ColumnError(table, "", fmt.Errorf("table has no columns"))
	}
	known := make(map[string]Column, len(cols))
	for _, c := range cols {
		known[c.Name] = c
	}

	keys := make([]string, 0, len(row.Values))
	for k := range row.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := []string{"time", "site_id", "instrument_id"}
	args := []any{row.Time.Time, row.SiteID, row.InstrumentID}
	for _, k := range keys {
		if _, ok := headerColumns[k]; ok {
			return "", nil, ColumnError(table, k, fmt.Errorf("reserved column"))
		}
		col, ok := known[k]
		if !ok {
			return "", nil, ColumnError(table, k, fmt.Errorf("unknown column"))
		}
		v, err := ConvertValue(col, row.Values[k])
		if err != nil {
			return "", nil, ColumnError(table, k, err)
		}
		names = append(names, k)
		args = append(args, v)
	}

	quoted := make([]string, len(names))
	params := make([]string, len(names))
	for i, n := range names {
		quoted[i] = pgx.Identifier{n}.Sanitize()
		params[i] = "$" + strconv.Itoa(i+1)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(params, ", "),
	)
	return q, args, nil
}

// ConvertValue converts a decoded JSON value to the Go type matching the
// column. Strings "inf", "-inf" and "nan" become float infinities and NaN
// for floating point columns.
func ConvertValue(col Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch columnKind(col.DataType) {
	case kindFloat:
		return toFloat(v)
	case kindInt:
		f, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not an integer", v)
		}
		return int64(f), nil
	case kindBool:
		return toBool(v)
	case kindTime:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%v is not a timestamp", v)
		}
		t, err := protocol.ParseTime(s)
		if err != nil {
			return nil, err
		}
		return t.Time, nil
	default:
		return toText(v), nil
	}
}

type kind int

const (
	kindText kind = iota
	kindFloat
	kindInt
	kindBool
	kindTime
)

func columnKind(dataType string) kind {
	switch strings.ToLower(dataType) {
	case "double precision", "real", "numeric", "decimal":
		return kindFloat
	case "integer", "bigint", "smallint":
		return kindInt
	case "boolean":
		return kindBool
	case "timestamp without time zone", "timestamp with time zone":
		return kindTime
	default:
		return kindText
	}
}

func toFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case json.Number:
		if f, ok := protocol.ParseFloat(t.String()); ok {
			return f, nil
		}
	case string:
		if f, ok := protocol.ParseFloat(t); ok {
			return f, nil
		}
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%v is not a number", v)
}

func toBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		return strconv.ParseBool(t)
	default:
		f, err := toFloat(v)
		if err != nil {
			return false, err
		}
		return f != 0, nil
	}
}

func toText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
