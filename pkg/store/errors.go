package store

import (
	"fmt"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// ColumnError is returned when a wide row does not fit its table.
func ColumnError(table, column string, err error) error {
	return &gn.Error{
		Code: errcode.StoreColumnError,
		Msg:  "Cannot store column <em>%s</em> in <em>%s</em>",
		Vars: []any{column, table},
		Err:  fmt.Errorf("table %s, column %s: %w", table, column, err),
	}
}
