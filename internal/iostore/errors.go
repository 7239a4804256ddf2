package iostore

import (
	"fmt"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// QueryError is returned when a lookup fails.
func QueryError(what string, err error) error {
	return &gn.Error{
		Code: errcode.StoreQueryError,
		Msg:  "Cannot look up <em>%s</em>",
		Vars: []any{what},
		Err:  fmt.Errorf("query %s: %w", what, err),
	}
}

// InsertError is returned when a row cannot be written.
func InsertError(table string, err error) error {
	return &gn.Error{
		Code: errcode.StoreInsertError,
		Msg:  "Cannot insert into <em>%s</em>",
		Vars: []any{table},
		Err:  fmt.Errorf("insert into %s: %w", table, err),
	}
}

// AllocateError is returned when a new event code cannot be allocated.
func AllocateError(desc string, err error) error {
	return &gn.Error{
		Code: errcode.StoreAllocateError,
		Msg:  "Cannot allocate event code for <em>%s</em>",
		Vars: []any{desc},
		Err:  fmt.Errorf("allocate event code %s: %w", desc, err),
	}
}
