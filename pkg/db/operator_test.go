package db_test

import (
	"testing"

	"github.com/warno/warno/internal/iodb"
	"github.com/warno/warno/pkg/db"
)

// TestPgxOperatorImplementsInterface verifies that the pgx operator
// implements the db.Operator interface.
func TestPgxOperatorImplementsInterface(t *testing.T) {
	var _ db.Operator = iodb.NewPgxOperator()
}
