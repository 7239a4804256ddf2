package lifecycle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warno/warno/internal/iodb"
	"github.com/warno/warno/internal/ioschema"
	"github.com/warno/warno/pkg/lifecycle"
)

func TestSchemaManagerContract(t *testing.T) {
	var mgr lifecycle.SchemaManager = ioschema.NewManager(iodb.NewPgxOperator())
	assert.NotNil(t, mgr)
}
