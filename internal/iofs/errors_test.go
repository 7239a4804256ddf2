package iofs

import (
	"errors"
	"testing"

	"github.com/gnames/gn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warno/warno/pkg/errcode"
)

func TestErrors(t *testing.T) {
	cause := errors.New("no space left")

	tests := []struct {
		name string
		err  error
		code gn.ErrorCode
		text string
	}{
		{"create dir", CreateDirError("/a/b", cause), errcode.CreateDirError, "cannot create"},
		{"write", WriteFileError("/a/config.yaml", cause), errcode.WriteFileError, "cannot write"},
		{"read", ReadFileError("/a/plugins", cause), errcode.ReadFileError, "cannot read"},
	}

	for _, v := range tests {
		t.Run(v.name, func(t *testing.T) {
			gnErr, ok := v.err.(*gn.Error)
			require.True(t, ok)
			assert.Equal(t, v.code, gnErr.Code)
			assert.Contains(t, gnErr.Msg, "%s")
			require.Len(t, gnErr.Vars, 1)
			assert.Contains(t, gnErr.Err.Error(), "iofs.TestErrors")
			assert.Contains(t, gnErr.Err.Error(), v.text)
			assert.ErrorIs(t, gnErr.Err, cause)
		})
	}
}
