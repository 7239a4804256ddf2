package errcode

import (
	"errors"

	"github.com/gnames/gn"
)

// Has reports whether any *gn.Error in the chain of err carries one of
// the given codes. Nested gn.Error values inside Err are searched too.
func Has(err error, codes ...gn.ErrorCode) bool {
	for err != nil {
		var ge *gn.Error
		if !errors.As(err, &ge) {
			return false
		}
		for _, c := range codes {
			if ge.Code == c {
				return true
			}
		}
		err = ge.Err
	}
	return false
}
