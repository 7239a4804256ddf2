package config

import (
	"errors"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// NoCentralURLError is returned for a site tier that does not know where
// the central facility is.
func NoCentralURLError(site string) error {
	return &gn.Error{
		Code: errcode.ConfigNoCentralURLError,
		Msg: "Site <em>%s</em> is not central and site.central_url is empty, " +
			"set one of them",
		Vars: []any{site},
		Err:  errors.New("site tier without central_url"),
	}
}
