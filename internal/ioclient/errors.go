package ioclient

import (
	"fmt"

	"github.com/gnames/gn"
	"github.com/warno/warno/pkg/errcode"
)

// RequestError is returned when a request cannot be completed.
func RequestError(url string, err error) error {
	return &gn.Error{
		Code: errcode.TransportRequestError,
		Msg:  "Request to <em>%s</em> failed",
		Vars: []any{url},
		Err:  fmt.Errorf("post %s: %w", url, err),
	}
}

// StatusError is returned when the server answers with a non-200 status.
func StatusError(url string, status int, body string) error {
	return &gn.Error{
		Code: errcode.TransportStatusError,
		Msg:  "Server <em>%s</em> answered with status %d",
		Vars: []any{url, status},
		Err:  fmt.Errorf("post %s: status %d: %s", url, status, body),
	}
}

// RejectedError is returned when the server refuses the envelope itself.
// Sending the same envelope again cannot succeed.
func RejectedError(url string, status int, body string) error {
	return &gn.Error{
		Code: errcode.TransportRejectedError,
		Msg:  "Server <em>%s</em> rejected the envelope with status %d",
		Vars: []any{url, status},
		Err:  fmt.Errorf("post %s: status %d: %s", url, status, body),
	}
}

// BreakerOpenError is returned while calls to url are suspended.
func BreakerOpenError(url string, err error) error {
	return &gn.Error{
		Code: errcode.TransportBreakerOpenError,
		Msg:  "Calls to <em>%s</em> are suspended after repeated failures",
		Vars: []any{url},
		Err:  fmt.Errorf("post %s: %w", url, err),
	}
}
