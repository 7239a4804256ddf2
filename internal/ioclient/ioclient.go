// Package ioclient posts envelopes to an Event-Manager over HTTP.
//
// Every call has a timeout, is retried with exponential backoff and goes
// through a circuit breaker. 4xx answers are final: they are neither
// retried nor counted as breaker failures.
package ioclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"github.com/warno/warno/pkg/config"
	"github.com/warno/warno/pkg/protocol"
)

// RequestIDHeader carries the identifier of a request across tiers.
const RequestIDHeader = "X-Request-ID"

const maxBody = 1 << 20

type ctxKey struct{}

// WithRequestID returns a context that makes outgoing calls reuse id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request identifier of ctx or a new one.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Client posts envelopes to one URL. It implements protocol.Sender.
type Client struct {
	url      string
	http     *http.Client
	cb       *gobreaker.CircuitBreaker[*protocol.Envelope]
	maxTries uint
}

// New creates a client for url with settings from cfg.
func New(url string, cfg config.TransportConfig, certVerify bool) *Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if !certVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	failures := uint32(max(cfg.BreakerFailures, 1))
	st := gobreaker.Settings{
		Name:    url,
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker changed state",
				"url", name, "from", from.String(), "to", to.String())
		},
		IsExcluded: isClientStatus,
	}

	return &Client{
		url:      url,
		http:     &http.Client{Timeout: cfg.Timeout, Transport: tr},
		cb:       gobreaker.NewCircuitBreaker[*protocol.Envelope](st),
		maxTries: uint(max(cfg.MaxRetries, 1)),
	}
}

// URL returns the endpoint of the client.
func (c *Client) URL() string {
	return c.url
}

// Send posts env with retries and returns the decoded answer.
func (c *Client) Send(
	ctx context.Context,
	env *protocol.Envelope,
) (*protocol.Envelope, error) {
	id := RequestID(ctx)
	op := func() (*protocol.Envelope, error) {
		res, err := c.cb.Execute(func() (*protocol.Envelope, error) {
			return c.post(ctx, env, id)
		})
		if errors.Is(err, gobreaker.ErrOpenState) ||
			errors.Is(err, gobreaker.ErrTooManyRequests) ||
			isClientStatus(err) || isBadAnswer(err) {
			return nil, backoff.Permanent(err)
		}
		return res, err
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 200 * time.Millisecond
	exp.MaxInterval = 5 * time.Second

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(exp),
		backoff.WithMaxTries(c.maxTries),
		backoff.WithNotify(func(err error, d time.Duration) {
			slog.Debug("Retrying request",
				"url", c.url, "request_id", id, "in", d, "error", err)
		}),
	)
	if err != nil {
		return nil, c.wrap(err)
	}
	return res, nil
}

// SendOnce posts env a single time, bypassing retries and the breaker.
func (c *Client) SendOnce(
	ctx context.Context,
	env *protocol.Envelope,
) (*protocol.Envelope, error) {
	res, err := c.post(ctx, env, RequestID(ctx))
	if err != nil {
		return nil, c.wrap(err)
	}
	return res, nil
}

// State returns the state of the circuit breaker.
func (c *Client) State() string {
	return c.cb.State().String()
}

func (c *Client) post(
	ctx context.Context,
	env *protocol.Envelope,
	id string,
) (*protocol.Envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url,
		bytes.NewReader(env.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, id)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{code: resp.StatusCode, body: string(bytes.TrimSpace(body))}
	}

	res, err := protocol.Decode(body)
	if err != nil {
		return nil, &badAnswerError{err: err}
	}
	return res, nil
}

func (c *Client) wrap(err error) error {
	var se *statusError
	switch {
	case errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return BreakerOpenError(c.url, err)
	case errors.As(err, &se) && isClientStatus(se):
		return RejectedError(c.url, se.code, se.body)
	case errors.As(err, &se):
		return StatusError(c.url, se.code, se.body)
	default:
		return RequestError(c.url, err)
	}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

type badAnswerError struct {
	err error
}

func (e *badAnswerError) Error() string {
	return "cannot decode answer: " + e.err.Error()
}

func (e *badAnswerError) Unwrap() error {
	return e.err
}

func isClientStatus(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code >= 400 && se.code < 500
}

func isBadAnswer(err error) bool {
	var ba *badAnswerError
	return errors.As(err, &ba)
}
