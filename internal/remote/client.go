// Package remote is the only component that talks to the network: it pushes
// outbox batches to the remote ledger and pulls changed rows back.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotConfigured = errors.New("remote url is not configured")

type Client interface {
	Push(ctx context.Context, deviceID string, ops []Op) (*PushResponse, error)
	// Pull fetches one page of entity rows changed since req.Since.
	Pull(ctx context.Context, req *PullRequest) (*PullResponse, error)
	// PullAll follows next_cursor until the remote reports done.
	PullAll(ctx context.Context, req *PullRequest) ([]Row, error)
	Ping(ctx context.Context) error
}

type Config struct {
	URL            string
	Timeout        time.Duration
	PushTimeout    time.Duration
	ProbeTimeout   time.Duration
	EntityTimeouts map[string]time.Duration

	// Pull retries on transport errors
	Retries    int
	RetryDelay time.Duration

	// Paged pulls
	PageSize           int
	MaxPageRetries     int
	PageBackoffInitial time.Duration
	PageBackoffMax     time.Duration
}

func (c *Config) timeoutFor(entity string) time.Duration {
	if d, ok := c.EntityTimeouts[entity]; ok && d > 0 {
		return d
	}
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 7 * time.Second
}

// TransportError means the remote could not be reached or failed on its
// side: network, DNS, timeout or HTTP 5xx. Operations stay pending.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s: http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectionError means the remote answered and refused the request: HTTP
// 4xx or success=false.
type RejectionError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote %s rejected: http %d: %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote %s rejected: %s", e.Op, e.Message)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}
