package gateway

import (
	"log/slog"
	"time"

	"github.com/aretw0/bidtrail/pkg/codec"
	"github.com/aretw0/bidtrail/pkg/core"
)

// options holds the internal configuration of a Gateway.
type options struct {
	logger        *slog.Logger
	codec         codec.Codec
	clock         func() time.Time
	retries       int
	retryInterval time.Duration
	pageSize      int
	readOnly      bool
}

// Option defines a functional option for configuring a Gateway.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger:        slog.Default(),
		codec:         codec.Default(),
		clock:         time.Now,
		retries:       2,
		retryInterval: 200 * time.Millisecond,
		pageSize:      core.DefaultPageSize,
	}
}

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCodec sets the payload codec. Every writer of a ledger must agree on it.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithClock sets the clock used when a request carries no timestamp.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithRetries sets how many times a transient ledger failure is retried.
// Zero disables retries.
func WithRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithRetryInterval sets the initial backoff between retries.
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryInterval = d
		}
	}
}

// WithPageSize bounds list calls made without an explicit limit.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// WithReadOnly rejects every write with core.ErrReadOnly.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}
