package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/stages"
)

// options holds the internal configuration of an engine.
type options struct {
	ledger        core.Ledger
	logger        *slog.Logger
	codec         string
	strict        bool
	pageSize      int
	retries       int
	retryInterval time.Duration
	readOnly      bool
	mustExist     bool
	table         *stages.Table
	stagesFile    string
	redisPrefix   string
	chain         string
	timeout       time.Duration
	clock         func() time.Time
	errorHandler  func(error)
}

// Option defines a functional option for configuring the engine.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		codec:   "json",
		retries: -1,
	}
}

// WithLedger injects a ledger (e.g. a test double). The URI is then ignored.
func WithLedger(l core.Ledger) Option {
	return func(o *options) {
		o.ledger = l
	}
}

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithCodec selects the payload codec by name ("json" or "cbor").
// Every writer of a ledger must use the same codec.
func WithCodec(name string) Option {
	return func(o *options) {
		if name != "" {
			o.codec = name
		}
	}
}

// WithStrict makes the JSON codec decode numbers as json.Number.
func WithStrict(strict bool) Option {
	return func(o *options) {
		o.strict = strict
	}
}

// WithPageSize bounds list calls made without an explicit limit.
func WithPageSize(n int) Option {
	return func(o *options) {
		o.pageSize = n
	}
}

// WithRetries sets how many times transient ledger failures are retried.
func WithRetries(n int) Option {
	return func(o *options) {
		o.retries = n
	}
}

// WithRetryInterval sets the initial backoff between retries.
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		o.retryInterval = d
	}
}

// WithReadOnly rejects every write with core.ErrReadOnly.
// The fs adapter also skips creating its directory.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithMustExist refuses to create a missing fs ledger directory.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithTable replaces the default transition table.
func WithTable(t *stages.Table) Option {
	return func(o *options) {
		o.table = t
	}
}

// WithStagesFile loads the transition table from a YAML file.
// WithTable takes precedence.
func WithStagesFile(path string) Option {
	return func(o *options) {
		o.stagesFile = path
	}
}

// WithRedisPrefix sets the key prefix of the redis adapter.
func WithRedisPrefix(prefix string) Option {
	return func(o *options) {
		o.redisPrefix = prefix
	}
}

// WithChain sets the chain name sent to an RPC ledger node.
func WithChain(name string) Option {
	return func(o *options) {
		o.chain = name
	}
}

// WithTimeout bounds one RPC round trip.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithClock sets the clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.clock = now
	}
}

// WithWatcherErrorHandler receives runtime failures of the fs watcher.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}
