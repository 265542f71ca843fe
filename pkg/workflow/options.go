package workflow

import (
	"log/slog"
	"time"

	"github.com/aretw0/bidtrail/pkg/stages"
)

type options struct {
	logger    *slog.Logger
	table     *stages.Table
	clock     func() time.Time
	listLimit int
}

// Option configures a Service.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger: slog.Default(),
		clock:  time.Now,
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

// WithTable replaces the default transition table.
func WithTable(t *stages.Table) Option {
	return func(o *options) {
		o.table = t
	}
}

// WithClock sets the clock stamping every record of one operation.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithListLimit bounds how many records per stream List replays.
// Zero uses the gateway page size.
func WithListLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.listLimit = n
		}
	}
}
