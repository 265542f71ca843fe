package bidtrail

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/bidtrail/internal/platform"
	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/projection"
	"github.com/aretw0/bidtrail/pkg/stages"
	"github.com/aretw0/bidtrail/pkg/workflow"
)

// --- Types ---

// Engine is a ledger with its gateway and workflow service wired on top.
type Engine = platform.Engine

// Procurement is the projected state of one procurement.
type Procurement = projection.Procurement

// Request types of the workflow service.
type (
	InitiateRequest = workflow.InitiateRequest
	UploadRequest   = workflow.UploadRequest
	AdvanceRequest  = workflow.AdvanceRequest
	EventRequest    = workflow.EventRequest
	Outcome         = workflow.Outcome
)

// Metadata describes one uploaded document.
type Metadata = core.Metadata

// --- Configuration ---

// Option defines a functional option for configuring the engine.
type Option = platform.Option

// WithLogger sets the logger for every component.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithLedger injects a ledger adapter; the URI passed to New is then ignored.
func WithLedger(l core.Ledger) Option {
	return platform.WithLedger(l)
}

// WithCodec selects the payload codec ("json" or "cbor").
func WithCodec(name string) Option {
	return platform.WithCodec(name)
}

// WithStrict decodes JSON numbers as json.Number.
func WithStrict(strict bool) Option {
	return platform.WithStrict(strict)
}

// WithPageSize bounds list calls made without an explicit limit.
func WithPageSize(n int) Option {
	return platform.WithPageSize(n)
}

// WithRetries sets how many times transient ledger failures are retried.
func WithRetries(n int) Option {
	return platform.WithRetries(n)
}

// WithReadOnly rejects every write.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithMustExist refuses to create a missing file ledger.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithTable replaces the default transition table.
func WithTable(t *stages.Table) Option {
	return platform.WithTable(t)
}

// WithStagesFile loads the transition table from a YAML file.
func WithStagesFile(path string) Option {
	return platform.WithStagesFile(path)
}

// WithClock sets the clock used to stamp records.
func WithClock(now func() time.Time) Option {
	return platform.WithClock(now)
}

// --- Factory ---

// New opens the ledger named by uri (memory://, fs:///dir, sqlite:///file.db,
// redis://host:port/db or http(s)://user:pass@node:port) and wires the engine.
func New(ctx context.Context, uri string, opts ...Option) (*Engine, error) {
	return platform.New(ctx, uri, opts...)
}

// DeriveKey returns the stream key of a procurement.
func DeriveKey(id, title string) string {
	return core.DeriveKey(id, title)
}
