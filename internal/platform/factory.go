// Package platform assembles the engine: it opens the ledger adapter named by
// a URI and wires the gateway and the workflow service on top of it.
package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/introspection"

	"github.com/aretw0/bidtrail/pkg/adapters/fs"
	"github.com/aretw0/bidtrail/pkg/adapters/memory"
	"github.com/aretw0/bidtrail/pkg/adapters/redis"
	"github.com/aretw0/bidtrail/pkg/adapters/rpc"
	"github.com/aretw0/bidtrail/pkg/adapters/sqlite"
	"github.com/aretw0/bidtrail/pkg/codec"
	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/gateway"
	"github.com/aretw0/bidtrail/pkg/stages"
	"github.com/aretw0/bidtrail/pkg/workflow"
)

// Ledger URI schemes.
const (
	SchemeMemory   = "memory"
	SchemeFS       = "fs"
	SchemeSQLite   = "sqlite"
	SchemeRedis    = "redis"
	SchemeRedisTLS = "rediss"
	SchemeHTTP     = "http"
	SchemeHTTPS    = "https"
)

// ErrUnknownScheme is returned for a ledger URI no adapter handles.
var ErrUnknownScheme = errors.New("unknown ledger scheme")

// Target is a parsed ledger URI.
type Target struct {
	Scheme string
	// Location is the path for fs and sqlite, the full URI for network adapters.
	Location string
}

// ParseURI splits a ledger URI. A bare path selects the fs adapter.
func ParseURI(uri string) (Target, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return Target{}, fmt.Errorf("%w: empty ledger uri", core.ErrInvalidInput)
	}
	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		return Target{Scheme: SchemeFS, Location: uri}, nil
	}

	switch scheme = strings.ToLower(scheme); scheme {
	case SchemeMemory:
		return Target{Scheme: scheme}, nil
	case SchemeFS, SchemeSQLite:
		if rest == "" {
			return Target{}, fmt.Errorf("%w: %s uri needs a path", core.ErrInvalidInput, scheme)
		}
		return Target{Scheme: scheme, Location: rest}, nil
	case SchemeRedis, SchemeRedisTLS, SchemeHTTP, SchemeHTTPS:
		return Target{Scheme: scheme, Location: uri}, nil
	}
	return Target{}, fmt.Errorf("%w: %q", ErrUnknownScheme, scheme)
}

// OpenLedger opens the adapter named by uri.
func OpenLedger(ctx context.Context, uri string, opts ...Option) (core.Ledger, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return openLedger(ctx, uri, o)
}

func openLedger(ctx context.Context, uri string, o *options) (core.Ledger, error) {
	if o.ledger != nil {
		return o.ledger, nil
	}
	target, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	switch target.Scheme {
	case SchemeMemory:
		return memory.New(), nil
	case SchemeFS:
		l := fs.New(fs.Config{
			Path:         target.Location,
			MustExist:    o.mustExist || o.readOnly,
			Codec:        o.codec,
			Logger:       logger,
			ErrorHandler: o.errorHandler,
		})
		if err := l.Initialize(ctx); err != nil {
			return nil, err
		}
		return l, nil
	case SchemeSQLite:
		return sqlite.Open(ctx, target.Location)
	case SchemeRedis, SchemeRedisTLS:
		return redis.Open(ctx, target.Location, o.redisPrefix)
	default:
		return rpc.New(rpc.Config{
			URL:     target.Location,
			Chain:   o.chain,
			Timeout: o.timeout,
			Logger:  logger,
		})
	}
}

// Engine is a ready-to-use ledger with its gateway and workflow service.
type Engine struct {
	URI      string
	Ledger   core.Ledger
	Gateway  *gateway.Gateway
	Workflow *workflow.Service
}

// New opens the ledger at uri and wires the engine on top of it.
func New(ctx context.Context, uri string, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	c, err := codec.ByName(o.codec, o.strict)
	if err != nil {
		return nil, err
	}

	table := o.table
	if table == nil && o.stagesFile != "" {
		if table, err = stages.LoadTableFile(o.stagesFile); err != nil {
			return nil, err
		}
	}

	ledger, err := openLedger(ctx, uri, o)
	if err != nil {
		return nil, err
	}

	gw := gateway.New(ledger,
		gateway.WithLogger(o.logger),
		gateway.WithCodec(c),
		gateway.WithClock(o.clock),
		gateway.WithRetries(o.retries),
		gateway.WithRetryInterval(o.retryInterval),
		gateway.WithPageSize(o.pageSize),
		gateway.WithReadOnly(o.readOnly),
	)
	svc := workflow.New(gw,
		workflow.WithLogger(o.logger),
		workflow.WithTable(table),
		workflow.WithClock(o.clock),
		workflow.WithListLimit(o.pageSize),
	)
	return &Engine{URI: uri, Ledger: ledger, Gateway: gw, Workflow: svc}, nil
}

// Close releases the ledger's connections or files, if it holds any.
func (e *Engine) Close() error {
	if c, ok := e.Ledger.(core.Closer); ok {
		return c.Close()
	}
	return nil
}

// Location is the ledger URI with credentials hidden, fit for logs.
func (e *Engine) Location() string {
	return redact(e.URI)
}

// ComponentType implements introspection.Component.
func (e *Engine) ComponentType() string {
	return "engine"
}

// EngineState exposes the state of every component.
type EngineState struct {
	URI      string `json:"uri"`
	Ledger   any    `json:"ledger,omitempty"`
	Workflow any    `json:"workflow"`
}

// State implements introspection.Introspectable.
func (e *Engine) State() any {
	state := EngineState{URI: redact(e.URI), Workflow: e.Workflow.State()}
	if i, ok := e.Ledger.(introspection.Introspectable); ok {
		state.Ledger = i.State()
	}
	return state
}

// redact hides credentials embedded in a network ledger URI.
func redact(uri string) string {
	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		return uri
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return uri
	}
	return scheme + "://***@" + rest[at+1:]
}

var (
	_ introspection.Introspectable = (*Engine)(nil)
	_ introspection.Component      = (*Engine)(nil)
)
