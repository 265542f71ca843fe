package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aretw0/bidtrail/pkg/core"
)

// call runs fn against the ledger with retries, metrics and logging, and
// classifies any failure as a *core.TransportError.
func (g *Gateway) call(ctx context.Context, op string, stream core.StreamID, fn func(context.Context) error) error {
	start := time.Now()
	attempt := 0

	operation := func() error {
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		if attempt <= g.opts.retries {
			g.logger.Warn("ledger call failed, retrying",
				slog.String("op", op),
				slog.String("stream", string(stream)),
				slog.Int("attempt", attempt),
				slog.Any("error", err),
			)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(g.newBackOff(), uint64(g.opts.retries)), ctx))
	observeCall(op, stream, err, time.Since(start))
	if err == nil {
		return nil
	}

	te := core.NewTransportError(op, stream, err)
	g.logger.Error("ledger call failed",
		slog.String("op", op),
		slog.String("stream", string(stream)),
		slog.Int("attempts", attempt),
		slog.Int("code", te.Code),
		slog.String("error", te.Message),
	)
	return te
}

func (g *Gateway) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.opts.retryInterval
	b.MaxInterval = 10 * g.opts.retryInterval
	b.MaxElapsedTime = 0
	return b
}

// retryable reports whether a failed call may succeed when repeated.
// Calls the ledger explicitly rejected are never repeated.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, core.ErrReadOnly) || errors.Is(err, core.ErrInvalidInput) {
		return false
	}
	var ce *core.ClientError
	if errors.As(err, &ce) {
		return ce.Temporary()
	}
	return true
}
