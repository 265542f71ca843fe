// Package lifecycle bridges ledger change notifications to the generic
// lifecycle event interface.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/bidtrail/pkg/core"
)

// Change reports that a stream received new records.
type Change struct {
	Stream core.StreamID
}

// String describes the change.
func (c Change) String() string {
	return "ledger changed: " + string(c.Stream)
}

type changeSource struct {
	changes <-chan core.StreamID
	out     chan lifecycle.Event
}

// NewSource creates a lifecycle.Source emitting one Change per notification
// of a Watchable ledger.
func NewSource(changes <-chan core.StreamID) lifecycle.Source {
	return &changeSource{
		changes: changes,
		out:     make(chan lifecycle.Event),
	}
}

func (s *changeSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *changeSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case stream, ok := <-s.changes:
				if !ok {
					return nil
				}
				select {
				case s.out <- Change{Stream: stream}:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
