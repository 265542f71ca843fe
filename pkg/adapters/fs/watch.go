package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/bidtrail/pkg/core"
)

// DebounceInterval coalesces bursts of appends to one notification per stream.
const DebounceInterval = 50 * time.Millisecond

// Watch reports the streams appended to, until ctx is done. The channel is
// closed when watching stops.
func (l *Ledger) Watch(ctx context.Context) (<-chan core.StreamID, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(l.Path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", l.Path, err)
	}

	out := make(chan core.StreamID, len(core.Streams()))
	w := &watchWorker{
		ledger:    l,
		watcher:   watcher,
		out:       out,
		debouncer: newDebouncer(DebounceInterval),
	}
	l.setWatcherActive(true)

	lifecycle.Go(ctx, w.run, lifecycle.WithErrorHandler(func(err error) {
		l.config.Logger.Error("watcher stopped", slog.Any("error", err))
		if l.config.ErrorHandler != nil {
			l.config.ErrorHandler(err)
		}
	}))
	return out, nil
}

type watchWorker struct {
	ledger    *Ledger
	watcher   *fsnotify.Watcher
	out       chan core.StreamID
	debouncer *debouncer
}

func (w *watchWorker) run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		w.debouncer.stopAndWait()
		_ = w.watcher.Close()
		w.ledger.setWatcherActive(false)
		close(w.out)
	}()

	for {
		select {
		case <-runCtx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			stream, ok := streamOf(event)
			if !ok {
				continue
			}
			w.ledger.config.Logger.Debug("stream changed", slog.String("stream", string(stream)))
			w.debouncer.add(stream, func(s core.StreamID) {
				select {
				case w.out <- s:
				case <-runCtx.Done():
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.ledger.config.Logger.Error("fsnotify error", slog.Any("error", err))
			if w.ledger.config.ErrorHandler != nil {
				w.ledger.config.ErrorHandler(err)
			}
		}
	}
}

// streamOf maps a filesystem event to the stream file it touched.
func streamOf(event fsnotify.Event) (core.StreamID, bool) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return "", false
	}
	name := filepath.Base(event.Name)
	if !strings.HasSuffix(name, StreamExt) {
		return "", false
	}
	stream := core.StreamID(strings.TrimSuffix(name, StreamExt))
	return stream, stream.Valid()
}

// debouncer fires at most once per stream and interval. Events arriving
// while a notification is pending are covered by it.
type debouncer struct {
	interval time.Duration

	mu      sync.Mutex
	pending map[core.StreamID]bool
	stopped bool
	wg      sync.WaitGroup
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval, pending: make(map[core.StreamID]bool)}
}

func (d *debouncer) add(stream core.StreamID, fire func(core.StreamID)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || d.pending[stream] {
		return
	}
	d.pending[stream] = true
	d.wg.Add(1)
	time.AfterFunc(d.interval, func() {
		defer d.wg.Done()
		d.mu.Lock()
		delete(d.pending, stream)
		d.mu.Unlock()
		fire(stream)
	})
}

// stopAndWait drops new events and waits for pending notifications.
func (d *debouncer) stopAndWait() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.wg.Wait()
}
