package fs

import (
	"os"
	"time"

	"github.com/aretw0/introspection"

	"github.com/aretw0/bidtrail/pkg/core"
)

// LedgerState exposes internal state for observability.
type LedgerState struct {
	Path          string           `json:"path"`
	Codec         string           `json:"codec,omitempty"`
	StreamBytes   map[string]int64 `json:"stream_bytes"`
	Appends       int              `json:"appends"`
	WatcherActive bool             `json:"watcher_active"`
	LastAppend    *time.Time       `json:"last_append,omitempty"`
}

// State implements introspection.Introspectable.
func (l *Ledger) State() any {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sizes := make(map[string]int64, 3)
	for _, s := range core.Streams() {
		if info, err := os.Stat(l.streamPath(s)); err == nil {
			sizes[string(s)] = info.Size()
		}
	}
	return LedgerState{
		Path:          l.Path,
		Codec:         l.config.Codec,
		StreamBytes:   sizes,
		Appends:       l.appends,
		WatcherActive: l.watcherActive,
		LastAppend:    l.lastAppend,
	}
}

// ComponentType implements introspection.Component.
func (l *Ledger) ComponentType() string {
	return "fs"
}

var _ introspection.Introspectable = (*Ledger)(nil)
var _ introspection.Component = (*Ledger)(nil)

func (l *Ledger) setWatcherActive(active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.watcherActive = active
}
