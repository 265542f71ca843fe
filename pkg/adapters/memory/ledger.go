// Package memory is an in-process ledger. Nothing survives the process;
// it backs tests and embedded use.
package memory

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/aretw0/bidtrail/pkg/core"
)

// Op names used to target injected faults.
const (
	OpPublish      = "publish"
	OpPublishBatch = "publish_batch"
	OpList         = "list"
)

// Fault makes matching calls fail with Err. Times <= 0 means forever.
// Skip lets that many matching calls through before the fault applies.
type Fault struct {
	Op     string
	Stream core.StreamID
	Err    error
	Times  int
	Skip   int
}

type entry struct {
	id   string
	key  string
	data []byte
}

// Ledger implements core.Ledger in memory.
type Ledger struct {
	mu      sync.RWMutex
	streams map[core.StreamID][]entry
	faults  []*Fault
	calls   map[string]int
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		streams: make(map[core.StreamID][]entry),
		calls:   make(map[string]int),
	}
}

// InjectFault registers a fault. Faults are matched in registration order.
func (l *Ledger) InjectFault(f Fault) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.faults = append(l.faults, &f)
}

// ClearFaults removes every injected fault.
func (l *Ledger) ClearFaults() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.faults = nil
}

// Len returns the number of records in stream.
func (l *Ledger) Len(stream core.StreamID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.streams[stream])
}

// Calls returns how many times op was invoked on stream, faults included.
func (l *Ledger) Calls(op string, stream core.StreamID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.calls[op+"/"+string(stream)]
}

func (l *Ledger) Publish(ctx context.Context, stream core.StreamID, key string, data []byte) (string, error) {
	return l.append(ctx, OpPublish, stream, []core.Item{{Key: key, Data: data}})
}

func (l *Ledger) PublishBatch(ctx context.Context, stream core.StreamID, items []core.Item) (string, error) {
	return l.append(ctx, OpPublishBatch, stream, items)
}

func (l *Ledger) ListByKey(ctx context.Context, stream core.StreamID, key string, limit int) ([]core.RawRecord, error) {
	return l.list(ctx, stream, limit, func(e entry) bool { return e.key == key })
}

func (l *Ledger) ListAll(ctx context.Context, stream core.StreamID, limit int) ([]core.RawRecord, error) {
	return l.list(ctx, stream, limit, func(entry) bool { return true })
}

func (l *Ledger) append(ctx context.Context, op string, stream core.StreamID, items []core.Item) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.fault(op, stream); err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", &core.ClientError{Code: -8, Message: "no items to publish"}
	}

	txid := uuid.NewString()
	for i, it := range items {
		id := txid
		if len(items) > 1 {
			id = txid + ":" + strconv.Itoa(i)
		}
		data := make([]byte, len(it.Data))
		copy(data, it.Data)
		l.streams[stream] = append(l.streams[stream], entry{id: id, key: it.Key, data: data})
	}
	return txid, nil
}

func (l *Ledger) list(ctx context.Context, stream core.StreamID, limit int, keep func(entry) bool) ([]core.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.fault(OpList, stream); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = core.DefaultPageSize
	}

	var matched []core.RawRecord
	for _, e := range l.streams[stream] {
		if keep(e) {
			matched = append(matched, core.RawRecord{ID: e.id, Key: e.key, Data: e.data})
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

// fault must be called with l.mu held.
func (l *Ledger) fault(op string, stream core.StreamID) error {
	l.calls[op+"/"+string(stream)]++
	for i, f := range l.faults {
		if f.Op != "" && f.Op != op {
			continue
		}
		if f.Stream != "" && f.Stream != stream {
			continue
		}
		if f.Skip > 0 {
			f.Skip--
			continue
		}
		if f.Times > 0 {
			f.Times--
			if f.Times == 0 {
				l.faults = append(l.faults[:i], l.faults[i+1:]...)
			}
		}
		return f.Err
	}
	return nil
}

// ComponentType implements introspection.Component.
func (l *Ledger) ComponentType() string {
	return "memory"
}

var _ core.Ledger = (*Ledger)(nil)
