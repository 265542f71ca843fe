// Package redis implements core.Ledger on Redis streams. Every record is
// added to its stream and to a per-key stream in one MULTI/EXEC, so
// listing by key never scans the whole stream.
package redis

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aretw0/bidtrail/pkg/core"
)

// DefaultPrefix namespaces every Redis key the ledger writes.
const DefaultPrefix = "bidtrail"

const (
	fieldID   = "rid"
	fieldKey  = "key"
	fieldData = "data"
)

// Ledger stores records in Redis streams.
type Ledger struct {
	client *redis.Client
	prefix string
}

// Open connects to the server described by a redis:// URL.
func Open(ctx context.Context, url, prefix string) (*Ledger, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	l := New(redis.NewClient(opts), prefix)
	if err := l.client.Ping(ctx).Err(); err != nil {
		_ = l.client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", opts.Addr, err)
	}
	return l, nil
}

// New wraps an existing client. An empty prefix means DefaultPrefix.
func New(client *redis.Client, prefix string) *Ledger {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Ledger{client: client, prefix: prefix}
}

// Client returns the underlying client.
func (l *Ledger) Client() *redis.Client { return l.client }

// Close closes the client.
func (l *Ledger) Close() error { return l.client.Close() }

// StreamKey returns the Redis key of a ledger stream.
func (l *Ledger) StreamKey(stream core.StreamID) string {
	return l.prefix + ":" + string(stream)
}

// KeyStreamKey returns the Redis key holding the records of one stream key.
func (l *Ledger) KeyStreamKey(stream core.StreamID, key string) string {
	return l.StreamKey(stream) + ":key:" + key
}

// Publish appends one record.
func (l *Ledger) Publish(ctx context.Context, stream core.StreamID, key string, data []byte) (string, error) {
	return l.add(ctx, stream, []core.Item{{Key: key, Data: data}})
}

// PublishBatch appends every item in one transaction.
func (l *Ledger) PublishBatch(ctx context.Context, stream core.StreamID, items []core.Item) (string, error) {
	if len(items) == 0 {
		return "", &core.ClientError{Code: -8, Message: "empty batch"}
	}
	return l.add(ctx, stream, items)
}

// ListByKey returns the last limit records of key, oldest first.
func (l *Ledger) ListByKey(ctx context.Context, stream core.StreamID, key string, limit int) ([]core.RawRecord, error) {
	if !stream.Valid() {
		return nil, unknownStream(stream)
	}
	return l.rev(ctx, l.KeyStreamKey(stream, key), limit)
}

// ListAll returns the last limit records of the stream, oldest first.
func (l *Ledger) ListAll(ctx context.Context, stream core.StreamID, limit int) ([]core.RawRecord, error) {
	if !stream.Valid() {
		return nil, unknownStream(stream)
	}
	return l.rev(ctx, l.StreamKey(stream), limit)
}

func (l *Ledger) add(ctx context.Context, stream core.StreamID, items []core.Item) (string, error) {
	if !stream.Valid() {
		return "", unknownStream(stream)
	}
	txid := uuid.NewString()
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, it := range items {
			id := txid
			if len(items) > 1 {
				id = fmt.Sprintf("%s:%d", txid, i)
			}
			values := map[string]any{fieldID: id, fieldKey: it.Key, fieldData: it.Data}
			pipe.XAdd(ctx, &redis.XAddArgs{Stream: l.StreamKey(stream), Values: values})
			pipe.XAdd(ctx, &redis.XAddArgs{Stream: l.KeyStreamKey(stream, it.Key), Values: values})
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to append to %s: %w", stream, err)
	}
	return txid, nil
}

func (l *Ledger) rev(ctx context.Context, streamKey string, limit int) ([]core.RawRecord, error) {
	var (
		msgs []redis.XMessage
		err  error
	)
	if limit > 0 {
		msgs, err = l.client.XRevRangeN(ctx, streamKey, "+", "-", int64(limit)).Result()
	} else {
		msgs, err = l.client.XRevRange(ctx, streamKey, "+", "-").Result()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", streamKey, err)
	}

	out := make([]core.RawRecord, len(msgs))
	for i, m := range msgs {
		rec := core.RawRecord{ID: m.ID, Key: stringValue(m.Values[fieldKey]), Data: []byte(stringValue(m.Values[fieldData]))}
		if id := stringValue(m.Values[fieldID]); id != "" {
			rec.ID = id
		}
		out[len(msgs)-1-i] = rec
	}
	return out, nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

func unknownStream(stream core.StreamID) error {
	return &core.ClientError{Code: -708, Message: fmt.Sprintf("stream %q not found", stream)}
}

// ComponentType implements introspection.Component.
func (l *Ledger) ComponentType() string {
	return "redis"
}

// LedgerState exposes internal state for observability.
type LedgerState struct {
	Addr     string `json:"addr"`
	Prefix   string `json:"prefix"`
	Hits     uint32 `json:"pool_hits"`
	Misses   uint32 `json:"pool_misses"`
	Timeouts uint32 `json:"pool_timeouts"`
}

// State implements introspection.Introspectable.
func (l *Ledger) State() any {
	stats := l.client.PoolStats()
	return LedgerState{
		Addr:     l.client.Options().Addr,
		Prefix:   l.prefix,
		Hits:     stats.Hits,
		Misses:   stats.Misses,
		Timeouts: stats.Timeouts,
	}
}

var _ core.Ledger = (*Ledger)(nil)
var _ core.Closer = (*Ledger)(nil)
