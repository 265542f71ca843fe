package core

import "context"

// DefaultPageSize bounds list calls when the caller passes no limit.
const DefaultPageSize = 1000

// Ledger is the append-only, key-partitioned log the engine writes to.
// Adhering to this interface keeps the engine independent of the
// underlying service (a ledger node, Redis Streams, SQLite, plain files).
//
// There is deliberately no update or delete.
type Ledger interface {
	// Publish appends one record and returns the ledger-assigned record ID.
	Publish(ctx context.Context, stream StreamID, key string, data []byte) (string, error)

	// PublishBatch appends several records in a single call.
	PublishBatch(ctx context.Context, stream StreamID, items []Item) (string, error)

	// ListByKey returns up to limit records of the stream filed under key.
	ListByKey(ctx context.Context, stream StreamID, key string, limit int) ([]RawRecord, error)

	// ListAll returns up to limit records of the stream, across all keys.
	ListAll(ctx context.Context, stream StreamID, limit int) ([]RawRecord, error)
}

// Watchable is implemented by ledgers that can notify about appended records.
type Watchable interface {
	// Watch emits the stream that received new records until ctx is done.
	Watch(ctx context.Context) (<-chan StreamID, error)
}

// Closer is implemented by ledgers holding connections or file handles.
type Closer interface {
	Close() error
}
