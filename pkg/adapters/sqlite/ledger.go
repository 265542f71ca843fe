// Package sqlite implements core.Ledger on a SQLite database through the
// pure Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/bidtrail/pkg/core"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL,
	stream     TEXT NOT NULL,
	key        TEXT NOT NULL,
	data       BLOB,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS records_stream_key ON records (stream, key, seq);
`

// Ledger stores records in a single append-only table.
type Ledger struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	l := &Ledger{db: db, path: path}
	if err := l.Init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init sqlite ledger: %w", err)
	}
	return l, nil
}

// New wraps an existing database. Call Init before use.
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Init creates the schema.
func (l *Ledger) Init(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return err
	}
	_, err := l.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Publish appends one record.
func (l *Ledger) Publish(ctx context.Context, stream core.StreamID, key string, data []byte) (string, error) {
	return l.insert(ctx, stream, []core.Item{{Key: key, Data: data}})
}

// PublishBatch appends every item in one transaction.
func (l *Ledger) PublishBatch(ctx context.Context, stream core.StreamID, items []core.Item) (string, error) {
	if len(items) == 0 {
		return "", &core.ClientError{Code: -8, Message: "empty batch"}
	}
	return l.insert(ctx, stream, items)
}

// ListByKey returns the last limit records of key, oldest first.
func (l *Ledger) ListByKey(ctx context.Context, stream core.StreamID, key string, limit int) ([]core.RawRecord, error) {
	query := `
		SELECT id, key, data FROM records
		WHERE stream = ? AND key = ?
		ORDER BY seq DESC
		LIMIT ?
	`
	return l.query(ctx, stream, query, string(stream), key, sqlLimit(limit))
}

// ListAll returns the last limit records of the stream, oldest first.
func (l *Ledger) ListAll(ctx context.Context, stream core.StreamID, limit int) ([]core.RawRecord, error) {
	query := `
		SELECT id, key, data FROM records
		WHERE stream = ?
		ORDER BY seq DESC
		LIMIT ?
	`
	return l.query(ctx, stream, query, string(stream), sqlLimit(limit))
}

func (l *Ledger) insert(ctx context.Context, stream core.StreamID, items []core.Item) (string, error) {
	if !stream.Valid() {
		return "", &core.ClientError{Code: -708, Message: fmt.Sprintf("stream %q not found", stream)}
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (id, stream, key, data, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	txid := uuid.NewString()
	created := time.Now().UTC().Format(time.RFC3339Nano)
	for i, it := range items {
		id := txid
		if len(items) > 1 {
			id = fmt.Sprintf("%s:%d", txid, i)
		}
		if _, err := stmt.ExecContext(ctx, id, string(stream), it.Key, it.Data, created); err != nil {
			return "", fmt.Errorf("failed to insert record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return txid, nil
}

func (l *Ledger) query(ctx context.Context, stream core.StreamID, query string, args ...any) ([]core.RawRecord, error) {
	if !stream.Valid() {
		return nil, &core.ClientError{Code: -708, Message: fmt.Sprintf("stream %q not found", stream)}
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []core.RawRecord
	for rows.Next() {
		var rec core.RawRecord
		if err := rows.Scan(&rec.ID, &rec.Key, &rec.Data); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Newest first from the query; callers expect append order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// sqlLimit maps "no limit" to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

// ComponentType implements introspection.Component.
func (l *Ledger) ComponentType() string {
	return "sqlite"
}

// State implements introspection.Introspectable.
func (l *Ledger) State() any {
	stats := l.db.Stats()
	return LedgerState{Path: l.path, OpenConnections: stats.OpenConnections, InUse: stats.InUse}
}

// LedgerState exposes internal state for observability.
type LedgerState struct {
	Path            string `json:"path,omitempty"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
}

var _ core.Ledger = (*Ledger)(nil)
var _ core.Closer = (*Ledger)(nil)
