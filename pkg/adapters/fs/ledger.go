// Package fs implements core.Ledger on the local filesystem: one JSON Lines
// file per stream, appended to and never rewritten.
package fs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/bidtrail/pkg/core"
)

// StreamExt is the extension of stream files.
const StreamExt = ".jsonl"

// maxLineSize bounds a single record line when reading.
const maxLineSize = 16 << 20

// Config holds the configuration for the filesystem ledger.
type Config struct {
	Path      string
	MustExist bool
	// Codec is recorded in the manifest on first use; later opens with a
	// different codec are refused.
	Codec  string
	Logger *slog.Logger
	// ErrorHandler receives watcher failures in addition to the logger.
	ErrorHandler func(error)
}

// Ledger is an append-only ledger stored under a directory.
type Ledger struct {
	Path   string
	config Config

	mu            sync.RWMutex
	watcherActive bool
	lastAppend    *time.Time
	appends       int
}

// line is the on-disk form of a record. Data is hex-encoded so binary
// codecs survive the text format.
type line struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Data string `json:"data"`
}

// New creates a filesystem ledger. Call Initialize before use.
func New(config Config) *Ledger {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	config.Logger = config.Logger.With(slog.String("component", "fs-ledger"))
	return &Ledger{Path: config.Path, config: config}
}

// Initialize creates the directory (unless MustExist) and checks the manifest.
func (l *Ledger) Initialize(ctx context.Context) error {
	if l.config.MustExist {
		info, err := os.Stat(l.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("ledger path does not exist: %s", l.Path)
		}
		if err != nil {
			return fmt.Errorf("failed to stat ledger path: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("ledger path is not a directory: %s", l.Path)
		}
	} else if err := os.MkdirAll(l.Path, 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return l.ensureManifest()
}

// Publish appends one record.
func (l *Ledger) Publish(ctx context.Context, stream core.StreamID, key string, data []byte) (string, error) {
	return l.append(ctx, stream, []core.Item{{Key: key, Data: data}})
}

// PublishBatch appends every item with a single write.
func (l *Ledger) PublishBatch(ctx context.Context, stream core.StreamID, items []core.Item) (string, error) {
	if len(items) == 0 {
		return "", &core.ClientError{Code: -8, Message: "empty batch"}
	}
	return l.append(ctx, stream, items)
}

// ListByKey returns the last limit records of key, oldest first.
func (l *Ledger) ListByKey(ctx context.Context, stream core.StreamID, key string, limit int) ([]core.RawRecord, error) {
	return l.list(ctx, stream, limit, func(k string) bool { return k == key })
}

// ListAll returns the last limit records of the stream, oldest first.
// Lines that cannot be parsed are returned with no data so the reader can
// report them.
func (l *Ledger) ListAll(ctx context.Context, stream core.StreamID, limit int) ([]core.RawRecord, error) {
	return l.list(ctx, stream, limit, func(string) bool { return true })
}

func (l *Ledger) streamPath(stream core.StreamID) string {
	return filepath.Join(l.Path, string(stream)+StreamExt)
}

func (l *Ledger) append(ctx context.Context, stream core.StreamID, items []core.Item) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !stream.Valid() {
		return "", &core.ClientError{Code: -708, Message: fmt.Sprintf("stream %q not found", stream)}
	}

	txid := uuid.NewString()
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, it := range items {
		id := txid
		if len(items) > 1 {
			id = fmt.Sprintf("%s:%d", txid, i)
		}
		if err := enc.Encode(line{ID: id, Key: it.Key, Data: hex.EncodeToString(it.Data)}); err != nil {
			return "", fmt.Errorf("failed to encode record: %w", err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.streamPath(stream), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to open stream %s: %w", stream, err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to append to stream %s: %w", stream, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to sync stream %s: %w", stream, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close stream %s: %w", stream, err)
	}

	now := time.Now()
	l.lastAppend = &now
	l.appends += len(items)
	return txid, nil
}

func (l *Ledger) list(ctx context.Context, stream core.StreamID, limit int, keep func(key string) bool) ([]core.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !stream.Valid() {
		return nil, &core.ClientError{Code: -708, Message: fmt.Sprintf("stream %q not found", stream)}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	f, err := os.Open(l.streamPath(stream))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open stream %s: %w", stream, err)
	}
	defer f.Close()

	var out []core.RawRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for n := 1; scanner.Scan(); n++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		rec, parsed := parseLine(raw)
		if !parsed {
			l.config.Logger.Warn("unreadable ledger line",
				slog.String("stream", string(stream)), slog.Int("line", n))
			if rec.ID == "" {
				rec.ID = fmt.Sprintf("%s:%d", stream, n)
			}
		}
		if keep(rec.Key) {
			out = append(out, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stream %s: %w", stream, err)
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func parseLine(raw []byte) (core.RawRecord, bool) {
	var ln line
	if err := json.Unmarshal(raw, &ln); err != nil {
		return core.RawRecord{}, false
	}
	data, err := hex.DecodeString(ln.Data)
	if err != nil {
		return core.RawRecord{ID: ln.ID, Key: ln.Key}, false
	}
	return core.RawRecord{ID: ln.ID, Key: ln.Key, Data: data}, true
}

var _ core.Ledger = (*Ledger)(nil)
var _ core.Watchable = (*Ledger)(nil)
