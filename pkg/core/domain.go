// Package core holds the domain of the procurement ledger: records, their
// payloads, the ledger port and the error taxonomy shared by every adapter.
package core

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
)

// StreamID names one of the logical streams records are appended to.
type StreamID string

const (
	StreamDocuments StreamID = "documents"
	StreamStatus    StreamID = "status"
	StreamEvents    StreamID = "events"
)

// Streams lists every stream the engine writes, in a fixed order.
func Streams() []StreamID {
	return []StreamID{StreamDocuments, StreamStatus, StreamEvents}
}

// Valid reports whether s is one of the known streams.
func (s StreamID) Valid() bool {
	switch s {
	case StreamDocuments, StreamStatus, StreamEvents:
		return true
	}
	return false
}

// Metadata represents the flexible key-value pairs describing one uploaded document.
type Metadata map[string]any

// Payload is the decoded body of a record.
// Accessors are tolerant: a missing or mistyped field yields the zero value.
type Payload map[string]any

// Record is the atomic, immutable unit appended to the ledger.
type Record struct {
	// ID is assigned by the ledger. It is only meant for audit display.
	ID     string
	Stream StreamID
	Key    string
	// Seq is the position of the record in the result it was fetched with.
	Seq     int
	Payload Payload
}

// RawRecord is what a Ledger returns before the payload is decoded.
type RawRecord struct {
	ID   string
	Key  string
	Data []byte
}

// Item is one entry of a batch publish.
type Item struct {
	Key  string
	Data []byte
}

// String returns the field as a string. Numbers are formatted.
func (p Payload) String(field string) string {
	switch v := p[field].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	}
	return ""
}

// Int returns the field as an integer, accepting every numeric shape the codecs produce.
func (p Payload) Int(field string) int64 {
	switch v := p[field].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case uint64:
		if v > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(v)
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// Map returns a nested object field.
func (p Payload) Map(field string) map[string]any {
	switch v := p[field].(type) {
	case map[string]any:
		return v
	case Payload:
		return v
	case Metadata:
		return v
	}
	return nil
}

// Has reports whether the field is present.
func (p Payload) Has(field string) bool {
	_, ok := p[field]
	return ok
}

// RecordSet groups the records of the three streams, typically for one key.
type RecordSet struct {
	Documents []Record
	Status    []Record
	Events    []Record
}

// Keys returns every distinct key present in the set, sorted.
func (s RecordSet) Keys() []string {
	seen := make(map[string]struct{})
	for _, recs := range [][]Record{s.Documents, s.Status, s.Events} {
		for _, r := range recs {
			seen[r.Key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ForKey returns the subset of records filed under key.
func (s RecordSet) ForKey(key string) RecordSet {
	filter := func(recs []Record) []Record {
		var out []Record
		for _, r := range recs {
			if r.Key == key {
				out = append(out, r)
			}
		}
		return out
	}
	return RecordSet{
		Documents: filter(s.Documents),
		Status:    filter(s.Status),
		Events:    filter(s.Events),
	}
}
