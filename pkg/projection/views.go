// Package projection rebuilds the state of procurements by replaying their
// ledger records. Every function is pure: the same record set yields the
// same view whatever order the records were fetched in.
package projection

import (
	"sort"
	"strings"

	"github.com/aretw0/bidtrail/pkg/core"
)

// StatusView is a status record as seen by the projection.
type StatusView struct {
	core.StatusEntry
	Key         string `json:"key"`
	RecordID    string `json:"record_id"`
	Fingerprint string `json:"fingerprint"`
	seq         int
}

// DocumentView is a documents record placed in its phase.
type DocumentView struct {
	core.DocumentEntry
	Key         string `json:"key"`
	RecordID    string `json:"record_id"`
	Fingerprint string `json:"fingerprint"`
	// Phase is the resolved phase; Classified is true when it came from the
	// fallback classifier rather than the record itself.
	Phase      string `json:"phase"`
	Classified bool   `json:"classified"`
}

// EventView is an events record as seen by the projection.
type EventView struct {
	core.EventEntry
	Key         string `json:"key"`
	RecordID    string `json:"record_id"`
	Fingerprint string `json:"fingerprint"`
}

// KeyOf returns the stream key a record belongs to. Records fetched without
// a key fall back to the key derived from their payload.
func KeyOf(r core.Record) string {
	if r.Key != "" {
		return r.Key
	}
	return core.DeriveKey(r.Payload.String("procurement_id"), r.Payload.String("procurement_title"))
}

func newStatusView(r core.Record) StatusView {
	return StatusView{
		StatusEntry: core.StatusFromPayload(r.Payload),
		Key:         KeyOf(r),
		RecordID:    r.ID,
		Fingerprint: core.Fingerprint(r.Payload),
		seq:         r.Seq,
	}
}

func newEventView(r core.Record) EventView {
	return EventView{
		EventEntry:  core.EventFromPayload(r.Payload),
		Key:         KeyOf(r),
		RecordID:    r.ID,
		Fingerprint: core.Fingerprint(r.Payload),
	}
}

// History returns every status record as a view, in chronological order.
func History(records []core.Record) []StatusView {
	out := make([]StatusView, 0, len(records))
	for _, r := range records {
		out = append(out, newStatusView(r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return chronological(out[i].Timestamp, out[j].Timestamp, out[i].Fingerprint, out[j].Fingerprint) < 0
	})
	return out
}

// Events returns every events record as a view, in chronological order.
func Events(records []core.Record) []EventView {
	out := make([]EventView, 0, len(records))
	for _, r := range records {
		out = append(out, newEventView(r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return chronological(out[i].Timestamp, out[j].Timestamp, out[i].Fingerprint, out[j].Fingerprint) < 0
	})
	return out
}

// chronological orders for display: ascending time, malformed timestamps
// after every valid one, fingerprints breaking ties.
func chronological(tsA, tsB, fpA, fpB string) int {
	_, okA := core.ParseTimestamp(tsA)
	_, okB := core.ParseTimestamp(tsB)
	switch {
	case okA && !okB:
		return -1
	case !okA && okB:
		return 1
	}
	if c := core.CompareTimestamps(tsA, tsB); c != 0 {
		return c
	}
	return strings.Compare(fpA, fpB)
}

// normalize lower-cases and collapses whitespace, for case- and
// spacing-insensitive comparisons of stage names and document types.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
