package projection

import (
	"sort"

	"github.com/aretw0/bidtrail/pkg/stages"
)

// EntryKind tells status entries from events in a timeline.
type EntryKind string

const (
	EntryStatus EntryKind = "status"
	EntryEvent  EntryKind = "event"
)

// TimelineEntry is one line of a procurement's audit timeline.
type TimelineEntry struct {
	Kind           EntryKind `json:"kind"`
	Timestamp      string    `json:"timestamp"`
	Stage          string    `json:"stage"`
	Title          string    `json:"title"`
	Details        string    `json:"details,omitempty"`
	Actor          string    `json:"actor,omitempty"`
	Category       string    `json:"category,omitempty"`
	Severity       string    `json:"severity,omitempty"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	PreviousStage  string    `json:"previous_stage,omitempty"`
	DocumentCount  int       `json:"document_count,omitempty"`
	RecordID       string    `json:"record_id"`
	Fingerprint    string    `json:"-"`
	// NewPhase marks the first entry of a run of entries in the same stage.
	NewPhase bool `json:"new_phase"`
}

// Timeline merges status history and events into one chronological list.
// Records with identical content are shown once, whichever copy was fetched.
func Timeline(history []StatusView, events []EventView) []TimelineEntry {
	type identity struct {
		kind EntryKind
		fp   string
	}
	seen := make(map[identity]int)
	out := make([]TimelineEntry, 0, len(history)+len(events))
	add := func(e TimelineEntry) {
		id := identity{kind: e.Kind, fp: e.Fingerprint}
		if i, dup := seen[id]; dup && e.Fingerprint != "" {
			if e.RecordID < out[i].RecordID {
				out[i] = e
			}
			return
		}
		seen[id] = len(out)
		out = append(out, e)
	}

	for _, h := range history {
		add(TimelineEntry{
			Kind:           EntryStatus,
			Timestamp:      h.Timestamp,
			Stage:          h.Stage,
			Title:          h.CurrentStatus,
			Actor:          h.UserAddress,
			PreviousStatus: h.PreviousStatus,
			PreviousStage:  h.PreviousStage,
			RecordID:       h.RecordID,
			Fingerprint:    h.Fingerprint,
		})
	}
	for _, e := range events {
		add(TimelineEntry{
			Kind:          EntryEvent,
			Timestamp:     e.Timestamp,
			Stage:         e.Stage,
			Title:         e.EventType,
			Details:       e.Details,
			Actor:         e.UserAddress,
			Category:      e.Category,
			Severity:      e.Severity,
			DocumentCount: e.DocumentCount,
			RecordID:      e.RecordID,
			Fingerprint:   e.Fingerprint,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := chronological(a.Timestamp, b.Timestamp, "", ""); c != 0 {
			return c < 0
		}
		if a.Kind != b.Kind {
			return a.Kind == EntryStatus
		}
		return a.Fingerprint < b.Fingerprint
	})

	for i := range out {
		out[i].NewPhase = i == 0 || stages.Normalize(out[i].Stage) != stages.Normalize(out[i-1].Stage)
	}
	return out
}
