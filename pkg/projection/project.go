package projection

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/stages"
)

// Procurement is the projected state of one procurement. It is never stored;
// it is rebuilt from the ledger on every read.
type Procurement struct {
	Key         string `json:"key"`
	ID          string `json:"procurement_id"`
	Title       string `json:"procurement_title"`
	Status      string `json:"status"`
	Stage       string `json:"stage"`
	LastUpdated string `json:"last_updated"`

	Latest     StatusView      `json:"latest"`
	Documents  Catalog         `json:"documents"`
	History    []StatusView    `json:"history"`
	Events     []EventView     `json:"events"`
	Timeline   []TimelineEntry `json:"timeline"`
	Phases     []PhaseView     `json:"phases"`
	NextAction *stages.Action  `json:"next_action,omitempty"`
}

// Project replays the records of key. ok is false when the key has no
// status record. A nil table means the default transition table.
func Project(table *stages.Table, key string, set core.RecordSet) (p Procurement, ok bool) {
	if table == nil {
		table = stages.DefaultTable()
	}
	return project(table, key, byKey(set)[key])
}

// ProjectAll replays every procurement present in set, most recently
// updated first.
func ProjectAll(table *stages.Table, set core.RecordSet) []Procurement {
	if table == nil {
		table = stages.DefaultTable()
	}
	groups := byKey(set)
	out := make([]Procurement, 0, len(groups))
	for key, recs := range groups {
		if p, ok := project(table, key, recs); ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := core.CompareTimestamps(out[i].LastUpdated, out[j].LastUpdated); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// FilterKeys keeps the procurements whose key matches a glob pattern.
// An empty pattern keeps everything.
func FilterKeys(procs []Procurement, pattern string) ([]Procurement, error) {
	if pattern == "" {
		return procs, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid key pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	var out []Procurement
	for _, p := range procs {
		if doublestar.MatchUnvalidated(pattern, p.Key) {
			out = append(out, p)
		}
	}
	return out, nil
}

func project(table *stages.Table, key string, set core.RecordSet) (Procurement, bool) {
	latest, ok := LatestStatusFor(set.Status, key)
	if !ok {
		return Procurement{}, false
	}
	stageList := table.Stages()

	p := Procurement{
		Key:         key,
		ID:          latest.ProcurementID,
		Title:       latest.ProcurementTitle,
		Status:      latest.CurrentStatus,
		Stage:       latest.Stage,
		LastUpdated: latest.Timestamp,
		Latest:      latest,
		Documents:   DocumentCatalog(stageList, set.Documents),
		History:     History(set.Status),
		Events:      Events(set.Events),
	}
	if canonical, ok := stageList.Canonical(latest.Stage); ok {
		p.Stage = canonical
	}
	if p.ID == "" || p.Title == "" {
		p.ID, p.Title = identify(p.ID, p.Title, set)
	}
	p.Timeline = Timeline(p.History, p.Events)
	p.Phases = PhaseSummary(stageList, p.Documents, p.History, p.Events, latest)
	if next, ok := table.Next(latest.Stage, latest.CurrentStatus); ok {
		p.NextAction = &next
	}
	return p, true
}

// identify fills a missing id or title from any record of the set, choosing
// the smallest non-empty value so the result does not depend on fetch order.
func identify(id, title string, set core.RecordSet) (string, string) {
	pick := func(cur, cand string) string {
		cand = strings.TrimSpace(cand)
		if cand == "" || (cur != "" && cur <= cand) {
			return cur
		}
		return cand
	}
	var foundID, foundTitle string
	for _, recs := range [][]core.Record{set.Status, set.Events, set.Documents} {
		for _, r := range recs {
			foundID = pick(foundID, r.Payload.String("procurement_id"))
			foundTitle = pick(foundTitle, r.Payload.String("procurement_title"))
		}
	}
	if id == "" {
		id = foundID
	}
	if title == "" {
		title = foundTitle
	}
	return id, title
}

func byKey(set core.RecordSet) map[string]core.RecordSet {
	groups := make(map[string]core.RecordSet)
	for _, r := range set.Documents {
		g := groups[KeyOf(r)]
		g.Documents = append(g.Documents, r)
		groups[KeyOf(r)] = g
	}
	for _, r := range set.Status {
		g := groups[KeyOf(r)]
		g.Status = append(g.Status, r)
		groups[KeyOf(r)] = g
	}
	for _, r := range set.Events {
		g := groups[KeyOf(r)]
		g.Events = append(g.Events, r)
		groups[KeyOf(r)] = g
	}
	return groups
}
