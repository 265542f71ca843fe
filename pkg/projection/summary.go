package projection

import (
	"strings"

	"github.com/aretw0/bidtrail/pkg/stages"
)

// PhaseState is the progress of one phase.
type PhaseState string

const (
	PhaseCompleted  PhaseState = "Completed"
	PhaseCurrent    PhaseState = "Current"
	PhaseNotStarted PhaseState = "Not Started"
	PhaseSkipped    PhaseState = "Skipped"
)

// PhaseView summarizes one canonical stage of a procurement.
type PhaseView struct {
	Stage         string     `json:"stage"`
	Ordinal       int        `json:"ordinal"`
	State         PhaseState `json:"state"`
	DocumentCount int        `json:"document_count"`
	EventCount    int        `json:"event_count"`
	LastStatus    string     `json:"last_status,omitempty"`
	LastUpdated   string     `json:"last_updated,omitempty"`
}

// PhaseSummary reports every canonical stage in order. A stage whose latest
// status mentions "Skipped" is Skipped; otherwise the stage of the latest
// status is Current; stages before it, or with any history, are Completed;
// the rest have not started.
func PhaseSummary(stageList stages.Stages, catalog Catalog, history []StatusView, events []EventView, latest StatusView) []PhaseView {
	latestOrdinal := stageList.Index(latest.Stage)

	lastByStage := make(map[int]StatusView)
	for _, h := range history {
		i := stageList.Index(h.Stage)
		if i < 0 {
			continue
		}
		if cur, ok := lastByStage[i]; !ok || newer(h, cur) {
			lastByStage[i] = h
		}
	}
	eventsByStage := make(map[int]int)
	for _, e := range events {
		if i := stageList.Index(e.Stage); i >= 0 {
			eventsByStage[i]++
		}
	}

	out := make([]PhaseView, 0, stageList.Len())
	for i, name := range stageList.Names() {
		v := PhaseView{
			Stage:         name,
			Ordinal:       i + 1,
			DocumentCount: catalog.Count(name),
			EventCount:    eventsByStage[i],
		}
		last, seen := lastByStage[i]
		if seen {
			v.LastStatus = last.CurrentStatus
			v.LastUpdated = last.Timestamp
		}
		switch {
		case seen && strings.Contains(strings.ToLower(last.CurrentStatus), "skipped"):
			v.State = PhaseSkipped
		case i == latestOrdinal:
			v.State = PhaseCurrent
		case (latestOrdinal >= 0 && i < latestOrdinal) || seen:
			v.State = PhaseCompleted
		default:
			v.State = PhaseNotStarted
		}
		out = append(out, v)
	}
	return out
}
