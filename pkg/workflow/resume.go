package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/gateway"
	"github.com/aretw0/bidtrail/pkg/projection"
	"github.com/aretw0/bidtrail/pkg/stages"
)

// uploadThenTransitionError reports a transition that failed after the
// documents step of an upload action was fully written. Steps of the
// transition are prefixed so the completed list stays unambiguous.
func uploadThenTransitionError(err error) error {
	completed := []string{"documents", "status", "event"}
	var inner *core.PartialBatchError
	if errors.As(err, &inner) {
		for _, step := range inner.Completed {
			completed = append(completed, "transition_"+step)
		}
		return &core.PartialBatchError{Op: "advance", Step: "transition_" + inner.Step, Completed: completed, Err: inner.Err}
	}
	return &core.PartialBatchError{Op: "advance", Step: "transition_status", Completed: completed, Err: err}
}

// resume completes an Advance whose earlier attempt stopped after writing
// the action's target status. The latest status is either the snapshot of
// the action's upload (transition missing) or the transition itself (its
// event missing). resumed is false when the action genuinely is not
// allowed; nothing is written then.
func (s *Service) resume(ctx context.Context, req AdvanceRequest, p projection.Procurement) (out Outcome, resumed bool, err error) {
	rule, ok := s.table.Lookup(req.Action)
	if !ok {
		return Outcome{}, false, nil
	}
	action := rule.Action
	latest := p.Latest
	stageList := s.table.Stages()
	if !sameStage(stageList, latest.Stage, action.TargetStage) ||
		!action.Accepts(req.Status) || latest.CurrentStatus != action.Outcome(req.Status) {
		return Outcome{}, false, nil
	}

	at, ok := core.ParseTimestamp(latest.Timestamp)
	if !ok {
		return Outcome{}, false, nil
	}
	out = Outcome{Key: p.Key, Action: action, Stage: action.TargetStage, Status: latest.CurrentStatus}

	snapshot := latest.PreviousStatus == "" && latest.PreviousStage == ""
	switch {
	case snapshot && action.Kind == stages.KindUpload:
		out.Documents = countAt(p.Documents.Documents(action.TargetStage), latest.Timestamp)
		if out.Documents == 0 || transitionedInto(stageList, p.History, latest) {
			return Outcome{}, false, nil
		}
		if !hasEventAt(p.Events, core.EventDocumentUpload, latest.Timestamp) {
			err = s.gw.AppendEvent(ctx, gateway.Event{
				ProcurementID: req.ProcurementID,
				Title:         req.Title,
				Stage:         action.TargetStage,
				Details:       fmt.Sprintf("Uploaded %d document(s) for %s", out.Documents, action.TargetStage),
				DocumentCount: out.Documents,
				Actor:         req.Actor,
				EventType:     core.EventDocumentUpload,
				Category:      gateway.CategoryDocument,
				Severity:      gateway.SeverityInfo,
				Timestamp:     at,
			})
			if err != nil {
				return Outcome{}, true, &core.PartialBatchError{Op: "advance", Step: "event", Completed: []string{"documents", "status"}, Err: err}
			}
		}
		fromStage, fromStatus := previousState(p.History, latest, rule.Stage)
		details := req.Details
		if details == "" {
			details = action.Label
		}
		err = s.gw.TransitionStage(ctx, gateway.Transition{
			ProcurementID: req.ProcurementID,
			Title:         req.Title,
			FromStatus:    fromStatus,
			ToStatus:      latest.CurrentStatus,
			FromStage:     fromStage,
			ToStage:       action.TargetStage,
			Actor:         req.Actor,
			Details:       details,
			Timestamp:     at,
		})
		if err != nil {
			return Outcome{}, true, uploadThenTransitionError(err)
		}

	case !snapshot && sameStage(stageList, latest.PreviousStage, rule.Stage) && rule.When.Matches(latest.PreviousStatus):
		if hasEventAt(p.Events, core.EventStageTransition, latest.Timestamp) {
			return Outcome{}, false, nil
		}
		details := req.Details
		if details == "" {
			details = action.Label
		}
		err = s.gw.AppendEvent(ctx, gateway.Event{
			ProcurementID: req.ProcurementID,
			Title:         req.Title,
			Stage:         action.TargetStage,
			Details: gateway.TransitionDetails(gateway.Transition{
				Details:    details,
				FromStage:  latest.PreviousStage,
				FromStatus: latest.PreviousStatus,
				ToStage:    action.TargetStage,
				ToStatus:   latest.CurrentStatus,
			}),
			Actor:     req.Actor,
			EventType: core.EventStageTransition,
			Category:  gateway.CategoryWorkflow,
			Severity:  gateway.SeverityInfo,
			Timestamp: at,
		})
		if err != nil {
			return Outcome{}, true, err
		}

	default:
		return Outcome{}, false, nil
	}

	s.logger.Info("procurement advance resumed",
		slog.String("key", p.Key),
		slog.String("action", action.Name),
		slog.String("stage", action.TargetStage),
		slog.String("status", latest.CurrentStatus))
	return out, true, nil
}

func sameStage(list stages.Stages, a, b string) bool {
	ca, okA := list.Canonical(a)
	cb, okB := list.Canonical(b)
	if okA && okB {
		return ca == cb
	}
	return stages.Normalize(a) == stages.Normalize(b)
}

func hasEventAt(events []projection.EventView, eventType, ts string) bool {
	for _, ev := range events {
		if ev.EventType == eventType && core.CompareTimestamps(ev.Timestamp, ts) == 0 {
			return true
		}
	}
	return false
}

func countAt(docs []projection.DocumentView, ts string) int {
	n := 0
	for _, d := range docs {
		if core.CompareTimestamps(d.Timestamp, ts) == 0 {
			n++
		}
	}
	return n
}

// transitionedInto reports whether a transition already reached the
// (stage, status) of latest, in which case latest is a plain upload.
func transitionedInto(list stages.Stages, history []projection.StatusView, latest projection.StatusView) bool {
	for _, h := range history {
		if h.PreviousStage == "" && h.PreviousStatus == "" {
			continue
		}
		if sameStage(list, h.Stage, latest.Stage) && h.CurrentStatus == latest.CurrentStatus &&
			core.CompareTimestamps(h.Timestamp, latest.Timestamp) <= 0 {
			return true
		}
	}
	return false
}

// previousState is the last status written before latest. Without one the
// rule's own stage is used.
func previousState(history []projection.StatusView, latest projection.StatusView, ruleStage string) (stage, status string) {
	stage = ruleStage
	for _, h := range history {
		if core.CompareTimestamps(h.Timestamp, latest.Timestamp) < 0 {
			stage, status = h.Stage, h.CurrentStatus
		}
	}
	return stage, status
}
