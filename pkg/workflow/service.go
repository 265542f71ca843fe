// Package workflow drives procurements through their stages. It asks the
// transition table what is legal, writes through the gateway and reads back
// by replaying the ledger.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/gateway"
	"github.com/aretw0/bidtrail/pkg/projection"
	"github.com/aretw0/bidtrail/pkg/stages"
)

// ActionInitiate is the only action a procurement without status may take.
const ActionInitiate = "initiate"

// Service handles the procurement workflow.
type Service struct {
	gw     *gateway.Gateway
	table  *stages.Table
	logger *slog.Logger
	opts   *options
}

// New creates a Service writing and reading through gw.
func New(gw *gateway.Gateway, opts ...Option) *Service {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.table == nil {
		o.table = stages.DefaultTable()
	}
	return &Service{
		gw:     gw,
		table:  o.table,
		logger: o.logger.With(slog.String("component", "workflow")),
		opts:   o,
	}
}

// Table returns the transition table in use.
func (s *Service) Table() *stages.Table { return s.table }

// Gateway returns the underlying gateway.
func (s *Service) Gateway() *gateway.Gateway { return s.gw }

// InitiateRequest opens a procurement.
type InitiateRequest struct {
	ProcurementID string
	Title         string
	Actor         string
	Details       string
	// Documents optionally accompany the purchase request.
	Documents []core.Metadata
}

// UploadRequest publishes documents without moving the procurement.
// An empty Stage or Status keeps the procurement's current one.
type UploadRequest struct {
	ProcurementID string
	Title         string
	Stage         string
	Status        string
	Actor         string
	Documents     []core.Metadata
}

// AdvanceRequest performs the named action of the transition table.
type AdvanceRequest struct {
	ProcurementID string
	Title         string
	Action        string
	// Status selects one of the action's alternative outcomes. Empty means
	// the action's target status.
	Status    string
	Actor     string
	Details   string
	Documents []core.Metadata
}

// EventRequest records a free-form audit event.
type EventRequest struct {
	ProcurementID string
	Title         string
	EventType     string
	Stage         string
	Details       string
	Actor         string
	Category      string
	Severity      string
}

// Outcome describes what an Advance wrote.
type Outcome struct {
	Key       string        `json:"key"`
	Action    stages.Action `json:"action"`
	Stage     string        `json:"stage"`
	Status    string        `json:"status"`
	Documents int           `json:"documents"`
}

// Initiate writes the first status of a procurement and a procurement_created event.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) error {
	if strings.TrimSpace(req.ProcurementID) == "" {
		return fmt.Errorf("%w: procurement id is required", ErrInvalidRequest)
	}
	key := core.DeriveKey(req.ProcurementID, req.Title)
	if _, err := s.ViewKey(ctx, key); err == nil {
		return fmt.Errorf("%w: %s is already initiated", ErrActionNotAllowed, key)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	now := s.opts.clock()
	stage := s.table.Stages().At(0)
	initial := s.table.InitialStatus()
	completed := []string{"status"}

	var err error
	if len(req.Documents) > 0 {
		completed = []string{"documents", "status", "event"}
		err = s.gw.AppendDocuments(ctx, gateway.DocumentUpload{
			ProcurementID: req.ProcurementID,
			Title:         req.Title,
			Stage:         stage,
			Status:        initial,
			Actor:         req.Actor,
			Timestamp:     now,
			Documents:     req.Documents,
		})
	} else {
		err = s.gw.AppendStatus(ctx, gateway.StatusChange{
			ProcurementID: req.ProcurementID,
			Title:         req.Title,
			Stage:         stage,
			Status:        initial,
			Actor:         req.Actor,
			Timestamp:     now,
		})
	}
	if err != nil {
		return err
	}

	details := req.Details
	if details == "" {
		details = fmt.Sprintf("Procurement %s created", req.ProcurementID)
	}
	err = s.gw.AppendEvent(ctx, gateway.Event{
		ProcurementID: req.ProcurementID,
		Title:         req.Title,
		Stage:         stage,
		Details:       details,
		DocumentCount: len(req.Documents),
		Actor:         req.Actor,
		EventType:     core.EventProcurementCreated,
		Category:      gateway.CategoryWorkflow,
		Timestamp:     now,
	})
	if err != nil {
		return &core.PartialBatchError{Op: "initiate", Step: "event", Completed: completed, Err: err}
	}

	s.logger.Info("procurement initiated", slog.String("key", key), slog.Int("documents", len(req.Documents)))
	return nil
}

// Upload publishes documents for a procurement.
func (s *Service) Upload(ctx context.Context, req UploadRequest) error {
	if strings.TrimSpace(req.ProcurementID) == "" {
		return fmt.Errorf("%w: procurement id is required", ErrInvalidRequest)
	}
	if len(req.Documents) == 0 {
		return fmt.Errorf("%w: at least one document is required", ErrInvalidRequest)
	}

	stage, status := req.Stage, req.Status
	if stage == "" || status == "" {
		p, err := s.View(ctx, req.ProcurementID, req.Title)
		if err != nil {
			return err
		}
		if stage == "" {
			stage = p.Stage
		}
		if status == "" {
			status = p.Status
		}
	}
	if canonical, ok := s.table.Stages().Canonical(stage); ok {
		stage = canonical
	}

	err := s.gw.AppendDocuments(ctx, gateway.DocumentUpload{
		ProcurementID: req.ProcurementID,
		Title:         req.Title,
		Stage:         stage,
		Status:        status,
		Actor:         req.Actor,
		Timestamp:     s.opts.clock(),
		Documents:     req.Documents,
	})
	if err != nil {
		return err
	}
	s.logger.Info("documents uploaded",
		slog.String("key", core.DeriveKey(req.ProcurementID, req.Title)),
		slog.String("stage", stage),
		slog.Int("documents", len(req.Documents)))
	return nil
}

// Advance performs an action if the transition table allows it in the
// procurement's current (stage, status). Upload actions publish their
// documents first; the stage transition follows with the same timestamp.
func (s *Service) Advance(ctx context.Context, req AdvanceRequest) (Outcome, error) {
	if strings.TrimSpace(req.ProcurementID) == "" {
		return Outcome{}, fmt.Errorf("%w: procurement id is required", ErrInvalidRequest)
	}
	if req.Action == "" {
		return Outcome{}, fmt.Errorf("%w: action is required", ErrInvalidRequest)
	}
	key := core.DeriveKey(req.ProcurementID, req.Title)

	if req.Action == ActionInitiate {
		err := s.Initiate(ctx, InitiateRequest{
			ProcurementID: req.ProcurementID,
			Title:         req.Title,
			Actor:         req.Actor,
			Details:       req.Details,
			Documents:     req.Documents,
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{
			Key:       key,
			Action:    stages.Action{Name: ActionInitiate, Kind: stages.KindTransition, TargetStage: s.table.Stages().At(0), TargetStatus: s.table.InitialStatus()},
			Stage:     s.table.Stages().At(0),
			Status:    s.table.InitialStatus(),
			Documents: len(req.Documents),
		}, nil
	}

	p, err := s.ViewKey(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return Outcome{}, fmt.Errorf("%w: %s has not been initiated, only %q is allowed", ErrActionNotAllowed, key, ActionInitiate)
	}
	if err != nil {
		return Outcome{}, err
	}

	action, ok := s.table.Allows(p.Latest.Stage, p.Latest.CurrentStatus, req.Action)
	if !ok {
		if out, resumed, err := s.resume(ctx, req, p); resumed || err != nil {
			return out, err
		}
		if next, has := s.table.Next(p.Latest.Stage, p.Latest.CurrentStatus); has {
			return Outcome{}, fmt.Errorf("%w: %q in %s/%s, next action is %q",
				ErrActionNotAllowed, req.Action, p.Stage, p.Status, next.Name)
		}
		return Outcome{}, fmt.Errorf("%w: %q in %s/%s, no further action", ErrActionNotAllowed, req.Action, p.Stage, p.Status)
	}
	if !action.Accepts(req.Status) {
		return Outcome{}, fmt.Errorf("%w: %q is not an outcome of %q", ErrInvalidRequest, req.Status, action.Name)
	}
	status := action.Outcome(req.Status)
	if action.Kind == stages.KindUpload && len(req.Documents) == 0 && status == action.TargetStatus {
		return Outcome{}, fmt.Errorf("%w: %q requires documents", ErrInvalidRequest, action.Name)
	}

	now := s.opts.clock()
	if len(req.Documents) > 0 {
		err := s.gw.AppendDocuments(ctx, gateway.DocumentUpload{
			ProcurementID: req.ProcurementID,
			Title:         req.Title,
			Stage:         action.TargetStage,
			Status:        status,
			Actor:         req.Actor,
			Timestamp:     now,
			Documents:     req.Documents,
		})
		if err != nil {
			return Outcome{}, err
		}
	}

	details := req.Details
	if details == "" {
		details = action.Label
	}
	err = s.gw.TransitionStage(ctx, gateway.Transition{
		ProcurementID: req.ProcurementID,
		Title:         req.Title,
		FromStatus:    p.Latest.CurrentStatus,
		ToStatus:      status,
		FromStage:     p.Latest.Stage,
		ToStage:       action.TargetStage,
		Actor:         req.Actor,
		Details:       details,
		Timestamp:     now,
	})
	if err != nil {
		if len(req.Documents) > 0 {
			return Outcome{}, uploadThenTransitionError(err)
		}
		return Outcome{}, err
	}

	s.logger.Info("procurement advanced",
		slog.String("key", key),
		slog.String("action", action.Name),
		slog.String("stage", action.TargetStage),
		slog.String("status", status))
	return Outcome{Key: key, Action: action, Stage: action.TargetStage, Status: status, Documents: len(req.Documents)}, nil
}

// RecordEvent appends an audit event to an existing procurement. An empty
// stage defaults to the procurement's current stage.
func (s *Service) RecordEvent(ctx context.Context, req EventRequest) error {
	if strings.TrimSpace(req.ProcurementID) == "" {
		return fmt.Errorf("%w: procurement id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.EventType) == "" {
		return fmt.Errorf("%w: event type is required", ErrInvalidRequest)
	}
	p, err := s.View(ctx, req.ProcurementID, req.Title)
	if err != nil {
		return err
	}
	stage := req.Stage
	if stage == "" {
		stage = p.Stage
	}
	return s.gw.AppendEvent(ctx, gateway.Event{
		ProcurementID: req.ProcurementID,
		Title:         req.Title,
		Stage:         stage,
		Details:       req.Details,
		Actor:         req.Actor,
		EventType:     req.EventType,
		Category:      req.Category,
		Severity:      req.Severity,
		Timestamp:     s.opts.clock(),
	})
}

// View projects the procurement identified by id and title.
func (s *Service) View(ctx context.Context, id, title string) (projection.Procurement, error) {
	if strings.TrimSpace(id) == "" {
		return projection.Procurement{}, fmt.Errorf("%w: procurement id is required", ErrInvalidRequest)
	}
	return s.ViewKey(ctx, core.DeriveKey(id, title))
}

// ViewKey projects the procurement filed under key.
func (s *Service) ViewKey(ctx context.Context, key string) (projection.Procurement, error) {
	if key == "" {
		return projection.Procurement{}, fmt.Errorf("%w: key is required", ErrInvalidRequest)
	}
	set, err := s.gw.QueryAll(ctx, key, 0)
	if err != nil {
		return projection.Procurement{}, err
	}
	p, ok := projection.Project(s.table, key, set)
	if !ok {
		return projection.Procurement{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return p, nil
}

// List projects every procurement in the ledger, optionally keeping only
// keys matching a glob pattern.
func (s *Service) List(ctx context.Context, pattern string) ([]projection.Procurement, error) {
	set, err := s.gw.QueryAll(ctx, "", s.opts.listLimit)
	if err != nil {
		return nil, err
	}
	procs, err := projection.FilterKeys(projection.ProjectAll(s.table, set), pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return procs, nil
}

// Next returns the next legal action of a procurement. ok is false once the
// procurement is complete.
func (s *Service) Next(ctx context.Context, id, title string) (action stages.Action, ok bool, err error) {
	p, err := s.View(ctx, id, title)
	if err != nil {
		return stages.Action{}, false, err
	}
	if p.NextAction == nil {
		return stages.Action{}, false, nil
	}
	return *p.NextAction, true, nil
}

// Watch reports the streams that changed, when the ledger can observe itself.
func (s *Service) Watch(ctx context.Context) (<-chan core.StreamID, error) {
	w, ok := s.gw.Ledger().(core.Watchable)
	if !ok {
		return nil, fmt.Errorf("%w: watch", ErrUnsupported)
	}
	return w.Watch(ctx)
}
