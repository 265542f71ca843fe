// Package gateway is the write protocol and read path of the procurement
// ledger. It turns workflow actions into records, applies the codec, and
// classifies every ledger failure into the core error taxonomy.
//
// Each method is atomic per ledger call only. A multi-record operation that
// fails halfway is reported as a *core.PartialBatchError and left as is:
// there is no compensating write.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/bidtrail/pkg/core"
)

// Event categories and severities written by the gateway.
const (
	CategoryDocument = "document"
	CategoryWorkflow = "workflow"
	SeverityInfo     = "info"
)

// Gateway wraps a core.Ledger.
type Gateway struct {
	ledger core.Ledger
	opts   *options
	logger *slog.Logger
}

// New creates a Gateway over ledger.
func New(ledger core.Ledger, opts ...Option) *Gateway {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Gateway{
		ledger: ledger,
		opts:   o,
		logger: o.logger.With(slog.String("component", "gateway")),
	}
}

// Ledger returns the wrapped ledger.
func (g *Gateway) Ledger() core.Ledger { return g.ledger }

// DocumentUpload is a batch of documents published for one stage.
type DocumentUpload struct {
	ProcurementID string
	Title         string
	Stage         string
	Status        string
	Actor         string
	// Timestamp is shared by every record of the upload. Zero means now.
	// Callers retrying an upload should reuse the original timestamp.
	Timestamp time.Time
	Documents []core.Metadata
}

// StatusChange is one status snapshot.
type StatusChange struct {
	ProcurementID  string
	Title          string
	Status         string
	Stage          string
	Actor          string
	Timestamp      time.Time
	PreviousStatus string
	PreviousStage  string
}

// Event is one audit event.
type Event struct {
	ProcurementID string
	Title         string
	Stage         string
	Details       string
	DocumentCount int
	Actor         string
	EventType     string
	Category      string
	Severity      string
	Timestamp     time.Time
}

// Transition moves a procurement from one (stage, status) to another.
type Transition struct {
	ProcurementID string
	Title         string
	FromStatus    string
	ToStatus      string
	FromStage     string
	ToStage       string
	Actor         string
	Details       string
	Timestamp     time.Time
}

// AppendDocuments publishes one documents record per entry in a single batch,
// then the matching status snapshot and a document_upload event.
//
// Workflow:
//  1. Build the records (1-based document_index, stage_metadata without the well-known fields).
//  2. PublishBatch to the documents stream.
//  3. AppendStatus with the upload's stage/status.
//  4. AppendEvent of type document_upload.
func (g *Gateway) AppendDocuments(ctx context.Context, up DocumentUpload) error {
	if up.ProcurementID == "" {
		return fmt.Errorf("%w: procurement id is required", core.ErrInvalidInput)
	}
	if len(up.Documents) == 0 {
		return fmt.Errorf("%w: at least one document is required", core.ErrInvalidInput)
	}

	ts := g.timestamp(up.Timestamp)
	key := core.DeriveKey(up.ProcurementID, up.Title)

	items := make([]core.Item, 0, len(up.Documents))
	for i, meta := range up.Documents {
		fields := core.Payload(meta)
		entry := core.DocumentEntry{
			ProcurementID:    up.ProcurementID,
			ProcurementTitle: up.Title,
			Stage:            up.Stage,
			Timestamp:        ts,
			DocumentIndex:    i + 1,
			DocumentType:     fields.String(core.FieldDocumentType),
			Hash:             fields.String(core.FieldHash),
			FileKey:          fields.String(core.FieldFileKey),
			UserAddress:      up.Actor,
			FileSize:         fields.Int(core.FieldFileSize),
			StageMetadata:    core.SplitStageMetadata(meta),
		}
		data, err := g.opts.codec.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to encode document %d: %w", i+1, err)
		}
		items = append(items, core.Item{Key: key, Data: data})
	}

	if err := g.guardWrite(); err != nil {
		return err
	}
	err := g.call(ctx, "publish_batch", core.StreamDocuments, func(ctx context.Context) error {
		_, err := g.ledger.PublishBatch(ctx, core.StreamDocuments, items)
		return err
	})
	if err != nil {
		return err
	}
	g.logger.Debug("documents appended",
		slog.String("key", key),
		slog.String("stage", up.Stage),
		slog.Int("count", len(items)),
	)

	completed := []string{"documents"}
	parsed, _ := core.ParseTimestamp(ts)
	err = g.AppendStatus(ctx, StatusChange{
		ProcurementID: up.ProcurementID,
		Title:         up.Title,
		Status:        up.Status,
		Stage:         up.Stage,
		Actor:         up.Actor,
		Timestamp:     parsed,
	})
	if err != nil {
		return &core.PartialBatchError{Op: "append_documents", Step: "status", Completed: completed, Err: err}
	}
	completed = append(completed, "status")

	err = g.AppendEvent(ctx, Event{
		ProcurementID: up.ProcurementID,
		Title:         up.Title,
		Stage:         up.Stage,
		Details:       fmt.Sprintf("Uploaded %d document(s) for %s", len(up.Documents), up.Stage),
		DocumentCount: len(up.Documents),
		Actor:         up.Actor,
		EventType:     core.EventDocumentUpload,
		Category:      CategoryDocument,
		Severity:      SeverityInfo,
		Timestamp:     parsed,
	})
	if err != nil {
		return &core.PartialBatchError{Op: "append_documents", Step: "event", Completed: completed, Err: err}
	}
	return nil
}

// AppendStatus publishes a single status record.
func (g *Gateway) AppendStatus(ctx context.Context, sc StatusChange) error {
	if sc.ProcurementID == "" {
		return fmt.Errorf("%w: procurement id is required", core.ErrInvalidInput)
	}
	entry := core.StatusEntry{
		ProcurementID:    sc.ProcurementID,
		ProcurementTitle: sc.Title,
		CurrentStatus:    sc.Status,
		Stage:            sc.Stage,
		Timestamp:        g.timestamp(sc.Timestamp),
		UserAddress:      sc.Actor,
		PreviousStatus:   sc.PreviousStatus,
		PreviousStage:    sc.PreviousStage,
	}
	return g.publish(ctx, core.StreamStatus, core.DeriveKey(sc.ProcurementID, sc.Title), entry)
}

// AppendEvent publishes a single events record.
func (g *Gateway) AppendEvent(ctx context.Context, ev Event) error {
	if ev.ProcurementID == "" {
		return fmt.Errorf("%w: procurement id is required", core.ErrInvalidInput)
	}
	if ev.EventType == "" {
		return fmt.Errorf("%w: event type is required", core.ErrInvalidInput)
	}
	entry := core.EventEntry{
		ProcurementID:    ev.ProcurementID,
		ProcurementTitle: ev.Title,
		EventType:        ev.EventType,
		Stage:            ev.Stage,
		Timestamp:        g.timestamp(ev.Timestamp),
		UserAddress:      ev.Actor,
		Details:          ev.Details,
		Category:         orDefault(ev.Category, CategoryWorkflow),
		Severity:         orDefault(ev.Severity, SeverityInfo),
		DocumentCount:    ev.DocumentCount,
	}
	return g.publish(ctx, core.StreamEvents, core.DeriveKey(ev.ProcurementID, ev.Title), entry)
}

// TransitionStage records a status change carrying the previous stage and
// status, followed by a stage_transition event.
func (g *Gateway) TransitionStage(ctx context.Context, tr Transition) error {
	ts := g.timestamp(tr.Timestamp)
	parsed, _ := core.ParseTimestamp(ts)

	err := g.AppendStatus(ctx, StatusChange{
		ProcurementID:  tr.ProcurementID,
		Title:          tr.Title,
		Status:         tr.ToStatus,
		Stage:          tr.ToStage,
		Actor:          tr.Actor,
		Timestamp:      parsed,
		PreviousStatus: tr.FromStatus,
		PreviousStage:  tr.FromStage,
	})
	if err != nil {
		return err
	}

	err = g.AppendEvent(ctx, Event{
		ProcurementID: tr.ProcurementID,
		Title:         tr.Title,
		Stage:         tr.ToStage,
		Details:       TransitionDetails(tr),
		Actor:         tr.Actor,
		EventType:     core.EventStageTransition,
		Category:      CategoryWorkflow,
		Severity:      SeverityInfo,
		Timestamp:     parsed,
	})
	if err != nil {
		return &core.PartialBatchError{Op: "transition_stage", Step: "event", Completed: []string{"status"}, Err: err}
	}
	return nil
}

// TransitionDetails formats the details of a stage_transition event.
func TransitionDetails(tr Transition) string {
	return fmt.Sprintf("%s (from %s:%s to %s:%s)", tr.Details, tr.FromStage, tr.FromStatus, tr.ToStage, tr.ToStatus)
}

// Query fetches the records of a stream, for one key or (key == "") all keys.
// A record whose payload cannot be decoded is returned with an empty payload
// and a warning; only ledger failures fail the query.
func (g *Gateway) Query(ctx context.Context, stream core.StreamID, key string, limit int) ([]core.Record, error) {
	if !stream.Valid() {
		return nil, fmt.Errorf("%w: unknown stream %q", core.ErrInvalidInput, stream)
	}
	if limit <= 0 {
		limit = g.opts.pageSize
	}

	var raws []core.RawRecord
	op := "list_by_key"
	if key == "" {
		op = "list_all"
	}
	err := g.call(ctx, op, stream, func(ctx context.Context) error {
		var err error
		if key == "" {
			raws, err = g.ledger.ListAll(ctx, stream, limit)
		} else {
			raws, err = g.ledger.ListByKey(ctx, stream, key, limit)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	records := make([]core.Record, 0, len(raws))
	for i, raw := range raws {
		rec := core.Record{ID: raw.ID, Stream: stream, Key: raw.Key, Seq: i}
		payload, err := g.opts.codec.Unmarshal(raw.Data)
		if err != nil {
			derr := &core.DecodeError{Stream: stream, RecordID: raw.ID, Err: err}
			decodeErrors.WithLabelValues(string(stream)).Inc()
			g.logger.Warn("record payload could not be decoded, using empty payload",
				slog.String("stream", string(stream)),
				slog.String("record_id", raw.ID),
				slog.Any("error", derr),
			)
			payload = core.Payload{}
		}
		rec.Payload = payload
		if rec.Key == "" {
			rec.Key = key
		}
		if rec.Key == "" {
			rec.Key = core.DeriveKey(payload.String("procurement_id"), payload.String("procurement_title"))
		}
		records = append(records, rec)
	}
	return records, nil
}

// QueryAll fetches the three streams concurrently, for one key or all keys.
func (g *Gateway) QueryAll(ctx context.Context, key string, limit int) (core.RecordSet, error) {
	var set core.RecordSet
	eg, ctx := errgroup.WithContext(ctx)
	targets := map[core.StreamID]*[]core.Record{
		core.StreamDocuments: &set.Documents,
		core.StreamStatus:    &set.Status,
		core.StreamEvents:    &set.Events,
	}
	for stream, dst := range targets {
		eg.Go(func() error {
			recs, err := g.Query(ctx, stream, key, limit)
			if err != nil {
				return err
			}
			*dst = recs
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return core.RecordSet{}, err
	}
	return set, nil
}

func (g *Gateway) publish(ctx context.Context, stream core.StreamID, key string, payload any) error {
	data, err := g.opts.codec.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", stream, err)
	}
	if err := g.guardWrite(); err != nil {
		return err
	}
	err = g.call(ctx, "publish", stream, func(ctx context.Context) error {
		_, err := g.ledger.Publish(ctx, stream, key, data)
		return err
	})
	if err != nil {
		return err
	}
	g.logger.Debug("record appended", slog.String("stream", string(stream)), slog.String("key", key))
	return nil
}

func (g *Gateway) guardWrite() error {
	if g.opts.readOnly {
		return core.ErrReadOnly
	}
	return nil
}

func (g *Gateway) timestamp(t time.Time) string {
	if t.IsZero() {
		t = g.opts.clock()
	}
	return core.FormatTimestamp(t)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
