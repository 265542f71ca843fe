package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/projection"
	"github.com/aretw0/bidtrail/pkg/stages"
	"github.com/aretw0/bidtrail/pkg/workflow"
)

// maxBodyBytes bounds request bodies; documents are metadata only.
const maxBodyBytes = 1 << 20

type initiateBody struct {
	ProcurementID string          `json:"procurement_id"`
	Title         string          `json:"title"`
	Actor         string          `json:"actor"`
	Details       string          `json:"details"`
	Documents     []core.Metadata `json:"documents"`
}

type uploadBody struct {
	Title     string          `json:"title"`
	Stage     string          `json:"stage"`
	Status    string          `json:"status"`
	Actor     string          `json:"actor"`
	Documents []core.Metadata `json:"documents"`
}

type advanceBody struct {
	Title     string          `json:"title"`
	Action    string          `json:"action"`
	Status    string          `json:"status"`
	Actor     string          `json:"actor"`
	Details   string          `json:"details"`
	Documents []core.Metadata `json:"documents"`
}

type eventBody struct {
	Title     string `json:"title"`
	EventType string `json:"event_type"`
	Stage     string `json:"stage"`
	Details   string `json:"details"`
	Actor     string `json:"actor"`
	Category  string `json:"category"`
	Severity  string `json:"severity"`
}

type keyResponse struct {
	Key string `json:"key"`
}

type ruleView struct {
	Stage  string        `json:"stage"`
	When   string        `json:"when"`
	Action stages.Action `json:"action"`
}

type stagesResponse struct {
	Stages []string   `json:"stages"`
	Rules  []ruleView `json:"rules"`
}

type nextResponse struct {
	Key      string         `json:"key"`
	Stage    string         `json:"stage"`
	Status   string         `json:"status"`
	Action   *stages.Action `json:"action"`
	Complete bool           `json:"complete"`
}

type recordView struct {
	ID          string        `json:"id"`
	Stream      core.StreamID `json:"stream"`
	Key         string        `json:"key"`
	Seq         int           `json:"seq"`
	Fingerprint string        `json:"fingerprint"`
	Payload     core.Payload  `json:"payload"`
}

func decode(r *http.Request, w http.ResponseWriter, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", workflow.ErrInvalidRequest, err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "state": s.svc.State()})
}

func (s *Server) listStages(w http.ResponseWriter, r *http.Request) {
	table := s.svc.Table()
	resp := stagesResponse{Stages: table.Stages().Names()}
	for _, rule := range table.Rules() {
		resp.Rules = append(resp.Rules, ruleView{Stage: rule.Stage, When: rule.When.String(), Action: rule.Action})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) deriveKey(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeError(w, r, fmt.Errorf("%w: id is required", workflow.ErrInvalidRequest))
		return
	}
	writeJSON(w, http.StatusOK, keyResponse{Key: core.DeriveKey(id, r.URL.Query().Get("title"))})
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", workflow.ErrInvalidRequest))
			return
		}
		limit = n
	}
	stream := core.StreamID(chi.URLParam(r, "stream"))
	records, err := s.svc.Gateway().Query(r.Context(), stream, r.URL.Query().Get("key"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]recordView, 0, len(records))
	for _, rec := range records {
		out = append(out, recordView{
			ID:          rec.ID,
			Stream:      rec.Stream,
			Key:         rec.Key,
			Seq:         rec.Seq,
			Fingerprint: core.Fingerprint(rec.Payload),
			Payload:     rec.Payload,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listProcurements(w http.ResponseWriter, r *http.Request) {
	procs, err := s.svc.List(r.Context(), r.URL.Query().Get("match"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if procs == nil {
		procs = []projection.Procurement{}
	}
	writeJSON(w, http.StatusOK, procs)
}

func (s *Server) view(w http.ResponseWriter, r *http.Request) (projection.Procurement, bool) {
	p, err := s.svc.ViewKey(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		s.writeError(w, r, err)
		return projection.Procurement{}, false
	}
	return p, true
}

func (s *Server) getProcurement(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.view(w, r); ok {
		writeJSON(w, http.StatusOK, p)
	}
}

func (s *Server) getTimeline(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.view(w, r); ok {
		writeJSON(w, http.StatusOK, p.Timeline)
	}
}

func (s *Server) getDocuments(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.view(w, r); ok {
		writeJSON(w, http.StatusOK, p.Documents)
	}
}

func (s *Server) getPhases(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.view(w, r); ok {
		writeJSON(w, http.StatusOK, p.Phases)
	}
}

func (s *Server) getNext(w http.ResponseWriter, r *http.Request) {
	if p, ok := s.view(w, r); ok {
		writeJSON(w, http.StatusOK, nextResponse{
			Key:      p.Key,
			Stage:    p.Stage,
			Status:   p.Status,
			Action:   p.NextAction,
			Complete: p.NextAction == nil,
		})
	}
}

func (s *Server) initiate(w http.ResponseWriter, r *http.Request) {
	var body initiateBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	err := s.svc.Initiate(r.Context(), workflow.InitiateRequest{
		ProcurementID: body.ProcurementID,
		Title:         body.Title,
		Actor:         body.Actor,
		Details:       body.Details,
		Documents:     body.Documents,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, keyResponse{Key: core.DeriveKey(body.ProcurementID, body.Title)})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	var body uploadBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "ref")
	err := s.svc.Upload(r.Context(), workflow.UploadRequest{
		ProcurementID: id,
		Title:         body.Title,
		Stage:         body.Stage,
		Status:        body.Status,
		Actor:         body.Actor,
		Documents:     body.Documents,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, keyResponse{Key: core.DeriveKey(id, body.Title)})
}

func (s *Server) advance(w http.ResponseWriter, r *http.Request) {
	var body advanceBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	outcome, err := s.svc.Advance(r.Context(), workflow.AdvanceRequest{
		ProcurementID: chi.URLParam(r, "ref"),
		Title:         body.Title,
		Action:        body.Action,
		Status:        body.Status,
		Actor:         body.Actor,
		Details:       body.Details,
		Documents:     body.Documents,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) recordEvent(w http.ResponseWriter, r *http.Request) {
	var body eventBody
	if err := decode(r, w, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "ref")
	err := s.svc.RecordEvent(r.Context(), workflow.EventRequest{
		ProcurementID: id,
		Title:         body.Title,
		EventType:     body.EventType,
		Stage:         body.Stage,
		Details:       body.Details,
		Actor:         body.Actor,
		Category:      body.Category,
		Severity:      body.Severity,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, keyResponse{Key: core.DeriveKey(id, body.Title)})
}
