package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aretw0/bidtrail/pkg/core"
	"github.com/aretw0/bidtrail/pkg/workflow"
)

// Error codes of the JSON error body.
const (
	CodeValidation       = "VALIDATION_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeActionNotAllowed = "ACTION_NOT_ALLOWED"
	CodeReadOnly         = "READ_ONLY"
	CodeUnsupported      = "UNSUPPORTED"
	CodePartialBatch     = "PARTIAL_BATCH"
	CodeLedger           = "LEDGER_UNAVAILABLE"
	CodeInternal         = "INTERNAL_ERROR"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Step and Completed describe a partially applied write.
	Step       string   `json:"step,omitempty"`
	Completed  []string `json:"completed,omitempty"`
	LedgerCode int      `json:"ledger_code,omitempty"`
}

// classify maps an error to its HTTP status and body.
func classify(err error) (int, errorDetail) {
	detail := errorDetail{Message: err.Error()}

	var pb *core.PartialBatchError
	var te *core.TransportError
	switch {
	case errors.As(err, &pb):
		detail.Code = CodePartialBatch
		detail.Step = pb.Step
		detail.Completed = pb.Completed
		if errors.As(err, &te) {
			detail.LedgerCode = te.Code
		}
		return http.StatusBadGateway, detail
	case errors.As(err, &te):
		detail.Code = CodeLedger
		detail.LedgerCode = te.Code
		return http.StatusBadGateway, detail
	case errors.Is(err, workflow.ErrActionNotAllowed):
		detail.Code = CodeActionNotAllowed
		return http.StatusConflict, detail
	case errors.Is(err, workflow.ErrNotFound):
		detail.Code = CodeNotFound
		return http.StatusNotFound, detail
	case errors.Is(err, workflow.ErrInvalidRequest), errors.Is(err, core.ErrInvalidInput):
		detail.Code = CodeValidation
		return http.StatusBadRequest, detail
	case errors.Is(err, core.ErrReadOnly):
		detail.Code = CodeReadOnly
		return http.StatusForbidden, detail
	case errors.Is(err, workflow.ErrUnsupported):
		detail.Code = CodeUnsupported
		return http.StatusNotImplemented, detail
	}
	detail.Code = CodeInternal
	return http.StatusInternalServerError, detail
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)
	level := slog.LevelInfo
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("code", detail.Code),
		slog.Any("error", err),
	)
	writeJSON(w, status, errorBody{Error: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
