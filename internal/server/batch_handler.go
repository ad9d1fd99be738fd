package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/affmigrate/internal/batch"
	"github.com/desertthunder/affmigrate/internal/formatter"
	"github.com/desertthunder/affmigrate/internal/progress"
	"github.com/desertthunder/affmigrate/internal/shared"
	"github.com/desertthunder/affmigrate/internal/tasks"
)

// StepRequest is the body of POST /batch/{id}/step.
type StepRequest struct {
	Step  batch.Step `json:"step"`
	Roles []string   `json:"roles,omitempty"`
}

// StepResponse reports the step to request next and the counts after this one.
type StepResponse struct {
	Step     batch.Step `json:"step"`
	Migrated int64      `json:"migrated"`
	Total    int64      `json:"total"`
	Percent  float64    `json:"percent"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BatchHandler serves the step and progress endpoints for every registered batch.
type BatchHandler struct {
	registry     *batch.Registry
	deps         batch.Deps
	defaultRoles []string
	logger       *log.Logger
}

// NewBatchHandler creates a BatchHandler. defaultRoles apply when a step request names none.
func NewBatchHandler(registry *batch.Registry, deps batch.Deps, defaultRoles []string, logger *log.Logger) *BatchHandler {
	return &BatchHandler{registry: registry, deps: deps, defaultRoles: defaultRoles, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *BatchHandler) Routes() []string {
	return []string{"POST /batch/{id}/step", "GET /batch/{id}/progress"}
}

func (h *BatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/step"):
		h.step(w, r)
	case strings.HasSuffix(r.URL.Path, "/progress"):
		h.progress(w, r)
	default:
		writeError(w, http.StatusNotFound, "not_found", "not found")
	}
}

func (h *BatchHandler) step(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	proc, err := h.registry.New(r.PathValue("id"), h.deps)
	if err != nil {
		h.fail(w, err)
		return
	}

	var req StepRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.fail(w, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err))
		return
	}

	cfg := &batch.Config{Roles: req.Roles}
	if len(cfg.Roles) == 0 {
		cfg.Roles = h.defaultRoles
	}
	if err := cfg.Validate(); err != nil {
		h.fail(w, err)
		return
	}
	if err := proc.Init(cfg); err != nil {
		h.fail(w, err)
		return
	}

	if !proc.CanProcess(ctx) {
		h.fail(w, fmt.Errorf("%w: cannot run %s", shared.ErrPermissionDenied, proc.ID()))
		return
	}

	if req.Step == 1 {
		if err := proc.PreFetch(ctx); err != nil {
			h.fail(w, err)
			return
		}
	}

	next, err := proc.ProcessStep(ctx, req.Step)
	if err != nil {
		h.fail(w, err)
		return
	}

	rec, err := progress.NewTracker(h.deps.Store, proc.ID()).Load(ctx)
	if err != nil {
		h.fail(w, err)
		return
	}

	if next.IsDone() && req.Step != batch.Done {
		if err := proc.Finish(ctx); err != nil {
			h.fail(w, err)
			return
		}
		h.logger.Info("batch finished", "batch", proc.ID(), "migrated", rec.MigratedCount, "total", rec.TotalCount)
	}

	writeJSON(w, http.StatusOK, StepResponse{
		Step:     next,
		Migrated: rec.MigratedCount,
		Total:    rec.TotalCount,
		Percent:  rec.Percent(),
	})
}

func (h *BatchHandler) progress(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.registry.New(id, h.deps); err != nil {
		h.fail(w, err)
		return
	}

	rec, err := progress.NewTracker(h.deps.Store, id).Load(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}

	next := tasks.ResumeStep(rec.MigratedCount).String()
	writeJSON(w, http.StatusOK, formatter.NewStatusReport(id, nil, rec, next))
}

func (h *BatchHandler) fail(w http.ResponseWriter, err error) {
	code := batch.ErrorCode(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		h.logger.Error("batch request failed", "error", err)
	}

	message := err.Error()
	if errors.Is(err, shared.ErrNoRolesFound) {
		message = "No user roles were selected for migration."
	}
	writeError(w, status, code, message)
}

func statusFor(code string) int {
	switch code {
	case batch.CodeNoRolesFound, batch.CodeInvalidArgument:
		return http.StatusBadRequest
	case batch.CodePermissionDenied:
		return http.StatusForbidden
	case batch.CodeUnknownBatch:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
