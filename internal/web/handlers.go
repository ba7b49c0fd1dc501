package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/wavefront/internal/domain"
	"github.com/example/wavefront/internal/events"
	"github.com/example/wavefront/internal/scheduler"
	"github.com/example/wavefront/internal/storage"
)

// Handlers contains HTTP handlers for the control API
type Handlers struct {
	scheduler   *scheduler.Scheduler
	storage     storage.Storage
	broadcaster *events.Broadcaster
	logger      *slog.Logger
}

// NewHandlers creates new API handlers
func NewHandlers(sched *scheduler.Scheduler, store storage.Storage, broadcaster *events.Broadcaster, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		scheduler:   sched,
		storage:     store,
		broadcaster: broadcaster,
		logger:      logger.With("component", "web"),
	}
}

// SetGraph handles POST /api/execution/graph
func (h *Handlers) SetGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SetGraphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Tasks) == 0 {
		http.Error(w, "tasks are required", http.StatusBadRequest)
		return
	}

	planID, err := h.scheduler.SetGraph(req.Tasks, domain.Layout(req.Layout), req.PlanID)
	if err != nil {
		writeSchedulerError(w, err)
		return
	}

	// Persist the plan so resumed runs and report queries survive restarts.
	ctx := r.Context()
	uow, err := h.storage.Begin(ctx)
	if err != nil {
		http.Error(w, "Failed to begin transaction: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer uow.Rollback()

	now := time.Now().UTC()
	plan := &storage.Plan{
		ID:        planID,
		Tasks:     req.Tasks,
		Layout:    domain.Layout(req.Layout),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uow.Plans().Save(ctx, plan); err != nil {
		http.Error(w, "Failed to save plan: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if err := uow.Commit(); err != nil {
		http.Error(w, "Failed to commit: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, SetGraphResponse{PlanID: planID, Tasks: len(req.Tasks)})
}

// Run handles POST /api/execution/run
func (h *Handlers) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	err := h.scheduler.Start(r.Context(), scheduler.StartOptions{
		ResumeFromTaskID: req.ResumeFromTaskID,
	})
	if err != nil {
		writeSchedulerError(w, err)
		return
	}
	writeJSON(w, AckResponse{Status: "started"})
}

// Stop handles POST /api/execution/stop
func (h *Handlers) Stop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := h.scheduler.Stop(); err != nil {
		writeSchedulerError(w, err)
		return
	}
	writeJSON(w, AckResponse{Status: "stopping"})
}

// RetryTask handles POST /api/execution/retry-task. On an active run the
// task is requeued in place; on an idle scheduler a new run starts resumed
// from the task, so prior progress outside its closure is kept.
func (h *Handlers) RetryTask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RetryTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.TaskID == "" {
		http.Error(w, "taskId is required", http.StatusBadRequest)
		return
	}

	err := h.scheduler.RetryTask(req.TaskID)
	if errors.Is(err, domain.ErrRunNotActive) {
		err = h.scheduler.Start(r.Context(), scheduler.StartOptions{
			ResumeFromTaskID: req.TaskID,
		})
	}
	if err != nil {
		writeSchedulerError(w, err)
		return
	}
	writeJSON(w, AckResponse{Status: "retrying"})
}

// Status handles GET /api/execution/status
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.scheduler.Status())
}

// Reports handles GET /api/execution/reports?planId=&taskId=
func (h *Handlers) Reports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	planID := r.URL.Query().Get("planId")
	taskID := r.URL.Query().Get("taskId")
	if planID == "" {
		planID = h.scheduler.Status().PlanID
	}
	if planID == "" || taskID == "" {
		http.Error(w, "planId and taskId are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	uow, err := h.storage.Begin(ctx)
	if err != nil {
		http.Error(w, "Failed to begin transaction: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer uow.Rollback()

	reports, err := uow.ValidationReports().ListForTask(ctx, planID, taskID)
	if err != nil {
		http.Error(w, "Failed to list reports: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := ReportsResponse{PlanID: planID, TaskID: taskID, Reports: make([]ValidationReportView, 0, len(reports))}
	for _, rep := range reports {
		resp.Reports = append(resp.Reports, ValidationReportView{
			TaskID:    rep.TaskID,
			Passed:    rep.Passed,
			Report:    rep.Report,
			CreatedAt: rep.CreatedAt,
		})
	}
	writeJSON(w, resp)
}

// ListPlans handles GET /api/plans
func (h *Handlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	uow, err := h.storage.Begin(ctx)
	if err != nil {
		http.Error(w, "Failed to begin transaction: "+err.Error(), http.StatusInternalServerError)
		return
	}
	defer uow.Rollback()

	plans, err := uow.Plans().List(ctx)
	if err != nil {
		http.Error(w, "Failed to list plans: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := ListPlansResponse{Plans: make([]PlanSummary, 0, len(plans))}
	for _, p := range plans {
		resp.Plans = append(resp.Plans, PlanSummary{
			ID:        p.ID,
			Tasks:     len(p.Tasks),
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}
	writeJSON(w, resp)
}

// Events handles GET /api/execution/events as a server-sent event stream.
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case ev := <-sub.Events:
			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Warn("event marshal failed", "event", ev.Name, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeSchedulerError maps domain errors onto HTTP statuses.
func writeSchedulerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRunActive):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrRunNotActive),
		errors.Is(err, domain.ErrNoGraph),
		errors.Is(err, domain.ErrNoLayout),
		errors.Is(err, domain.ErrNotRetryable):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
