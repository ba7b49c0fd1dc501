package web

import (
	"time"

	"github.com/example/wavefront/internal/domain"
)

// SetGraphRequest is the body for POST /api/execution/graph
type SetGraphRequest struct {
	PlanID string         `json:"planId,omitempty"`
	Tasks  []domain.Task  `json:"tasks"`
	Layout map[string]any `json:"layout"`
}

// SetGraphResponse is the response for POST /api/execution/graph
type SetGraphResponse struct {
	PlanID string `json:"planId"`
	Tasks  int    `json:"tasks"`
}

// RunRequest is the body for POST /api/execution/run
type RunRequest struct {
	ResumeFromTaskID string `json:"resumeFromTaskId,omitempty"`
}

// RetryTaskRequest is the body for POST /api/execution/retry-task
type RetryTaskRequest struct {
	TaskID string `json:"taskId"`
}

// AckResponse is the generic acknowledgement body
type AckResponse struct {
	Status string `json:"status"`
}

// ValidationReportView is one validation attempt in the reports response
type ValidationReportView struct {
	TaskID    string    `json:"taskId"`
	Passed    bool      `json:"passed"`
	Report    string    `json:"report"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReportsResponse is the response for GET /api/execution/reports
type ReportsResponse struct {
	PlanID  string                 `json:"planId"`
	TaskID  string                 `json:"taskId"`
	Reports []ValidationReportView `json:"reports"`
}

// PlanSummary is one plan in the list response
type PlanSummary struct {
	ID        string    `json:"id"`
	Tasks     int       `json:"tasks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListPlansResponse is the response for GET /api/plans
type ListPlansResponse struct {
	Plans []PlanSummary `json:"plans"`
}
