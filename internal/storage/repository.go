// Package storage defines the persistence contracts for plans, snapshots,
// task artifacts, and validation reports.
package storage

import (
	"context"
	"time"

	"github.com/example/wavefront/internal/domain"
)

// Plan is a stored execution plan: the task graph plus its visual layout.
type Plan struct {
	ID        string
	Tasks     []domain.Task
	Layout    domain.Layout
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ValidationReport records the outcome of one validation attempt.
type ValidationReport struct {
	PlanID    string
	TaskID    string
	Passed    bool
	Report    string
	CreatedAt time.Time
}

// PlanRepository manages stored plans.
type PlanRepository interface {
	Save(ctx context.Context, plan *Plan) error
	Get(ctx context.Context, id string) (*Plan, error)
	List(ctx context.Context) ([]*Plan, error)
	Delete(ctx context.Context, id string) error
}

// SnapshotRepository persists the durable run state of a plan. Save replaces
// the whole snapshot atomically.
type SnapshotRepository interface {
	Save(ctx context.Context, planID string, snap *domain.Snapshot) error
	Get(ctx context.Context, planID string) (*domain.Snapshot, error)
	Delete(ctx context.Context, planID string) error
}

// ArtifactRepository stores task outputs keyed by plan and task.
type ArtifactRepository interface {
	Put(ctx context.Context, planID, taskID string, data map[string]any) error
	Get(ctx context.Context, planID, taskID string) (map[string]any, error)
	Delete(ctx context.Context, planID, taskID string) error
}

// ValidationReportRepository stores validation outcomes.
type ValidationReportRepository interface {
	Save(ctx context.Context, report *ValidationReport) error
	ListForTask(ctx context.Context, planID, taskID string) ([]*ValidationReport, error)
}

// UnitOfWork groups repository operations into one transaction.
type UnitOfWork interface {
	Plans() PlanRepository
	Snapshots() SnapshotRepository
	Artifacts() ArtifactRepository
	ValidationReports() ValidationReportRepository
	Commit() error
	Rollback() error
}

// Storage opens units of work against a backing store.
type Storage interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Migrate(ctx context.Context) error
	Close() error
}

// ArtifactStore is the narrow artifact interface the scheduler and executors
// depend on. Get returns (nil, nil) when no artifact exists.
type ArtifactStore interface {
	GetArtifact(ctx context.Context, planID, taskID string) (map[string]any, error)
	PutArtifact(ctx context.Context, planID, taskID string, data map[string]any) error
	DeleteArtifact(ctx context.Context, planID, taskID string) error
}

// SnapshotStore is the scheduler-facing snapshot interface.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, planID string, snap *domain.Snapshot) error
	LoadSnapshot(ctx context.Context, planID string) (*domain.Snapshot, error)
}

// ValidationReportStore records validation outcomes from the scheduler.
type ValidationReportStore interface {
	SaveValidationReport(ctx context.Context, report *ValidationReport) error
}
