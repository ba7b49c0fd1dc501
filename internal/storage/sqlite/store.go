package sqlite

import (
	"context"

	"github.com/example/wavefront/internal/domain"
	"github.com/example/wavefront/internal/storage"
)

// Store adapts SQLiteStorage to the narrow scheduler-facing store
// interfaces, opening one transaction per operation.
type Store struct {
	storage storage.Storage
}

// NewStore wraps a Storage with per-operation transactions.
func NewStore(s storage.Storage) *Store {
	return &Store{storage: s}
}

func (s *Store) GetArtifact(ctx context.Context, planID, taskID string) (map[string]any, error) {
	var data map[string]any
	err := s.inTx(ctx, func(uow storage.UnitOfWork) error {
		var err error
		data, err = uow.Artifacts().Get(ctx, planID, taskID)
		return err
	})
	return data, err
}

func (s *Store) PutArtifact(ctx context.Context, planID, taskID string, data map[string]any) error {
	return s.inTx(ctx, func(uow storage.UnitOfWork) error {
		return uow.Artifacts().Put(ctx, planID, taskID, data)
	})
}

func (s *Store) DeleteArtifact(ctx context.Context, planID, taskID string) error {
	return s.inTx(ctx, func(uow storage.UnitOfWork) error {
		return uow.Artifacts().Delete(ctx, planID, taskID)
	})
}

func (s *Store) SaveSnapshot(ctx context.Context, planID string, snap *domain.Snapshot) error {
	return s.inTx(ctx, func(uow storage.UnitOfWork) error {
		return uow.Snapshots().Save(ctx, planID, snap)
	})
}

func (s *Store) LoadSnapshot(ctx context.Context, planID string) (*domain.Snapshot, error) {
	var snap *domain.Snapshot
	err := s.inTx(ctx, func(uow storage.UnitOfWork) error {
		var err error
		snap, err = uow.Snapshots().Get(ctx, planID)
		return err
	})
	return snap, err
}

func (s *Store) SaveValidationReport(ctx context.Context, report *storage.ValidationReport) error {
	return s.inTx(ctx, func(uow storage.UnitOfWork) error {
		return uow.ValidationReports().Save(ctx, report)
	})
}

func (s *Store) inTx(ctx context.Context, fn func(uow storage.UnitOfWork) error) error {
	uow, err := s.storage.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(uow); err != nil {
		uow.Rollback()
		return err
	}
	return uow.Commit()
}
