package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/example/wavefront/internal/domain"
)

type snapshotRepo struct {
	tx *sql.Tx
}

func (r *snapshotRepo) Save(ctx context.Context, planID string, snap *domain.Snapshot) error {
	tasksJSON, err := json.Marshal(snap.Tasks)
	if err != nil {
		return err
	}

	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO snapshots (plan_id, tasks_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(plan_id) DO UPDATE SET
			tasks_json = excluded.tasks_json,
			updated_at = excluded.updated_at
	`, planID, string(tasksJSON), time.Now().UTC())
	return err
}

func (r *snapshotRepo) Get(ctx context.Context, planID string) (*domain.Snapshot, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT tasks_json FROM snapshots WHERE plan_id = ?
	`, planID)

	var tasksJSON string
	err := row.Scan(&tasksJSON)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{}
	if err := json.Unmarshal([]byte(tasksJSON), &snap.Tasks); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *snapshotRepo) Delete(ctx context.Context, planID string) error {
	_, err := r.tx.ExecContext(ctx, `DELETE FROM snapshots WHERE plan_id = ?`, planID)
	return err
}
