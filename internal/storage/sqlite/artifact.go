package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

type artifactRepo struct {
	tx *sql.Tx
}

func (r *artifactRepo) Put(ctx context.Context, planID, taskID string, data map[string]any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO artifacts (plan_id, task_id, data_json, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(plan_id, task_id) DO UPDATE SET
			data_json = excluded.data_json,
			created_at = excluded.created_at
	`, planID, taskID, string(dataJSON), time.Now().UTC())
	return err
}

// Get returns (nil, nil) when no artifact exists for the task.
func (r *artifactRepo) Get(ctx context.Context, planID, taskID string) (map[string]any, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT data_json FROM artifacts WHERE plan_id = ? AND task_id = ?
	`, planID, taskID)

	var dataJSON string
	err := row.Scan(&dataJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (r *artifactRepo) Delete(ctx context.Context, planID, taskID string) error {
	_, err := r.tx.ExecContext(ctx, `
		DELETE FROM artifacts WHERE plan_id = ? AND task_id = ?
	`, planID, taskID)
	return err
}
