package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/example/wavefront/internal/domain"
	"github.com/example/wavefront/internal/storage"
)

type planRepo struct {
	tx *sql.Tx
}

func (r *planRepo) Save(ctx context.Context, plan *storage.Plan) error {
	tasksJSON, err := json.Marshal(plan.Tasks)
	if err != nil {
		return err
	}
	layoutJSON, err := json.Marshal(plan.Layout)
	if err != nil {
		return err
	}

	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO plans (id, tasks_json, layout_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tasks_json = excluded.tasks_json,
			layout_json = excluded.layout_json,
			updated_at = excluded.updated_at
	`, plan.ID, string(tasksJSON), string(layoutJSON), plan.CreatedAt, plan.UpdatedAt)
	return err
}

func (r *planRepo) Get(ctx context.Context, id string) (*storage.Plan, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, tasks_json, layout_json, created_at, updated_at
		FROM plans WHERE id = ?
	`, id)

	plan, err := scanPlan(row.Scan)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return plan, err
}

func (r *planRepo) List(ctx context.Context) ([]*storage.Plan, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT id, tasks_json, layout_json, created_at, updated_at
		FROM plans ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*storage.Plan
	for rows.Next() {
		plan, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (r *planRepo) Delete(ctx context.Context, id string) error {
	result, err := r.tx.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func scanPlan(scan func(dest ...any) error) (*storage.Plan, error) {
	plan := &storage.Plan{}
	var tasksJSON string
	var layoutJSON sql.NullString

	err := scan(&plan.ID, &tasksJSON, &layoutJSON, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tasksJSON), &plan.Tasks); err != nil {
		return nil, err
	}
	if layoutJSON.Valid && layoutJSON.String != "" {
		if err := json.Unmarshal([]byte(layoutJSON.String), &plan.Layout); err != nil {
			return nil, err
		}
	}

	return plan, nil
}
