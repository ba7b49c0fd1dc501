package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/wavefront/internal/storage"
)

type validationReportRepo struct {
	tx *sql.Tx
}

func (r *validationReportRepo) Save(ctx context.Context, report *storage.ValidationReport) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO validation_reports (plan_id, task_id, passed, report, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, report.PlanID, report.TaskID, report.Passed, report.Report, report.CreatedAt)
	return err
}

func (r *validationReportRepo) ListForTask(ctx context.Context, planID, taskID string) ([]*storage.ValidationReport, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT plan_id, task_id, passed, report, created_at
		FROM validation_reports
		WHERE plan_id = ? AND task_id = ?
		ORDER BY created_at ASC, id ASC
	`, planID, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*storage.ValidationReport
	for rows.Next() {
		rep := &storage.ValidationReport{}
		if err := rows.Scan(&rep.PlanID, &rep.TaskID, &rep.Passed, &rep.Report, &rep.CreatedAt); err != nil {
			return nil, err
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}
