package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/odvcencio/weblens/pkg/report"
)

// ReportSummary is the listing view of a stored report: enough to
// render a history table without decoding the full JSON.
type ReportSummary struct {
	RunID        string    `json:"run_id"`
	FlowName     string    `json:"flow_name,omitempty"`
	ScenarioName string    `json:"scenario_name,omitempty"`
	Success      bool      `json:"success"`
	StartedAt    time.Time `json:"started_at"`
	DurationMS   float64   `json:"duration_ms"`
	ErrorSummary string    `json:"error_summary,omitempty"`
}

// SaveReport upserts a report keyed by run id.
func (s *Store) SaveReport(ctx context.Context, r *report.ExecutionReport) error {
	if r == nil || r.RunID == "" {
		return fmt.Errorf("storage: report must have a run id")
	}

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("storage: encode report: %w", err)
	}

	errorSummary := ""
	if r.Error != nil {
		errorSummary = r.Error.Title
	}

	query := `
		INSERT INTO execution_reports
			(run_id, flow_name, scenario_name, success, started_at, finished_at, duration_ms, error_summary, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			flow_name     = excluded.flow_name,
			scenario_name = excluded.scenario_name,
			success       = excluded.success,
			started_at    = excluded.started_at,
			finished_at   = excluded.finished_at,
			duration_ms   = excluded.duration_ms,
			error_summary = excluded.error_summary,
			report_json   = excluded.report_json
	`
	return withBusyRetry(func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			r.RunID,
			r.FlowName,
			r.ScenarioName,
			r.Success,
			r.StartedAt,
			r.FinishedAt,
			r.DurationMS,
			errorSummary,
			string(payload),
		)
		return execErr
	})
}

// GetReport fetches the full report for a run.
func (s *Store) GetReport(ctx context.Context, runID string) (*report.ExecutionReport, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT report_json FROM execution_reports WHERE run_id = ?`, runID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: fetch report: %w", err)
	}

	var r report.ExecutionReport
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("storage: decode report %s: %w", runID, err)
	}
	return &r, nil
}

// ListReports returns summaries, newest first. limit <= 0 means all.
func (s *Store) ListReports(ctx context.Context, limit int) ([]ReportSummary, error) {
	query := `
		SELECT run_id, flow_name, scenario_name, success, started_at, duration_ms, error_summary
		FROM execution_reports
		ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list reports: %w", err)
	}
	defer rows.Close()

	var out []ReportSummary
	for rows.Next() {
		var sum ReportSummary
		var startedAt sql.NullTime
		var errorSummary sql.NullString
		if err := rows.Scan(&sum.RunID, &sum.FlowName, &sum.ScenarioName, &sum.Success,
			&startedAt, &sum.DurationMS, &errorSummary); err != nil {
			return nil, fmt.Errorf("storage: scan report row: %w", err)
		}
		if startedAt.Valid {
			sum.StartedAt = startedAt.Time
		}
		sum.ErrorSummary = errorSummary.String
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteReport removes one report. Deleting a missing run id is not an
// error.
func (s *Store) DeleteReport(ctx context.Context, runID string) error {
	return withBusyRetry(func() error {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM execution_reports WHERE run_id = ?`, runID)
		return err
	})
}

// ClearReports removes every stored report.
func (s *Store) ClearReports(ctx context.Context) error {
	return withBusyRetry(func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM execution_reports`)
		return err
	})
}
