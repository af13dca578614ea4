package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/pdf-splitter/internal/common"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
)

// RunSummary is one row of export_runs.
type RunSummary struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	State      string
	Succeeded  int
	Failed     int
}

// ResultRow is one row of export_results.
type ResultRow struct {
	RunID        uuid.UUID
	Seq          int
	ProfileName  string
	SourcePath   string
	Pages        []int // 1-based
	OutputPath   string
	Success      bool
	ErrorMessage string
	Duration     time.Duration
}

// HistoryRepository records finished export runs.
type HistoryRepository interface {
	RecordRun(ctx context.Context, run entity.ExportRun) error
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	ListResults(ctx context.Context, runID uuid.UUID) ([]ResultRow, error)
	FindByOutput(ctx context.Context, outputPath string) ([]ResultRow, error)
}

type historyRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewHistoryRepository(db *DB, logger *slog.Logger) HistoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &historyRepository{db: db, logger: logger}
}

func (r *historyRepository) RecordRun(ctx context.Context, run entity.ExportRun) error {
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("failed to begin history transaction", "run_id", run.ID, "error", err)
		return common.WrapError(err, "begin history transaction")
	}
	defer func() { _ = tx.Rollback() }()

	ok, failed := run.Tally()
	_, err = tx.ExecContext(ctx, r.db.rebind(
		`INSERT INTO export_runs (id, started_at, finished_at, state, succeeded, failed) VALUES (?, ?, ?, ?, ?, ?)`),
		run.ID.String(), run.StartedAt.UTC(), run.FinishedAt.UTC(), run.State, ok, failed,
	)
	if err != nil {
		r.logger.Error("failed to insert export run", "run_id", run.ID, "error", err)
		return common.WrapError(err, "insert export run")
	}

	insert := r.db.rebind(`INSERT INTO export_results
		(run_id, seq, profile_name, source_path, pages, output_path, success, error_message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, res := range run.Results {
		_, err := tx.ExecContext(ctx, insert,
			run.ID.String(), i+1, res.Job.ProfileName, res.Job.SourcePath, encodePages(res.Job),
			res.Job.OutputPath, res.Success, res.Error, res.Duration.Milliseconds(),
		)
		if err != nil {
			r.logger.Error("failed to insert export result", "run_id", run.ID, "seq", i+1, "error", err)
			return common.WrapError(err, "insert export result")
		}
	}
	if err := tx.Commit(); err != nil {
		return common.WrapError(err, "commit export run")
	}
	r.logger.Debug("export run recorded", "run_id", run.ID, "results", len(run.Results))
	return nil
}

func (r *historyRepository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(
		`SELECT id, started_at, finished_at, state, succeeded, failed
		 FROM export_runs ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		r.logger.Error("failed to list export runs", "error", err)
		return nil, common.WrapError(err, "list export runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			s  RunSummary
			id string
		)
		if err := rows.Scan(&id, &s.StartedAt, &s.FinishedAt, &s.State, &s.Succeeded, &s.Failed); err != nil {
			return nil, err
		}
		if s.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse run id %q: %w", id, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *historyRepository) ListResults(ctx context.Context, runID uuid.UUID) ([]ResultRow, error) {
	return r.queryResults(ctx, `WHERE run_id = ? ORDER BY seq`, runID.String())
}

func (r *historyRepository) FindByOutput(ctx context.Context, outputPath string) ([]ResultRow, error) {
	return r.queryResults(ctx, `WHERE output_path = ? ORDER BY run_id, seq`, outputPath)
}

func (r *historyRepository) queryResults(ctx context.Context, where string, arg any) ([]ResultRow, error) {
	rows, err := r.db.SQL.QueryContext(ctx, r.db.rebind(
		`SELECT run_id, seq, profile_name, source_path, pages, output_path, success, error_message, duration_ms
		 FROM export_results `+where), arg)
	if err != nil {
		r.logger.Error("failed to query export results", "error", err)
		return nil, common.WrapError(err, "query export results")
	}
	defer rows.Close()

	var out []ResultRow
	for rows.Next() {
		var (
			row   ResultRow
			id    string
			pages string
			ms    int64
		)
		if err := rows.Scan(&id, &row.Seq, &row.ProfileName, &row.SourcePath, &pages, &row.OutputPath, &row.Success, &row.ErrorMessage, &ms); err != nil {
			return nil, err
		}
		if row.RunID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse run id %q: %w", id, err)
		}
		row.Pages = decodePages(pages)
		row.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, row)
	}
	return out, rows.Err()
}

// encodePages stores the 1-based page numbers as "1,3".
func encodePages(job entity.ExportJob) string {
	parts := make([]string, 0, len(job.Pages()))
	for _, p := range job.Pages() {
		parts = append(parts, strconv.Itoa(p.PageNumber+1))
	}
	return strings.Join(parts, ",")
}

func decodePages(s string) []int {
	if s == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out = append(out, n)
		}
	}
	return out
}
