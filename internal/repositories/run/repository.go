// Package run stores collection run reports in Postgres.
package run

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/jmountifield/graph-cisco-meraki/pkg/database"
	"github.com/jmountifield/graph-cisco-meraki/pkg/metrics"
	"github.com/jmountifield/graph-cisco-meraki/pkg/runner"
	"github.com/jmountifield/graph-cisco-meraki/pkg/tracing"
)

const (
	runsTable  = "runs"
	stepsTable = "run_steps"
)

// RunRepository defines the run history operations
type RunRepository interface {
	Start(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	Finish(ctx context.Context, report *runner.Report, runErr error) error
	Get(ctx context.Context, runID uuid.UUID) (*runner.Report, error)
}

// Repository implements RunRepository
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new run repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

type runRow struct {
	ID            uuid.UUID      `db:"id"`
	Status        string         `db:"status"`
	StartedAt     time.Time      `db:"started_at"`
	FinishedAt    *time.Time     `db:"finished_at"`
	Entities      int            `db:"entities"`
	Relationships int            `db:"relationships"`
	Error         sql.NullString `db:"error"`
}

type stepRow struct {
	RunID      uuid.UUID      `db:"run_id"`
	StepID     string         `db:"step_id"`
	Position   int            `db:"position"`
	Name       string         `db:"name"`
	Status     string         `db:"status"`
	StartedAt  *time.Time     `db:"started_at"`
	FinishedAt *time.Time     `db:"finished_at"`
	DurationMs int64          `db:"duration_ms"`
	Error      sql.NullString `db:"error"`
}

var runColumns = []string{"id", "status", "started_at", "finished_at", "entities", "relationships", "error"}
var stepColumns = []string{"run_id", "step_id", "position", "name", "status", "started_at", "finished_at", "duration_ms", "error"}

// Start records a RUNNING run.
func (r *Repository) Start(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "RunRepository.Start")
	defer span.End()
	defer observe("start", time.Now())

	query, args := insertRunQuery(runRow{ID: runID, Status: string(runner.StatusRunning), StartedAt: startedAt})
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to create run")
		return fmt.Errorf("failed to create run: %w", err)
	}

	r.logger.WithContext(ctx).WithField("run_id", runID.String()).Info("created run")
	return nil
}

// Finish upserts the final run row and every step result in one transaction.
func (r *Repository) Finish(ctx context.Context, report *runner.Report, runErr error) error {
	ctx, span := tracing.StartSpan(ctx, "RunRepository.Finish")
	defer span.End()
	defer observe("finish", time.Now())

	run, steps := toRows(report, runErr)

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query, args := upsertRunQuery(run)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to save run")
		return fmt.Errorf("failed to save run: %w", err)
	}

	if len(steps) > 0 {
		query, args = upsertStepsQuery(steps)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("failed to save run steps")
			return fmt.Errorf("failed to save run steps: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id": report.RunID.String(),
		"status": report.Status,
		"steps":  len(steps),
	}).Info("saved run")
	return nil
}

// Get returns a run report, or a 404 HTTP error when the run does not exist.
func (r *Repository) Get(ctx context.Context, runID uuid.UUID) (*runner.Report, error) {
	ctx, span := tracing.StartSpan(ctx, "RunRepository.Get")
	defer span.End()
	defer observe("get", time.Now())

	query, args := selectRunQuery(runID)

	var run runRow
	if err := r.db.GetContext(ctx, &run, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "run %s not found", runID)
		}
		r.logger.WithContext(ctx).WithError(err).Error("failed to get run")
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	query, args = selectStepsQuery(runID)

	var steps []stepRow
	if err := r.db.SelectContext(ctx, &steps, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get run steps")
		return nil, fmt.Errorf("failed to get run steps: %w", err)
	}

	return fromRows(run, steps), nil
}

func toRows(report *runner.Report, runErr error) (runRow, []stepRow) {
	finished := report.FinishedAt
	run := runRow{
		ID:            report.RunID,
		Status:        string(report.Status),
		StartedAt:     report.StartedAt,
		FinishedAt:    &finished,
		Entities:      report.Entities,
		Relationships: report.Relationships,
	}
	if runErr != nil {
		run.Error = sql.NullString{String: runErr.Error(), Valid: true}
	}

	steps := make([]stepRow, len(report.Steps))
	for i, result := range report.Steps {
		steps[i] = stepRow{
			RunID:      report.RunID,
			StepID:     result.StepID,
			Position:   i,
			Name:       result.Name,
			Status:     string(result.Status),
			StartedAt:  result.StartedAt,
			FinishedAt: result.FinishedAt,
			DurationMs: result.DurationMs,
			Error:      sql.NullString{String: result.Error, Valid: result.Error != ""},
		}
	}
	return run, steps
}

func fromRows(run runRow, steps []stepRow) *runner.Report {
	report := &runner.Report{
		RunID:         run.ID,
		Status:        runner.StepStatus(run.Status),
		StartedAt:     run.StartedAt,
		Entities:      run.Entities,
		Relationships: run.Relationships,
		Steps:         make([]runner.StepResult, len(steps)),
	}
	if run.FinishedAt != nil {
		report.FinishedAt = *run.FinishedAt
	}
	for i, step := range steps {
		report.Steps[i] = runner.StepResult{
			StepID:     step.StepID,
			Name:       step.Name,
			Status:     runner.StepStatus(step.Status),
			StartedAt:  step.StartedAt,
			FinishedAt: step.FinishedAt,
			DurationMs: step.DurationMs,
			Error:      step.Error.String,
		}
	}
	return report
}

func insertRunQuery(run runRow) (string, []any) {
	ib := database.NewInsertBuilder()
	ib.InsertInto(runsTable)
	ib.Cols(runColumns...)
	ib.Values(run.ID, run.Status, run.StartedAt, run.FinishedAt, run.Entities, run.Relationships, run.Error)
	return ib.Build()
}

func upsertRunQuery(run runRow) (string, []any) {
	ib := database.NewInsertBuilder()
	ib.InsertInto(runsTable)
	ib.Cols(runColumns...)
	ib.Values(run.ID, run.Status, run.StartedAt, run.FinishedAt, run.Entities, run.Relationships, run.Error)

	ub := ib.OnConflict("id")
	ub.Set(
		ub.Assign("status", database.Excluded("status")),
		ub.Assign("finished_at", database.Excluded("finished_at")),
		ub.Assign("entities", database.Excluded("entities")),
		ub.Assign("relationships", database.Excluded("relationships")),
		ub.Assign("error", database.Excluded("error")),
	)
	return ib.Build()
}

func upsertStepsQuery(steps []stepRow) (string, []any) {
	ib := database.NewInsertBuilder()
	ib.InsertInto(stepsTable)
	ib.Cols(stepColumns...)
	for _, s := range steps {
		ib.Values(s.RunID, s.StepID, s.Position, s.Name, s.Status, s.StartedAt, s.FinishedAt, s.DurationMs, s.Error)
	}

	ub := ib.OnConflict("run_id", "step_id")
	ub.Set(
		ub.Assign("status", database.Excluded("status")),
		ub.Assign("started_at", database.Excluded("started_at")),
		ub.Assign("finished_at", database.Excluded("finished_at")),
		ub.Assign("duration_ms", database.Excluded("duration_ms")),
		ub.Assign("error", database.Excluded("error")),
	)
	return ib.Build()
}

func selectRunQuery(runID uuid.UUID) (string, []any) {
	sb := database.NewSelectBuilder()
	sb.Select(runColumns...)
	sb.From(runsTable)
	sb.Where(sb.Equal("id", runID))
	return sb.Build()
}

func selectStepsQuery(runID uuid.UUID) (string, []any) {
	sb := database.NewSelectBuilder()
	sb.Select(stepColumns...)
	sb.From(stepsTable)
	sb.Where(sb.Equal("run_id", runID))
	sb.OrderBy("position")
	return sb.Build()
}

func observe(operation string, start time.Time) {
	metrics.RecordDatabaseQuery(operation, time.Since(start).Seconds())
}
