package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kdimtricp/clipsearch/internal/models"
)

// ErrRunActive is returned when a pipeline run is enqueued for a video
// that already has a pending or running one.
var ErrRunActive = errors.New("a pipeline run is already active for this video")

type PipelineRunRepository struct {
	db *DB
}

func NewPipelineRunRepository(db *DB) *PipelineRunRepository {
	return &PipelineRunRepository{db: db}
}

const runColumns = `id, video_id, mode, status, error, stage_results,
	created_at, started_at, finished_at, last_progress_at`

// Enqueue writes a durable ready-to-run marker. The partial unique index
// on active runs turns a concurrent second trigger for the same video
// into ErrRunActive instead of a racing pipeline.
func (r *PipelineRunRepository) Enqueue(ctx context.Context, videoID string, mode models.PipelineMode) (*models.PipelineRun, error) {
	run := models.NewPipelineRun(videoID, mode)

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO pipeline_runs (id, video_id, mode, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.VideoID, run.Mode, run.Status, run.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrRunActive
		}
		return nil, fmt.Errorf("failed to enqueue pipeline run: %w", err)
	}
	return run, nil
}

// ClaimNext atomically claims the oldest pending run and marks it
// running. Returns (nil, nil) when nothing is pending. Concurrent
// claimers skip each other's locked rows.
func (r *PipelineRunRepository) ClaimNext(ctx context.Context) (*models.PipelineRun, error) {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		SELECT `+runColumns+`
		FROM pipeline_runs
		WHERE status = 'pending'
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE SKIP LOCKED`)

	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim pipeline run: %w", err)
	}

	now := time.Now()
	if _, err := tx.Exec(ctx, `
		UPDATE pipeline_runs
		SET status = 'running', started_at = $2, last_progress_at = $2
		WHERE id = $1`,
		run.ID, now); err != nil {
		return nil, fmt.Errorf("failed to mark run running: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	run.Status = models.RunRunning
	run.StartedAt = &now
	run.LastProgressAt = &now
	return run, nil
}

// Touch refreshes the run's liveness timestamp so the stale sweep leaves
// it alone while its worker is still making progress. A no-op once the
// run is no longer running.
func (r *PipelineRunRepository) Touch(ctx context.Context, runID string) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE pipeline_runs
		SET last_progress_at = NOW()
		WHERE id = $1 AND status = 'running'`, runID)
	if err != nil {
		return fmt.Errorf("failed to record run progress: %w", err)
	}
	return nil
}

// SaveStageResults replaces the run's audit trail with the results so
// far. The orchestrator calls this after every stage.
func (r *PipelineRunRepository) SaveStageResults(ctx context.Context, runID string, results []models.StageResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal stage results: %w", err)
	}

	_, err = r.db.pool.Exec(ctx, `
		UPDATE pipeline_runs
		SET stage_results = $2, last_progress_at = NOW()
		WHERE id = $1 AND status = 'running'`, runID, data)
	if err != nil {
		return fmt.Errorf("failed to save stage results: %w", err)
	}
	return nil
}

// Complete finalizes a running run. The status guard keeps a worker
// whose claim was swept away (and possibly reassigned) from overwriting
// the outcome of the run's current owner.
func (r *PipelineRunRepository) Complete(ctx context.Context, runID string, status models.RunStatus, errMsg string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE pipeline_runs
		SET status = $2, error = $3, finished_at = $4
		WHERE id = $1 AND status = 'running'`,
		runID, status, errMsg, time.Now())
	if err != nil {
		return fmt.Errorf("failed to complete pipeline run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("no running pipeline run %s: %w", runID, ErrNotFound)
	}
	return nil
}

// RequeueStale puts abandoned runs back to pending so a crash
// mid-pipeline does not strand its video in processing forever. The
// predicate is progress age, not claim age: a healthy worker keeps
// refreshing last_progress_at however long its stages take, so a live
// run is never requeued out from under it.
func (r *PipelineRunRepository) RequeueStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE pipeline_runs
		SET status = 'pending', started_at = NULL, last_progress_at = NULL
		WHERE status = 'running' AND last_progress_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue stale runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PipelineRunRepository) ListByVideoID(ctx context.Context, videoID string) ([]models.PipelineRun, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM pipeline_runs
		WHERE video_id = $1
		ORDER BY created_at DESC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []models.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*models.PipelineRun, error) {
	run := &models.PipelineRun{}
	var resultsJSON []byte

	err := row.Scan(
		&run.ID,
		&run.VideoID,
		&run.Mode,
		&run.Status,
		&run.Error,
		&resultsJSON,
		&run.CreatedAt,
		&run.StartedAt,
		&run.FinishedAt,
		&run.LastProgressAt,
	)
	if err != nil {
		return nil, err
	}

	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &run.StageResults); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stage results: %w", err)
		}
	}
	return run, nil
}
