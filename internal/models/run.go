package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

type PipelineMode string

const (
	// ModeFast extracts frames only.
	ModeFast PipelineMode = "fast"
	// ModeFull runs the whole stage chain through text embedding.
	ModeFull PipelineMode = "full"
)

type StageStatus string

const (
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// StageResult is one entry of the per-run audit trail.
type StageResult struct {
	Stage      string      `json:"stage"`
	Status     StageStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

// PipelineRun is the durable ready-to-run marker consumed by the task
// runner. It doubles as the audit record for the run's stage results.
// LastProgressAt is the liveness signal: a running run whose worker
// stops refreshing it is considered abandoned and swept back to pending.
type PipelineRun struct {
	ID             string        `json:"id"`
	VideoID        string        `json:"video_id"`
	Mode           PipelineMode  `json:"mode"`
	Status         RunStatus     `json:"status"`
	Error          string        `json:"error,omitempty"`
	StageResults   []StageResult `json:"stage_results"`
	CreatedAt      time.Time     `json:"created_at"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	LastProgressAt *time.Time    `json:"last_progress_at,omitempty"`
}

func NewPipelineRun(videoID string, mode PipelineMode) *PipelineRun {
	return &PipelineRun{
		ID:        uuid.New().String(),
		VideoID:   videoID,
		Mode:      mode,
		Status:    RunPending,
		CreatedAt: time.Now(),
	}
}
