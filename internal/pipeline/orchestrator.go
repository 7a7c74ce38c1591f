// Package pipeline drives one video through an ordered chain of
// derivation stages and records the outcome of every stage on the run
// that triggered it.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kdimtricp/clipsearch/internal/ai"
	"github.com/kdimtricp/clipsearch/internal/models"
	"github.com/kdimtricp/clipsearch/internal/sampler"
)

// ValidationError means a stage was invoked before its prerequisite data
// exists, e.g. analyzing a transcript that was never produced.
type ValidationError struct {
	Stage  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Reason)
}

// VideoStore is the slice of the video repository the orchestrator
// needs. Step flags are monotonic: MarkStep only ever sets true.
type VideoStore interface {
	GetVideoByID(ctx context.Context, id string) (*models.Video, error)
	SetStatus(ctx context.Context, id string, status models.VideoStatus) error
	SetDuration(ctx context.Context, id string, seconds float64) error
	MarkStep(ctx context.Context, id string, step models.Step) error
	SaveTranscript(ctx context.Context, id string, transcript string) error
	SaveTranscriptAnalysis(ctx context.Context, id string, analysis *models.KeywordAnalysis) error
	SaveVisualAnalysis(ctx context.Context, id string, analysis *models.KeywordAnalysis) error
	SaveTextEmbeddings(ctx context.Context, id string, transcriptVec, summaryVec []float32) error
}

type FrameStore interface {
	InsertFrames(ctx context.Context, frames []models.Frame) error
	ListUnanalyzed(ctx context.Context, videoID string) ([]models.Frame, error)
	SaveFrameAnalysis(ctx context.Context, frameID, description string, keywords []string, imageVec, keywordsVec []float32) error
}

type RunStore interface {
	SaveStageResults(ctx context.Context, runID string, results []models.StageResult) error
	Complete(ctx context.Context, runID string, status models.RunStatus, errMsg string) error
	Touch(ctx context.Context, runID string) error
}

type BlobStore interface {
	SaveBytes(data []byte, ext string) (string, error)
	ReadBytes(name string) ([]byte, error)
	Path(name string) (string, error)
}

// Orchestrator runs the stage chain for one claimed pipeline run.
// Stages execute strictly in order; the first error aborts the chain,
// already-persisted artifacts stay in place, and the video ends Failed.
type Orchestrator struct {
	Videos      VideoStore
	Frames      FrameStore
	Runs        RunStore
	Blobs       BlobStore
	Sampler     sampler.FrameSampler
	Transcriber ai.Transcriber
	Analyzer    ai.TextAnalyzer
	Vision      ai.VisionDescriber
	Embedder    ai.Embedder

	// FrameInterval is the sampling grid spacing in seconds.
	FrameInterval float64
	// EmbedDelay is the fixed inter-call delay inserted between
	// per-frame collaborator calls as rate-limit backpressure.
	EmbedDelay time.Duration
	// Heartbeat is how often a running pipeline refreshes its run's
	// liveness timestamp. Must stay well under the stale-run deadline.
	Heartbeat time.Duration
}

const defaultHeartbeat = 30 * time.Second

type stage struct {
	name string
	run  func(ctx context.Context, video *models.Video) error
}

func (o *Orchestrator) stagesFor(mode models.PipelineMode) []stage {
	extract := stage{"extract_frames", o.extractFrames}
	if mode == models.ModeFast {
		return []stage{extract}
	}
	return []stage{
		extract,
		{"transcribe", o.transcribe},
		{"analyze_transcript", o.analyzeTranscript},
		{"analyze_frames", o.analyzeFrames},
		{"embed_text", o.embedText},
	}
}

// Run executes the run's stage chain. The returned error reflects the
// first failing stage; the run and video records are already finalized
// when it returns.
func (o *Orchestrator) Run(ctx context.Context, run *models.PipelineRun) error {
	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go o.heartbeat(heartbeatCtx, run.ID)

	video, err := o.Videos.GetVideoByID(ctx, run.VideoID)
	if err != nil {
		failErr := fmt.Errorf("load video: %w", err)
		if completeErr := o.Runs.Complete(ctx, run.ID, models.RunFailed, failErr.Error()); completeErr != nil {
			log.Printf("pipeline %s: failed to finalize run: %v", run.ID, completeErr)
		}
		return failErr
	}

	if err := o.Videos.SetStatus(ctx, video.ID, models.StatusProcessing); err != nil {
		failErr := fmt.Errorf("set processing status: %w", err)
		if completeErr := o.Runs.Complete(ctx, run.ID, models.RunFailed, failErr.Error()); completeErr != nil {
			log.Printf("pipeline %s: failed to finalize run: %v", run.ID, completeErr)
		}
		return failErr
	}

	stages := o.stagesFor(run.Mode)
	results := make([]models.StageResult, 0, len(stages))

	for _, st := range stages {
		started := time.Now()
		stageErr := st.run(ctx, video)

		result := models.StageResult{
			Stage:      st.name,
			Status:     models.StageCompleted,
			DurationMs: time.Since(started).Milliseconds(),
		}
		if stageErr != nil {
			result.Status = models.StageFailed
			result.Error = stageErr.Error()
		}
		results = append(results, result)

		if err := o.Runs.SaveStageResults(ctx, run.ID, results); err != nil {
			log.Printf("pipeline %s: failed to save stage results: %v", run.ID, err)
		}

		if stageErr != nil {
			log.Printf("pipeline %s: stage %s failed: %v", run.ID, st.name, stageErr)
			if err := o.Videos.SetStatus(ctx, video.ID, models.StatusFailed); err != nil {
				log.Printf("pipeline %s: failed to set failed status: %v", run.ID, err)
			}
			if err := o.Runs.Complete(ctx, run.ID, models.RunFailed,
				fmt.Sprintf("stage %s: %v", st.name, stageErr)); err != nil {
				log.Printf("pipeline %s: failed to finalize run: %v", run.ID, err)
			}
			return fmt.Errorf("stage %s: %w", st.name, stageErr)
		}

		log.Printf("pipeline %s: stage %s completed in %dms", run.ID, st.name, result.DurationMs)
	}

	if err := o.Videos.SetStatus(ctx, video.ID, models.StatusReady); err != nil {
		return fmt.Errorf("set ready status: %w", err)
	}
	if err := o.Runs.Complete(ctx, run.ID, models.RunCompleted, ""); err != nil {
		log.Printf("pipeline %s: failed to finalize run: %v", run.ID, err)
	}
	return nil
}

// heartbeat refreshes the run's liveness timestamp until the run
// finishes. Long stages (hundreds of frames through analyze_frames)
// produce no stage-result writes for a long time; without this the
// stale sweep would requeue a run whose worker is perfectly healthy.
func (o *Orchestrator) heartbeat(ctx context.Context, runID string) {
	interval := o.Heartbeat
	if interval <= 0 {
		interval = defaultHeartbeat
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.Runs.Touch(ctx, runID); err != nil {
				log.Printf("pipeline %s: failed to record progress: %v", runID, err)
			}
		}
	}
}
