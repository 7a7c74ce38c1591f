package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/kdimtricp/clipsearch/internal/models"
)

type ClaimStore interface {
	ClaimNext(ctx context.Context) (*models.PipelineRun, error)
}

// Runner consumes durable ready-to-run markers. Each worker claims one
// pending run at a time, so pipelines for different videos execute
// concurrently while the claim query keeps workers off each other's
// runs and the active-run index keeps any video down to one pipeline.
type Runner struct {
	Claims       ClaimStore
	Orchestrator *Orchestrator
	Workers      int
	PollInterval time.Duration
}

// Start launches the worker goroutines. They exit when ctx is done.
func (r *Runner) Start(ctx context.Context) {
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}
	interval := r.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	log.Printf("Pipeline runner starting with %d worker(s)", workers)
	for i := 0; i < workers; i++ {
		go r.work(ctx, interval)
	}
}

func (r *Runner) work(ctx context.Context, interval time.Duration) {
	for {
		run, err := r.Claims.ClaimNext(ctx)
		if err != nil {
			log.Printf("Failed to claim pipeline run: %v", err)
		} else if run != nil {
			log.Printf("Claimed pipeline run %s (video %s, mode %s)", run.ID, run.VideoID, run.Mode)
			if err := r.Orchestrator.Run(ctx, run); err != nil {
				log.Printf("Pipeline run %s failed: %v", run.ID, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}
