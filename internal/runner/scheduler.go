package runner

import (
	"context"
	"log"
	"time"

	"github.com/rahul/postsync/internal/pipeline"
)

// Scheduler re-submits a sync run on a fixed interval, independent of
// user-triggered runs. Ticks that land while a run is active are
// dropped; the next tick tries again.
type Scheduler struct {
	Runner   *Runner
	Interval time.Duration
}

func NewScheduler(r *Runner, interval time.Duration) *Scheduler {
	return &Scheduler{
		Runner:   r,
		Interval: interval,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Println("Sync scheduler started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	if _, err := s.Runner.Submit(ctx, "timer"); err != nil {
		if pipeline.IsBusy(err) {
			return
		}
		log.Printf("Error starting scheduled sync: %v", err)
	}
}
