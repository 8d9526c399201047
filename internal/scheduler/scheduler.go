package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

// Refresher re-fetches an upstream feed into the shared cache.
type Refresher interface {
	Refresh(ctx context.Context) ([]byte, error)
}

// Scheduler periodically warms the rolling lightning feed so report requests
// in the recent strategy are served from cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. A nil refresher makes Start a no-op.
func New(refresher Refresher, interval, timeout time.Duration) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scheduler{
		scheduler: s,
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the refresh job, runs it once immediately and starts the
// underlying scheduler.
func (s *Scheduler) Start() error {
	if s.refresher == nil {
		log.Info().Msg("scheduler: no lightning feed configured; nothing to schedule")
		return nil
	}

	minutes := int(s.interval.Minutes())
	if minutes <= 0 {
		minutes = 5
	}

	_, err := s.scheduler.Every(minutes).Minutes().Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	started := time.Now()
	raw, err := s.refresher.Refresh(ctx)
	if err != nil {
		log.Warn().Err(err).Str("source", "lightning").Msg("scheduler: lightning refresh failed")
		return
	}
	log.Debug().Int("bytes", len(raw)).Dur("took", time.Since(started)).Msg("scheduler: lightning feed refreshed")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
