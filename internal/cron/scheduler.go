package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// entry pairs a registered job with the mutex that serializes its runs.
type entry struct {
	job     Job
	running sync.Mutex
}

// Scheduler runs registered jobs on 5-field cron expressions. A tick that
// fires while the previous run of the same job is still in flight is
// skipped, not queued.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]*entry
	order   []string
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// NewScheduler creates an empty scheduler. Register jobs, then Start.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// RegisterJob adds a job. Job names must be unique; registration after
// Start has no effect on the running schedule.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}
	s.entries[name] = &entry{job: j}
	s.order = append(s.order, name)
	return nil
}

// Start validates every schedule expression and begins ticking. A single
// invalid expression fails the whole Start.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	s.cron = cron.New(cron.WithParser(parser))

	for _, name := range s.order {
		e := s.entries[name]
		if _, err := s.cron.AddFunc(e.job.Schedule(), s.tick(ctx, e)); err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", e.job.Name(), err)
		}
	}

	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.order))
	return nil
}

// tick wraps one job run. TryLock makes the skip decision atomic: either
// this tick owns the run or a previous tick still does.
func (s *Scheduler) tick(ctx context.Context, e *entry) func() {
	return func() {
		if !e.running.TryLock() {
			s.logger.Warn("cron: job still running, skipping tick", "job", e.job.Name())
			return
		}
		defer e.running.Unlock()

		if err := e.job.Run(ctx); err != nil {
			s.logger.Error("cron: job failed", "job", e.job.Name(), "error", err)
			return
		}
		s.logger.Debug("cron: job completed", "job", e.job.Name())
	}
}

// Stop cancels the run context and waits for in-flight jobs to finish.
func (s *Scheduler) Stop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.logger.Info("cron: scheduler stopped")
	}
	return nil
}
