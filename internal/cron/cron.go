// Package cron schedules periodic background work, primarily the flush job
// that persists session history while a long conversation runs.
package cron

import "context"

// Job is one schedulable unit of background work.
type Job interface {
	// Name uniquely identifies the job within a scheduler.
	Name() string

	// Schedule returns a 5-field cron expression, e.g. "*/5 * * * *".
	Schedule() string

	// Run does the work. The context is cancelled when the scheduler
	// stops; long-running jobs should honor it.
	Run(ctx context.Context) error
}
