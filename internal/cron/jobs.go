package cron

import (
	"context"
	"log/slog"

	"github.com/troupelabs/troupe/internal/history"
)

// HistoryFlusher is the subset of the session manager needed by the flush
// job. Defined here to avoid a dependency on the session package.
type HistoryFlusher interface {
	FlushAll(ctx context.Context, rec history.Recorder, destination string) error
}

// HistoryFlushJob periodically persists every session's unflushed turns.
// A flush failure leaves the affected session's history in memory; the next
// tick retries it.
type HistoryFlushJob struct {
	Manager      HistoryFlusher
	Recorder     history.Recorder
	Destination  string
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*HistoryFlushJob)(nil)

// Name implements Job.
func (j *HistoryFlushJob) Name() string {
	return "history_flush:" + j.Destination
}

// Schedule implements Job.
func (j *HistoryFlushJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run flushes all sessions to the recorder.
func (j *HistoryFlushJob) Run(ctx context.Context) error {
	if err := j.Manager.FlushAll(ctx, j.Recorder, j.Destination); err != nil {
		return err
	}
	j.Logger.Debug("cron: history flushed", "destination", j.Destination)
	return nil
}
