// Package jobs wires background work through Asynq: the queue client, the
// worker and the task handlers.
package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/thebenmerlin/material-management-api/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDashboardWarmup refreshes the cached dashboard aggregates so the
	// first request after cache expiry does not pay for the aggregation.
	TaskDashboardWarmup = "dashboard:warmup"
)

// DashboardWarmer recomputes and stores the dashboard cache entries.
type DashboardWarmer interface {
	Warm(ctx context.Context) error
}

// NewDashboardWarmupTask constructs the warmup task. It carries no payload.
func NewDashboardWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskDashboardWarmup, nil)
}

// HandleDashboardWarmup returns the handler for TaskDashboardWarmup.
func HandleDashboardWarmup(warmer DashboardWarmer, metrics *jobmetrics.Metrics, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		tracker := metrics.Track(TaskDashboardWarmup)
		err := tracker.End(warmer.Warm(ctx))
		if err != nil {
			logger.Error("dashboard warmup", slog.Any("error", err))
			return err
		}
		logger.Debug("dashboard warmup done")
		return nil
	}
}
