package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/gatehouse-fm/gatehouse/internal/consistency"
	"github.com/gatehouse-fm/gatehouse/internal/jobmetrics"
)

// ConsistencySweepJob runs a full conflict sweep from the worker.
type ConsistencySweepJob struct {
	Service *consistency.Service
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewConsistencySweepJob initialises the sweep handler.
func NewConsistencySweepJob(service *consistency.Service, logger *slog.Logger, metrics *jobmetrics.Metrics) *ConsistencySweepJob {
	return &ConsistencySweepJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the sweep.
func (j *ConsistencySweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("consistency sweep: handler not configured")
	}
	var payload ConsistencySweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskConsistencySweep)
	summary, err := j.Service.Sweep(ctx)
	if err = tracker.End(err); err != nil {
		if j.Logger != nil {
			j.Logger.Error("consistency sweep failed",
				slog.String("reason", payload.Reason),
				slog.Any("error", err))
		}
		return err
	}

	if j.Logger != nil {
		j.Logger.Info("consistency sweep done",
			slog.String("reason", payload.Reason),
			slog.String("run_id", summary.RunID),
			slog.Int("accounts", summary.AccountsChecked),
			slog.Int("conflicts", summary.ConflictsFound))
	}
	return nil
}
