package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskConsistencySweep is the task type for full-account conflict sweeps.
	TaskConsistencySweep = "consistency:sweep"
)

// ConsistencySweepPayload parametrises a sweep task. Reason records what
// triggered the sweep (cron, api, cli) for the job log.
type ConsistencySweepPayload struct {
	Reason string `json:"reason"`
}

// NewConsistencySweepTask constructs an Asynq task for a sweep.
func NewConsistencySweepTask(payload ConsistencySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConsistencySweep, data), nil
}
