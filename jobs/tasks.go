package jobs

import (
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskGrantsIntegrity is the task type for the orphaned-grant scan.
	TaskGrantsIntegrity = "grants:integrity"
)

// NewGrantsIntegrityTask constructs the integrity-scan task. The scan takes
// no parameters; it always covers the whole grant relation.
func NewGrantsIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskGrantsIntegrity, nil)
}
