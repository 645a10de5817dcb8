package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPurgeDeletedUsers permanently removes users soft-deleted longer
	// than the retention period.
	TaskPurgeDeletedUsers = "users:purge_deleted"
)

// PurgeDeletedPayload describes one purge run. A zero Retention means the
// job's configured default.
type PurgeDeletedPayload struct {
	Retention time.Duration `json:"retention,omitempty"`
}

// NewPurgeDeletedTask constructs an Asynq task.
func NewPurgeDeletedTask(payload PurgeDeletedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPurgeDeletedUsers, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}
