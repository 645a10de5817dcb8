package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/usergate/usergate/internal/jobs"
)

// Purger removes soft-deleted users older than retention.
type Purger interface {
	PurgeDeleted(ctx context.Context, retention time.Duration) (int64, error)
}

// PurgeDeletedJob hard-deletes users whose soft deletion is older than the
// retention window.
type PurgeDeletedJob struct {
	Users     Purger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewPurgeDeletedJob wires dependencies for the purge handler.
func NewPurgeDeletedJob(users Purger, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *PurgeDeletedJob {
	return &PurgeDeletedJob{Users: users, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle processes TaskPurgeDeletedUsers tasks.
func (j *PurgeDeletedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Users == nil {
		return errors.New("purge deleted users: handler not configured")
	}
	tracker := j.Metrics.Track(TaskPurgeDeletedUsers)
	defer func() { err = tracker.End(err) }()

	var payload PurgeDeletedPayload
	if len(t.Payload()) > 0 {
		if jsonErr := json.Unmarshal(t.Payload(), &payload); jsonErr != nil {
			return fmt.Errorf("purge deleted users: decode payload: %v: %w", jsonErr, asynq.SkipRetry)
		}
	}
	retention := payload.Retention
	if retention <= 0 {
		retention = j.Retention
	}
	if retention <= 0 {
		return fmt.Errorf("purge deleted users: no retention configured: %w", asynq.SkipRetry)
	}

	logger := j.logger().With(slog.Duration("retention", retention))
	purged, err := j.Users.PurgeDeleted(ctx, retention)
	if err != nil {
		logger.Error("purge deleted users", slog.Any("error", err))
		return err
	}
	j.Metrics.AddPurged(purged)
	logger.Info("purged deleted users", slog.Int64("count", purged))
	return nil
}

func (j *PurgeDeletedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
