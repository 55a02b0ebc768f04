package task

import (
	"context"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/repository"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"go.uber.org/zap"
)

// Queue enqueues jobs through the job table and wakes workers once the
// enclosing transaction has committed.
type Queue struct {
	bus Bus
}

// NewQueue creates a queue. bus may be nil.
func NewQueue(bus Bus) *Queue {
	return &Queue{bus: bus}
}

// Enqueue writes job through repo, which is normally bound to the callback's
// transaction. Duplicate dedupe keys are skipped silently.
func (q *Queue) Enqueue(ctx context.Context, repo repository.JobRepository, job *domain.Job) (bool, error) {
	inserted, err := repo.Enqueue(ctx, job)
	if err != nil {
		return false, err
	}
	if !inserted {
		logger.Info(ctx, "Job already enqueued, skipping",
			zap.String("job_type", job.Type),
			zap.String("dedupe_key", derefString(job.DedupeKey)))
	}
	return inserted, nil
}

// Announce publishes wake-ups for committed jobs. Fire-and-forget: a lost
// wake-up only delays the job until the next poll.
func (q *Queue) Announce(ctx context.Context, jobs ...*domain.Job) {
	if q.bus == nil {
		return
	}
	for _, job := range jobs {
		if err := q.bus.Publish(ctx, WakeUp{Type: TaskType(job.Type), JobID: job.ID}); err != nil {
			logger.Warn(ctx, "Failed to publish job wake-up", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
