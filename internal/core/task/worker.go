package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/repository"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/ClareAI/astra-receptionist-service/pkg/metrics"
	"go.uber.org/zap"
)

// WorkerConfig tunes the poll loop
type WorkerConfig struct {
	PollInterval time.Duration
	Lease        time.Duration
	Workers      int
	// Backoff is multiplied by the attempt number to schedule a retry
	Backoff time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.Lease <= 0 {
		c.Lease = 2 * time.Minute
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.Backoff <= 0 {
		c.Backoff = 30 * time.Second
	}
	return c
}

// Worker polls the job table and runs registered handlers with bounded retries
type Worker struct {
	jobs     repository.JobRepository
	bus      Bus
	metrics  *metrics.Metrics
	cfg      WorkerConfig
	handlers map[TaskType]Handler
	now      func() time.Time
	wake     chan struct{}
}

// NewWorker creates a job worker. bus may be nil, in which case only the poll interval drives it.
func NewWorker(jobs repository.JobRepository, bus Bus, m *metrics.Metrics, cfg WorkerConfig) *Worker {
	return &Worker{
		jobs:     jobs,
		bus:      bus,
		metrics:  m,
		cfg:      cfg.withDefaults(),
		handlers: make(map[TaskType]Handler),
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
}

// Register binds a handler to a job type
func (w *Worker) Register(taskType TaskType, handler Handler) {
	w.handlers[taskType] = handler
}

// Run blocks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) {
	if w.bus != nil {
		if err := w.bus.Subscribe(ctx, func(WakeUp) { w.Notify() }); err != nil {
			logger.Base().Warn("Job wake-up subscription failed, polling only", zap.Error(err))
		}
	}

	logger.Base().Info("Job worker started",
		zap.Int("workers", w.cfg.Workers),
		zap.Duration("poll_interval", w.cfg.PollInterval))

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
	logger.Base().Info("Job worker stopped")
}

// Notify shortens the wait of one idle worker
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		for {
			if ctx.Err() != nil {
				return
			}
			ran, err := w.RunOnce(ctx)
			if err != nil {
				logger.Base().Error("Job poll failed", zap.Error(err))
				break
			}
			if !ran {
				break
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job was claimed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	now := w.now()
	job, err := w.jobs.ClaimNext(ctx, now, w.cfg.Lease)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	jobCtx := logger.WithFields(ctx, zap.String("job_id", job.ID), zap.String("job_type", job.Type))

	// A reclaimed lease from a crashed run already consumed its last attempt
	if job.Attempts > job.MaxAttempts {
		w.fail(jobCtx, job, "attempt limit reached after lease expiry")
		return true, nil
	}

	handler, ok := w.handlers[TaskType(job.Type)]
	if !ok {
		job.Attempts = job.MaxAttempts
		w.fail(jobCtx, job, fmt.Sprintf("no handler for job type %q", job.Type))
		return true, nil
	}

	if err := w.safeRun(jobCtx, handler, job); err != nil {
		w.fail(jobCtx, job, err.Error())
		return true, nil
	}

	if err := w.jobs.Complete(ctx, job.ID); err != nil {
		return true, err
	}
	w.metrics.RecordJob(job.Type, "completed")
	logger.Info(jobCtx, "Job completed", zap.Int("attempt", job.Attempts))
	return true, nil
}

func (w *Worker) safeRun(ctx context.Context, handler Handler, job *domain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (w *Worker) fail(ctx context.Context, job *domain.Job, cause string) {
	retryAt := w.now().Add(time.Duration(job.Attempts) * w.cfg.Backoff)
	if err := w.jobs.Fail(ctx, job, cause, retryAt); err != nil {
		logger.Error(ctx, "Failed to record job failure", zap.Error(err))
		return
	}
	if job.Status == domain.JobStatusFailed {
		w.metrics.RecordJob(job.Type, "failed")
		logger.Error(ctx, "Job failed permanently", zap.String("error", cause), zap.Int("attempts", job.Attempts))
		return
	}
	w.metrics.RecordJob(job.Type, "retry")
	logger.Warn(ctx, "Job attempt failed, will retry",
		zap.String("error", cause),
		zap.Int("attempt", job.Attempts),
		zap.Time("retry_at", retryAt))
}
