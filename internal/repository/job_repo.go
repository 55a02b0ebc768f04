package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultJobMaxAttempts bounds retries of a job enqueued without its own limit
const DefaultJobMaxAttempts = 3

// GormJobRepository implements JobRepository using GORM
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GORM job repository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// Enqueue inserts a pending job, skipping it when the dedupe key is taken
func (r *GormJobRepository) Enqueue(ctx context.Context, job *domain.Job) (bool, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = domain.JobStatusPending
	}
	if job.RunAt.IsZero() {
		job.RunAt = time.Now()
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = DefaultJobMaxAttempts
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "dedupe_key"}}, DoNothing: true}).
		Create(job)
	if result.Error != nil {
		return false, fmt.Errorf("failed to enqueue job: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ClaimNext leases the oldest runnable job. Runnable means pending and due, or
// running with an expired lease. The attempt counter increments as part of the
// claim so a crash mid-run still counts. Returns (nil, nil) when nothing is due
// or another worker won the race.
func (r *GormJobRepository) ClaimNext(ctx context.Context, now time.Time, lease time.Duration) (*domain.Job, error) {
	var job domain.Job
	err := r.db.WithContext(ctx).
		Where("(status = ? AND run_at <= ?) OR (status = ? AND locked_until < ?)",
			domain.JobStatusPending, now, domain.JobStatusRunning, now).
		Order("run_at ASC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find runnable job: %w", err)
	}

	lockedUntil := now.Add(lease)
	result := r.db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ? AND status = ? AND attempts = ?", job.ID, job.Status, job.Attempts).
		Updates(map[string]interface{}{
			"status":       domain.JobStatusRunning,
			"attempts":     gorm.Expr("attempts + 1"),
			"locked_until": lockedUntil,
			"updated_at":   now,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to claim job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	job.Status = domain.JobStatusRunning
	job.Attempts++
	job.LockedUntil = &lockedUntil
	return &job, nil
}

// Complete marks a job done
func (r *GormJobRepository) Complete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Model(&domain.Job{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       domain.JobStatusCompleted,
			"locked_until": nil,
			"last_error":   "",
			"updated_at":   time.Now(),
		}).Error; err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// Fail records a failed attempt. The job goes back to pending at retryAt until
// its attempts reach MaxAttempts, after which it is failed permanently.
func (r *GormJobRepository) Fail(ctx context.Context, job *domain.Job, cause string, retryAt time.Time) error {
	updates := map[string]interface{}{
		"last_error":   cause,
		"locked_until": nil,
		"updated_at":   time.Now(),
	}
	if job.Attempts >= job.MaxAttempts {
		updates["status"] = domain.JobStatusFailed
		job.Status = domain.JobStatusFailed
	} else {
		updates["status"] = domain.JobStatusPending
		updates["run_at"] = retryAt
		job.Status = domain.JobStatusPending
		job.RunAt = retryAt
	}
	job.LastError = cause
	job.LockedUntil = nil

	if err := r.db.WithContext(ctx).Model(&domain.Job{}).Where("id = ?", job.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	return nil
}

// GetByID retrieves a job by ID
func (r *GormJobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// CountByDedupeKey counts jobs carrying a dedupe key
func (r *GormJobRepository) CountByDedupeKey(ctx context.Context, dedupeKey string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Job{}).Where("dedupe_key = ?", dedupeKey).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}
