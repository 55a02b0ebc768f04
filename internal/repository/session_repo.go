package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSessionRepository implements SessionRepository using GORM
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new GORM call session repository
func NewGormSessionRepository(db *gorm.DB) *GormSessionRepository {
	return &GormSessionRepository{db: db}
}

// Create creates a new call session
func (r *GormSessionRepository) Create(ctx context.Context, session *domain.CallSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now()
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create call session: %w", err)
	}
	return nil
}

// GetByCallSid retrieves the session of a provider call id
func (r *GormSessionRepository) GetByCallSid(ctx context.Context, callSid string) (*domain.CallSession, error) {
	var session domain.CallSession
	if err := r.db.WithContext(ctx).Where("call_sid = ?", callSid).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get call session: %w", err)
	}
	return &session, nil
}

// GetByID retrieves a session by ID
func (r *GormSessionRepository) GetByID(ctx context.Context, id string) (*domain.CallSession, error) {
	var session domain.CallSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get call session: %w", err)
	}
	return &session, nil
}

// Update saves every column of the session
func (r *GormSessionRepository) Update(ctx context.Context, session *domain.CallSession) error {
	session.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(session).Error; err != nil {
		return fmt.Errorf("failed to update call session: %w", err)
	}
	return nil
}

// UpdateSummary stores the generated call summary
func (r *GormSessionRepository) UpdateSummary(ctx context.Context, id, summary string) error {
	result := r.db.WithContext(ctx).Model(&domain.CallSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"summary": summary, "updated_at": time.Now()})
	if result.Error != nil {
		return fmt.Errorf("failed to update call summary: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("call session not found: %s", id)
	}
	return nil
}
