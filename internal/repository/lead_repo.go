package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrLeadExists is returned when a session already produced a lead
var ErrLeadExists = errors.New("lead already captured for session")

// GormLeadRepository implements LeadRepository using GORM
type GormLeadRepository struct {
	db *gorm.DB
}

// NewGormLeadRepository creates a new GORM lead repository
func NewGormLeadRepository(db *gorm.DB) *GormLeadRepository {
	return &GormLeadRepository{db: db}
}

// Create persists a lead together with its ordered custom fields.
// A second lead for the same session fails with ErrLeadExists.
func (r *GormLeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	for i := range lead.CustomFields {
		field := &lead.CustomFields[i]
		if field.ID == "" {
			field.ID = uuid.New().String()
		}
		field.LeadID = lead.ID
		field.Position = i
	}

	if err := r.db.WithContext(ctx).Create(lead).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrLeadExists
		}
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

// GetByID retrieves a lead and its custom fields
func (r *GormLeadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	var lead domain.Lead
	err := r.db.WithContext(ctx).
		Preload("CustomFields", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		First(&lead, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

// GetBySessionID retrieves the lead captured on a call session
func (r *GormLeadRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Lead, error) {
	var lead domain.Lead
	err := r.db.WithContext(ctx).
		Preload("CustomFields", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("session_id = ?", sessionID).
		First(&lead).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lead by session: %w", err)
	}
	return &lead, nil
}

// CountBySessionID counts leads of a session
func (r *GormLeadRepository) CountBySessionID(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Lead{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return count, nil
}
