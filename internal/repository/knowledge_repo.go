package repository

import (
	"context"
	"fmt"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormKnowledgeRepository implements KnowledgeRepository using GORM
type GormKnowledgeRepository struct {
	db *gorm.DB
}

// NewGormKnowledgeRepository creates a new GORM FAQ / knowledge-base repository
func NewGormKnowledgeRepository(db *gorm.DB) *GormKnowledgeRepository {
	return &GormKnowledgeRepository{db: db}
}

// CreateFAQ creates a FAQ row
func (r *GormKnowledgeRepository) CreateFAQ(ctx context.Context, faq *domain.FAQ) error {
	if faq.ID == "" {
		faq.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(faq).Error; err != nil {
		return fmt.Errorf("failed to create faq: %w", err)
	}
	return nil
}

// CreateEntry creates a knowledge-base entry
func (r *GormKnowledgeRepository) CreateEntry(ctx context.Context, entry *domain.KnowledgeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to create knowledge entry: %w", err)
	}
	return nil
}

// ListFAQs returns active FAQs in category then declared order
func (r *GormKnowledgeRepository) ListFAQs(ctx context.Context, tenantID string) ([]*domain.FAQ, error) {
	var faqs []*domain.FAQ
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("category ASC").
		Order("sort_order ASC").
		Order("created_at ASC").
		Find(&faqs).Error; err != nil {
		return nil, fmt.Errorf("failed to list faqs: %w", err)
	}
	return faqs, nil
}

// ListEntries returns active knowledge entries by priority then insertion order
func (r *GormKnowledgeRepository) ListEntries(ctx context.Context, tenantID string) ([]*domain.KnowledgeEntry, error) {
	var entries []*domain.KnowledgeEntry
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Order("priority DESC").
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list knowledge entries: %w", err)
	}
	return entries, nil
}
