package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormFlowRepository implements FlowRepository using GORM
type GormFlowRepository struct {
	db *gorm.DB
}

// NewGormFlowRepository creates a new GORM call flow repository
func NewGormFlowRepository(db *gorm.DB) *GormFlowRepository {
	return &GormFlowRepository{db: db}
}

// GetActive returns the active flow of a tenant for one flow type
func (r *GormFlowRepository) GetActive(ctx context.Context, tenantID string, flowType domain.FlowType) (*domain.Flow, error) {
	var flow domain.Flow
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND flow_type = ? AND is_active = ?", tenantID, flowType, true).
		Order("version DESC").
		First(&flow).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active flow: %w", err)
	}
	return &flow, nil
}

// GetByID retrieves a flow by ID
func (r *GormFlowRepository) GetByID(ctx context.Context, id string) (*domain.Flow, error) {
	var flow domain.Flow
	if err := r.db.WithContext(ctx).First(&flow, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}
	return &flow, nil
}

// SaveActive stores flow as the new active version for its (tenant, type),
// deactivating the previous one. The definition must already be validated.
func (r *GormFlowRepository) SaveActive(ctx context.Context, flow *domain.Flow) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest struct{ Max int }
		if err := tx.Model(&domain.Flow{}).
			Select("COALESCE(MAX(version), 0) AS max").
			Where("tenant_id = ? AND flow_type = ?", flow.TenantID, flow.FlowType).
			Scan(&latest).Error; err != nil {
			return fmt.Errorf("failed to read flow version: %w", err)
		}

		if err := tx.Model(&domain.Flow{}).
			Where("tenant_id = ? AND flow_type = ? AND is_active = ?", flow.TenantID, flow.FlowType, true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("failed to deactivate previous flow: %w", err)
		}

		flow.ID = uuid.New().String()
		flow.Version = latest.Max + 1
		flow.IsActive = true
		if err := tx.Create(flow).Error; err != nil {
			return fmt.Errorf("failed to save flow: %w", err)
		}
		return nil
	})
}
