package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormTenantRepository implements TenantRepository using GORM
type GormTenantRepository struct {
	db *gorm.DB
}

// NewGormTenantRepository creates a new GORM tenant repository
func NewGormTenantRepository(db *gorm.DB) *GormTenantRepository {
	return &GormTenantRepository{db: db}
}

// Create creates a new tenant
func (r *GormTenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(tenant).Error; err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// GetByID retrieves a tenant by ID
func (r *GormTenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

// GetByPhoneNumber resolves the tenant that owns a dialed number.
// Disabled tenants are not returned.
func (r *GormTenantRepository) GetByPhoneNumber(ctx context.Context, phoneNumber string) (*domain.Tenant, error) {
	var tenant domain.Tenant
	err := r.db.WithContext(ctx).
		Where("phone_number = ? AND disabled = ?", phoneNumber, false).
		First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant by phone number: %w", err)
	}
	return &tenant, nil
}

// GetAll retrieves all tenants
func (r *GormTenantRepository) GetAll(ctx context.Context, includeDisabled bool) ([]*domain.Tenant, error) {
	var tenants []*domain.Tenant
	query := r.db.WithContext(ctx)

	if !includeDisabled {
		query = query.Where("disabled = ?", false)
	}

	if err := query.Order("created_at DESC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("failed to get tenants: %w", err)
	}
	return tenants, nil
}

// GetBusinessHours returns the weekly hours rows of a tenant ordered by weekday
func (r *GormTenantRepository) GetBusinessHours(ctx context.Context, tenantID string) ([]*domain.BusinessHours, error) {
	var hours []*domain.BusinessHours
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("day_of_week ASC").
		Find(&hours).Error; err != nil {
		return nil, fmt.Errorf("failed to get business hours: %w", err)
	}
	return hours, nil
}

// ReplaceBusinessHours swaps the weekly schedule of a tenant
func (r *GormTenantRepository) ReplaceBusinessHours(ctx context.Context, tenantID string, hours []*domain.BusinessHours) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", tenantID).Delete(&domain.BusinessHours{}).Error; err != nil {
			return fmt.Errorf("failed to clear business hours: %w", err)
		}
		if len(hours) == 0 {
			return nil
		}
		for _, h := range hours {
			h.TenantID = tenantID
			if h.ID == "" {
				h.ID = uuid.New().String()
			}
		}
		if err := tx.Create(&hours).Error; err != nil {
			return fmt.Errorf("failed to save business hours: %w", err)
		}
		return nil
	})
}
