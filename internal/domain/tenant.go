package domain

import (
	"time"
)

// ScheduleOverride forces a tenant open or closed regardless of weekly hours
type ScheduleOverride string

const (
	ScheduleOverrideNone   ScheduleOverride = ""
	ScheduleOverrideOpen   ScheduleOverride = "open"
	ScheduleOverrideClosed ScheduleOverride = "closed"
)

// Tenant represents a business whose calls are answered by the receptionist
type Tenant struct {
	ID                string           `json:"id" gorm:"type:varchar(36);primaryKey"`
	Name              string           `json:"name" gorm:"type:varchar(255);not null"`
	PhoneNumber       string           `json:"phone_number" gorm:"type:varchar(32);uniqueIndex:uni_tenants_phone_number;not null"`
	Timezone          string           `json:"timezone" gorm:"type:varchar(64)"`
	TransferNumber    string           `json:"transfer_number" gorm:"type:varchar(32)"`
	Greeting          string           `json:"greeting" gorm:"type:text"`
	NotificationPhone string           `json:"notification_phone" gorm:"type:varchar(32)"`
	ScheduleOverride  ScheduleOverride `json:"schedule_override" gorm:"type:varchar(16)"`
	CustomConfig      JSONB            `json:"custom_config" gorm:"type:jsonb"`
	CreatedAt         time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
	Disabled          bool             `json:"disabled" gorm:"default:false"`
}

// TableName sets the table name for Tenant
func (Tenant) TableName() string {
	return "tenants"
}

// BusinessHours is one weekday row of a tenant's weekly schedule.
// OpenTime and CloseTime are "HH:MM" in the tenant's timezone.
type BusinessHours struct {
	ID        string       `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID  string       `json:"tenant_id" gorm:"type:varchar(36);index;not null"`
	DayOfWeek time.Weekday `json:"day_of_week" gorm:"not null"`
	OpenTime  string       `json:"open_time" gorm:"type:varchar(5)"`
	CloseTime string       `json:"close_time" gorm:"type:varchar(5)"`
	Closed    bool         `json:"closed" gorm:"default:false"`
}

// TableName sets the table name for BusinessHours
func (BusinessHours) TableName() string {
	return "business_hours"
}
