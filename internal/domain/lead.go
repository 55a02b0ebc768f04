package domain

import "time"

// Lead source values
const (
	LeadSourceReceptionist = "ai_receptionist"
	LeadSourceFlow         = "call_flow"
)

// Lead is the terminal artifact of lead capture
type Lead struct {
	ID           string            `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID     string            `json:"tenant_id" gorm:"type:varchar(36);index;not null"`
	SessionID    string            `json:"session_id" gorm:"type:varchar(36);uniqueIndex:uni_leads_session_id;not null"`
	Name         string            `json:"name" gorm:"type:varchar(255)"`
	Phone        string            `json:"phone" gorm:"type:varchar(32)"`
	Email        string            `json:"email" gorm:"type:varchar(255)"`
	Reason       string            `json:"reason" gorm:"type:text"`
	Source       string            `json:"source" gorm:"type:varchar(32)"`
	CustomFields []LeadCustomField `json:"custom_fields" gorm:"foreignKey:LeadID"`
	CreatedAt    time.Time         `json:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for Lead
func (Lead) TableName() string {
	return "leads"
}

// LeadCustomField is one labelled answer; Position follows the question order
type LeadCustomField struct {
	ID       string `json:"id" gorm:"type:varchar(36);primaryKey"`
	LeadID   string `json:"lead_id" gorm:"type:varchar(36);index;not null"`
	Label    string `json:"label" gorm:"type:varchar(255);not null"`
	Value    string `json:"value" gorm:"type:text"`
	Position int    `json:"position" gorm:"not null"`
}

// TableName sets the table name for LeadCustomField
func (LeadCustomField) TableName() string {
	return "lead_custom_fields"
}
