package domain

import "time"

// FAQ is a tenant-authored question/answer pair
type FAQ struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID  string    `json:"tenant_id" gorm:"type:varchar(36);index;not null"`
	Category  string    `json:"category" gorm:"type:varchar(64)"`
	Question  string    `json:"question" gorm:"type:text;not null"`
	Answer    string    `json:"answer" gorm:"type:text;not null"`
	SortOrder int       `json:"sort_order" gorm:"default:0"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for FAQ
func (FAQ) TableName() string {
	return "faqs"
}

// KnowledgeEntry is a keyword-tagged knowledge base article
type KnowledgeEntry struct {
	ID        string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID  string    `json:"tenant_id" gorm:"type:varchar(36);index;not null"`
	Question  string    `json:"question" gorm:"type:text;not null"`
	Answer    string    `json:"answer" gorm:"type:text;not null"`
	Keywords  string    `json:"keywords" gorm:"type:text"` // comma separated
	Source    string    `json:"source" gorm:"type:varchar(255)"`
	Priority  int       `json:"priority" gorm:"default:0"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for KnowledgeEntry
func (KnowledgeEntry) TableName() string {
	return "knowledge_entries"
}
