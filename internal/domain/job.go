package domain

import "time"

// JobStatus is the lifecycle of a background job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Job is a durable unit of background work. DedupeKey, when set, is unique
// so replayed callbacks cannot enqueue the same work twice.
type Job struct {
	ID          string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	Type        string     `json:"type" gorm:"type:varchar(64);index;not null"`
	Payload     JSONB      `json:"payload" gorm:"type:jsonb"`
	Status      JobStatus  `json:"status" gorm:"type:varchar(16);index;not null"`
	Attempts    int        `json:"attempts" gorm:"not null;default:0"`
	MaxAttempts int        `json:"max_attempts" gorm:"not null;default:3"`
	LastError   string     `json:"last_error" gorm:"type:text"`
	DedupeKey   *string    `json:"dedupe_key,omitempty" gorm:"type:varchar(255);uniqueIndex:uni_jobs_dedupe_key"`
	RunAt       time.Time  `json:"run_at" gorm:"index;not null"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Job
func (Job) TableName() string {
	return "jobs"
}
