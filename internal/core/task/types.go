package task

import (
	"context"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
)

// TaskType defines the type of background job
type TaskType string

const (
	TaskTypeSummarizeCall         TaskType = "summarize_call"         // Summarize transcript after call completion
	TaskTypeLeadNotification      TaskType = "lead_notification"      // SMS + event for a captured lead
	TaskTypeVoicemailNotification TaskType = "voicemail_notification" // SMS for a new voicemail
	TaskTypeArchiveRecording      TaskType = "archive_recording"      // Copy provider recording to object storage
)

// Payload keys shared by producers and handlers
const (
	PayloadSessionID     = "session_id"
	PayloadCallSid       = "call_sid"
	PayloadTenantID      = "tenant_id"
	PayloadLeadID        = "lead_id"
	PayloadRecordingURL  = "recording_url"
	PayloadRecordingSid  = "recording_sid"
	PayloadTranscription = "transcription"
	PayloadFromNumber    = "from_number"
)

// WakeUp is the message published after jobs commit
type WakeUp struct {
	Type  TaskType `json:"type"`
	JobID string   `json:"job_id,omitempty"`
}

// Bus defines the interface for the job wake-up bus
type Bus interface {
	Publish(ctx context.Context, msg WakeUp) error
	Subscribe(ctx context.Context, handler func(WakeUp)) error
}

// Handler runs one job. Returning an error schedules a retry.
type Handler func(ctx context.Context, job *domain.Job) error

// NewJob builds a pending job. An empty dedupeKey leaves the job unguarded.
func NewJob(taskType TaskType, payload domain.JSONB, dedupeKey string) *domain.Job {
	job := &domain.Job{
		Type:    string(taskType),
		Payload: payload,
		Status:  domain.JobStatusPending,
	}
	if dedupeKey != "" {
		job.DedupeKey = &dedupeKey
	}
	return job
}

// PayloadString reads a string payload field
func PayloadString(job *domain.Job, key string) string {
	if job.Payload == nil {
		return ""
	}
	v, _ := job.Payload[key].(string)
	return v
}
