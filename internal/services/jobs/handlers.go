// Package jobs holds the background work scheduled by the call gateway:
// summaries, notifications and recording archival.
package jobs

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ClareAI/astra-receptionist-service/internal/core/task"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/repository"
	"github.com/ClareAI/astra-receptionist-service/pkg/gcs"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/ClareAI/astra-receptionist-service/pkg/pubsub"
)

// Summarizer writes a call summary from its transcript
type Summarizer interface {
	Summarize(ctx context.Context, tenant *domain.Tenant, turns []*domain.ConversationTurn) (string, error)
}

// SMSSender texts the tenant
type SMSSender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// EventPublisher announces leads and finished calls
type EventPublisher interface {
	PublishLeadCaptured(ctx context.Context, evt pubsub.LeadCapturedEvent) error
	PublishConversationMetrics(ctx context.Context, evt pubsub.ConversationMetricsEvent) error
}

// RecordingSource downloads provider recordings
type RecordingSource interface {
	Fetch(ctx context.Context, recordingURL string) (io.ReadCloser, error)
}

// Archive stores recordings
type Archive interface {
	Upload(ctx context.Context, objectPath, contentType string, content io.Reader) (string, error)
	Exists(ctx context.Context, objectPath string) (bool, error)
}

// Handlers runs every job type. Optional collaborators (summarizer, events,
// recordings, archive) may be nil; the matching work is then skipped.
type Handlers struct {
	repos      repository.RepositoryManager
	summarizer Summarizer
	sms        SMSSender
	events     EventPublisher
	recordings RecordingSource
	archive    Archive
	now        func() time.Time
}

// NewHandlers creates the job handlers
func NewHandlers(repos repository.RepositoryManager, summarizer Summarizer, sms SMSSender, events EventPublisher, recordings RecordingSource, archive Archive) *Handlers {
	return &Handlers{
		repos:      repos,
		summarizer: summarizer,
		sms:        sms,
		events:     events,
		recordings: recordings,
		archive:    archive,
		now:        time.Now,
	}
}

// Register binds every handler to the worker
func (h *Handlers) Register(w *task.Worker) {
	w.Register(task.TaskTypeSummarizeCall, h.SummarizeCall)
	w.Register(task.TaskTypeLeadNotification, h.LeadNotification)
	w.Register(task.TaskTypeVoicemailNotification, h.VoicemailNotification)
	w.Register(task.TaskTypeArchiveRecording, h.ArchiveRecording)
}

func jobContext(ctx context.Context, job *domain.Job) context.Context {
	return logger.WithFields(ctx,
		zap.String("job_id", job.ID),
		zap.String("job_type", job.Type),
		zap.String("tenant_id", task.PayloadString(job, task.PayloadTenantID)),
		zap.String("call_sid", task.PayloadString(job, task.PayloadCallSid)),
	)
}

// SummarizeCall stores an AI summary of the finished call and publishes its metrics
func (h *Handlers) SummarizeCall(ctx context.Context, job *domain.Job) error {
	ctx = jobContext(ctx, job)
	sess, err := h.session(ctx, job)
	if err != nil || sess == nil {
		return err
	}
	tenant, err := h.repos.Tenant().GetByID(ctx, sess.TenantID)
	if err != nil {
		return err
	}
	turns, err := h.repos.Transcript().List(ctx, sess.ID)
	if err != nil {
		return err
	}

	summary := sess.Summary
	if summary == "" && h.summarizer != nil && len(turns) > 0 {
		summary, err = h.summarizer.Summarize(ctx, tenant, turns)
		if err != nil {
			return fmt.Errorf("failed to summarize call: %w", err)
		}
		if err := h.repos.Session().UpdateSummary(ctx, sess.ID, summary); err != nil {
			return err
		}
		logger.Info(ctx, "Call summary stored", zap.Int("turns", len(turns)))
	}

	if h.events == nil {
		return nil
	}
	return h.events.PublishConversationMetrics(ctx, pubsub.ConversationMetricsEvent{
		ID:                sess.ID,
		TenantID:          sess.TenantID,
		CallSid:           sess.CallSid,
		Channel:           "voice",
		Status:            string(sess.Status),
		FinalState:        string(sess.State),
		StartAt:           sess.StartedAt,
		EndAt:             sess.EndedAt,
		Duration:          sess.DurationSeconds,
		TurnCount:         len(turns),
		TransferAttempted: sess.TransferAttempted,
		TransferSucceeded: sess.TransferSucceeded,
		LeadCaptured:      sess.LeadCaptured,
		Summary:           summary,
		CreatedAt:         h.now(),
	})
}

// LeadNotification texts the tenant about a new lead and publishes it
func (h *Handlers) LeadNotification(ctx context.Context, job *domain.Job) error {
	ctx = jobContext(ctx, job)
	leadID := task.PayloadString(job, task.PayloadLeadID)
	lead, err := h.repos.Lead().GetByID(ctx, leadID)
	if err != nil {
		return err
	}
	if lead == nil {
		logger.Warn(ctx, "Lead not found, dropping notification", zap.String("lead_id", leadID))
		return nil
	}
	tenant, err := h.repos.Tenant().GetByID(ctx, lead.TenantID)
	if err != nil {
		return err
	}
	callSid := ""
	if sess, err := h.repos.Session().GetByID(ctx, lead.SessionID); err == nil && sess != nil {
		callSid = sess.CallSid
	}

	if tenant != nil && tenant.NotificationPhone != "" {
		if _, err := h.sms.Send(ctx, tenant.NotificationPhone, LeadMessage(tenant, lead)); err != nil {
			return err
		}
	}

	if h.events == nil {
		return nil
	}
	custom := make(map[string]string, len(lead.CustomFields))
	for _, f := range lead.CustomFields {
		custom[f.Label] = f.Value
	}
	return h.events.PublishLeadCaptured(ctx, pubsub.LeadCapturedEvent{
		LeadID:       lead.ID,
		TenantID:     lead.TenantID,
		SessionID:    lead.SessionID,
		CallSid:      callSid,
		Name:         lead.Name,
		Phone:        lead.Phone,
		Email:        lead.Email,
		Reason:       lead.Reason,
		Source:       lead.Source,
		CustomFields: custom,
		CapturedAt:   lead.CreatedAt,
	})
}

// VoicemailNotification texts the tenant the voicemail transcription
func (h *Handlers) VoicemailNotification(ctx context.Context, job *domain.Job) error {
	ctx = jobContext(ctx, job)
	tenant, err := h.repos.Tenant().GetByID(ctx, task.PayloadString(job, task.PayloadTenantID))
	if err != nil {
		return err
	}
	if tenant == nil || tenant.NotificationPhone == "" {
		logger.Info(ctx, "No notification phone, skipping voicemail text")
		return nil
	}
	body := VoicemailMessage(tenant,
		task.PayloadString(job, task.PayloadFromNumber),
		task.PayloadString(job, task.PayloadTranscription),
		task.PayloadString(job, task.PayloadRecordingURL))
	_, err = h.sms.Send(ctx, tenant.NotificationPhone, body)
	return err
}

// ArchiveRecording copies the provider recording into object storage
func (h *Handlers) ArchiveRecording(ctx context.Context, job *domain.Job) error {
	ctx = jobContext(ctx, job)
	if h.archive == nil || h.recordings == nil {
		logger.Debug(ctx, "Recording archive disabled")
		return nil
	}
	recordingURL := task.PayloadString(job, task.PayloadRecordingURL)
	if recordingURL == "" {
		return nil
	}
	objectPath := gcs.RecordingPath(
		task.PayloadString(job, task.PayloadTenantID),
		task.PayloadString(job, task.PayloadCallSid),
		task.PayloadString(job, task.PayloadRecordingSid))

	// A retried job may find the upload already done.
	exists, err := h.archive.Exists(ctx, objectPath)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	body, err := h.recordings.Fetch(ctx, recordingURL)
	if err != nil {
		return err
	}
	defer body.Close()

	uri, err := h.archive.Upload(ctx, objectPath, "audio/wav", body)
	if err != nil {
		return err
	}

	if sessionID := task.PayloadString(job, task.PayloadSessionID); sessionID != "" {
		evt := &domain.CallEvent{
			SessionID: sessionID,
			EventType: domain.EventRecording,
			Data:      domain.JSONB{"kind": "archived", "uri": uri},
		}
		if err := h.repos.Event().Append(ctx, evt); err != nil {
			logger.Warn(ctx, "Failed to record archive event", zap.Error(err))
		}
	}
	logger.Info(ctx, "Recording archived", zap.String("uri", uri))
	return nil
}

func (h *Handlers) session(ctx context.Context, job *domain.Job) (*domain.CallSession, error) {
	sessionID := task.PayloadString(job, task.PayloadSessionID)
	sess, err := h.repos.Session().GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		logger.Warn(ctx, "Session not found, dropping job", zap.String("session_id", sessionID))
	}
	return sess, nil
}

// LeadMessage is the SMS body for a new lead
func LeadMessage(tenant *domain.Tenant, lead *domain.Lead) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New lead for %s", tenant.Name)
	if lead.Name != "" {
		fmt.Fprintf(&b, ": %s", lead.Name)
	}
	if lead.Phone != "" {
		fmt.Fprintf(&b, ", %s", lead.Phone)
	}
	if lead.Email != "" {
		fmt.Fprintf(&b, ", %s", lead.Email)
	}
	if lead.Reason != "" {
		fmt.Fprintf(&b, ". Reason: %s", lead.Reason)
	}
	for _, f := range lead.CustomFields {
		fmt.Fprintf(&b, ". %s: %s", f.Label, f.Value)
	}
	return b.String()
}

// VoicemailMessage is the SMS body for a new voicemail
func VoicemailMessage(tenant *domain.Tenant, from, transcription, recordingURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New voicemail for %s", tenant.Name)
	if from != "" {
		fmt.Fprintf(&b, " from %s", from)
	}
	if transcription = strings.TrimSpace(transcription); transcription != "" {
		fmt.Fprintf(&b, ": \"%s\"", transcription)
	}
	if recordingURL != "" {
		fmt.Fprintf(&b, " Listen: %s", recordingURL)
	}
	return b.String()
}
