package call

import (
	"context"
	"time"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/voice"
)

// Provider call status values
const (
	CallStatusQueued     = "queued"
	CallStatusRinging    = "ringing"
	CallStatusInProgress = "in-progress"
	CallStatusCompleted  = "completed"
	CallStatusBusy       = "busy"
	CallStatusFailed     = "failed"
	CallStatusNoAnswer   = "no-answer"
	CallStatusCanceled   = "canceled"
	CallStatusAnswered   = "answered"
)

// IsTerminalCallStatus reports whether status ends a call
func IsTerminalCallStatus(status string) bool {
	switch status {
	case CallStatusCompleted, CallStatusBusy, CallStatusFailed, CallStatusNoAnswer, CallStatusCanceled:
		return true
	}
	return false
}

// CallbackParams is the form payload of a provider webhook plus the query
// values this service put on the callback URL
type CallbackParams struct {
	CallSid       string
	ParentCallSid string
	AccountSid    string
	From          string
	To            string
	CallStatus    string
	CallDuration  string

	SpeechResult string
	Confidence   string
	Digits       string

	DialCallStatus   string
	DialCallSid      string
	DialCallDuration string

	RecordingURL        string
	RecordingSid        string
	RecordingDuration   string
	TranscriptionText   string
	TranscriptionStatus string

	// Seq is -1 when the URL carried none
	Seq  int
	Step string
}

// IsTranscription reports whether a recording-status callback carries a transcription
func (p CallbackParams) IsTranscription() bool {
	return p.TranscriptionStatus != "" || p.TranscriptionText != ""
}

// pendingTurn is a transcript entry written at commit
type pendingTurn struct {
	speaker string
	text    string
	state   domain.ConversationState
}

// callback is one webhook's rehydrated context plus the writes it produces.
// Everything here commits in one transaction.
type callback struct {
	params  CallbackParams
	route   string
	now     time.Time
	session *domain.CallSession
	tenant  *domain.Tenant
	flow    *domain.Flow
	history []*domain.ConversationTurn

	create bool
	turns  []pendingTurn
	events []*domain.CallEvent
	lead   *domain.Lead
	jobs   []*domain.Job
	// onCommit runs after the writes above are durable
	onCommit []func(ctx context.Context)
	// onRollback runs when the commit fails
	onRollback []func(ctx context.Context)

	response *voice.Response
}

func (cb *callback) say(speaker, text string) {
	if text == "" {
		return
	}
	cb.turns = append(cb.turns, pendingTurn{speaker: speaker, text: text, state: cb.session.State})
}

func (cb *callback) event(eventType domain.CallEventType, data domain.JSONB) {
	cb.events = append(cb.events, &domain.CallEvent{
		SessionID: cb.session.ID,
		EventType: eventType,
		State:     cb.session.State,
		Data:      data,
		Timestamp: cb.now.Add(time.Duration(len(cb.events)) * time.Microsecond),
	})
}

func (cb *callback) enqueue(job *domain.Job) {
	cb.jobs = append(cb.jobs, job)
}

func (cb *callback) afterCommit(fn func(ctx context.Context)) {
	cb.onCommit = append(cb.onCommit, fn)
}

func (cb *callback) ifRolledBack(fn func(ctx context.Context)) {
	cb.onRollback = append(cb.onRollback, fn)
}

// hasWrites reports whether a status callback produced anything to store
func (cb *callback) hasWrites() bool {
	return cb.create || len(cb.turns) > 0 || len(cb.events) > 0 || len(cb.jobs) > 0 || cb.lead != nil
}
