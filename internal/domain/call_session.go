package domain

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ConversationState is the AI receptionist state machine position
type ConversationState string

const (
	StateGreeting        ConversationState = "GREETING"
	StateIntent          ConversationState = "INTENT"
	StateFAQ             ConversationState = "FAQ"
	StateTransferAttempt ConversationState = "TRANSFER_ATTEMPT"
	StateLeadCapture     ConversationState = "LEAD_CAPTURE"
	StateConfirmation    ConversationState = "CONFIRMATION"
	StateWrapUp          ConversationState = "WRAP_UP"
	StateEnded           ConversationState = "ENDED"
)

// stateGraph lists the declared forward edges. Re-entering the same state is always allowed.
var stateGraph = map[ConversationState][]ConversationState{
	StateGreeting:        {StateIntent},
	StateIntent:          {StateFAQ, StateTransferAttempt, StateLeadCapture},
	StateFAQ:             {StateTransferAttempt, StateLeadCapture, StateWrapUp},
	StateTransferAttempt: {StateLeadCapture, StateEnded},
	StateLeadCapture:     {StateConfirmation, StateEnded},
	StateConfirmation:    {StateWrapUp, StateFAQ},
	StateWrapUp:          {StateFAQ, StateEnded},
	StateEnded:           {},
}

// Valid reports whether s is a declared state
func (s ConversationState) Valid() bool {
	_, ok := stateGraph[s]
	return ok
}

// CanTransition reports whether the graph allows moving from s to next
func (s ConversationState) CanTransition(next ConversationState) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	for _, candidate := range stateGraph[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// SessionMode tells the gateway which engine owns the next callback
type SessionMode string

const (
	SessionModeFlow SessionMode = "flow"
	SessionModeAI   SessionMode = "ai"
)

// LeadResponse is one confirmed answer of a collect_lead step
type LeadResponse struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Field string `json:"field,omitempty"`
}

// SessionMetadata is the open document persisted with every session.
// It carries everything the next stateless callback needs.
type SessionMetadata struct {
	Mode                SessionMode       `json:"mode,omitempty"`
	FlowType            FlowType          `json:"flowType,omitempty"`
	FlowID              string            `json:"flowId,omitempty"`
	CurrentStepID       string            `json:"currentStepId,omitempty"`
	LastSelection       string            `json:"lastSelection,omitempty"`
	LeadQuestionIndex   int               `json:"leadQuestionIndex"`
	PendingLeadResponse *string           `json:"pendingLeadResponse,omitempty"`
	LeadResponses       []LeadResponse    `json:"leadResponses,omitempty"`
	Slots               map[string]string `json:"slots,omitempty"`
	Intent              string            `json:"intent,omitempty"`
	NoAnswerRedial      bool              `json:"noAnswerRedial,omitempty"`
	RecordingURL        string            `json:"recordingUrl,omitempty"`
	Transcription       string            `json:"transcription,omitempty"`

	// Seq increments every time a response expecting a callback is rendered.
	// Callback URLs carry it so replays can be answered from LastResponse.
	Seq          int    `json:"seq"`
	Reprompts    int    `json:"reprompts"`
	LastResponse string `json:"lastResponse,omitempty"`
}

// Value implements the driver.Valuer interface
func (m SessionMetadata) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface
func (m *SessionMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = SessionMetadata{}
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, m)
}

// Slot returns a captured slot value
func (m *SessionMetadata) Slot(name string) string {
	if m.Slots == nil {
		return ""
	}
	return m.Slots[name]
}

// SetSlot records a captured slot value
func (m *SessionMetadata) SetSlot(name, value string) {
	if m.Slots == nil {
		m.Slots = make(map[string]string)
	}
	m.Slots[name] = value
}

// CallSession is the persisted record of one provider call
type CallSession struct {
	ID                string            `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID          string            `json:"tenant_id" gorm:"type:varchar(36);index;not null"`
	CallSid           string            `json:"call_sid" gorm:"type:varchar(64);uniqueIndex:uni_call_sessions_call_sid;not null"`
	FromNumber        string            `json:"from_number" gorm:"type:varchar(32)"`
	ToNumber          string            `json:"to_number" gorm:"type:varchar(32)"`
	Status            CallStatus        `json:"status" gorm:"type:varchar(16);not null"`
	State             ConversationState `json:"state" gorm:"type:varchar(32);not null"`
	StartedAt         time.Time         `json:"started_at"`
	EndedAt           *time.Time        `json:"ended_at,omitempty"`
	DurationSeconds   int               `json:"duration_seconds"`
	TransferAttempted bool              `json:"transfer_attempted"`
	TransferSucceeded bool              `json:"transfer_succeeded"`
	LeadCaptured      bool              `json:"lead_captured"`
	Summary           string            `json:"summary" gorm:"type:text"`
	Metadata          SessionMetadata   `json:"metadata" gorm:"type:jsonb"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// TableName sets the table name for CallSession
func (CallSession) TableName() string {
	return "call_sessions"
}

// InFlow reports whether a flow currently owns the call
func (s *CallSession) InFlow() bool {
	return s.Metadata.Mode == SessionModeFlow && s.Metadata.FlowID != ""
}
