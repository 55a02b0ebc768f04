package domain

import "time"

// ConversationTurn is one utterance in a call transcript
type ConversationTurn struct {
	ID        string            `json:"id" gorm:"type:varchar(36);primaryKey"`
	SessionID string            `json:"session_id" gorm:"type:varchar(36);uniqueIndex:uni_turns_session_seq,priority:1;not null"`
	Sequence  int               `json:"sequence" gorm:"uniqueIndex:uni_turns_session_seq,priority:2;not null"`
	Speaker   string            `json:"speaker" gorm:"type:varchar(16);not null"`
	Text      string            `json:"text" gorm:"type:text"`
	State     ConversationState `json:"state" gorm:"type:varchar(32)"`
	Timestamp time.Time         `json:"timestamp" gorm:"not null"`
}

// TableName sets the table name for ConversationTurn
func (ConversationTurn) TableName() string {
	return "conversation_turns"
}

// CallEventType names an audit log entry
type CallEventType string

const (
	EventCallStarted       CallEventType = "call_started"
	EventFlowSelected      CallEventType = "flow_selected"
	EventCallerInput       CallEventType = "caller_input"
	EventAssistantResponse CallEventType = "assistant_response"
	EventStateTransition   CallEventType = "state_transition"
	EventStepExecuted      CallEventType = "step_executed"
	EventMenuSelection     CallEventType = "menu_selection"
	EventTransferInitiated CallEventType = "transfer_initiated"
	EventTransferResult    CallEventType = "transfer_result"
	EventDialLegStatus     CallEventType = "dial_leg_status"
	EventLeadAnswer        CallEventType = "lead_answer"
	EventLeadCaptured      CallEventType = "lead_captured"
	EventRecording         CallEventType = "recording"
	EventCallStatus        CallEventType = "call_status"
	EventReplayIgnored     CallEventType = "replay_ignored"
	EventError             CallEventType = "error"
)

// CallEvent is an append-only audit log row
type CallEvent struct {
	ID        string            `json:"id" gorm:"type:varchar(36);primaryKey"`
	SessionID string            `json:"session_id" gorm:"type:varchar(36);index;not null"`
	EventType CallEventType     `json:"event_type" gorm:"type:varchar(32);not null"`
	State     ConversationState `json:"state" gorm:"type:varchar(32)"`
	Data      JSONB             `json:"data" gorm:"type:jsonb"`
	Timestamp time.Time         `json:"timestamp" gorm:"index;not null"`
}

// TableName sets the table name for CallEvent
func (CallEvent) TableName() string {
	return "call_events"
}
