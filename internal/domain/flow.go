package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// FlowType selects which tenant flow answers a call
type FlowType string

const (
	FlowTypeMainMenu   FlowType = "MAIN_MENU"
	FlowTypeAfterHours FlowType = "AFTER_HOURS"
	FlowTypeNoAnswer   FlowType = "NO_ANSWER"
)

// Valid reports whether t is a known flow type
func (t FlowType) Valid() bool {
	switch t {
	case FlowTypeMainMenu, FlowTypeAfterHours, FlowTypeNoAnswer:
		return true
	}
	return false
}

// Flow is a tenant-authored call graph. At most one flow per (tenant, type) is active.
type Flow struct {
	ID         string     `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID   string     `json:"tenant_id" gorm:"type:varchar(36);index:idx_flows_tenant_type;not null"`
	FlowType   FlowType   `json:"flow_type" gorm:"type:varchar(32);index:idx_flows_tenant_type;not null"`
	Name       string     `json:"name" gorm:"type:varchar(255)"`
	IsActive   bool       `json:"is_active" gorm:"default:false"`
	Version    int        `json:"version" gorm:"default:1"`
	Definition Definition `json:"definition" gorm:"type:jsonb"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for Flow
func (Flow) TableName() string {
	return "call_flows"
}

// StepType is the discriminator of a flow step
type StepType string

const (
	StepTypeMenu        StepType = "menu"
	StepTypeMessage     StepType = "message"
	StepTypeTransfer    StepType = "transfer"
	StepTypeAI          StepType = "ai"
	StepTypeVoicemail   StepType = "voicemail"
	StepTypeGatherInfo  StepType = "gather_info"
	StepTypeConditional StepType = "conditional"
	StepTypeCollectLead StepType = "collect_lead"
)

// Predicate names a conditional step may branch on
const (
	PredicateBusinessOpen = "is_business_open"
	PredicateAfterHours   = "is_after_hours"
	PredicateHasCallerID  = "has_caller_id"
)

// KnownPredicates is the set accepted by Definition.Validate
var KnownPredicates = map[string]bool{
	PredicateBusinessOpen: true,
	PredicateAfterHours:   true,
	PredicateHasCallerID:  true,
}

// Step is one node of a flow. Implementations are the *Step structs below;
// callers switch on the concrete type.
type Step interface {
	StepID() string
	Type() StepType
	// targets lists the step ids this step may jump to
	targets() []string
	check() error
}

// MenuAction is what a menu digit does
type MenuAction string

const (
	MenuActionTransfer  MenuAction = "transfer"
	MenuActionVoicemail MenuAction = "voicemail"
	MenuActionStep      MenuAction = "step"
	MenuActionMessage   MenuAction = "message"
	MenuActionAI        MenuAction = "ai"
	MenuActionHangup    MenuAction = "hangup"
)

// MenuOption is one row of a menu's digit table
type MenuOption struct {
	Label    string     `json:"label,omitempty"`
	Action   MenuAction `json:"action"`
	Number   string     `json:"number,omitempty"`
	NextStep string     `json:"nextStep,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// MenuStep speaks a prompt and waits for one DTMF digit
type MenuStep struct {
	ID      string                `json:"id"`
	Prompt  string                `json:"prompt"`
	Options map[string]MenuOption `json:"options"`
}

// MessageStep speaks text and optionally continues to NextStep
type MessageStep struct {
	ID       string `json:"id"`
	Message  string `json:"message"`
	NextStep string `json:"nextStep,omitempty"`
}

// TransferStep dials an external number
type TransferStep struct {
	ID           string `json:"id"`
	Number       string `json:"number"`
	Message      string `json:"message,omitempty"`
	FallbackStep string `json:"fallbackStep,omitempty"`
	Timeout      int    `json:"timeout,omitempty"`
}

// AIStep hands the call to the free-form conversation loop
type AIStep struct {
	ID     string `json:"id"`
	Prompt string `json:"prompt,omitempty"`
}

// VoicemailStep records a message with transcription
type VoicemailStep struct {
	ID        string `json:"id"`
	Prompt    string `json:"prompt,omitempty"`
	MaxLength int    `json:"maxLength,omitempty"`
}

// GatherInfoStep captures free speech into a session slot
type GatherInfoStep struct {
	ID       string `json:"id"`
	Prompt   string `json:"prompt"`
	Field    string `json:"field,omitempty"`
	NextStep string `json:"nextStep,omitempty"`
}

// ConditionalStep branches on a named predicate
type ConditionalStep struct {
	ID        string `json:"id"`
	Predicate string `json:"predicate"`
	TrueStep  string `json:"trueStep"`
	FalseStep string `json:"falseStep"`
}

// LeadQuestion is one labelled question of a collect_lead step.
// Field optionally maps the answer onto a Lead column (name, phone, email, reason).
type LeadQuestion struct {
	Label  string `json:"label"`
	Prompt string `json:"prompt"`
	Field  string `json:"field,omitempty"`
}

// CollectLeadStep asks an ordered, confirmed question list
type CollectLeadStep struct {
	ID         string         `json:"id"`
	Intro      string         `json:"intro,omitempty"`
	Questions  []LeadQuestion `json:"questions"`
	Completion string         `json:"completion,omitempty"`
	NextStep   string         `json:"nextStep,omitempty"`
}

func (s *MenuStep) StepID() string        { return s.ID }
func (s *MessageStep) StepID() string     { return s.ID }
func (s *TransferStep) StepID() string    { return s.ID }
func (s *AIStep) StepID() string          { return s.ID }
func (s *VoicemailStep) StepID() string   { return s.ID }
func (s *GatherInfoStep) StepID() string  { return s.ID }
func (s *ConditionalStep) StepID() string { return s.ID }
func (s *CollectLeadStep) StepID() string { return s.ID }

func (s *MenuStep) Type() StepType        { return StepTypeMenu }
func (s *MessageStep) Type() StepType     { return StepTypeMessage }
func (s *TransferStep) Type() StepType    { return StepTypeTransfer }
func (s *AIStep) Type() StepType          { return StepTypeAI }
func (s *VoicemailStep) Type() StepType   { return StepTypeVoicemail }
func (s *GatherInfoStep) Type() StepType  { return StepTypeGatherInfo }
func (s *ConditionalStep) Type() StepType { return StepTypeConditional }
func (s *CollectLeadStep) Type() StepType { return StepTypeCollectLead }

var digitPattern = regexp.MustCompile(`^[0-9*#]$`)

func (s *MenuStep) targets() []string {
	var ids []string
	for _, opt := range s.Options {
		if opt.NextStep != "" {
			ids = append(ids, opt.NextStep)
		}
	}
	return ids
}

func (s *MenuStep) check() error {
	if len(s.Options) == 0 {
		return fmt.Errorf("menu step %q has no options", s.ID)
	}
	for digit, opt := range s.Options {
		if !digitPattern.MatchString(digit) {
			return fmt.Errorf("menu step %q: option key %q is not a single digit", s.ID, digit)
		}
		switch opt.Action {
		case MenuActionTransfer:
			if opt.Number == "" {
				return fmt.Errorf("menu step %q: option %s transfers without a number", s.ID, digit)
			}
		case MenuActionStep:
			if opt.NextStep == "" {
				return fmt.Errorf("menu step %q: option %s has no nextStep", s.ID, digit)
			}
		case MenuActionVoicemail, MenuActionMessage, MenuActionAI, MenuActionHangup:
		default:
			return fmt.Errorf("menu step %q: option %s has unknown action %q", s.ID, digit, opt.Action)
		}
	}
	return nil
}

func (s *MessageStep) targets() []string { return nonEmpty(s.NextStep) }
func (s *MessageStep) check() error {
	if s.Message == "" {
		return fmt.Errorf("message step %q has no message", s.ID)
	}
	return nil
}

func (s *TransferStep) targets() []string { return nonEmpty(s.FallbackStep) }
func (s *TransferStep) check() error {
	if s.Number == "" {
		return fmt.Errorf("transfer step %q has no number", s.ID)
	}
	return nil
}

func (s *AIStep) targets() []string { return nil }
func (s *AIStep) check() error      { return nil }

func (s *VoicemailStep) targets() []string { return nil }
func (s *VoicemailStep) check() error      { return nil }

func (s *GatherInfoStep) targets() []string { return nonEmpty(s.NextStep) }
func (s *GatherInfoStep) check() error {
	if s.Prompt == "" {
		return fmt.Errorf("gather_info step %q has no prompt", s.ID)
	}
	return nil
}

func (s *ConditionalStep) targets() []string { return nonEmpty(s.TrueStep, s.FalseStep) }
func (s *ConditionalStep) check() error {
	if !KnownPredicates[s.Predicate] {
		return fmt.Errorf("conditional step %q uses unknown predicate %q", s.ID, s.Predicate)
	}
	if s.TrueStep == "" || s.FalseStep == "" {
		return fmt.Errorf("conditional step %q needs both trueStep and falseStep", s.ID)
	}
	return nil
}

func (s *CollectLeadStep) targets() []string { return nonEmpty(s.NextStep) }
func (s *CollectLeadStep) check() error {
	if len(s.Questions) == 0 {
		return fmt.Errorf("collect_lead step %q has no questions", s.ID)
	}
	for i, q := range s.Questions {
		if q.Label == "" || q.Prompt == "" {
			return fmt.Errorf("collect_lead step %q: question %d needs a label and a prompt", s.ID, i)
		}
	}
	return nil
}

func nonEmpty(ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Definition is a flow graph: an entry point and its steps
type Definition struct {
	EntryPoint string
	Steps      []Step
}

// Step returns the step with the given id
func (d *Definition) Step(id string) (Step, bool) {
	for _, s := range d.Steps {
		if s.StepID() == id {
			return s, true
		}
	}
	return nil, false
}

// HasStep reports whether id names a step of d
func (d *Definition) HasStep(id string) bool {
	_, ok := d.Step(id)
	return ok
}

// Validate checks entry point and step id referential integrity
func (d *Definition) Validate() error {
	if d.EntryPoint == "" {
		return fmt.Errorf("%w: flow has no entry point", ErrConfiguration)
	}
	seen := make(map[string]bool, len(d.Steps))
	for _, s := range d.Steps {
		if s.StepID() == "" {
			return fmt.Errorf("%w: %s step without id", ErrConfiguration, s.Type())
		}
		if seen[s.StepID()] {
			return fmt.Errorf("%w: duplicate step id %q", ErrConfiguration, s.StepID())
		}
		seen[s.StepID()] = true
	}
	if !seen[d.EntryPoint] {
		return fmt.Errorf("%w: entry point %q is not a step", ErrConfiguration, d.EntryPoint)
	}
	for _, s := range d.Steps {
		if err := s.check(); err != nil {
			return fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		for _, target := range s.targets() {
			if !seen[target] {
				return fmt.Errorf("%w: step %q references missing step %q", ErrConfiguration, s.StepID(), target)
			}
		}
	}
	return nil
}

type rawDefinition struct {
	EntryPoint string            `json:"entryPoint"`
	Steps      []json.RawMessage `json:"steps"`
}

// UnmarshalJSON decodes each step by its "type" discriminator
func (d *Definition) UnmarshalJSON(data []byte) error {
	var raw rawDefinition
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	steps := make([]Step, 0, len(raw.Steps))
	for i, rawStep := range raw.Steps {
		step, err := decodeStep(rawStep)
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, step)
	}
	d.EntryPoint = raw.EntryPoint
	d.Steps = steps
	return nil
}

// MarshalJSON writes each step with its "type" discriminator
func (d Definition) MarshalJSON() ([]byte, error) {
	raw := rawDefinition{EntryPoint: d.EntryPoint, Steps: make([]json.RawMessage, 0, len(d.Steps))}
	for _, s := range d.Steps {
		body, err := json.Marshal(s)
		if err != nil {
			return nil, err
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, err
		}
		kind, _ := json.Marshal(s.Type())
		fields["type"] = kind
		tagged, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		raw.Steps = append(raw.Steps, tagged)
	}
	return json.Marshal(raw)
}

func decodeStep(data []byte) (Step, error) {
	var head struct {
		Type StepType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	var step Step
	switch head.Type {
	case StepTypeMenu:
		step = &MenuStep{}
	case StepTypeMessage:
		step = &MessageStep{}
	case StepTypeTransfer:
		step = &TransferStep{}
	case StepTypeAI:
		step = &AIStep{}
	case StepTypeVoicemail:
		step = &VoicemailStep{}
	case StepTypeGatherInfo:
		step = &GatherInfoStep{}
	case StepTypeConditional:
		step = &ConditionalStep{}
	case StepTypeCollectLead:
		step = &CollectLeadStep{}
	default:
		return nil, fmt.Errorf("%w: unknown step type %q", ErrConfiguration, head.Type)
	}
	if err := json.Unmarshal(data, step); err != nil {
		return nil, err
	}
	return step, nil
}

// Value implements the driver.Valuer interface
func (d Definition) Value() (driver.Value, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the sql.Scanner interface
func (d *Definition) Scan(value interface{}) error {
	if value == nil {
		*d = Definition{}
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, d)
}
