// Package conversation drives the AI receptionist state machine one caller turn at a time.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"go.uber.org/zap"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/internal/core/ai"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/services/knowledge"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/ClareAI/astra-receptionist-service/pkg/metrics"
)

// Lead slots, filled in this order
const (
	SlotName   = "name"
	SlotPhone  = "phone"
	SlotEmail  = "email"
	SlotReason = "reason"
)

var slotOrder = []string{SlotName, SlotPhone, SlotEmail, SlotReason}

// Effect is what the gateway does after speaking the reply
type Effect int

const (
	// EffectGather listens for the next utterance
	EffectGather Effect = iota
	// EffectTransfer dials the tenant's transfer number
	EffectTransfer
	// EffectEndCall hangs up
	EffectEndCall
)

// KnowledgeLookup finds a stored answer for a question
type KnowledgeLookup interface {
	Lookup(ctx context.Context, tenantID, query string) (*knowledge.Answer, error)
}

// Responder answers free-form questions
type Responder interface {
	Respond(ctx context.Context, req ai.Request) (string, error)
}

// Turn is one caller utterance with the rehydrated context it applies to.
// Session.State and Session.Metadata are updated in place.
type Turn struct {
	Session   *domain.CallSession
	Tenant    *domain.Tenant
	History   []*domain.ConversationTurn
	Utterance string
	Open      bool
	Now       time.Time
}

// Transition is one edge taken during a turn
type Transition struct {
	From domain.ConversationState
	To   domain.ConversationState
}

// Outcome is the result of one turn
type Outcome struct {
	Reply       string
	Effect      Effect
	Transitions []Transition
	// Lead is set when lead capture completed this turn; the caller persists it
	Lead *domain.Lead
}

// Machine is the conversation state machine
type Machine struct {
	classifier Classifier
	kb         KnowledgeLookup
	ai         Responder
	metrics    *metrics.Metrics
}

// NewMachine creates a state machine. ai may be nil, in which case unanswered
// questions get the transfer offer.
func NewMachine(classifier Classifier, kb KnowledgeLookup, responder Responder, m *metrics.Metrics) *Machine {
	return &Machine{classifier: classifier, kb: kb, ai: responder, metrics: m}
}

// turnState carries one turn through the handlers
type turnState struct {
	Turn
	out *Outcome
}

func (t *turnState) moveTo(next domain.ConversationState) error {
	from := t.Session.State
	if !from.CanTransition(next) {
		return fmt.Errorf("%w: illegal transition %s -> %s", domain.ErrConfiguration, from, next)
	}
	if from != next {
		t.out.Transitions = append(t.out.Transitions, Transition{From: from, To: next})
	}
	t.Session.State = next
	return nil
}

func (t *turnState) say(reply string, effect Effect) {
	t.out.Reply = reply
	t.out.Effect = effect
}

// Step processes one utterance. External lookups that fail leave the state
// unchanged and answer with the fallback message; only configuration problems
// are returned as errors.
func (m *Machine) Step(ctx context.Context, turn Turn) (*Outcome, error) {
	if turn.Now.IsZero() {
		turn.Now = time.Now()
	}
	ts := &turnState{Turn: turn, out: &Outcome{}}
	utterance := strings.TrimSpace(turn.Utterance)
	ts.Utterance = utterance

	var err error
	switch turn.Session.State {
	case domain.StateGreeting:
		if err = ts.moveTo(domain.StateIntent); err == nil {
			err = m.intent(ctx, ts)
		}
	case domain.StateIntent:
		err = m.intent(ctx, ts)
	case domain.StateFAQ:
		err = m.faq(ctx, ts)
	case domain.StateTransferAttempt:
		err = m.transferAttempt(ts)
	case domain.StateLeadCapture:
		err = m.leadCapture(ctx, ts)
	case domain.StateConfirmation:
		err = m.confirmation(ts)
	case domain.StateWrapUp:
		err = m.wrapUp(ts)
	case domain.StateEnded:
		ts.say(config.MessageGoodbye, EffectEndCall)
	default:
		err = fmt.Errorf("%w: unknown conversation state %q", domain.ErrConfiguration, turn.Session.State)
	}
	if err != nil {
		return nil, err
	}

	for _, tr := range ts.out.Transitions {
		m.metrics.RecordTransition(string(tr.From), string(tr.To))
	}
	return ts.out, nil
}

// RequestHuman handles an explicit key press for a person. States that cannot
// reach TRANSFER_ATTEMPT or LEAD_CAPTURE re-prompt instead.
func (m *Machine) RequestHuman(ctx context.Context, turn Turn) (*Outcome, error) {
	ts := &turnState{Turn: turn, out: &Outcome{}}
	var err error
	switch turn.Session.State {
	case domain.StateGreeting:
		if err = ts.moveTo(domain.StateIntent); err == nil {
			err = m.humanRequest(ts)
		}
	case domain.StateIntent, domain.StateFAQ:
		err = m.humanRequest(ts)
	default:
		ts.say(config.MessageRepromptEmpty, EffectGather)
	}
	if err != nil {
		return nil, err
	}
	for _, tr := range ts.out.Transitions {
		m.metrics.RecordTransition(string(tr.From), string(tr.To))
	}
	return ts.out, nil
}

func (m *Machine) intent(ctx context.Context, ts *turnState) error {
	ts.Session.Metadata.Intent = m.classifier.Intent(ts.Utterance)

	if m.classifier.WantsHuman(ts.Utterance) {
		return m.humanRequest(ts)
	}

	answer, err := m.kb.Lookup(ctx, ts.Tenant.ID, ts.Utterance)
	if err != nil {
		return m.unavailable(ctx, ts, err)
	}
	switch {
	case answer != nil:
		if err := ts.moveTo(domain.StateFAQ); err != nil {
			return err
		}
		ts.say(answer.Text, EffectGather)
	case ts.Open:
		if err := ts.moveTo(domain.StateFAQ); err != nil {
			return err
		}
		ts.say(config.MessageOpenNoAnswer, EffectGather)
	default:
		if err := ts.moveTo(domain.StateLeadCapture); err != nil {
			return err
		}
		ts.say(config.MessageClosedLeadAsk, EffectGather)
	}
	return nil
}

// humanRequest transfers while open and takes a message while closed
func (m *Machine) humanRequest(ts *turnState) error {
	if ts.Open {
		if err := ts.moveTo(domain.StateTransferAttempt); err != nil {
			return err
		}
		ts.say(config.MessageTransferConnect, EffectTransfer)
		return nil
	}
	if err := ts.moveTo(domain.StateLeadCapture); err != nil {
		return err
	}
	ts.say(config.MessageClosedLeadAsk, EffectGather)
	return nil
}

func (m *Machine) faq(ctx context.Context, ts *turnState) error {
	if m.classifier.WantsHuman(ts.Utterance) {
		return m.humanRequest(ts)
	}
	if m.classifier.IsDone(ts.Utterance) {
		if err := ts.moveTo(domain.StateWrapUp); err != nil {
			return err
		}
		ts.say(config.MessageAnythingElse, EffectGather)
		return nil
	}

	answer, err := m.kb.Lookup(ctx, ts.Tenant.ID, ts.Utterance)
	if err != nil {
		return m.unavailable(ctx, ts, err)
	}
	if answer != nil {
		ts.say(answer.Text, EffectGather)
		return nil
	}

	if m.ai == nil {
		ts.say(config.MessageOpenNoAnswer, EffectGather)
		return nil
	}
	reply, err := m.ai.Respond(ctx, ai.Request{
		Tenant:    ts.Tenant,
		Caller:    ts.Session.FromNumber,
		Open:      ts.Open,
		History:   ts.History,
		Utterance: ts.Utterance,
		Now:       ts.Now,
	})
	if err != nil {
		return m.unavailable(ctx, ts, err)
	}
	if reply == "" {
		reply = config.MessageOpenNoAnswer
	}
	ts.say(reply, EffectGather)
	return nil
}

// transferAttempt is reached through the gather callback only when the dial did not connect
func (m *Machine) transferAttempt(ts *turnState) error {
	if err := ts.moveTo(domain.StateLeadCapture); err != nil {
		return err
	}
	ts.say(config.MessageTransferFailed, EffectGather)
	return nil
}

func (m *Machine) leadCapture(ctx context.Context, ts *turnState) error {
	meta := &ts.Session.Metadata
	slot := nextSlot(meta)

	// Any non-empty reason is kept as spoken
	if slot != SlotReason && m.classifier.IsDecline(ts.Utterance) {
		if err := ts.moveTo(domain.StateConfirmation); err != nil {
			return err
		}
		ts.say(config.MessageConfirmPrompt, EffectGather)
		return nil
	}

	switch slot {
	case SlotName:
		name := ExtractName(ts.Utterance)
		if name == "" {
			if m.classifier.IsAffirmative(ts.Utterance) {
				ts.say(config.MessageAskName, EffectGather)
			} else {
				ts.say(config.MessageRetryName, EffectGather)
			}
			return nil
		}
		meta.SetSlot(SlotName, name)
		ts.say(fmt.Sprintf(config.MessageAskPhone, name), EffectGather)
	case SlotPhone:
		phone := ExtractPhone(ts.Utterance)
		if phone == "" {
			ts.say(config.MessageRetryPhone, EffectGather)
			return nil
		}
		meta.SetSlot(SlotPhone, phone)
		ts.say(config.MessageAskEmail, EffectGather)
	case SlotEmail:
		email := ExtractEmail(ts.Utterance)
		if email == "" {
			ts.say(config.MessageRetryEmail, EffectGather)
			return nil
		}
		meta.SetSlot(SlotEmail, email)
		ts.say(config.MessageAskReason, EffectGather)
	case SlotReason:
		if ts.Utterance == "" {
			ts.say(config.MessageRetryReason, EffectGather)
			return nil
		}
		meta.SetSlot(SlotReason, ts.Utterance)
	}

	if nextSlot(meta) != "" {
		return nil
	}

	lead, err := leadFromSlots(ts.Session, ts.Tenant)
	if err != nil {
		return err
	}
	if err := ts.moveTo(domain.StateEnded); err != nil {
		return err
	}
	ts.out.Lead = lead
	if lead.Name != "" {
		ts.say(fmt.Sprintf(config.MessageLeadCaptured, lead.Name), EffectEndCall)
	} else {
		ts.say(config.MessageLeadCapturedAlt, EffectEndCall)
	}
	logger.Base().Info("Lead captured by receptionist",
		zap.String("session_id", ts.Session.ID), zap.String("tenant_id", ts.Tenant.ID))
	return nil
}

func (m *Machine) confirmation(ts *turnState) error {
	switch {
	case m.classifier.IsAffirmative(ts.Utterance):
		if err := ts.moveTo(domain.StateWrapUp); err != nil {
			return err
		}
		ts.say(config.MessageConfirmYes, EffectGather)
	case m.classifier.IsNegative(ts.Utterance):
		if err := ts.moveTo(domain.StateFAQ); err != nil {
			return err
		}
		ts.say(config.MessageConfirmNo, EffectGather)
	default:
		ts.say(config.MessageConfirmRetry, EffectGather)
	}
	return nil
}

func (m *Machine) wrapUp(ts *turnState) error {
	if m.classifier.WantsToContinue(ts.Utterance) {
		if err := ts.moveTo(domain.StateFAQ); err != nil {
			return err
		}
		ts.say(config.MessageWrapUpContinue, EffectGather)
		return nil
	}
	if err := ts.moveTo(domain.StateEnded); err != nil {
		return err
	}
	ts.say(config.MessageGoodbye, EffectEndCall)
	return nil
}

// unavailable answers with the fallback message and leaves the state alone
func (m *Machine) unavailable(ctx context.Context, ts *turnState, cause error) error {
	if !errors.Is(cause, domain.ErrExternalService) {
		return cause
	}
	logger.Warn(ctx, "Lookup failed, keeping state",
		zap.String("state", string(ts.Session.State)), zap.Error(cause))
	ts.say(config.MessageAIUnavailable, EffectGather)
	return nil
}

func nextSlot(meta *domain.SessionMetadata) string {
	for _, slot := range slotOrder {
		if meta.Slot(slot) == "" {
			return slot
		}
	}
	return ""
}

// leadSlots mirrors the Lead columns the receptionist fills
type leadSlots struct {
	Name   string
	Phone  string
	Email  string
	Reason string
}

func leadFromSlots(session *domain.CallSession, tenant *domain.Tenant) (*domain.Lead, error) {
	meta := session.Metadata
	slots := leadSlots{
		Name:   meta.Slot(SlotName),
		Phone:  meta.Slot(SlotPhone),
		Email:  meta.Slot(SlotEmail),
		Reason: meta.Slot(SlotReason),
	}
	lead := &domain.Lead{
		TenantID:  tenant.ID,
		SessionID: session.ID,
		Source:    domain.LeadSourceReceptionist,
	}
	if err := copier.Copy(lead, &slots); err != nil {
		return nil, fmt.Errorf("failed to copy lead slots: %w", err)
	}
	return lead, nil
}

// Greeting is the opening line of an AI-handled call
func Greeting(tenant *domain.Tenant) string {
	if tenant.Greeting != "" {
		return tenant.Greeting
	}
	return fmt.Sprintf(config.MessageDefaultGreeting, tenant.Name)
}
