// Package flow interprets tenant-authored call flows into provider markup.
package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/internal/core/conversation"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/voice"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/ClareAI/astra-receptionist-service/pkg/metrics"
)

// Call is the rehydrated context a flow runs against. Session.Metadata is
// updated in place and Session.Metadata.Seq is the sequence callback URLs carry.
type Call struct {
	Session *domain.CallSession
	Tenant  *domain.Tenant
	Flow    *domain.Flow
	Now     time.Time
}

// ExecutedStep is an audit record of one step run during a callback
type ExecutedStep struct {
	StepID string
	Type   domain.StepType
	Detail string
}

// Result is the outcome of one flow callback
type Result struct {
	Response *voice.Response
	Steps    []ExecutedStep
	// Lead is set when a collect_lead step completed; the caller persists it
	Lead *domain.Lead
	// HandedOff is set when an ai step moved the call to the conversation loop
	HandedOff bool
}

// Engine executes flow steps
type Engine struct {
	hours      OpenChecker
	classifier conversation.Classifier
	urls       voice.URLBuilder
	metrics    *metrics.Metrics
	maxDepth   int
}

// NewEngine creates a flow engine
func NewEngine(hours OpenChecker, classifier conversation.Classifier, urls voice.URLBuilder, m *metrics.Metrics) *Engine {
	return &Engine{
		hours:      hours,
		classifier: classifier,
		urls:       urls,
		metrics:    m,
		maxDepth:   config.DefaultMaxStepChain,
	}
}

func newResult() *Result {
	return &Result{Response: voice.NewResponse()}
}

// Start runs the flow from its entry point
func (e *Engine) Start(ctx context.Context, call *Call) (*Result, error) {
	if err := e.check(call); err != nil {
		return nil, err
	}
	call.Session.Metadata.Mode = domain.SessionModeFlow
	call.Session.Metadata.FlowID = call.Flow.ID
	call.Session.Metadata.FlowType = call.Flow.FlowType

	res := newResult()
	if err := e.run(ctx, call, res, call.Flow.Definition.EntryPoint, 0); err != nil {
		return nil, err
	}
	return res, nil
}

// Execute runs the flow from stepID, as for a direct step redirect
func (e *Engine) Execute(ctx context.Context, call *Call, stepID string) (*Result, error) {
	if err := e.check(call); err != nil {
		return nil, err
	}
	res := newResult()
	if err := e.run(ctx, call, res, stepID, 0); err != nil {
		return nil, err
	}
	return res, nil
}

// Menu resolves a DTMF digit against the menu step stepID. Resolution is an
// exact match; anything else ends the call.
func (e *Engine) Menu(ctx context.Context, call *Call, stepID, digits string) (*Result, error) {
	if err := e.check(call); err != nil {
		return nil, err
	}
	menu, err := stepAs[*domain.MenuStep](call, stepID)
	if err != nil {
		return nil, err
	}

	res := newResult()
	digits = strings.TrimSpace(digits)
	call.Session.Metadata.LastSelection = digits
	if digits == "" {
		res.Response.Say(config.MessageMenuNoInput).Hangup()
		res.record(menu.ID, menu.Type(), "no input")
		return res, nil
	}
	opt, ok := menu.Options[digits]
	if !ok {
		res.Response.Say(config.MessageInvalidSelection).Hangup()
		res.record(menu.ID, menu.Type(), "invalid "+digits)
		return res, nil
	}
	res.record(menu.ID, menu.Type(), fmt.Sprintf("selected %s -> %s", digits, opt.Action))

	switch opt.Action {
	case domain.MenuActionTransfer:
		e.renderTransfer(call, res, menu.ID, opt.Number, opt.Message, 0)
	case domain.MenuActionVoicemail:
		e.renderVoicemail(call, res, opt.Message, 0)
	case domain.MenuActionStep:
		if err := e.run(ctx, call, res, opt.NextStep, 0); err != nil {
			return nil, err
		}
	case domain.MenuActionMessage, domain.MenuActionHangup:
		res.Response.Say(opt.Message).Hangup()
	case domain.MenuActionAI:
		e.handOff(call, res, opt.Message)
	default:
		return nil, fmt.Errorf("%w: menu %q option %s has unknown action %q", domain.ErrConfiguration, menu.ID, digits, opt.Action)
	}
	return res, nil
}

// GatherInfo stores free speech captured by the gather_info step stepID and continues
func (e *Engine) GatherInfo(ctx context.Context, call *Call, stepID, speech string) (*Result, error) {
	if err := e.check(call); err != nil {
		return nil, err
	}
	step, err := stepAs[*domain.GatherInfoStep](call, stepID)
	if err != nil {
		return nil, err
	}

	field := step.Field
	if field == "" {
		field = step.ID
	}
	call.Session.Metadata.SetSlot(field, strings.TrimSpace(speech))

	res := newResult()
	res.record(step.ID, step.Type(), "captured "+field)
	if step.NextStep == "" {
		res.Response.Say(config.MessageGatherInfoThanks).Hangup()
		return res, nil
	}
	if err := e.run(ctx, call, res, step.NextStep, 0); err != nil {
		return nil, err
	}
	return res, nil
}

// TransferFailed continues after a dial that did not connect. A transfer step's
// fallback runs when set; otherwise the caller hears the unavailable message.
func (e *Engine) TransferFailed(ctx context.Context, call *Call, stepID string) (*Result, error) {
	if err := e.check(call); err != nil {
		return nil, err
	}
	res := newResult()
	if step, ok := call.Flow.Definition.Step(stepID); ok {
		if ts, isTransfer := step.(*domain.TransferStep); isTransfer && ts.FallbackStep != "" {
			res.record(ts.ID, ts.Type(), "fallback "+ts.FallbackStep)
			if err := e.run(ctx, call, res, ts.FallbackStep, 0); err != nil {
				return nil, err
			}
			return res, nil
		}
	}
	res.Response.Say(config.MessageFlowTransferFail).Hangup()
	return res, nil
}

func (e *Engine) check(call *Call) error {
	if call.Flow == nil {
		return fmt.Errorf("%w: session %s has no flow", domain.ErrConfiguration, call.Session.ID)
	}
	if call.Now.IsZero() {
		call.Now = time.Now()
	}
	return call.Flow.Definition.Validate()
}

// run executes stepID and follows non-interactive successors within one response
func (e *Engine) run(ctx context.Context, call *Call, res *Result, stepID string, depth int) error {
	if depth >= e.maxDepth {
		return fmt.Errorf("%w: flow %s chains more than %d steps", domain.ErrConfiguration, call.Flow.ID, e.maxDepth)
	}
	step, ok := call.Flow.Definition.Step(stepID)
	if !ok {
		return fmt.Errorf("%w: flow %s has no step %q", domain.ErrConfiguration, call.Flow.ID, stepID)
	}

	meta := &call.Session.Metadata
	meta.CurrentStepID = step.StepID()
	e.metrics.RecordFlowStep(string(step.Type()))
	logger.Debug(ctx, "Executing flow step", zap.String("step_id", step.StepID()), zap.String("step_type", string(step.Type())))

	switch s := step.(type) {
	case *domain.MenuStep:
		res.record(s.ID, s.Type(), "prompt")
		res.Response.
			GatherDigits(e.urls.FlowMenu(meta.Seq, s.ID), s.Prompt, 1).
			Say(config.MessageMenuNoInput).
			Hangup()
	case *domain.MessageStep:
		res.record(s.ID, s.Type(), "")
		res.Response.Say(s.Message)
		if s.NextStep == "" {
			res.Response.Hangup()
			return nil
		}
		return e.run(ctx, call, res, s.NextStep, depth+1)
	case *domain.TransferStep:
		res.record(s.ID, s.Type(), s.Number)
		e.renderTransfer(call, res, s.ID, s.Number, s.Message, s.Timeout)
	case *domain.AIStep:
		res.record(s.ID, s.Type(), "")
		e.handOff(call, res, s.Prompt)
	case *domain.VoicemailStep:
		res.record(s.ID, s.Type(), "")
		e.renderVoicemail(call, res, s.Prompt, s.MaxLength)
	case *domain.GatherInfoStep:
		res.record(s.ID, s.Type(), "prompt")
		res.Response.
			GatherSpeech(e.urls.GatherInfo(meta.Seq, s.ID), s.Prompt).
			Say(config.MessageNoInputGoodbye).
			Hangup()
	case *domain.ConditionalStep:
		result, err := e.evaluate(ctx, call, s.Predicate)
		if err != nil {
			return err
		}
		next := s.FalseStep
		if result {
			next = s.TrueStep
		}
		res.record(s.ID, s.Type(), fmt.Sprintf("%s=%t", s.Predicate, result))
		return e.run(ctx, call, res, next, depth+1)
	case *domain.CollectLeadStep:
		res.record(s.ID, s.Type(), "start")
		e.startLead(call, res, s)
	default:
		return fmt.Errorf("%w: unsupported step type %q", domain.ErrConfiguration, step.Type())
	}
	return nil
}

func (e *Engine) renderTransfer(call *Call, res *Result, stepID, number, message string, timeout int) {
	if message == "" {
		message = config.MessageTransferConnect
	}
	call.Session.TransferAttempted = true
	res.Response.
		Say(message).
		Dial(number, e.urls.TransferStatus(call.Session.Metadata.Seq, stepID), e.urls.Status(voice.PathDialStatus), call.Session.ToNumber, timeout)
}

func (e *Engine) renderVoicemail(call *Call, res *Result, prompt string, maxLength int) {
	if prompt == "" {
		prompt = config.MessageVoicemailPrompt
	}
	res.Response.
		Say(prompt).
		Record(e.urls.RecordingAction(call.Session.Metadata.Seq), e.urls.Status(voice.PathRecordingStatus), maxLength).
		Say(config.MessageVoicemailThanks).
		Hangup()
}

// handOff moves the call to the conversation loop, which resumes from GREETING
func (e *Engine) handOff(call *Call, res *Result, prompt string) {
	if prompt == "" {
		prompt = conversation.Greeting(call.Tenant)
	}
	call.Session.Metadata.Mode = domain.SessionModeAI
	res.HandedOff = true
	action := e.urls.Gather(call.Session.Metadata.Seq)
	res.Response.GatherSpeech(action, prompt).Redirect(action)
}

func (r *Result) record(stepID string, stepType domain.StepType, detail string) {
	r.Steps = append(r.Steps, ExecutedStep{StepID: stepID, Type: stepType, Detail: detail})
}

// stepAs finds stepID and asserts its kind
func stepAs[T domain.Step](call *Call, stepID string) (T, error) {
	var zero T
	step, ok := call.Flow.Definition.Step(stepID)
	if !ok {
		return zero, fmt.Errorf("%w: flow %s has no step %q", domain.ErrConfiguration, call.Flow.ID, stepID)
	}
	typed, ok := step.(T)
	if !ok {
		return zero, fmt.Errorf("%w: step %q is %s", domain.ErrConfiguration, stepID, step.Type())
	}
	return typed, nil
}
