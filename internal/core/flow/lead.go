package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/internal/core/conversation"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
)

// Lead columns a collect_lead question may fill
const (
	LeadFieldName   = "name"
	LeadFieldPhone  = "phone"
	LeadFieldEmail  = "email"
	LeadFieldReason = "reason"
)

func (e *Engine) startLead(call *Call, res *Result, step *domain.CollectLeadStep) {
	meta := &call.Session.Metadata
	meta.LeadQuestionIndex = 0
	meta.LeadResponses = nil
	meta.PendingLeadResponse = nil

	res.Response.Say(step.Intro)
	e.askQuestion(call, res, step)
}

func (e *Engine) askQuestion(call *Call, res *Result, step *domain.CollectLeadStep) {
	q := step.Questions[call.Session.Metadata.LeadQuestionIndex]
	action := e.urls.LeadAnswer(call.Session.Metadata.Seq)
	res.Response.GatherSpeech(action, q.Prompt).Redirect(action)
}

func (e *Engine) askConfirm(call *Call, res *Result, template, answer string) {
	action := e.urls.LeadConfirm(call.Session.Metadata.Seq)
	res.Response.GatherSpeech(action, fmt.Sprintf(template, answer)).Redirect(action)
}

// currentLeadStep resolves the collect_lead step the session is in
func (e *Engine) currentLeadStep(call *Call) (*domain.CollectLeadStep, error) {
	step, err := stepAs[*domain.CollectLeadStep](call, call.Session.Metadata.CurrentStepID)
	if err != nil {
		return nil, err
	}
	if idx := call.Session.Metadata.LeadQuestionIndex; idx < 0 || idx >= len(step.Questions) {
		return nil, fmt.Errorf("%w: lead question index %d out of range for step %q", domain.ErrConfiguration, idx, step.ID)
	}
	return step, nil
}

// LeadAnswer holds the caller's answer to the current question pending confirmation.
// Silence re-asks the question.
func (e *Engine) LeadAnswer(ctx context.Context, call *Call, speech string) (*Result, error) {
	if err := e.check(call); err != nil {
		return nil, err
	}
	step, err := e.currentLeadStep(call)
	if err != nil {
		return nil, err
	}

	res := newResult()
	answer := strings.TrimSpace(speech)
	if answer == "" {
		e.askQuestion(call, res, step)
		return res, nil
	}
	call.Session.Metadata.PendingLeadResponse = &answer
	res.record(step.ID, step.Type(), fmt.Sprintf("answer %d pending", call.Session.Metadata.LeadQuestionIndex))
	e.askConfirm(call, res, config.MessageLeadConfirm, answer)
	return res, nil
}

// LeadConfirm commits or rejects the pending answer. A negative re-asks the same
// question; after the last confirmed answer the lead is built and the step finishes.
func (e *Engine) LeadConfirm(ctx context.Context, call *Call, speech string) (*Result, error) {
	if err := e.check(call); err != nil {
		return nil, err
	}
	step, err := e.currentLeadStep(call)
	if err != nil {
		return nil, err
	}

	res := newResult()
	meta := &call.Session.Metadata
	if meta.PendingLeadResponse == nil {
		e.askQuestion(call, res, step)
		return res, nil
	}
	pending := *meta.PendingLeadResponse

	switch {
	case e.classifier.IsAffirmative(speech):
		q := step.Questions[meta.LeadQuestionIndex]
		meta.LeadResponses = append(meta.LeadResponses, domain.LeadResponse{Label: q.Label, Value: pending, Field: q.Field})
		meta.LeadQuestionIndex++
		meta.PendingLeadResponse = nil
		res.record(step.ID, step.Type(), "confirmed "+q.Label)
	case e.classifier.IsNegative(speech):
		meta.PendingLeadResponse = nil
		res.record(step.ID, step.Type(), "rejected")
		res.Response.Say(config.MessageLeadReask)
		e.askQuestion(call, res, step)
		return res, nil
	default:
		e.askConfirm(call, res, config.MessageLeadConfirmRetry, pending)
		return res, nil
	}

	if meta.LeadQuestionIndex < len(step.Questions) {
		e.askQuestion(call, res, step)
		return res, nil
	}

	res.Lead = buildLead(call.Session, meta.LeadResponses)
	res.record(step.ID, step.Type(), "complete")

	completion := step.Completion
	if completion == "" {
		completion = config.MessageLeadThanks
	}
	res.Response.Say(completion)
	if step.NextStep == "" {
		res.Response.Hangup()
		return res, nil
	}
	if err := e.run(ctx, call, res, step.NextStep, 0); err != nil {
		return nil, err
	}
	return res, nil
}

// buildLead maps confirmed answers onto a lead: every answer becomes an ordered
// custom field, and answers tagged with a field also fill that column.
func buildLead(session *domain.CallSession, responses []domain.LeadResponse) *domain.Lead {
	lead := &domain.Lead{
		TenantID:  session.TenantID,
		SessionID: session.ID,
		Source:    domain.LeadSourceFlow,
	}
	for i, r := range responses {
		lead.CustomFields = append(lead.CustomFields, domain.LeadCustomField{Label: r.Label, Value: r.Value, Position: i})
		switch r.Field {
		case LeadFieldName:
			lead.Name = orRaw(conversation.ExtractName(r.Value), r.Value)
		case LeadFieldPhone:
			lead.Phone = orRaw(conversation.ExtractPhone(r.Value), r.Value)
		case LeadFieldEmail:
			lead.Email = orRaw(conversation.ExtractEmail(r.Value), r.Value)
		case LeadFieldReason:
			lead.Reason = r.Value
		}
	}
	if lead.Phone == "" && !withheldCallerIDs[strings.ToLower(session.FromNumber)] {
		lead.Phone = session.FromNumber
	}
	return lead
}

func orRaw(extracted, raw string) string {
	if extracted != "" {
		return extracted
	}
	return raw
}
