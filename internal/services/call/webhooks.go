package call

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/internal/core/conversation"
	"github.com/ClareAI/astra-receptionist-service/internal/core/flow"
	"github.com/ClareAI/astra-receptionist-service/internal/core/session"
	"github.com/ClareAI/astra-receptionist-service/internal/core/task"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/voice"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
)

func newID() string {
	return uuid.New().String()
}

// HandleIncoming answers a new call: it resolves the tenant by the dialed
// number, picks a flow or the AI receptionist, and creates the session.
// A retried delivery for a call that already has a session gets the stored response.
func (s *ReceptionistService) HandleIncoming(ctx context.Context, p CallbackParams) string {
	start := s.now()
	route := voice.PathIncoming
	ctx = logger.WithCall(ctx, p.CallSid, "")

	existing, err := s.repos.Session().GetByCallSid(ctx, p.CallSid)
	if err != nil {
		return s.failed(ctx, route, start, fmt.Errorf("%w: %v", domain.ErrPersistence, err))
	}
	if existing != nil {
		return s.replayIncoming(ctx, route, start, existing)
	}

	tenant, err := s.repos.Tenant().GetByPhoneNumber(ctx, p.To)
	if err != nil {
		return s.failed(ctx, route, start, fmt.Errorf("%w: %v", domain.ErrPersistence, err))
	}
	if tenant == nil || tenant.Disabled {
		logger.Warn(ctx, "No active tenant for dialed number", zap.String("to", p.To))
		s.metrics.RecordWebhook(route, "not_configured", s.now().Sub(start))
		return voice.SayAndHangup(config.MessageNotConfigured)
	}
	ctx = logger.WithFields(ctx, zap.String("tenant_id", tenant.ID))

	now := s.now()
	cb := &callback{
		params: p,
		route:  route,
		now:    now,
		tenant: tenant,
		create: true,
		session: &domain.CallSession{
			ID:         newID(),
			TenantID:   tenant.ID,
			CallSid:    p.CallSid,
			FromNumber: p.From,
			ToNumber:   p.To,
			Status:     domain.CallStatusInProgress,
			State:      domain.StateGreeting,
			StartedAt:  now,
			Metadata:   domain.SessionMetadata{Mode: domain.SessionModeAI, Seq: 1},
		},
		response: voice.NewResponse(),
	}
	cb.event(domain.EventCallStarted, domain.JSONB{"from": p.From, "to": p.To, "account_sid": p.AccountSid})

	if err := s.startCall(ctx, cb); err != nil {
		return s.failed(ctx, route, start, err)
	}
	cb.afterCommit(func(ctx context.Context) {
		info := session.CallInfo{CallSid: p.CallSid, TenantID: tenant.ID, Mode: string(cb.session.Metadata.Mode), StartTime: now}
		if err := s.sessions.Register(ctx, info); err != nil {
			logger.Warn(ctx, "Failed to register live call", zap.Error(err))
		}
		s.metrics.RecordCallStart()
	})

	markup, committed := s.finish(ctx, route, start, cb)
	if !committed {
		// A concurrent delivery of the same call may have won the insert
		if winner, err := s.repos.Session().GetByCallSid(ctx, p.CallSid); err == nil && winner != nil {
			return s.replayIncoming(ctx, route, start, winner)
		}
	}
	return markup
}

func (s *ReceptionistService) replayIncoming(ctx context.Context, route string, start time.Time, sess *domain.CallSession) string {
	logger.Info(ctx, "Incoming call already answered, serving stored response", zap.String("session_id", sess.ID))
	s.metrics.RecordReplay()
	s.metrics.RecordWebhook(route, "replay", s.now().Sub(start))
	if sess.Metadata.LastResponse == "" {
		return voice.Apology()
	}
	return sess.Metadata.LastResponse
}

// startCall routes a new call. A closed business uses its AFTER_HOURS flow, a
// caller redialing after an unanswered transfer its NO_ANSWER flow, and
// everyone else the MAIN_MENU flow. Without a matching flow the AI greets.
func (s *ReceptionistService) startCall(ctx context.Context, cb *callback) error {
	open := s.isOpen(ctx, cb.tenant, cb.now)

	var candidates []domain.FlowType
	if !open {
		candidates = append(candidates, domain.FlowTypeAfterHours)
	}
	if s.sessions.IsNoAnswerRedial(ctx, cb.tenant.ID, cb.session.FromNumber) {
		candidates = append(candidates, domain.FlowTypeNoAnswer)
	}
	candidates = append(candidates, domain.FlowTypeMainMenu)

	for _, flowType := range candidates {
		f, err := s.repos.Flow().GetActive(ctx, cb.tenant.ID, flowType)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}
		if f == nil {
			continue
		}
		cb.flow = f
		cb.event(domain.EventFlowSelected, domain.JSONB{
			"flow_id":   f.ID,
			"flow_type": string(f.FlowType),
			"version":   f.Version,
			"open":      open,
		})
		res, err := s.flows.Start(ctx, s.flowCall(cb))
		if err != nil {
			return err
		}
		s.applyFlow(ctx, cb, res)
		return nil
	}

	cb.event(domain.EventFlowSelected, domain.JSONB{"flow_type": string(domain.SessionModeAI), "open": open})
	greeting := conversation.Greeting(cb.tenant)
	gather := s.urls.Gather(cb.session.Metadata.Seq)
	cb.response.GatherSpeech(gather, greeting).Redirect(gather)
	cb.say(config.SpeakerAssistant, greeting)
	cb.event(domain.EventAssistantResponse, domain.JSONB{"text": greeting})
	return nil
}

// HandleGather receives speech for the AI receptionist or a gather_info step
func (s *ReceptionistService) HandleGather(ctx context.Context, p CallbackParams) string {
	return s.respond(ctx, voice.PathGather, p, func(ctx context.Context, cb *callback) error {
		switch {
		case p.Step != "" && cb.session.InFlow():
			return s.gatherInfo(ctx, cb)
		case p.Digits != "" && strings.TrimSpace(p.SpeechResult) == "":
			return s.aiDigits(ctx, cb)
		default:
			return s.converse(ctx, cb)
		}
	})
}

// HandleIVR receives a key press outside a flow menu
func (s *ReceptionistService) HandleIVR(ctx context.Context, p CallbackParams) string {
	return s.respond(ctx, voice.PathIVR, p, func(ctx context.Context, cb *callback) error {
		if cb.session.InFlow() {
			return s.menu(ctx, cb, cb.session.Metadata.CurrentStepID)
		}
		return s.aiDigits(ctx, cb)
	})
}

// HandleFlowMenu resolves a digit against the menu step named on the URL
func (s *ReceptionistService) HandleFlowMenu(ctx context.Context, p CallbackParams) string {
	return s.respond(ctx, voice.PathFlowMenu, p, func(ctx context.Context, cb *callback) error {
		if err := requireFlow(cb); err != nil {
			return err
		}
		stepID := p.Step
		if stepID == "" {
			stepID = cb.session.Metadata.CurrentStepID
		}
		return s.menu(ctx, cb, stepID)
	})
}

// HandleFlowStep runs the step named on the URL
func (s *ReceptionistService) HandleFlowStep(ctx context.Context, p CallbackParams) string {
	return s.respond(ctx, voice.PathFlowStep, p, func(ctx context.Context, cb *callback) error {
		if err := requireFlow(cb); err != nil {
			return err
		}
		stepID := p.Step
		if stepID == "" {
			stepID = cb.session.Metadata.CurrentStepID
		}
		res, err := s.flows.Execute(ctx, s.flowCall(cb), stepID)
		if err != nil {
			return err
		}
		s.applyFlow(ctx, cb, res)
		return nil
	})
}

// HandleTransferStatus receives the outcome of a transfer dial
func (s *ReceptionistService) HandleTransferStatus(ctx context.Context, p CallbackParams) string {
	return s.respond(ctx, voice.PathTransferStatus, p, func(ctx context.Context, cb *callback) error {
		status := p.DialCallStatus
		cb.event(domain.EventTransferResult, domain.JSONB{
			"status":   status,
			"duration": p.DialCallDuration,
			"dial_sid": p.DialCallSid,
			"step_id":  p.Step,
		})

		if status == CallStatusCompleted || status == CallStatusAnswered {
			cb.session.TransferSucceeded = true
			cb.response.Say(config.MessageTransferSucceeded).Hangup()
			cb.say(config.SpeakerAssistant, config.MessageTransferSucceeded)
			return nil
		}

		logger.Info(ctx, "Transfer did not connect", zap.String("dial_status", status))
		if status == CallStatusNoAnswer || status == CallStatusBusy {
			if err := s.sessions.MarkNoAnswer(ctx, cb.tenant.ID, cb.session.FromNumber); err != nil {
				logger.Warn(ctx, "Failed to remember unanswered transfer", zap.Error(err))
			}
		}

		if cb.session.InFlow() {
			res, err := s.flows.TransferFailed(ctx, s.flowCall(cb), p.Step)
			if err != nil {
				return err
			}
			s.applyFlow(ctx, cb, res)
			return nil
		}
		// TRANSFER_ATTEMPT advances without caller input
		cb.params.SpeechResult = ""
		return s.converse(ctx, cb)
	})
}

// HandleLeadAnswer receives the answer to the current collect_lead question
func (s *ReceptionistService) HandleLeadAnswer(ctx context.Context, p CallbackParams) string {
	return s.respond(ctx, voice.PathLeadAnswer, p, func(ctx context.Context, cb *callback) error {
		if err := requireFlow(cb); err != nil {
			return err
		}
		speech := strings.TrimSpace(p.SpeechResult)
		if s.silence(cb, speech) {
			return nil
		}
		if speech != "" {
			cb.say(config.SpeakerCaller, speech)
			cb.event(domain.EventLeadAnswer, domain.JSONB{"answer": speech, "question_index": cb.session.Metadata.LeadQuestionIndex})
		}
		res, err := s.flows.LeadAnswer(ctx, s.flowCall(cb), speech)
		if err != nil {
			return err
		}
		s.applyFlow(ctx, cb, res)
		return nil
	})
}

// HandleLeadConfirm receives the yes/no for a pending lead answer
func (s *ReceptionistService) HandleLeadConfirm(ctx context.Context, p CallbackParams) string {
	return s.respond(ctx, voice.PathLeadConfirm, p, func(ctx context.Context, cb *callback) error {
		if err := requireFlow(cb); err != nil {
			return err
		}
		speech := strings.TrimSpace(p.SpeechResult)
		if s.silence(cb, speech) {
			return nil
		}
		if speech != "" {
			cb.say(config.SpeakerCaller, speech)
			cb.event(domain.EventCallerInput, domain.JSONB{"speech": speech, "confirming": true})
		}
		res, err := s.flows.LeadConfirm(ctx, s.flowCall(cb), speech)
		if err != nil {
			return err
		}
		s.applyFlow(ctx, cb, res)
		return nil
	})
}

// HandleRecording receives both the voicemail recording (the Record action,
// caller-facing) and its transcription (a status callback)
func (s *ReceptionistService) HandleRecording(ctx context.Context, p CallbackParams) string {
	route := voice.PathRecordingStatus
	if p.IsTranscription() {
		_ = s.background(ctx, route, p.CallSid, p, func(ctx context.Context, cb *callback) error {
			s.storeTranscription(ctx, cb)
			return nil
		})
		return voice.NewResponse().MustRender()
	}
	if s.callEnded(ctx, p.CallSid) {
		// The caller hung up on the beep; keep the recording anyway
		_ = s.background(ctx, route, p.CallSid, p, func(ctx context.Context, cb *callback) error {
			s.storeRecording(cb)
			return nil
		})
		return voice.SayAndHangup(config.MessageVoicemailThanks)
	}
	return s.respond(ctx, route, p, func(ctx context.Context, cb *callback) error {
		s.storeRecording(cb)
		cb.response.Say(config.MessageVoicemailThanks).Hangup()
		cb.say(config.SpeakerAssistant, config.MessageVoicemailThanks)
		return nil
	})
}

// HandleDialStatus records progress events of a transfer leg. It never changes the call.
func (s *ReceptionistService) HandleDialStatus(ctx context.Context, p CallbackParams) error {
	parent := p.ParentCallSid
	if parent == "" {
		parent = p.CallSid
	}
	return s.background(ctx, voice.PathDialStatus, parent, p, func(ctx context.Context, cb *callback) error {
		if !s.sessions.MarkProcessed(ctx, p.CallSid, "dial:"+p.CallStatus) {
			return nil
		}
		cb.ifRolledBack(func(ctx context.Context) {
			s.sessions.ReleaseProcessed(ctx, p.CallSid, "dial:"+p.CallStatus)
		})
		cb.event(domain.EventDialLegStatus, domain.JSONB{
			"leg_sid":  p.CallSid,
			"status":   p.CallStatus,
			"duration": p.CallDuration,
		})
		return nil
	})
}

// HandleCallStatus completes the session when the provider reports a terminal status.
// Repeated terminal callbacks change nothing and enqueue no second summary.
func (s *ReceptionistService) HandleCallStatus(ctx context.Context, p CallbackParams) error {
	return s.background(ctx, voice.PathStatus, p.CallSid, p, func(ctx context.Context, cb *callback) error {
		status := p.CallStatus
		if !IsTerminalCallStatus(status) {
			return nil
		}
		if cb.session.Status != domain.CallStatusInProgress {
			logger.Debug(ctx, "Session already finished, ignoring status", zap.String("status", status))
			return nil
		}
		if !s.sessions.MarkProcessed(ctx, p.CallSid, "status:"+status) {
			return nil
		}
		cb.ifRolledBack(func(ctx context.Context) {
			s.sessions.ReleaseProcessed(ctx, p.CallSid, "status:"+status)
		})

		ended := cb.now
		cb.session.EndedAt = &ended
		cb.session.Status = domain.CallStatusCompleted
		if status == CallStatusFailed {
			cb.session.Status = domain.CallStatusFailed
		}
		duration, err := strconv.Atoi(p.CallDuration)
		if err != nil || duration < 0 {
			duration = int(ended.Sub(cb.session.StartedAt).Seconds())
		}
		cb.session.DurationSeconds = duration

		cb.event(domain.EventCallStatus, domain.JSONB{"status": status, "duration": duration})
		cb.enqueue(task.NewJob(task.TaskTypeSummarizeCall, domain.JSONB{
			task.PayloadSessionID: cb.session.ID,
			task.PayloadCallSid:   cb.session.CallSid,
			task.PayloadTenantID:  cb.tenant.ID,
		}, "summarize:"+cb.session.CallSid))

		cb.afterCommit(func(ctx context.Context) {
			if err := s.sessions.Unregister(ctx, p.CallSid); err != nil {
				logger.Warn(ctx, "Failed to unregister live call", zap.Error(err))
			}
			s.metrics.RecordCallEnd()
		})
		logger.Info(ctx, "Call finished", zap.String("status", status), zap.Int("duration_seconds", duration))
		return nil
	})
}

// background runs a status callback: no seq and no stored response. An unknown
// call is not an error; the provider has nothing to retry against.
func (s *ReceptionistService) background(ctx context.Context, route, callSid string, p CallbackParams, handle handleFunc) error {
	start := s.now()
	ctx = logger.WithCall(ctx, callSid, "")

	sess, err := s.repos.Session().GetByCallSid(ctx, callSid)
	if err != nil {
		logger.Error(ctx, "Status callback session lookup failed", zap.String("route", route), zap.Error(err))
		s.metrics.RecordWebhook(route, "persistence", s.now().Sub(start))
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if sess == nil {
		logger.Warn(ctx, "Status callback for unknown call", zap.String("route", route))
		s.metrics.RecordWebhook(route, "unknown_call", s.now().Sub(start))
		return nil
	}
	tenant, err := s.repos.Tenant().GetByID(ctx, sess.TenantID)
	if err != nil || tenant == nil {
		logger.Error(ctx, "Status callback tenant lookup failed", zap.String("route", route), zap.Error(err))
		s.metrics.RecordWebhook(route, "configuration", s.now().Sub(start))
		return fmt.Errorf("%w: tenant %s unavailable", domain.ErrConfiguration, sess.TenantID)
	}

	cb := &callback{params: p, route: route, now: s.now(), session: sess, tenant: tenant}
	if err := handle(ctx, cb); err != nil {
		logger.Error(ctx, "Status callback failed", zap.String("route", route), zap.Error(err))
		s.metrics.RecordWebhook(route, "internal", s.now().Sub(start))
		return err
	}
	if cb.hasWrites() {
		if err := s.commit(ctx, cb); err != nil {
			logger.Error(ctx, "Status callback commit failed", zap.String("route", route), zap.Error(err))
			s.metrics.RecordWebhook(route, "persistence", s.now().Sub(start))
			return err
		}
	}
	s.metrics.RecordWebhook(route, "ok", s.now().Sub(start))
	return nil
}

// converse feeds the caller's speech to the conversation machine
func (s *ReceptionistService) converse(ctx context.Context, cb *callback) error {
	speech := strings.TrimSpace(cb.params.SpeechResult)
	if speech == "" && cb.session.State != domain.StateTransferAttempt {
		if s.silence(cb, speech) {
			return nil
		}
		gather := s.urls.Gather(cb.session.Metadata.Seq)
		cb.response.GatherSpeech(gather, config.MessageRepromptEmpty).Redirect(gather)
		cb.say(config.SpeakerAssistant, config.MessageRepromptEmpty)
		return nil
	}
	if speech != "" {
		cb.session.Metadata.Reprompts = 0
		cb.say(config.SpeakerCaller, speech)
		cb.event(domain.EventCallerInput, domain.JSONB{"speech": speech, "confidence": cb.params.Confidence})
	}

	out, err := s.machine.Step(ctx, s.turn(ctx, cb, speech))
	if err != nil {
		return err
	}
	s.applyOutcome(ctx, cb, out)
	return nil
}

// aiDigits handles a key press while the AI has the call: 0 asks for a person
func (s *ReceptionistService) aiDigits(ctx context.Context, cb *callback) error {
	digits := strings.TrimSpace(cb.params.Digits)
	cb.event(domain.EventCallerInput, domain.JSONB{"digits": digits})
	if digits == "0" {
		out, err := s.machine.RequestHuman(ctx, s.turn(ctx, cb, ""))
		if err != nil {
			return err
		}
		s.applyOutcome(ctx, cb, out)
		return nil
	}
	gather := s.urls.Gather(cb.session.Metadata.Seq)
	cb.response.GatherSpeech(gather, config.MessageRepromptEmpty).Redirect(gather)
	cb.say(config.SpeakerAssistant, config.MessageRepromptEmpty)
	return nil
}

func (s *ReceptionistService) turn(ctx context.Context, cb *callback, utterance string) conversation.Turn {
	return conversation.Turn{
		Session:   cb.session,
		Tenant:    cb.tenant,
		History:   cb.history,
		Utterance: utterance,
		Open:      s.isOpen(ctx, cb.tenant, cb.now),
		Now:       cb.now,
	}
}

// applyOutcome renders a conversation outcome and records its audit trail
func (s *ReceptionistService) applyOutcome(ctx context.Context, cb *callback, out *conversation.Outcome) {
	for _, tr := range out.Transitions {
		cb.event(domain.EventStateTransition, domain.JSONB{"from": string(tr.From), "to": string(tr.To)})
	}
	cb.say(config.SpeakerAssistant, out.Reply)
	cb.event(domain.EventAssistantResponse, domain.JSONB{"text": out.Reply})
	s.captureLead(ctx, cb, out.Lead)

	seq := cb.session.Metadata.Seq
	gather := s.urls.Gather(seq)
	switch out.Effect {
	case conversation.EffectTransfer:
		cb.response.Say(out.Reply)
		if cb.tenant.TransferNumber == "" {
			logger.Warn(ctx, "Tenant has no transfer number, treating transfer as unanswered")
			cb.response.Redirect(gather)
			return
		}
		cb.session.TransferAttempted = true
		cb.event(domain.EventTransferInitiated, domain.JSONB{"number": cb.tenant.TransferNumber})
		cb.response.Dial(cb.tenant.TransferNumber, s.urls.TransferStatus(seq, ""), s.urls.Status(voice.PathDialStatus), cb.session.ToNumber, 0)
	case conversation.EffectEndCall:
		cb.response.Say(out.Reply).Hangup()
	default:
		cb.response.GatherSpeech(gather, out.Reply).Redirect(gather)
	}
}

func (s *ReceptionistService) gatherInfo(ctx context.Context, cb *callback) error {
	speech := strings.TrimSpace(cb.params.SpeechResult)
	if speech != "" {
		cb.say(config.SpeakerCaller, speech)
		cb.event(domain.EventCallerInput, domain.JSONB{"speech": speech, "step_id": cb.params.Step})
	}
	res, err := s.flows.GatherInfo(ctx, s.flowCall(cb), cb.params.Step, speech)
	if err != nil {
		return err
	}
	s.applyFlow(ctx, cb, res)
	return nil
}

func (s *ReceptionistService) menu(ctx context.Context, cb *callback, stepID string) error {
	cb.event(domain.EventMenuSelection, domain.JSONB{"step_id": stepID, "digits": cb.params.Digits})
	res, err := s.flows.Menu(ctx, s.flowCall(cb), stepID, cb.params.Digits)
	if err != nil {
		return err
	}
	s.applyFlow(ctx, cb, res)
	return nil
}

func (s *ReceptionistService) flowCall(cb *callback) *flow.Call {
	return &flow.Call{Session: cb.session, Tenant: cb.tenant, Flow: cb.flow, Now: cb.now}
}

// applyFlow adopts a flow result as the callback's response
func (s *ReceptionistService) applyFlow(ctx context.Context, cb *callback, res *flow.Result) {
	cb.response = res.Response
	for _, step := range res.Steps {
		cb.event(domain.EventStepExecuted, domain.JSONB{
			"step_id":   step.StepID,
			"step_type": string(step.Type),
			"detail":    step.Detail,
		})
	}
	cb.say(config.SpeakerAssistant, res.Response.Transcript())
	s.captureLead(ctx, cb, res.Lead)
	if res.HandedOff {
		logger.Info(ctx, "Flow handed the call to the receptionist", zap.String("step_id", cb.session.Metadata.CurrentStepID))
	}
}

// silence applies the empty-speech policy. It reports whether the call was ended;
// otherwise the caller should re-prompt.
func (s *ReceptionistService) silence(cb *callback, speech string) bool {
	meta := &cb.session.Metadata
	if speech != "" {
		meta.Reprompts = 0
		return false
	}
	meta.Reprompts++
	if meta.Reprompts <= config.DefaultEmptySpeechRetry {
		return false
	}
	cb.response.Say(config.MessageNoInputGoodbye).Hangup()
	cb.say(config.SpeakerAssistant, config.MessageNoInputGoodbye)
	return true
}

func (s *ReceptionistService) storeRecording(cb *callback) {
	p := cb.params
	if p.RecordingURL == "" {
		return
	}
	cb.session.Metadata.RecordingURL = p.RecordingURL
	cb.event(domain.EventRecording, domain.JSONB{
		"kind":          "recording",
		"recording_sid": p.RecordingSid,
		"duration":      p.RecordingDuration,
	})
	cb.enqueue(task.NewJob(task.TaskTypeArchiveRecording, domain.JSONB{
		task.PayloadSessionID:    cb.session.ID,
		task.PayloadTenantID:     cb.tenant.ID,
		task.PayloadCallSid:      cb.session.CallSid,
		task.PayloadRecordingURL: p.RecordingURL,
		task.PayloadRecordingSid: p.RecordingSid,
	}, "archive:"+recordingKey(p)))
}

func (s *ReceptionistService) storeTranscription(ctx context.Context, cb *callback) {
	p := cb.params
	meta := &cb.session.Metadata
	meta.Transcription = p.TranscriptionText
	if meta.RecordingURL == "" {
		meta.RecordingURL = p.RecordingURL
	}
	cb.event(domain.EventRecording, domain.JSONB{
		"kind":          "transcription",
		"status":        p.TranscriptionStatus,
		"recording_sid": p.RecordingSid,
	})
	cb.enqueue(task.NewJob(task.TaskTypeVoicemailNotification, domain.JSONB{
		task.PayloadSessionID:     cb.session.ID,
		task.PayloadTenantID:      cb.tenant.ID,
		task.PayloadCallSid:       cb.session.CallSid,
		task.PayloadFromNumber:    cb.session.FromNumber,
		task.PayloadRecordingURL:  meta.RecordingURL,
		task.PayloadTranscription: p.TranscriptionText,
	}, "voicemail:"+recordingKey(p)))
	logger.Info(ctx, "Voicemail transcription received", zap.String("status", p.TranscriptionStatus))
}

// callEnded reports whether the call's session is already finished
func (s *ReceptionistService) callEnded(ctx context.Context, callSid string) bool {
	sess, err := s.repos.Session().GetByCallSid(ctx, callSid)
	return err == nil && sess != nil && sess.Status != domain.CallStatusInProgress
}

func recordingKey(p CallbackParams) string {
	if p.RecordingSid != "" {
		return p.RecordingSid
	}
	return p.CallSid
}

func requireFlow(cb *callback) error {
	if !cb.session.InFlow() {
		return fmt.Errorf("%w: session %s is not running a flow", domain.ErrConfiguration, cb.session.ID)
	}
	return nil
}
