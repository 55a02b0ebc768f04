package call

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/internal/core/conversation"
	"github.com/ClareAI/astra-receptionist-service/internal/core/flow"
	"github.com/ClareAI/astra-receptionist-service/internal/core/session"
	"github.com/ClareAI/astra-receptionist-service/internal/core/task"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/repository"
	"github.com/ClareAI/astra-receptionist-service/internal/repository/sqlitetest"
	"github.com/ClareAI/astra-receptionist-service/internal/services/knowledge"
	"github.com/ClareAI/astra-receptionist-service/internal/voice"
	"github.com/ClareAI/astra-receptionist-service/internal/voice/voicetest"
	"github.com/ClareAI/astra-receptionist-service/pkg/redis"
)

const (
	baseURL       = "https://voice.example.com"
	tenantNumber  = "+15559990000"
	callerNumber  = "+15550001111"
	transferPhone = "+15551230000"
)

type switchHours struct{ open bool }

func (h *switchHours) IsOpen(ctx context.Context, tenant *domain.Tenant, at time.Time) (bool, error) {
	return h.open, nil
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	svc    *ReceptionistService
	repos  *repository.GormRepositoryManager
	db     *gorm.DB
	redis  *miniredis.Miniredis
	hours  *switchHours
	tenant *domain.Tenant
}

func newHarness(t *testing.T, open bool) *harness {
	t.Helper()
	ctx := context.Background()
	db := sqlitetest.Open(t)
	repos := repository.NewGormRepositoryManager(db)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hours := &switchHours{open: open}
	urls := voice.NewURLBuilder(baseURL)
	classifier := conversation.NewPatternClassifier()
	engine := flow.NewEngine(hours, classifier, urls, nil)
	machine := conversation.NewMachine(classifier, knowledge.NewService(repos.Knowledge()), nil, nil)
	sessions := session.NewManager(redis.NewRedisServiceFromClient(client), "pod-test")

	svc := NewReceptionistService(repos, sessions, hours, engine, machine, task.NewQueue(nil), urls, nil, "pod-test")
	clock := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	tenant := &domain.Tenant{
		ID:             "t1",
		Name:           "Acme Dental",
		PhoneNumber:    tenantNumber,
		TransferNumber: transferPhone,
		Timezone:       "UTC",
	}
	require.NoError(t, repos.Tenant().Create(ctx, tenant))

	return &harness{t: t, ctx: ctx, svc: svc, repos: repos, db: db, redis: mr, hours: hours, tenant: tenant}
}

func (h *harness) params(seq int) CallbackParams {
	return CallbackParams{CallSid: "CA1", From: callerNumber, To: tenantNumber, Seq: seq}
}

func (h *harness) incoming() voicetest.Document {
	h.t.Helper()
	return voicetest.Parse(h.t, h.svc.HandleIncoming(h.ctx, h.params(-1)))
}

func (h *harness) say(seq int, speech string) voicetest.Document {
	h.t.Helper()
	p := h.params(seq)
	p.SpeechResult = speech
	return voicetest.Parse(h.t, h.svc.HandleGather(h.ctx, p))
}

func (h *harness) session() *domain.CallSession {
	h.t.Helper()
	sess, err := h.repos.Session().GetByCallSid(h.ctx, "CA1")
	require.NoError(h.t, err)
	require.NotNil(h.t, sess)
	return sess
}

func (h *harness) transcript() []*domain.ConversationTurn {
	h.t.Helper()
	turns, err := h.repos.Transcript().List(h.ctx, h.session().ID)
	require.NoError(h.t, err)
	return turns
}

func (h *harness) events(eventType domain.CallEventType) []*domain.CallEvent {
	h.t.Helper()
	all, err := h.repos.Event().ListBySession(h.ctx, h.session().ID)
	require.NoError(h.t, err)
	var out []*domain.CallEvent
	for _, ev := range all {
		if ev.EventType == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func (h *harness) addFlow(flowType domain.FlowType, def domain.Definition) {
	h.t.Helper()
	require.NoError(h.t, h.repos.Flow().SaveActive(h.ctx, &domain.Flow{
		ID:         string(flowType) + "-flow",
		TenantID:   h.tenant.ID,
		FlowType:   flowType,
		Name:       string(flowType),
		Definition: def,
	}))
}

func TestIncomingGreetsWithAIWhenNoFlow(t *testing.T) {
	h := newHarness(t, true)
	doc := h.incoming()

	assert.Equal(t, []string{"Gather", "Redirect"}, doc.Names())
	assert.Equal(t, baseURL+"/voice/gather?seq=1", doc.Verbs[0].Attr("action"))
	assert.Equal(t, baseURL+"/voice/gather?seq=1", doc.Verbs[1].Text)
	assert.Equal(t, "Thank you for calling Acme Dental. How can I help you today?", doc.Spoken())

	sess := h.session()
	assert.Equal(t, domain.StateGreeting, sess.State)
	assert.Equal(t, domain.CallStatusInProgress, sess.Status)
	assert.Equal(t, domain.SessionModeAI, sess.Metadata.Mode)
	assert.Equal(t, 1, sess.Metadata.Seq)
	assert.NotEmpty(t, sess.Metadata.LastResponse)

	turns := h.transcript()
	require.Len(t, turns, 1)
	assert.Equal(t, config.SpeakerAssistant, turns[0].Speaker)
	assert.Len(t, h.events(domain.EventCallStarted), 1)
	assert.Len(t, h.events(domain.EventFlowSelected), 1)
}

func TestIncomingUnknownNumberIsNotConfigured(t *testing.T) {
	h := newHarness(t, true)
	p := h.params(-1)
	p.To = "+15550000000"

	doc := voicetest.Parse(t, h.svc.HandleIncoming(h.ctx, p))
	assert.Equal(t, config.MessageNotConfigured, doc.Spoken())
	assert.True(t, doc.HangsUp())

	sess, err := h.repos.Session().GetByCallSid(h.ctx, "CA1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestIncomingRetryServesStoredResponse(t *testing.T) {
	h := newHarness(t, true)
	first := h.svc.HandleIncoming(h.ctx, h.params(-1))
	second := h.svc.HandleIncoming(h.ctx, h.params(-1))

	assert.Equal(t, first, second)
	assert.Len(t, h.transcript(), 1)
	assert.Len(t, h.events(domain.EventCallStarted), 1)
}

func TestIncomingClosedUsesAfterHoursFlow(t *testing.T) {
	h := newHarness(t, false)
	h.addFlow(domain.FlowTypeMainMenu, domain.Definition{EntryPoint: "hi", Steps: []domain.Step{
		&domain.MessageStep{ID: "hi", Message: "Main menu."},
	}})
	h.addFlow(domain.FlowTypeAfterHours, domain.Definition{EntryPoint: "closed", Steps: []domain.Step{
		&domain.MessageStep{ID: "closed", Message: "We are closed. Call back tomorrow."},
	}})

	doc := h.incoming()
	assert.Equal(t, "We are closed. Call back tomorrow.", doc.Spoken())
	assert.True(t, doc.HangsUp())

	sess := h.session()
	assert.Equal(t, domain.FlowTypeAfterHours, sess.Metadata.FlowType)
	assert.Len(t, h.events(domain.EventStepExecuted), 1)
}

func TestFAQAnswerMovesToFAQ(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.repos.Knowledge().CreateFAQ(h.ctx, &domain.FAQ{
		TenantID: h.tenant.ID, Category: "general", Question: "What are your hours?", Answer: "We are open nine to five.", IsActive: true,
	}))
	h.incoming()

	doc := h.say(1, "what are your hours")
	assert.Equal(t, []string{"Gather", "Redirect"}, doc.Names())
	assert.Equal(t, "We are open nine to five.", doc.Spoken())
	assert.Equal(t, baseURL+"/voice/gather?seq=2", doc.Verbs[0].Attr("action"))

	sess := h.session()
	assert.Equal(t, domain.StateFAQ, sess.State)
	assert.Equal(t, "info", sess.Metadata.Intent)
	assert.Len(t, h.events(domain.EventStateTransition), 2)

	turns := h.transcript()
	require.Len(t, turns, 3)
	assert.Equal(t, config.SpeakerCaller, turns[1].Speaker)
	assert.Equal(t, "what are your hours", turns[1].Text)
	for i, turn := range turns {
		assert.Equal(t, i+1, turn.Sequence)
		assert.True(t, turn.State.Valid())
	}
}

func TestReplayedGatherWritesNothing(t *testing.T) {
	h := newHarness(t, true)
	h.incoming()

	first := h.svc.HandleGather(h.ctx, CallbackParams{CallSid: "CA1", Seq: 1, SpeechResult: "hello"})
	before := len(h.transcript())

	second := h.svc.HandleGather(h.ctx, CallbackParams{CallSid: "CA1", Seq: 1, SpeechResult: "hello"})
	assert.Equal(t, first, second)
	assert.Len(t, h.transcript(), before)
	assert.Equal(t, 2, h.session().Metadata.Seq)
}

func TestHumanRequestWhileOpenDialsTransferNumber(t *testing.T) {
	h := newHarness(t, true)
	h.incoming()

	doc := h.say(1, "I want to speak to someone")
	dial, ok := doc.Find("Dial")
	require.True(t, ok)
	assert.Equal(t, baseURL+"/voice/transfer-status?seq=2", dial.Attr("action"))
	assert.Equal(t, tenantNumber, dial.Attr("callerId"))
	number, ok := doc.Find("Number")
	require.True(t, ok)
	assert.Equal(t, transferPhone, number.Text)

	sess := h.session()
	assert.Equal(t, domain.StateTransferAttempt, sess.State)
	assert.True(t, sess.TransferAttempted)

	// nobody picks up
	p := h.params(2)
	p.DialCallStatus = CallStatusNoAnswer
	doc = voicetest.Parse(t, h.svc.HandleTransferStatus(h.ctx, p))
	assert.Equal(t, config.MessageTransferFailed, doc.Spoken())

	sess = h.session()
	assert.Equal(t, domain.StateLeadCapture, sess.State)
	assert.False(t, sess.TransferSucceeded)
	assert.Len(t, h.events(domain.EventTransferResult), 1)
	assert.True(t, h.svc.sessions.IsNoAnswerRedial(h.ctx, h.tenant.ID, callerNumber))
}

func TestAnsweredTransferEndsCall(t *testing.T) {
	h := newHarness(t, true)
	h.incoming()
	h.say(1, "operator please")

	p := h.params(2)
	p.DialCallStatus = CallStatusCompleted
	doc := voicetest.Parse(t, h.svc.HandleTransferStatus(h.ctx, p))
	assert.Equal(t, config.MessageTransferSucceeded, doc.Spoken())
	assert.True(t, doc.HangsUp())
	assert.True(t, h.session().TransferSucceeded)
}

func TestClosedLeadCaptureStoresOneLead(t *testing.T) {
	h := newHarness(t, false)
	h.incoming()

	doc := h.say(1, "can I talk to a person")
	assert.Equal(t, config.MessageClosedLeadAsk, doc.Spoken())
	assert.Equal(t, domain.StateLeadCapture, h.session().State)

	h.say(2, "My name is John Smith")
	h.say(3, "555-123-4567")
	h.say(4, "my email is jane at example dot com")
	final := h.svc.HandleGather(h.ctx, CallbackParams{CallSid: "CA1", Seq: 5, SpeechResult: "I need a quote for a crown"})

	doc = voicetest.Parse(t, final)
	assert.True(t, doc.HangsUp())
	assert.Contains(t, doc.Spoken(), "John Smith")

	sess := h.session()
	assert.Equal(t, domain.StateEnded, sess.State)
	assert.True(t, sess.LeadCaptured)

	lead, err := h.repos.Lead().GetBySessionID(h.ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, "John Smith", lead.Name)
	assert.Equal(t, "+15551234567", lead.Phone)
	assert.Equal(t, "jane@example.com", lead.Email)
	assert.Equal(t, "I need a quote for a crown", lead.Reason)
	assert.Equal(t, domain.LeadSourceReceptionist, lead.Source)

	// the provider retries the final callback
	again := h.svc.HandleGather(h.ctx, CallbackParams{CallSid: "CA1", Seq: 5, SpeechResult: "I need a quote for a crown"})
	assert.Equal(t, final, again)

	count, err := h.repos.Lead().CountBySessionID(h.ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	jobs, err := h.repos.Job().CountByDedupeKey(h.ctx, "lead:"+sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), jobs)
}

func TestEmptySpeechRepromptsOnceThenHangsUp(t *testing.T) {
	h := newHarness(t, true)
	h.incoming()

	doc := h.say(1, "")
	assert.Equal(t, config.MessageRepromptEmpty, doc.Spoken())
	assert.False(t, doc.HangsUp())
	assert.Equal(t, 1, h.session().Metadata.Reprompts)

	doc = h.say(2, "")
	assert.Equal(t, config.MessageNoInputGoodbye, doc.Spoken())
	assert.True(t, doc.HangsUp())
	assert.Equal(t, domain.StateGreeting, h.session().State)
}

func TestDigitZeroRequestsHuman(t *testing.T) {
	h := newHarness(t, true)
	h.incoming()

	p := h.params(1)
	p.Digits = "0"
	doc := voicetest.Parse(t, h.svc.HandleGather(h.ctx, p))
	_, ok := doc.Find("Dial")
	assert.True(t, ok)
	assert.Equal(t, domain.StateTransferAttempt, h.session().State)
}

func TestCompletedStatusIsIdempotent(t *testing.T) {
	h := newHarness(t, true)
	h.incoming()

	p := h.params(-1)
	p.CallStatus = CallStatusCompleted
	p.CallDuration = "42"
	require.NoError(t, h.svc.HandleCallStatus(h.ctx, p))
	h.redis.FlushAll() // lose the marker; the session guard still holds
	require.NoError(t, h.svc.HandleCallStatus(h.ctx, p))

	sess := h.session()
	assert.Equal(t, domain.CallStatusCompleted, sess.Status)
	assert.Equal(t, 42, sess.DurationSeconds)
	require.NotNil(t, sess.EndedAt)
	assert.Len(t, h.events(domain.EventCallStatus), 1)

	jobs, err := h.repos.Job().CountByDedupeKey(h.ctx, "summarize:CA1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), jobs)

	// a late caller-facing callback gets a goodbye
	doc := h.say(1, "hello?")
	assert.True(t, doc.HangsUp())
}

func TestCompletedStatusRetriedAfterFailedCommit(t *testing.T) {
	h := newHarness(t, true)
	h.incoming()

	p := h.params(-1)
	p.CallStatus = CallStatusCompleted
	p.CallDuration = "30"

	require.NoError(t, h.db.Migrator().DropTable(&domain.Job{}))
	err := h.svc.HandleCallStatus(h.ctx, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, domain.CallStatusInProgress, h.session().Status)

	require.NoError(t, repository.AutoMigrate(h.db))
	require.NoError(t, h.svc.HandleCallStatus(h.ctx, p))

	sess := h.session()
	assert.Equal(t, domain.CallStatusCompleted, sess.Status)
	assert.Equal(t, 30, sess.DurationSeconds)
	jobs, err := h.repos.Job().CountByDedupeKey(h.ctx, "summarize:CA1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), jobs)
}

func TestNonTerminalStatusChangesNothing(t *testing.T) {
	h := newHarness(t, true)
	h.incoming()

	p := h.params(-1)
	p.CallStatus = CallStatusRinging
	require.NoError(t, h.svc.HandleCallStatus(h.ctx, p))

	assert.Equal(t, domain.CallStatusInProgress, h.session().Status)
	assert.Empty(t, h.events(domain.EventCallStatus))
}

func TestStatusForUnknownCallIsIgnored(t *testing.T) {
	h := newHarness(t, true)
	p := h.params(-1)
	p.CallStatus = CallStatusCompleted
	assert.NoError(t, h.svc.HandleCallStatus(h.ctx, p))
}

func TestGatherForUnknownCallApologizes(t *testing.T) {
	h := newHarness(t, true)
	doc := h.say(1, "hello")
	assert.Equal(t, config.MessageApology, doc.Spoken())
	assert.True(t, doc.HangsUp())
}

func menuFlow() domain.Definition {
	return domain.Definition{EntryPoint: "main", Steps: []domain.Step{
		&domain.MenuStep{ID: "main", Prompt: "Press 1 for the front desk, 2 to leave a message, 3 for our assistant.", Options: map[string]domain.MenuOption{
			"1": {Action: domain.MenuActionTransfer, Number: transferPhone},
			"2": {Action: domain.MenuActionVoicemail},
			"3": {Action: domain.MenuActionAI},
		}},
	}}
}

func TestFlowMenuTransferFailureEndsCall(t *testing.T) {
	h := newHarness(t, true)
	h.addFlow(domain.FlowTypeMainMenu, menuFlow())

	doc := h.incoming()
	assert.Equal(t, baseURL+"/voice/flow/menu?seq=1&step=main", doc.Verbs[0].Attr("action"))

	p := h.params(1)
	p.Step = "main"
	p.Digits = "1"
	doc = voicetest.Parse(t, h.svc.HandleFlowMenu(h.ctx, p))
	dial, ok := doc.Find("Dial")
	require.True(t, ok)
	assert.Equal(t, baseURL+"/voice/transfer-status?seq=2&step=main", dial.Attr("action"))
	assert.Len(t, h.events(domain.EventMenuSelection), 1)

	p = h.params(2)
	p.Step = "main"
	p.DialCallStatus = CallStatusBusy
	doc = voicetest.Parse(t, h.svc.HandleTransferStatus(h.ctx, p))
	assert.Equal(t, config.MessageFlowTransferFail, doc.Spoken())
	assert.True(t, doc.HangsUp())
}

func TestFlowMenuInvalidDigitHangsUp(t *testing.T) {
	h := newHarness(t, true)
	h.addFlow(domain.FlowTypeMainMenu, menuFlow())
	h.incoming()

	p := h.params(1)
	p.Step = "main"
	p.Digits = "9"
	doc := voicetest.Parse(t, h.svc.HandleFlowMenu(h.ctx, p))
	assert.Equal(t, config.MessageInvalidSelection, doc.Spoken())
	assert.True(t, doc.HangsUp())
	assert.Equal(t, "9", h.session().Metadata.LastSelection)
}

func TestFlowHandOffContinuesWithAI(t *testing.T) {
	h := newHarness(t, true)
	h.addFlow(domain.FlowTypeMainMenu, menuFlow())
	h.incoming()

	p := h.params(1)
	p.Step = "main"
	p.Digits = "3"
	doc := voicetest.Parse(t, h.svc.HandleFlowMenu(h.ctx, p))
	assert.Equal(t, baseURL+"/voice/gather?seq=2", doc.Verbs[0].Attr("action"))
	assert.Equal(t, domain.SessionModeAI, h.session().Metadata.Mode)

	doc = h.say(2, "I want to speak to someone")
	_, ok := doc.Find("Dial")
	assert.True(t, ok)
	assert.Equal(t, domain.StateTransferAttempt, h.session().State)
}

func TestVoicemailRecordingAndTranscription(t *testing.T) {
	h := newHarness(t, true)
	h.addFlow(domain.FlowTypeMainMenu, menuFlow())
	h.incoming()

	p := h.params(1)
	p.Step = "main"
	p.Digits = "2"
	doc := voicetest.Parse(t, h.svc.HandleFlowMenu(h.ctx, p))
	record, ok := doc.Find("Record")
	require.True(t, ok)
	assert.Equal(t, baseURL+"/voice/recording-status?seq=2", record.Attr("action"))

	rec := h.params(2)
	rec.RecordingURL = "https://api.twilio.com/recordings/RE1"
	rec.RecordingSid = "RE1"
	rec.RecordingDuration = "12"
	doc = voicetest.Parse(t, h.svc.HandleRecording(h.ctx, rec))
	assert.Equal(t, config.MessageVoicemailThanks, doc.Spoken())
	assert.Equal(t, "https://api.twilio.com/recordings/RE1", h.session().Metadata.RecordingURL)

	tr := h.params(-1)
	tr.RecordingSid = "RE1"
	tr.RecordingURL = "https://api.twilio.com/recordings/RE1"
	tr.TranscriptionStatus = "completed"
	tr.TranscriptionText = "Please call me back about my appointment."
	h.svc.HandleRecording(h.ctx, tr)
	h.svc.HandleRecording(h.ctx, tr)

	assert.Equal(t, "Please call me back about my appointment.", h.session().Metadata.Transcription)
	for _, key := range []string{"archive:RE1", "voicemail:RE1"} {
		n, err := h.repos.Job().CountByDedupeKey(h.ctx, key)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, key)
	}
}

func TestFlowLeadCollectionStoresLead(t *testing.T) {
	h := newHarness(t, true)
	h.addFlow(domain.FlowTypeMainMenu, domain.Definition{EntryPoint: "lead", Steps: []domain.Step{
		&domain.CollectLeadStep{ID: "lead", Intro: "Let's take your details.", Questions: []domain.LeadQuestion{
			{Label: "Name", Prompt: "What is your name?", Field: "name"},
			{Label: "Pet", Prompt: "What is your pet's name?"},
		}},
	}})

	doc := h.incoming()
	assert.Equal(t, baseURL+"/voice/lead/answer?seq=1", doc.Verbs[1].Attr("action"))

	answer := func(seq int, speech string) voicetest.Document {
		p := h.params(seq)
		p.SpeechResult = speech
		return voicetest.Parse(t, h.svc.HandleLeadAnswer(h.ctx, p))
	}
	confirm := func(seq int, speech string) voicetest.Document {
		p := h.params(seq)
		p.SpeechResult = speech
		return voicetest.Parse(t, h.svc.HandleLeadConfirm(h.ctx, p))
	}

	doc = answer(1, "Jane Doe")
	assert.Contains(t, doc.Spoken(), "I heard: Jane Doe")
	confirm(2, "yes")
	answer(3, "Rex")
	doc = confirm(4, "no")
	assert.Contains(t, doc.Spoken(), config.MessageLeadReask)
	answer(5, "Max")
	doc = confirm(6, "yes")
	assert.Equal(t, config.MessageLeadThanks, doc.Spoken())
	assert.True(t, doc.HangsUp())

	lead, err := h.repos.Lead().GetBySessionID(h.ctx, h.session().ID)
	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, domain.LeadSourceFlow, lead.Source)
	assert.Equal(t, "Jane Doe", lead.Name)
	assert.Equal(t, callerNumber, lead.Phone)
	require.Len(t, lead.CustomFields, 2)
	assert.Equal(t, "Pet", lead.CustomFields[1].Label)
	assert.Equal(t, "Max", lead.CustomFields[1].Value)
	assert.Len(t, h.events(domain.EventLeadAnswer), 3)
}

func TestDialLegStatusIsRecordedOnce(t *testing.T) {
	h := newHarness(t, true)
	h.incoming()

	p := CallbackParams{CallSid: "CA-leg", ParentCallSid: "CA1", CallStatus: "ringing", Seq: -1}
	require.NoError(t, h.svc.HandleDialStatus(h.ctx, p))
	require.NoError(t, h.svc.HandleDialStatus(h.ctx, p))

	assert.Len(t, h.events(domain.EventDialLegStatus), 1)
}
