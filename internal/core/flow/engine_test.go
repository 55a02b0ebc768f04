package flow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/internal/core/conversation"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/voice"
	"github.com/ClareAI/astra-receptionist-service/internal/voice/voicetest"
)

type fixedHours bool

func (f fixedHours) IsOpen(ctx context.Context, tenant *domain.Tenant, at time.Time) (bool, error) {
	return bool(f), nil
}

const baseURL = "https://voice.example.com"

func newEngine(open bool) *Engine {
	return NewEngine(fixedHours(open), conversation.NewPatternClassifier(), voice.NewURLBuilder(baseURL), nil)
}

func newCall(def domain.Definition) *Call {
	return &Call{
		Session: &domain.CallSession{ID: "s1", TenantID: "t1", CallSid: "CA1", FromNumber: "+15550001111", ToNumber: "+15559990000",
			Metadata: domain.SessionMetadata{Seq: 4}},
		Tenant: &domain.Tenant{ID: "t1", Name: "Acme Dental"},
		Flow:   &domain.Flow{ID: "f1", TenantID: "t1", FlowType: domain.FlowTypeMainMenu, Definition: def},
		Now:    time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
	}
}

func menuFlow() domain.Definition {
	return domain.Definition{
		EntryPoint: "main",
		Steps: []domain.Step{
			&domain.MenuStep{ID: "main", Prompt: "Press 1 for sales, 2 to leave a message.", Options: map[string]domain.MenuOption{
				"1": {Action: domain.MenuActionTransfer, Number: "+15551230000"},
				"2": {Action: domain.MenuActionVoicemail},
			}},
		},
	}
}

func render(t *testing.T, res *Result) voicetest.Document {
	t.Helper()
	out, err := res.Response.Render()
	require.NoError(t, err)
	return voicetest.Parse(t, out)
}

func TestStartRendersMenuGather(t *testing.T) {
	call := newCall(menuFlow())
	res, err := newEngine(true).Start(context.Background(), call)
	require.NoError(t, err)

	doc := render(t, res)
	assert.Equal(t, []string{"Gather", "Say", "Hangup"}, doc.Names())
	assert.Equal(t, baseURL+"/voice/flow/menu?seq=4&step=main", doc.Verbs[0].Attr("action"))
	assert.Equal(t, "dtmf", doc.Verbs[0].Attr("input"))
	assert.Equal(t, "main", call.Session.Metadata.CurrentStepID)
	assert.Equal(t, domain.SessionModeFlow, call.Session.Metadata.Mode)
	assert.Equal(t, "f1", call.Session.Metadata.FlowID)
}

func TestMenuInvalidDigitEndsCall(t *testing.T) {
	call := newCall(menuFlow())
	res, err := newEngine(true).Menu(context.Background(), call, "main", "9")
	require.NoError(t, err)

	doc := render(t, res)
	assert.Equal(t, []string{"Say", "Hangup"}, doc.Names())
	assert.Equal(t, config.MessageInvalidSelection, doc.Spoken())
	assert.True(t, doc.HangsUp())
	assert.Equal(t, "9", call.Session.Metadata.LastSelection)
}

func TestMenuNoInputEndsCall(t *testing.T) {
	res, err := newEngine(true).Menu(context.Background(), newCall(menuFlow()), "main", "")
	require.NoError(t, err)
	assert.Equal(t, config.MessageMenuNoInput, render(t, res).Spoken())
}

func TestMenuTransferDials(t *testing.T) {
	call := newCall(menuFlow())
	res, err := newEngine(true).Menu(context.Background(), call, "main", "1")
	require.NoError(t, err)

	doc := render(t, res)
	dial, ok := doc.Find("Dial")
	require.True(t, ok)
	assert.Equal(t, baseURL+"/voice/transfer-status?seq=4&step=main", dial.Attr("action"))
	number, ok := doc.Find("Number")
	require.True(t, ok)
	assert.Equal(t, "+15551230000", number.Text)
	assert.Equal(t, baseURL+"/voice/dial-status", number.Attr("statusCallback"))
	assert.True(t, call.Session.TransferAttempted)
}

func TestMenuVoicemailRecords(t *testing.T) {
	res, err := newEngine(true).Menu(context.Background(), newCall(menuFlow()), "main", "2")
	require.NoError(t, err)

	doc := render(t, res)
	rec, ok := doc.Find("Record")
	require.True(t, ok)
	assert.Equal(t, baseURL+"/voice/recording-status?seq=4", rec.Attr("action"))
	assert.Equal(t, baseURL+"/voice/recording-status", rec.Attr("transcribeCallback"))
	assert.Contains(t, doc.Spoken(), config.MessageVoicemailPrompt)
}

func TestConditionalBranchesOnHours(t *testing.T) {
	def := domain.Definition{
		EntryPoint: "check",
		Steps: []domain.Step{
			&domain.ConditionalStep{ID: "check", Predicate: domain.PredicateBusinessOpen, TrueStep: "open", FalseStep: "closed"},
			&domain.MessageStep{ID: "open", Message: "We are open."},
			&domain.MessageStep{ID: "closed", Message: "We are closed."},
		},
	}

	res, err := newEngine(true).Start(context.Background(), newCall(def))
	require.NoError(t, err)
	assert.Equal(t, "We are open.", render(t, res).Spoken())

	res, err = newEngine(false).Start(context.Background(), newCall(def))
	require.NoError(t, err)
	doc := render(t, res)
	assert.Equal(t, "We are closed.", doc.Spoken())
	assert.True(t, doc.HangsUp())
	require.Len(t, res.Steps, 2)
	assert.Equal(t, "is_business_open=false", res.Steps[0].Detail)
}

func TestMessageChainIsBounded(t *testing.T) {
	def := domain.Definition{
		EntryPoint: "a",
		Steps: []domain.Step{
			&domain.MessageStep{ID: "a", Message: "A", NextStep: "b"},
			&domain.MessageStep{ID: "b", Message: "B", NextStep: "a"},
		},
	}
	_, err := newEngine(true).Start(context.Background(), newCall(def))
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestMissingStepFailsAsConfiguration(t *testing.T) {
	_, err := newEngine(true).Execute(context.Background(), newCall(menuFlow()), "deleted-step")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	_, err = newEngine(true).Menu(context.Background(), newCall(menuFlow()), "deleted-step", "1")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
}

func TestAIStepHandsOff(t *testing.T) {
	def := domain.Definition{EntryPoint: "ai", Steps: []domain.Step{&domain.AIStep{ID: "ai"}}}
	call := newCall(def)
	res, err := newEngine(true).Start(context.Background(), call)
	require.NoError(t, err)

	assert.True(t, res.HandedOff)
	assert.Equal(t, domain.SessionModeAI, call.Session.Metadata.Mode)
	doc := render(t, res)
	assert.Equal(t, []string{"Gather", "Redirect"}, doc.Names())
	assert.Equal(t, fmt.Sprintf(config.MessageDefaultGreeting, "Acme Dental"), doc.Spoken())
	assert.Equal(t, baseURL+"/voice/gather?seq=4", doc.Verbs[0].Attr("action"))
}

func TestTransferFailedUsesFallback(t *testing.T) {
	def := domain.Definition{
		EntryPoint: "xfer",
		Steps: []domain.Step{
			&domain.TransferStep{ID: "xfer", Number: "+15551230000", FallbackStep: "vm"},
			&domain.VoicemailStep{ID: "vm"},
		},
	}
	res, err := newEngine(true).TransferFailed(context.Background(), newCall(def), "xfer")
	require.NoError(t, err)
	_, ok := render(t, res).Find("Record")
	assert.True(t, ok)

	res, err = newEngine(true).TransferFailed(context.Background(), newCall(menuFlow()), "main")
	require.NoError(t, err)
	doc := render(t, res)
	assert.Equal(t, config.MessageFlowTransferFail, doc.Spoken())
	assert.True(t, doc.HangsUp())
}

func TestGatherInfoStoresSlot(t *testing.T) {
	def := domain.Definition{
		EntryPoint: "ask",
		Steps: []domain.Step{
			&domain.GatherInfoStep{ID: "ask", Prompt: "What is your account number?", Field: "account", NextStep: "bye"},
			&domain.MessageStep{ID: "bye", Message: "Thanks, goodbye."},
		},
	}
	call := newCall(def)
	res, err := newEngine(true).Start(context.Background(), call)
	require.NoError(t, err)
	gather, ok := render(t, res).Find("Gather")
	require.True(t, ok)
	assert.Equal(t, baseURL+"/voice/gather?seq=4&step=ask", gather.Attr("action"))

	res, err = newEngine(true).GatherInfo(context.Background(), call, "ask", " 12345 ")
	require.NoError(t, err)
	assert.Equal(t, "12345", call.Session.Metadata.Slot("account"))
	assert.Equal(t, "Thanks, goodbye.", render(t, res).Spoken())
}
