package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/services/knowledge"
	"github.com/ClareAI/astra-receptionist-service/internal/services/schedule"
	"github.com/ClareAI/astra-receptionist-service/pkg/rag"
)

// scriptedCompleter returns one scripted reply per call and records the requests
type scriptedCompleter struct {
	replies  []openai.ChatCompletionMessage
	errs     []error
	requests []openai.ChatCompletionRequest
}

func (s *scriptedCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := len(s.requests)
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return openai.ChatCompletionResponse{}, s.errs[i]
	}
	if i >= len(s.replies) {
		return openai.ChatCompletionResponse{}, errors.New("unexpected completion")
	}
	return openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: s.replies[i]}}}, nil
}

type hoursRows []*domain.BusinessHours

func (h hoursRows) GetBusinessHours(ctx context.Context, tenantID string) ([]*domain.BusinessHours, error) {
	return h, nil
}

type kbSource struct {
	faqs []*domain.FAQ
	err  error
}

func (k kbSource) ListFAQs(ctx context.Context, tenantID string) ([]*domain.FAQ, error) {
	return k.faqs, k.err
}

func (k kbSource) ListEntries(ctx context.Context, tenantID string) ([]*domain.KnowledgeEntry, error) {
	return nil, k.err
}

type fixedPassages []rag.Passage

func (f fixedPassages) Search(ctx context.Context, tenantID, query string, k int) ([]rag.Passage, error) {
	return f, nil
}

var testTenant = &domain.Tenant{ID: "t1", Name: "Acme Dental", Timezone: "UTC"}

func weekdayHours() hoursRows {
	var rows hoursRows
	for d := time.Monday; d <= time.Friday; d++ {
		rows = append(rows, &domain.BusinessHours{DayOfWeek: d, OpenTime: "09:00", CloseTime: "17:00"})
	}
	return rows
}

func newTestClient(completer ChatCompleter, src kbSource, searcher PassageSearcher) *Client {
	tools := NewToolRegistry(knowledge.NewService(src), schedule.NewService(weekdayHours()))
	return NewClient(completer, tools, searcher, nil, Config{Model: "test-model"})
}

func toolCall(id, name, args string) openai.ToolCall {
	return openai.ToolCall{ID: id, Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: name, Arguments: args}}
}

func TestRespondWithoutToolsIsOneRoundTrip(t *testing.T) {
	completer := &scriptedCompleter{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, Content: "  We're on Main Street. "},
	}}
	client := newTestClient(completer, kbSource{}, nil)

	reply, err := client.Respond(context.Background(), Request{Tenant: testTenant, Utterance: "where are you"})

	require.NoError(t, err)
	assert.Equal(t, "We're on Main Street.", reply)
	require.Len(t, completer.requests, 1)
	assert.Len(t, completer.requests[0].Tools, 3)
}

func TestRespondBusinessHoursReplyContainsWeeklySchedule(t *testing.T) {
	completer := &scriptedCompleter{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, ToolCalls: []openai.ToolCall{toolCall("call_1", ToolNameCheckBusinessHours, "{}")}},
		{Role: openai.ChatMessageRoleAssistant, Content: "We're open weekdays."},
	}}
	client := newTestClient(completer, kbSource{}, nil)
	monday := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

	reply, err := client.Respond(context.Background(), Request{Tenant: testTenant, Utterance: "what are your hours", Now: monday})
	require.NoError(t, err)

	week, err := schedule.NewService(weekdayHours()).FullWeeklySchedule(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Contains(t, reply, week)
	assert.Contains(t, reply, "Sunday: Closed")

	require.Len(t, completer.requests, 2)
	second := completer.requests[1]
	assert.Empty(t, second.Tools, "follow-up completion must not offer tools")
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, openai.ChatMessageRoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Contains(t, last.Content, "currently open")
}

func TestRespondToolErrorBecomesPlaceholder(t *testing.T) {
	completer := &scriptedCompleter{replies: []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleAssistant, ToolCalls: []openai.ToolCall{
			toolCall("call_a", ToolNameSearchFAQ, `{"query":"parking"}`),
			toolCall("call_b", "no_such_tool", `{}`),
		}},
		{Role: openai.ChatMessageRoleAssistant, Content: "Let me connect you with someone."},
	}}
	client := newTestClient(completer, kbSource{err: errors.New("db down")}, nil)

	reply, err := client.Respond(context.Background(), Request{Tenant: testTenant, Utterance: "is there parking"})
	require.NoError(t, err)
	assert.Equal(t, "Let me connect you with someone.", reply)

	msgs := completer.requests[1].Messages
	toolMsgs := msgs[len(msgs)-2:]
	assert.Equal(t, "call_a", toolMsgs[0].ToolCallID)
	assert.Equal(t, config.MessageToolUnavailable, toolMsgs[0].Content)
	assert.Equal(t, "call_b", toolMsgs[1].ToolCallID)
	assert.Equal(t, config.MessageToolUnavailable, toolMsgs[1].Content)
}

func TestRespondCompletionFailureIsExternalServiceError(t *testing.T) {
	completer := &scriptedCompleter{errs: []error{errors.New("503")}}
	client := newTestClient(completer, kbSource{}, nil)

	_, err := client.Respond(context.Background(), Request{Tenant: testTenant, Utterance: "hello"})
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestRespondInjectsPassagesAndHistory(t *testing.T) {
	completer := &scriptedCompleter{replies: []openai.ChatCompletionMessage{{Content: "Yes."}}}
	passages := fixedPassages{{Content: "We accept Delta Dental.", Source: "faq:insurance"}}
	client := newTestClient(completer, kbSource{}, passages)
	history := []*domain.ConversationTurn{
		{Speaker: config.SpeakerAssistant, Text: "Thank you for calling Acme Dental."},
		{Speaker: config.SpeakerCaller, Text: "Hi"},
	}

	_, err := client.Respond(context.Background(), Request{Tenant: testTenant, History: history, Utterance: "do you take delta"})
	require.NoError(t, err)

	msgs := completer.requests[0].Messages
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].Content, "(source: faq:insurance) We accept Delta Dental.")
	assert.Equal(t, openai.ChatMessageRoleAssistant, msgs[1].Role)
	assert.Equal(t, openai.ChatMessageRoleUser, msgs[2].Role)
	assert.Equal(t, "do you take delta", msgs[3].Content)
}

func TestSummarize(t *testing.T) {
	completer := &scriptedCompleter{replies: []openai.ChatCompletionMessage{{Content: "Caller asked about parking."}}}
	client := newTestClient(completer, kbSource{}, nil)

	summary, err := client.Summarize(context.Background(), testTenant, []*domain.ConversationTurn{
		{Speaker: config.SpeakerCaller, Text: "Is there parking?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Caller asked about parking.", summary)
	assert.Contains(t, completer.requests[0].Messages[1].Content, "caller: Is there parking?")

	empty, err := client.Summarize(context.Background(), testTenant, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Len(t, completer.requests, 1)
}
