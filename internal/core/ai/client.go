// Package ai is the tool-calling chat completion client that answers free-form caller questions.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/prompts"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/ClareAI/astra-receptionist-service/pkg/metrics"
	"github.com/ClareAI/astra-receptionist-service/pkg/rag"
)

// ChatCompleter is the part of *openai.Client the receptionist uses
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// PassageSearcher retrieves semantic context for a question
type PassageSearcher interface {
	Search(ctx context.Context, tenantID, query string, k int) ([]rag.Passage, error)
}

// Config tunes the client
type Config struct {
	Model             string
	RequestsPerSecond float64
	Burst             int
	TopK              int
	HistoryMaxTurns   int
}

// Request is one caller question in context
type Request struct {
	Tenant    *domain.Tenant
	Caller    string
	Open      bool
	History   []*domain.ConversationTurn
	Utterance string
	Now       time.Time
}

// Client wraps chat completion with tool calls and retrieved passages
type Client struct {
	completer ChatCompleter
	tools     *ToolRegistry
	searcher  PassageSearcher
	prompts   *prompts.ReceptionistPromptGenerator
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
	cfg       Config
}

// NewClient creates a client. searcher may be nil when semantic search is disabled.
func NewClient(completer ChatCompleter, tools *ToolRegistry, searcher PassageSearcher, m *metrics.Metrics, cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.HistoryMaxTurns <= 0 {
		cfg.HistoryMaxTurns = config.DefaultAIHistoryMaxTurns
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Client{
		completer: completer,
		tools:     tools,
		searcher:  searcher,
		prompts:   prompts.NewReceptionistPromptGenerator(),
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		metrics:   m,
		cfg:       cfg,
	}
}

// Respond answers the caller's utterance. The first completion may request tool
// calls; their results are appended and one follow-up completion without tools
// produces the reply. Completion failures wrap domain.ErrExternalService.
func (c *Client) Respond(ctx context.Context, req Request) (string, error) {
	if req.Now.IsZero() {
		req.Now = time.Now()
	}

	messages := []openai.ChatCompletionMessage{{
		Role:    openai.ChatMessageRoleSystem,
		Content: c.systemPrompt(ctx, req),
	}}
	messages = append(messages, historyMessages(req.History, c.cfg.HistoryMaxTurns)...)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Utterance})

	first, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: messages,
		Tools:    c.tools.Definitions(),
	})
	if err != nil {
		return "", err
	}
	if len(first.ToolCalls) == 0 {
		return strings.TrimSpace(first.Content), nil
	}

	messages = append(messages, first)
	tc := ToolContext{Tenant: req.Tenant, Now: req.Now}
	weekly := ""
	for _, call := range first.ToolCalls {
		result := c.runTool(ctx, tc, call)
		if call.Function.Name == ToolNameCheckBusinessHours {
			weekly = weeklyScheduleOf(result)
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    result,
			Name:       call.Function.Name,
			ToolCallID: call.ID,
		})
	}

	final, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model:    c.cfg.Model,
		Messages: messages,
	})
	if err != nil {
		return "", err
	}

	reply := strings.TrimSpace(final.Content)
	// An hours question always ends with the full week spoken back.
	if weekly != "" && !strings.Contains(reply, weekly) {
		reply = strings.TrimSpace(reply + " Our full hours are: " + weekly + ".")
	}
	return reply, nil
}

// Summarize produces a short summary of a call transcript
func (c *Client) Summarize(ctx context.Context, tenant *domain.Tenant, turns []*domain.ConversationTurn) (string, error) {
	if len(turns) == 0 {
		return "", nil
	}
	if len(turns) > config.DefaultSummaryMaxTurns {
		turns = turns[len(turns)-config.DefaultSummaryMaxTurns:]
	}

	var transcript strings.Builder
	if tenant != nil {
		fmt.Fprintf(&transcript, "Business: %s\n", tenant.Name)
	}
	for _, turn := range turns {
		fmt.Fprintf(&transcript, "%s: %s\n", turn.Speaker, turn.Text)
	}

	msg, err := c.complete(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.prompts.SummaryPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: transcript.String()},
		},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(msg.Content), nil
}

func (c *Client) complete(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.RecordCompletion("throttled", 0)
		return openai.ChatCompletionMessage{}, fmt.Errorf("%w: completion throttled: %v", domain.ErrExternalService, err)
	}

	start := time.Now()
	resp, err := c.completer.CreateChatCompletion(ctx, req)
	if err != nil {
		c.metrics.RecordCompletion("error", time.Since(start))
		return openai.ChatCompletionMessage{}, fmt.Errorf("%w: chat completion: %v", domain.ErrExternalService, err)
	}
	if len(resp.Choices) == 0 {
		c.metrics.RecordCompletion("empty", time.Since(start))
		return openai.ChatCompletionMessage{}, fmt.Errorf("%w: chat completion returned no choices", domain.ErrExternalService)
	}
	c.metrics.RecordCompletion("ok", time.Since(start))
	return resp.Choices[0].Message, nil
}

// runTool never fails; an executor error becomes the placeholder text
func (c *Client) runTool(ctx context.Context, tc ToolContext, call openai.ToolCall) string {
	result, err := c.tools.ExecuteTool(ctx, tc, call.Function.Name, call.Function.Arguments)
	if err != nil {
		logger.Warn(ctx, "Tool execution failed",
			zap.String("tool", call.Function.Name), zap.String("tool_call_id", call.ID), zap.Error(err))
		c.metrics.RecordToolCall(call.Function.Name, "error")
		return config.MessageToolUnavailable
	}
	c.metrics.RecordToolCall(call.Function.Name, "ok")
	return result
}

func (c *Client) systemPrompt(ctx context.Context, req Request) string {
	pc := prompts.PromptContext{Tenant: req.Tenant, Caller: req.Caller, Open: req.Open}
	if c.searcher != nil && req.Tenant != nil {
		passages, err := c.searcher.Search(ctx, req.Tenant.ID, req.Utterance, c.cfg.TopK)
		if err != nil {
			logger.Warn(ctx, "Semantic search failed, answering without passages", zap.Error(err))
		} else {
			pc.Passages = rag.FormatPassages(passages)
		}
	}
	return c.prompts.SystemPrompt(pc)
}

func historyMessages(turns []*domain.ConversationTurn, max int) []openai.ChatCompletionMessage {
	if len(turns) > max {
		turns = turns[len(turns)-max:]
	}
	out := make([]openai.ChatCompletionMessage, 0, len(turns))
	for _, turn := range turns {
		role := openai.ChatMessageRoleUser
		if turn.Speaker == config.SpeakerAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	return out
}

const weeklyMarker = "Full weekly schedule: "

func weeklyScheduleOf(hoursResult string) string {
	i := strings.Index(hoursResult, weeklyMarker)
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(hoursResult[i+len(weeklyMarker):])
}
