package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/services/knowledge"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
)

// Tool names
const (
	ToolNameSearchFAQ          = "search_faq"
	ToolNameSearchKnowledge    = "search_knowledge_base"
	ToolNameCheckBusinessHours = "check_business_hours"
)

// QuerySchema is the parameter schema of the search tools
var QuerySchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "The caller's question, rephrased as a short search query",
		},
	},
	"required": []string{"query"},
}

// EmptySchema is the parameter schema of tools that take no arguments
var EmptySchema = map[string]interface{}{
	"type":       "object",
	"properties": map[string]interface{}{},
}

// ToolContext is what an executor knows about the call it runs for
type ToolContext struct {
	Tenant *domain.Tenant
	Now    time.Time
}

// ToolExecutor runs one tool call. args is the decoded JSON argument object.
type ToolExecutor func(ctx context.Context, tc ToolContext, args map[string]interface{}) (string, error)

// ToolDefinition defines a tool that can be offered to the model
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Executor    ToolExecutor
}

// KnowledgeSearcher is the keyword lookup the search tools call
type KnowledgeSearcher interface {
	SearchFAQ(ctx context.Context, tenantID, query string) (*knowledge.Answer, error)
	SearchKnowledge(ctx context.Context, tenantID, query string) (*knowledge.Answer, error)
}

// ScheduleChecker is the schedule lookup the hours tool calls
type ScheduleChecker interface {
	IsOpen(ctx context.Context, tenant *domain.Tenant, at time.Time) (bool, error)
	TodayHours(ctx context.Context, tenant *domain.Tenant, at time.Time) (string, error)
	FullWeeklySchedule(ctx context.Context, tenant *domain.Tenant) (string, error)
}

// ToolRegistry manages the tools offered to the model
type ToolRegistry struct {
	registry map[string]*ToolDefinition
}

// NewToolRegistry creates a registry with the receptionist tools registered
func NewToolRegistry(kb KnowledgeSearcher, hours ScheduleChecker) *ToolRegistry {
	r := &ToolRegistry{registry: make(map[string]*ToolDefinition)}
	r.registerBuiltInTools(kb, hours)
	return r
}

func (r *ToolRegistry) registerBuiltInTools(kb KnowledgeSearcher, hours ScheduleChecker) {
	r.RegisterTool(&ToolDefinition{
		Name:        ToolNameSearchFAQ,
		Description: "Search the business's frequently asked questions. Use this first for any question about the business.",
		Parameters:  QuerySchema,
		Executor: func(ctx context.Context, tc ToolContext, args map[string]interface{}) (string, error) {
			answer, err := kb.SearchFAQ(ctx, tc.Tenant.ID, stringArg(args, "query"))
			if err != nil {
				return "", err
			}
			if answer == nil {
				return "No matching FAQ found.", nil
			}
			return formatAnswer(answer), nil
		},
	})

	r.RegisterTool(&ToolDefinition{
		Name:        ToolNameSearchKnowledge,
		Description: "Search the business's knowledge base for detailed information when the FAQ has no answer.",
		Parameters:  QuerySchema,
		Executor: func(ctx context.Context, tc ToolContext, args map[string]interface{}) (string, error) {
			answer, err := kb.SearchKnowledge(ctx, tc.Tenant.ID, stringArg(args, "query"))
			if err != nil {
				return "", err
			}
			if answer == nil {
				return "No matching knowledge base entry found.", nil
			}
			return formatAnswer(answer), nil
		},
	})

	r.RegisterTool(&ToolDefinition{
		Name:        ToolNameCheckBusinessHours,
		Description: "Check whether the business is open right now and get today's hours and the full weekly schedule.",
		Parameters:  EmptySchema,
		Executor: func(ctx context.Context, tc ToolContext, _ map[string]interface{}) (string, error) {
			open, err := hours.IsOpen(ctx, tc.Tenant, tc.Now)
			if err != nil {
				return "", err
			}
			today, err := hours.TodayHours(ctx, tc.Tenant, tc.Now)
			if err != nil {
				return "", err
			}
			week, err := hours.FullWeeklySchedule(ctx, tc.Tenant)
			if err != nil {
				return "", err
			}
			status := "closed"
			if open {
				status = "open"
			}
			return fmt.Sprintf("The business is currently %s. %s Full weekly schedule: %s", status, today, week), nil
		},
	})
}

// RegisterTool registers a tool, replacing any tool of the same name
func (r *ToolRegistry) RegisterTool(tool *ToolDefinition) {
	r.registry[tool.Name] = tool
	logger.Base().Debug("Registered tool", zap.String("name", tool.Name))
}

// Definitions returns the tool declarations for a completion request, sorted by name
func (r *ToolRegistry) Definitions() []openai.Tool {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		def := r.registry[name]
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return tools
}

// ExecuteTool runs the named tool with its raw JSON arguments
func (r *ToolRegistry) ExecuteTool(ctx context.Context, tc ToolContext, name, argumentsJSON string) (string, error) {
	def, ok := r.registry[name]
	if !ok || def.Executor == nil {
		return "", fmt.Errorf("unknown tool %q", name)
	}

	args := make(map[string]interface{})
	if strings.TrimSpace(argumentsJSON) != "" {
		if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
			return "", fmt.Errorf("failed to parse arguments for %s: %w", name, err)
		}
	}
	return def.Executor(ctx, tc, args)
}

func stringArg(args map[string]interface{}, key string) string {
	v, _ := args[key].(string)
	return v
}

func formatAnswer(a *knowledge.Answer) string {
	return fmt.Sprintf("Q: %s\nA: %s\n(source: %s)", a.Question, a.Text, a.Source)
}
