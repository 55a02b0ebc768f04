package prompts

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
)

// PromptContext is the per-turn data a system prompt is rendered with
type PromptContext struct {
	Tenant   *domain.Tenant
	Caller   string
	Open     bool
	Passages string
}

// ReceptionistPromptGenerator renders the receptionist system prompt
type ReceptionistPromptGenerator struct{}

// NewReceptionistPromptGenerator creates a prompt generator
func NewReceptionistPromptGenerator() *ReceptionistPromptGenerator {
	return &ReceptionistPromptGenerator{}
}

// SystemPrompt assembles role, phone rules, tool guidance, tenant instructions and
// any retrieved passages
func (g *ReceptionistPromptGenerator) SystemPrompt(pc PromptContext) string {
	blocks := []string{
		g.renderTemplate("role", PromptReceptionistRole, pc),
		PromptPhoneConversationRules,
		PromptToolGuide,
	}
	if custom := customInstructions(pc.Tenant); custom != "" {
		blocks = append(blocks, fmt.Sprintf(PromptCustomInstructions, g.renderTemplate("custom", custom, pc)))
	}
	if pc.Passages != "" {
		blocks = append(blocks, fmt.Sprintf(PromptReferencePassages, pc.Passages))
	}
	return joinBlocks(blocks...)
}

// SummaryPrompt is the system prompt of the call summarizer
func (g *ReceptionistPromptGenerator) SummaryPrompt() string {
	return strings.TrimSpace(PromptSummarizeCall)
}

func (g *ReceptionistPromptGenerator) renderTemplate(name, tmplStr string, pc PromptContext) string {
	data := templateData(pc)
	tmpl, err := template.New(name).Parse(tmplStr)
	if err != nil {
		return replaceVariables(tmplStr, data)
	}
	var result strings.Builder
	if err := tmpl.Execute(&result, data); err != nil {
		return replaceVariables(tmplStr, data)
	}
	return result.String()
}

func templateData(pc PromptContext) map[string]string {
	status := "closed"
	if pc.Open {
		status = "open"
	}
	caller := pc.Caller
	if caller == "" {
		caller = "unknown"
	}
	company := ""
	if pc.Tenant != nil {
		company = pc.Tenant.Name
	}
	return map[string]string{
		"CompanyName":  company,
		"CallerNumber": caller,
		"OpenStatus":   status,
	}
}

func replaceVariables(tmpl string, data map[string]string) string {
	r := tmpl
	for k, v := range data {
		r = strings.ReplaceAll(r, "{{."+k+"}}", v)
	}
	return r
}

func customInstructions(tenant *domain.Tenant) string {
	if tenant == nil || tenant.CustomConfig == nil {
		return ""
	}
	v, _ := tenant.CustomConfig[CustomConfigInstructions].(string)
	return strings.TrimSpace(v)
}

// joinBlocks cleans and joins multiple prompt blocks with double newlines.
// It trims whitespace from each block and skips empty ones.
func joinBlocks(blocks ...string) string {
	var validBlocks []string
	for _, b := range blocks {
		trimmed := strings.TrimSpace(b)
		if trimmed != "" {
			validBlocks = append(validBlocks, trimmed)
		}
	}
	return strings.Join(validBlocks, "\n\n")
}
