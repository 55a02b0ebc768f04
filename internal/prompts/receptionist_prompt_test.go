package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
)

func TestSystemPromptRendersTenantAndPassages(t *testing.T) {
	g := NewReceptionistPromptGenerator()
	tenant := &domain.Tenant{
		Name:         "Acme Dental",
		CustomConfig: domain.JSONB{CustomConfigInstructions: "Never quote prices for {{.CompanyName}}."},
	}

	out := g.SystemPrompt(PromptContext{Tenant: tenant, Caller: "+15550001111", Open: true, Passages: "[1] (source: faq:billing) We take cards."})

	assert.Contains(t, out, "virtual receptionist for Acme Dental")
	assert.Contains(t, out, "+15550001111")
	assert.Contains(t, out, "currently open")
	assert.Contains(t, out, "Never quote prices for Acme Dental.")
	assert.Contains(t, out, "(source: faq:billing)")
}

func TestSystemPromptOmitsEmptyBlocks(t *testing.T) {
	out := NewReceptionistPromptGenerator().SystemPrompt(PromptContext{Tenant: &domain.Tenant{Name: "Acme"}})

	assert.Contains(t, out, "currently closed")
	assert.Contains(t, out, "caller's number is unknown")
	assert.NotContains(t, out, "REFERENCE PASSAGES")
	assert.NotContains(t, out, "BUSINESS INSTRUCTIONS")
}
