package rag

import (
	"context"
	"fmt"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"go.uber.org/zap"
)

// TenantLister lists tenants to index
type TenantLister interface {
	GetAll(ctx context.Context, includeDisabled bool) ([]*domain.Tenant, error)
}

// ContentSource loads tenant FAQ and knowledge-base rows
type ContentSource interface {
	ListFAQs(ctx context.Context, tenantID string) ([]*domain.FAQ, error)
	ListEntries(ctx context.Context, tenantID string) ([]*domain.KnowledgeEntry, error)
}

// Indexer feeds tenant content into the store
type Indexer struct {
	store   *Store
	tenants TenantLister
	content ContentSource
}

// NewIndexer creates an indexer
func NewIndexer(store *Store, tenants TenantLister, content ContentSource) *Indexer {
	return &Indexer{store: store, tenants: tenants, content: content}
}

// IndexTenant rebuilds one tenant's collection
func (ix *Indexer) IndexTenant(ctx context.Context, tenantID string) error {
	faqs, err := ix.content.ListFAQs(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load faqs: %w", err)
	}
	entries, err := ix.content.ListEntries(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load knowledge entries: %w", err)
	}
	return ix.store.Index(ctx, tenantID, DocumentsFor(faqs, entries))
}

// IndexAll rebuilds every enabled tenant. A failing tenant is logged and skipped.
func (ix *Indexer) IndexAll(ctx context.Context) error {
	tenants, err := ix.tenants.GetAll(ctx, false)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	indexed := 0
	for _, t := range tenants {
		if err := ix.IndexTenant(ctx, t.ID); err != nil {
			logger.Base().Error("Failed to index tenant knowledge", zap.String("tenant_id", t.ID), zap.Error(err))
			continue
		}
		indexed++
	}
	logger.Base().Info("Semantic index built", zap.Int("tenants", indexed), zap.Int("total", len(tenants)))
	return nil
}

// DocumentsFor turns FAQ and knowledge rows into passages
func DocumentsFor(faqs []*domain.FAQ, entries []*domain.KnowledgeEntry) []Document {
	docs := make([]Document, 0, len(faqs)+len(entries))
	for _, f := range faqs {
		source := "faq"
		if f.Category != "" {
			source = "faq:" + f.Category
		}
		docs = append(docs, Document{
			ID:      "faq-" + f.ID,
			Content: fmt.Sprintf("Q: %s\nA: %s", f.Question, f.Answer),
			Source:  source,
		})
	}
	for _, e := range entries {
		source := e.Source
		if source == "" {
			source = "knowledge_base"
		}
		docs = append(docs, Document{
			ID:      "kb-" + e.ID,
			Content: fmt.Sprintf("Q: %s\nA: %s", e.Question, e.Answer),
			Source:  source,
		})
	}
	return docs
}
