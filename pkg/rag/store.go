package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"go.uber.org/zap"
)

const collectionPrefix = "tenant-"

// Document is one indexable passage
type Document struct {
	ID      string
	Content string
	// Source is spoken back as attribution, e.g. "faq:billing"
	Source string
}

// Passage is a search hit
type Passage struct {
	Content    string
	Source     string
	Similarity float32
}

// Store keeps one chromem collection per tenant
type Store struct {
	db        *chromem.DB
	embedFunc chromem.EmbeddingFunc
	mu        sync.RWMutex
}

// NewStore creates a store. An empty persistPath keeps everything in memory;
// otherwise collections are written under the path and reloaded on start.
func NewStore(embedder Embedder, persistPath string) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if persistPath == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(persistPath, true)
		if err != nil {
			return nil, fmt.Errorf("open vector db at %s: %w", persistPath, err)
		}
	}
	return &Store{db: db, embedFunc: ToChromemFunc(embedder)}, nil
}

func collectionName(tenantID string) string {
	return collectionPrefix + tenantID
}

// Index replaces the tenant's collection with docs
func (s *Store) Index(ctx context.Context, tenantID string, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := collectionName(tenantID)
	if s.db.GetCollection(name, s.embedFunc) != nil {
		if err := s.db.DeleteCollection(name); err != nil {
			return fmt.Errorf("drop collection %s: %w", name, err)
		}
	}
	col, err := s.db.GetOrCreateCollection(name, map[string]string{"tenant_id": tenantID}, s.embedFunc)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	if len(docs) == 0 {
		return nil
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: map[string]string{"source": doc.Source},
		}
	}
	if err := col.AddDocuments(ctx, chromDocs, 1); err != nil {
		return fmt.Errorf("index %d documents: %w", len(docs), err)
	}

	logger.Base().Debug("Indexed tenant documents", zap.String("tenant_id", tenantID), zap.Int("documents", len(docs)))
	return nil
}

// Search returns up to k passages closest to query
func (s *Store) Search(ctx context.Context, tenantID, query string, k int) ([]Passage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col := s.db.GetCollection(collectionName(tenantID), s.embedFunc)
	if col == nil || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if k <= 0 {
		k = 3
	}

	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	passages := make([]Passage, len(results))
	for i, r := range results {
		passages[i] = Passage{Content: r.Content, Source: r.Metadata["source"], Similarity: r.Similarity}
	}
	return passages, nil
}

// Count returns the number of documents indexed for a tenant
func (s *Store) Count(tenantID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col := s.db.GetCollection(collectionName(tenantID), s.embedFunc)
	if col == nil {
		return 0
	}
	return col.Count()
}

// FormatPassages renders passages for a system prompt with their source attribution
func FormatPassages(passages []Passage) string {
	if len(passages) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range passages {
		source := p.Source
		if source == "" {
			source = "knowledge_base"
		}
		fmt.Fprintf(&b, "[%d] (source: %s) %s\n", i+1, source, strings.TrimSpace(p.Content))
	}
	return strings.TrimRight(b.String(), "\n")
}
