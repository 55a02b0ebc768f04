package knowledge

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
)

// Source loads tenant content in its declared order
type Source interface {
	ListFAQs(ctx context.Context, tenantID string) ([]*domain.FAQ, error)
	ListEntries(ctx context.Context, tenantID string) ([]*domain.KnowledgeEntry, error)
}

// Answer is a lookup hit
type Answer struct {
	Question string
	Text     string
	Source   string
	Score    int
}

// Service is the keyword-scored FAQ and knowledge-base lookup
type Service struct {
	src Source
}

// NewService creates a knowledge lookup service
func NewService(src Source) *Service {
	return &Service{src: src}
}

// minWordLen is the length a query word must exceed to count
const minWordLen = 3

// Scoring weights for knowledge entries
const (
	keywordPoints  = 3
	questionPoints = 1
)

// Words returns the distinct lower-cased query words longer than minWordLen.
// Every such word takes part in matching, common ones included.
func Words(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	words := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if len(f) <= minWordLen || seen[f] {
			continue
		}
		seen[f] = true
		words = append(words, f)
	}
	return words
}

// SearchFAQ returns the first FAQ, in category then declared order, whose question
// or answer contains any query word
func (s *Service) SearchFAQ(ctx context.Context, tenantID, query string) (*Answer, error) {
	words := Words(query)
	if len(words) == 0 {
		return nil, nil
	}
	faqs, err := s.src.ListFAQs(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: faq search: %v", domain.ErrExternalService, err)
	}
	for _, faq := range faqs {
		haystack := strings.ToLower(faq.Question + " " + faq.Answer)
		for _, w := range words {
			if strings.Contains(haystack, w) {
				return &Answer{Question: faq.Question, Text: faq.Answer, Source: "faq:" + faq.Category, Score: 1}, nil
			}
		}
	}
	return nil, nil
}

// SearchKnowledge returns the highest scoring knowledge entry. Each keyword the
// query contains scores 3, each query word found in the entry question scores 1.
// Ties keep the earlier entry, which the source orders by priority then age.
func (s *Service) SearchKnowledge(ctx context.Context, tenantID, query string) (*Answer, error) {
	lowered := strings.ToLower(query)
	words := Words(query)

	entries, err := s.src.ListEntries(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: knowledge search: %v", domain.ErrExternalService, err)
	}

	var best *domain.KnowledgeEntry
	bestScore := 0
	for _, entry := range entries {
		score := ScoreEntry(entry, lowered, words)
		if score > bestScore {
			best, bestScore = entry, score
		}
	}
	if best == nil {
		return nil, nil
	}
	source := best.Source
	if source == "" {
		source = "knowledge_base"
	}
	return &Answer{Question: best.Question, Text: best.Answer, Source: source, Score: bestScore}, nil
}

// ScoreEntry scores one entry against a lower-cased query and its words
func ScoreEntry(entry *domain.KnowledgeEntry, loweredQuery string, words []string) int {
	score := 0
	for _, kw := range strings.Split(entry.Keywords, ",") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(loweredQuery, kw) {
			score += keywordPoints
		}
	}
	question := strings.ToLower(entry.Question)
	for _, w := range words {
		if strings.Contains(question, w) {
			score += questionPoints
		}
	}
	return score
}

// Lookup tries FAQs, then the knowledge base
func (s *Service) Lookup(ctx context.Context, tenantID, query string) (*Answer, error) {
	faq, err := s.SearchFAQ(ctx, tenantID, query)
	if err != nil {
		return nil, err
	}
	if faq != nil {
		return faq, nil
	}
	return s.SearchKnowledge(ctx, tenantID, query)
}
