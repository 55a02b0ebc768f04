package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	faqs    []*domain.FAQ
	entries []*domain.KnowledgeEntry
	err     error
}

func (f fakeSource) ListFAQs(ctx context.Context, tenantID string) ([]*domain.FAQ, error) {
	return f.faqs, f.err
}

func (f fakeSource) ListEntries(ctx context.Context, tenantID string) ([]*domain.KnowledgeEntry, error) {
	return f.entries, f.err
}

func TestWordsKeepsEveryLongWord(t *testing.T) {
	assert.Equal(t, []string{"what", "about", "parking", "available"}, Words("What about parking? Is it available, parking"))
	assert.Empty(t, Words("is it ok"))
}

func TestSearchFAQMatchesCommonWords(t *testing.T) {
	svc := NewService(fakeSource{faqs: []*domain.FAQ{
		{Category: "general", Question: "Do you take walk-ins?", Answer: "We have same-day slots."},
	}})
	hit, err := svc.SearchFAQ(context.Background(), "t1", "what do you have")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "We have same-day slots.", hit.Text)
}

func TestSearchFAQFirstMatchWins(t *testing.T) {
	svc := NewService(fakeSource{faqs: []*domain.FAQ{
		{Category: "billing", Question: "Do you take insurance?", Answer: "We accept most plans."},
		{Category: "general", Question: "Where do I park?", Answer: "Free parking behind the building."},
		{Category: "general", Question: "Is parking validated?", Answer: "Yes."},
	}})

	hit, err := svc.SearchFAQ(context.Background(), "t1", "is there parking")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "Free parking behind the building.", hit.Text)

	miss, err := svc.SearchFAQ(context.Background(), "t1", "do you sell boats")
	require.NoError(t, err)
	assert.Nil(t, miss)
}

func TestSearchKnowledgeScoring(t *testing.T) {
	svc := NewService(fakeSource{entries: []*domain.KnowledgeEntry{
		{Question: "Teeth whitening cost", Answer: "Whitening is $200.", Keywords: "whitening, bleach", Priority: 5},
		{Question: "Cleaning cost and whitening", Answer: "Cleaning is $90.", Keywords: "cleaning", Priority: 1},
	}})

	// "whitening" keyword (3) + "whitening" + "cost" question words (2) = 5 for the first
	hit, err := svc.SearchKnowledge(context.Background(), "t1", "how much does whitening cost")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "Whitening is $200.", hit.Text)
	assert.Equal(t, 5, hit.Score)

	hit, err = svc.SearchKnowledge(context.Background(), "t1", "cleaning price")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "Cleaning is $90.", hit.Text)
}

func TestSearchKnowledgeTieKeepsEarlierEntry(t *testing.T) {
	svc := NewService(fakeSource{entries: []*domain.KnowledgeEntry{
		{Question: "Holiday hours", Answer: "first", Keywords: "holiday"},
		{Question: "Holiday closures", Answer: "second", Keywords: "holiday"},
	}})
	hit, err := svc.SearchKnowledge(context.Background(), "t1", "holiday")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "first", hit.Text)
}

func TestLookupFallsBackToKnowledgeBase(t *testing.T) {
	svc := NewService(fakeSource{
		faqs:    []*domain.FAQ{{Question: "Hours?", Answer: "9 to 5"}},
		entries: []*domain.KnowledgeEntry{{Question: "Emergency visits", Answer: "Call 911 first.", Keywords: "emergency"}},
	})
	hit, err := svc.Lookup(context.Background(), "t1", "I have an emergency")
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, "Call 911 first.", hit.Text)
	assert.Equal(t, "knowledge_base", hit.Source)
}

func TestLookupErrorIsExternalService(t *testing.T) {
	svc := NewService(fakeSource{err: errors.New("timeout")})
	_, err := svc.Lookup(context.Background(), "t1", "parking please")
	assert.ErrorIs(t, err, domain.ErrExternalService)
}
