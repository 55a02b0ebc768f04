package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessageName(t *testing.T) {
	assert.Equal(t, "lead.captured:abc", MessageName("", EventLeadCaptured, "abc"))
	assert.Equal(t, "beta:lead.captured:abc", MessageName("beta", EventLeadCaptured, "abc"))
	assert.Equal(t, "beta:conversation.metrics:abc", MessageName("beta:", EventConversationMetrics, "abc"))
}

func TestNilServiceIsNoop(t *testing.T) {
	var svc *PubSubService
	assert.NoError(t, svc.PublishLeadCaptured(context.Background(), LeadCapturedEvent{TenantID: "t1"}))
	assert.NoError(t, svc.PublishConversationMetrics(context.Background(), ConversationMetricsEvent{TenantID: "t1"}))
	assert.NoError(t, svc.Close())
}
