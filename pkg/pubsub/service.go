package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event types published by the receptionist
const (
	EventLeadCaptured        = "lead.captured"
	EventConversationMetrics = "conversation.metrics"
)

type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
	// PubID prefixes the message name attribute so subscription filters can
	// separate environments ("", "beta", "stage").
	PubID string `mapstructure:"pub_id"`
}

// PubSubService publishes JSON events to one topic. A nil *PubSubService is a
// valid no-op publisher for deployments without Pub/Sub.
type PubSubService struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	config *PubSubConfig
}

// LeadCapturedEvent is published once per stored lead
type LeadCapturedEvent struct {
	LeadID       string            `json:"lead_id"`
	TenantID     string            `json:"tenant_id"`
	SessionID    string            `json:"session_id"`
	CallSid      string            `json:"call_sid"`
	Name         string            `json:"name"`
	Phone        string            `json:"phone"`
	Email        string            `json:"email,omitempty"`
	Reason       string            `json:"reason,omitempty"`
	Source       string            `json:"source"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	CapturedAt   time.Time         `json:"captured_at"`
}

// ConversationMetricsEvent summarizes a finished call
type ConversationMetricsEvent struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	CallSid           string     `json:"call_sid"`
	Channel           string     `json:"channel"`
	Status            string     `json:"status"`
	FinalState        string     `json:"final_state"`
	StartAt           time.Time  `json:"start_at"`
	EndAt             *time.Time `json:"end_at,omitempty"`
	Duration          int        `json:"duration"`
	TurnCount         int        `json:"turn_count"`
	TransferAttempted bool       `json:"transfer_attempted"`
	TransferSucceeded bool       `json:"transfer_succeeded"`
	LeadCaptured      bool       `json:"lead_captured"`
	Summary           string     `json:"summary,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func NewPubSubService(ctx context.Context, cfg *PubSubConfig) (*PubSubService, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PubSub project ID is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create PubSub client: %w", err)
	}

	topic := client.Topic(cfg.TopicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to check if topic exists: %w", err)
	}

	if !exists {
		logger.Base().Info("Topic does not exist, creating", zap.String("topicname", cfg.TopicName))
		topic, err = client.CreateTopic(ctx, cfg.TopicName)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to create topic %s: %w", cfg.TopicName, err)
		}
		logger.Base().Info("Topic created successfully", zap.String("topicname", cfg.TopicName))
	}

	return &PubSubService{
		client: client,
		topic:  topic,
		config: cfg,
	}, nil
}

// PublishLeadCaptured announces a stored lead
func (p *PubSubService) PublishLeadCaptured(ctx context.Context, evt LeadCapturedEvent) error {
	return p.publish(ctx, EventLeadCaptured, evt.TenantID, evt)
}

// PublishConversationMetrics announces the outcome of a finished call
func (p *PubSubService) PublishConversationMetrics(ctx context.Context, evt ConversationMetricsEvent) error {
	return p.publish(ctx, EventConversationMetrics, evt.TenantID, evt)
}

// MessageName builds the name attribute: "<pubID>:<eventType>:<id>", without
// the prefix when pubID is empty
func MessageName(pubID, eventType, id string) string {
	prefix := strings.TrimSuffix(pubID, ":")
	if prefix == "" {
		return eventType + ":" + id
	}
	return prefix + ":" + eventType + ":" + id
}

func (p *PubSubService) publish(ctx context.Context, eventType, tenantID string, payload interface{}) error {
	if p == nil || p.topic == nil {
		logger.Debug(ctx, "PubSub disabled, dropping event", zap.String("event_type", eventType), zap.String("tenant_id", tenantID))
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	taskID := uuid.New().String()
	message := &pubsub.Message{
		Attributes: map[string]string{
			"name":       MessageName(p.config.PubID, eventType, taskID),
			"event_type": eventType,
			"tenant_id":  tenantID,
		},
		Data: data,
	}

	result := p.topic.Publish(ctx, message)
	if _, err := result.Get(ctx); err != nil {
		logger.Error(ctx, "Failed to publish event", zap.String("event_type", eventType), zap.String("tenant_id", tenantID), zap.String("task_id", taskID), zap.Error(err))
		return fmt.Errorf("failed to publish %s message: %w", eventType, err)
	}

	logger.Info(ctx, "Published event", zap.String("event_type", eventType), zap.String("tenant_id", tenantID), zap.String("task_id", taskID))
	return nil
}

func (p *PubSubService) Close() error {
	if p == nil {
		return nil
	}
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
