package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/ClareAI/astra-receptionist-service/pkg/redis"
	"go.uber.org/zap"
)

const (
	CallKeyPrefix = "astra:receptionist:call:info"
	CallTTL       = 1 * time.Hour
	MarkerTTL     = 24 * time.Hour
	NoAnswerTTL   = 30 * time.Minute
)

// CallInfo represents monitoring data for a live call
type CallInfo struct {
	CallSid   string    `json:"callSid"`
	TenantID  string    `json:"tenantId"`
	PodID     string    `json:"podId"`
	Mode      string    `json:"mode"`
	StartTime time.Time `json:"startTime"`
}

// Manager keeps short-lived call markers in Redis. A nil Redis service turns
// every marker into a no-op that reports "first time", leaving the database
// guards as the only protection.
type Manager struct {
	redisSvc redis.RedisServiceInterface
	podID    string
}

func NewManager(redisSvc redis.RedisServiceInterface, podID string) *Manager {
	return &Manager{
		redisSvc: redisSvc,
		podID:    podID,
	}
}

// Register records a live call for monitoring
func (m *Manager) Register(ctx context.Context, info CallInfo) error {
	if m.redisSvc == nil {
		return nil
	}
	info.PodID = m.podID
	if info.StartTime.IsZero() {
		info.StartTime = time.Now()
	}

	data, _ := json.Marshal(info)
	key := fmt.Sprintf("%s:%s", CallKeyPrefix, info.CallSid)

	err := m.redisSvc.SetValue(ctx, key, string(data), CallTTL)
	if err == nil {
		logger.Base().Debug("Call registered in Redis", zap.String("call_sid", info.CallSid), zap.String("pod_id", m.podID))
	}
	return err
}

// Unregister removes a finished call from monitoring
func (m *Manager) Unregister(ctx context.Context, callSid string) error {
	if m.redisSvc == nil {
		return nil
	}
	key := fmt.Sprintf("%s:%s", CallKeyPrefix, callSid)
	return m.redisSvc.DelValue(ctx, key)
}

// MarkProcessed sets the processed-callback marker for (callSid, event) and
// reports whether this is the first time the callback was seen.
// Redis errors are logged and treated as first delivery.
func (m *Manager) MarkProcessed(ctx context.Context, callSid, event string) bool {
	if m.redisSvc == nil {
		return true
	}
	key := m.redisSvc.GenerateKey(redis.CALLBACK_MARKER, callSid+":"+event)
	first, err := m.redisSvc.SetIfAbsent(ctx, key, m.podID, MarkerTTL)
	if err != nil {
		logger.Warn(ctx, "Callback marker unavailable, relying on database guards", zap.Error(err))
		return true
	}
	return first
}

// ReleaseProcessed clears a marker whose writes never became durable, so the
// provider's retry is handled as a first delivery.
func (m *Manager) ReleaseProcessed(ctx context.Context, callSid, event string) {
	if m.redisSvc == nil {
		return
	}
	key := m.redisSvc.GenerateKey(redis.CALLBACK_MARKER, callSid+":"+event)
	if err := m.redisSvc.DelValue(ctx, key); err != nil {
		logger.Warn(ctx, "Failed to release callback marker", zap.String("call_sid", callSid), zap.Error(err))
	}
}

// MarkNoAnswer remembers that a caller's transfer rang out, so a redial
// within NoAnswerTTL is routed to the tenant's NO_ANSWER flow.
func (m *Manager) MarkNoAnswer(ctx context.Context, tenantID, caller string) error {
	if m.redisSvc == nil || caller == "" {
		return nil
	}
	key := m.redisSvc.GenerateKey(redis.NO_ANSWER_MARK, tenantID+":"+caller)
	return m.redisSvc.SetValue(ctx, key, "1", NoAnswerTTL)
}

// IsNoAnswerRedial reports whether caller is redialing after an unanswered transfer
func (m *Manager) IsNoAnswerRedial(ctx context.Context, tenantID, caller string) bool {
	if m.redisSvc == nil || caller == "" {
		return false
	}
	key := m.redisSvc.GenerateKey(redis.NO_ANSWER_MARK, tenantID+":"+caller)
	_, err := m.redisSvc.GetValue(ctx, key)
	if err != nil {
		if !redis.IsNotFound(err) {
			logger.Warn(ctx, "No-answer marker lookup failed", zap.Error(err))
		}
		return false
	}
	return true
}
