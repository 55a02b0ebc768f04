package task

import (
	"context"
	"encoding/json"

	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/ClareAI/astra-receptionist-service/pkg/redis"
	"go.uber.org/zap"
)

const (
	TaskChannel = "astra:receptionist:jobs:wakeup"
)

// RedisBus implements the Bus interface using Redis Pub/Sub
type RedisBus struct {
	redisSvc redis.RedisServiceInterface
}

// NewRedisBus creates a new Redis-based wake-up bus
func NewRedisBus(redisSvc redis.RedisServiceInterface) *RedisBus {
	return &RedisBus{redisSvc: redisSvc}
}

// Publish announces committed jobs
func (b *RedisBus) Publish(ctx context.Context, msg WakeUp) error {
	logger.Base().Debug("Publishing job wake-up", zap.String("type", string(msg.Type)), zap.String("job_id", msg.JobID))
	return b.redisSvc.Publish(ctx, TaskChannel, msg)
}

// Subscribe listens for wake-ups on the bus
func (b *RedisBus) Subscribe(ctx context.Context, handler func(WakeUp)) error {
	logger.Base().Info("Subscribing to job wake-ups")
	return b.redisSvc.Subscribe(ctx, TaskChannel, func(payload string) {
		var msg WakeUp
		if err := json.Unmarshal([]byte(payload), &msg); err != nil {
			logger.Base().Error("Failed to unmarshal wake-up payload", zap.Error(err))
			return
		}
		handler(msg)
	})
}

// LocalBus delivers wake-ups in process. Used when Redis is not configured.
type LocalBus struct {
	ch chan WakeUp
}

// NewLocalBus creates an in-process wake-up bus
func NewLocalBus() *LocalBus {
	return &LocalBus{ch: make(chan WakeUp, 64)}
}

// Publish never blocks; a full buffer drops the wake-up and the poll interval covers it
func (b *LocalBus) Publish(ctx context.Context, msg WakeUp) error {
	select {
	case b.ch <- msg:
	default:
	}
	return nil
}

// Subscribe starts delivering wake-ups until ctx is done
func (b *LocalBus) Subscribe(ctx context.Context, handler func(WakeUp)) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-b.ch:
				handler(msg)
			}
		}
	}()
	return nil
}
