package session

import (
	"context"
	"testing"

	"github.com/ClareAI/astra-receptionist-service/pkg/redis"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewManager(redis.NewRedisServiceFromClient(client), "pod-1"), mr
}

func TestMarkProcessedOnlyOnce(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	assert.True(t, m.MarkProcessed(ctx, "CA1", "completed"))
	assert.False(t, m.MarkProcessed(ctx, "CA1", "completed"))
	assert.True(t, m.MarkProcessed(ctx, "CA2", "completed"))
}

func TestReleaseProcessedAllowsRetry(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.True(t, m.MarkProcessed(ctx, "CA1", "status:completed"))
	m.ReleaseProcessed(ctx, "CA1", "status:completed")
	assert.True(t, m.MarkProcessed(ctx, "CA1", "status:completed"))
	assert.False(t, m.MarkProcessed(ctx, "CA1", "status:completed"))
}

func TestMarkProcessedFallsBackWhenRedisDown(t *testing.T) {
	m, mr := newTestManager(t)
	mr.Close()

	assert.True(t, m.MarkProcessed(context.Background(), "CA1", "completed"))
}

func TestNilRedisManager(t *testing.T) {
	m := NewManager(nil, "pod-1")
	ctx := context.Background()

	assert.True(t, m.MarkProcessed(ctx, "CA1", "completed"))
	assert.True(t, m.MarkProcessed(ctx, "CA1", "completed"))
	assert.False(t, m.IsNoAnswerRedial(ctx, "t1", "+15550001111"))
	require.NoError(t, m.Register(ctx, CallInfo{CallSid: "CA1"}))
}

func TestNoAnswerMarker(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	assert.False(t, m.IsNoAnswerRedial(ctx, "t1", "+15550001111"))
	require.NoError(t, m.MarkNoAnswer(ctx, "t1", "+15550001111"))
	assert.True(t, m.IsNoAnswerRedial(ctx, "t1", "+15550001111"))
	assert.False(t, m.IsNoAnswerRedial(ctx, "t2", "+15550001111"))
}

func TestRegisterAndUnregister(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Register(ctx, CallInfo{CallSid: "CA1", TenantID: "t1"}))
	assert.True(t, mr.Exists(CallKeyPrefix+":CA1"))
	require.NoError(t, m.Unregister(ctx, "CA1"))
	assert.False(t, mr.Exists(CallKeyPrefix+":CA1"))
}
