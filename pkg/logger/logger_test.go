package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	prevBase, prevSugar := globalBase, globalSugar
	globalBase = zap.New(core)
	globalSugar = globalBase.Sugar()
	t.Cleanup(func() { globalBase, globalSugar = prevBase, prevSugar })
	return logs
}

func TestWithCallTagsLogLines(t *testing.T) {
	logs := observe(t)

	ctx := WithCall(context.Background(), "CA1", "t1")
	ctx = WithFields(ctx, zap.String("state", "INTENT"))
	Info(ctx, "turn handled", zap.Int("seq", 2))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "CA1", fields["call_sid"])
	assert.Equal(t, "t1", fields["tenant_id"])
	assert.Equal(t, "INTENT", fields["state"])
	assert.Equal(t, int64(2), fields["seq"])
}

func TestWithCallOmitsEmptyTenant(t *testing.T) {
	logs := observe(t)

	Warn(WithCall(context.Background(), "CA2", ""), "unknown call")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "CA2", fields["call_sid"])
	assert.NotContains(t, fields, "tenant_id")
}

func TestGORMWriterTrimsNewline(t *testing.T) {
	logs := observe(t)

	NewGORMWriter().Printf("slow query %dms\n", 250)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "slow query 250ms", entries[0].Message)
	assert.Equal(t, "gorm", entries[0].ContextMap()["component"])
}
