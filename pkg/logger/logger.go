package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	globalSugar *zap.SugaredLogger
	globalBase  *zap.Logger
	initMu      sync.Mutex
)

type ctxKey struct{}

// Init initializes a global zap logger. The env can be "production" or "development" (default).
// It also redirects the stdlib log output to zap so existing log.Printf calls are captured.
func Init(env string) (*zap.SugaredLogger, error) {
	initMu.Lock()
	defer initMu.Unlock()

	if globalSugar != nil && globalBase != nil {
		return globalSugar, nil
	}

	var cfg zap.Config
	if strings.EqualFold(env, "prod") || strings.EqualFold(env, "production") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	zap.ReplaceGlobals(base)
	_ = zap.RedirectStdLog(base)

	globalBase = base
	globalSugar = base.Sugar()
	return globalSugar, nil
}

// Base returns the base *zap.Logger (non-sugared).
func Base() *zap.Logger {
	if globalBase == nil {
		if _, err := Init(os.Getenv("LOG_ENV")); err != nil {
			initMu.Lock()
			base, _ := zap.NewDevelopment()
			globalBase = base
			globalSugar = base.Sugar()
			initMu.Unlock()
		}
	}
	return globalBase
}

// WithFields returns a child context whose log lines carry the given fields.
// Fields accumulate across nested calls.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	existing := fieldsFrom(ctx)
	merged := make([]zap.Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

// WithCall tags every log line written with ctx with the provider call id and tenant.
func WithCall(ctx context.Context, callSid, tenantID string) context.Context {
	fields := []zap.Field{zap.String("call_sid", callSid)}
	if tenantID != "" {
		fields = append(fields, zap.String("tenant_id", tenantID))
	}
	return WithFields(ctx, fields...)
}

func fieldsFrom(ctx context.Context) []zap.Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(ctxKey{}).([]zap.Field)
	return fields
}

func withContext(ctx context.Context) *zap.Logger {
	return Base().With(fieldsFrom(ctx)...)
}

// Debug logs with context and fields.
func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	withContext(ctx).Debug(msg, fields...)
}

// Info logs with context and fields.
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	withContext(ctx).Info(msg, fields...)
}

// Warn logs with context and fields.
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	withContext(ctx).Warn(msg, fields...)
}

// Error logs with context and fields.
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	withContext(ctx).Error(msg, fields...)
}

// Sync flushes any buffered log entries.
func Sync() {
	if globalSugar != nil {
		_ = globalSugar.Sync()
	}
	if globalBase != nil {
		_ = globalBase.Sync()
	}
}

// GORMWriter is a Writer adapter for GORM logger that writes to zap logger
// GORM's logger.Writer interface requires Printf method
type GORMWriter struct{}

// Printf implements gorm.io/gorm/logger.Writer interface
func (w GORMWriter) Printf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	msg = strings.TrimSuffix(msg, "\n")
	msg = strings.TrimSuffix(msg, "\r\n")
	Base().Warn(msg, zap.String("component", "gorm"))
}

// NewGORMWriter creates a new GORM writer adapter
func NewGORMWriter() GORMWriter {
	return GORMWriter{}
}
