package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It is a no-op logger until Init is called.
var Log = zap.NewNop()

type traceIDKey struct{}

// Init configures Log with the given level ("debug", "info", "warn", "error")
// and format ("json" or "text").
func Init(level, format string) error {
	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	Log = l
	return nil
}

// Sync flushes buffered entries.
func Sync() {
	_ = Log.Sync()
}

// Named returns a child logger for a component, e.g. Named("agent").
func Named(name string) *zap.Logger {
	return Log.Named(name)
}

// ContextWithTraceID stores a trace id (one per handled message) in ctx.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace id stored in ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// FromContext returns l annotated with the trace id found in ctx, if any.
func FromContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	if id := TraceIDFromContext(ctx); id != "" {
		return l.With(zap.String("trace_id", id))
	}
	return l
}
