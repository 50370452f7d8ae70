// File: internal/infra/logging/logging.go
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"activity-engine/internal/config"

	"github.com/rs/zerolog"
)

const service = "activity-engine"

// New builds the process logger from config.
// Levels: trace|debug|info|warn|error. Formats: json|console (dev forces console).
// Sampling keeps one of every 100 debug-and-below events; warnings and errors always pass.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	return newLogger(os.Stdout, cfg, dev)
}

func newLogger(w io.Writer, cfg config.LogConfig, dev bool) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.DurationFieldUnit = time.Millisecond

	out := w
	if dev || strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	l := zerolog.New(out).With().Timestamp().Str("service", service).Logger()

	if cfg.Sampling && !dev {
		l = l.Sample(zerolog.LevelSampler{
			TraceSampler: &zerolog.BasicSampler{N: 100},
			DebugSampler: &zerolog.BasicSampler{N: 100},
		})
	}
	return &l
}

type ctxKey int

const (
	traceKey ctxKey = iota
	userKey
	activityKey
)

// With returns a child of base carrying the request-scoped ids found in ctx.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	l := base.With()
	for _, f := range []struct {
		key  ctxKey
		name string
	}{
		{traceKey, "trace_id"},
		{userKey, "user_id"},
		{activityKey, "activity_id"},
	} {
		if v, ok := ctx.Value(f.key).(string); ok && v != "" {
			l = l.Str(f.name, v)
		}
	}
	logger := l.Logger()
	return &logger
}

// TraceDuration logs entry and exit of name at trace level.
// Usage: defer logging.TraceDuration(logger, "ActivityUC.Create")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	start := time.Now()
	logger.Trace().Str("method", name).Msg("start")
	return func() {
		logger.Trace().Str("method", name).Dur("duration", time.Since(start)).Msg("finish")
	}
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey, id)
}

func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userKey, id)
}

func WithActivityID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, activityKey, id)
}

