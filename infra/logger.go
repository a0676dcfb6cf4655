package infra

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/tnqbao/gau-media-service/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

type LoggerClient struct {
	logger    *slog.Logger
	telemetry *Telemetry
}

func InitLoggerClient(cfg *config.EnvConfig) *LoggerClient {
	stdout := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: levelFor(cfg.Environment.Mode)})

	telemetry, err := InitTelemetry(context.Background(), cfg)
	if err != nil {
		log.Printf("Telemetry disabled: %v", err)
		return NewLoggerClient(stdout)
	}

	client := NewLoggerClient(stdout, otelslog.NewHandler(cfg.Grafana.ServiceName))
	client.telemetry = telemetry
	return client
}

// NewLoggerClient fans every record out to all handlers.
func NewLoggerClient(handlers ...slog.Handler) *LoggerClient {
	if len(handlers) == 1 {
		return &LoggerClient{logger: slog.New(handlers[0])}
	}
	return &LoggerClient{logger: slog.New(fanoutHandler(handlers))}
}

func (l *LoggerClient) InfoWithContextf(ctx context.Context, format string, args ...any) {
	l.logger.InfoContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) DebugWithContextf(ctx context.Context, format string, args ...any) {
	l.logger.DebugContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) WarningWithContextf(ctx context.Context, format string, args ...any) {
	l.logger.WarnContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) ErrorWithContextf(ctx context.Context, err error, format string, args ...any) {
	if err != nil {
		l.logger.ErrorContext(ctx, fmt.Sprintf(format, args...), slog.String("error", err.Error()))
		return
	}
	l.logger.ErrorContext(ctx, fmt.Sprintf(format, args...))
}

// Shutdown flushes the telemetry providers, if any were started.
func (l *LoggerClient) Shutdown(ctx context.Context) error {
	return l.telemetry.Shutdown(ctx)
}

func levelFor(mode string) slog.Level {
	if mode == "development" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

type fanoutHandler []slog.Handler

func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, handler := range h {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, handler := range h {
		out[i] = handler.WithAttrs(attrs)
	}
	return out
}

func (h fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, handler := range h {
		out[i] = handler.WithGroup(name)
	}
	return out
}
