package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/natefinch/lumberjack.v2"

	"huijin-agent/internal/config"
)

type setupOptions struct {
	provider otellog.LoggerProvider
}

type Option func(*setupOptions)

// WithLoggerProvider also ships records through the OTel log bridge. A nil
// provider leaves the bridge off.
func WithLoggerProvider(lp otellog.LoggerProvider) Option {
	return func(o *setupOptions) {
		o.provider = lp
	}
}

// Setup installs the process-wide slog default and returns a closer for the
// log file, if one was opened. Local output (stdout or LogFile) is always
// written; the OTel bridge is added only for production with a provider.
func Setup(cfg config.Config, opts ...Option) io.Closer {
	var so setupOptions
	for _, opt := range opts {
		opt(&so)
	}
	handlerOpts := &slog.HandlerOptions{Level: level(cfg)}

	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.LogFile != "" {
		rotating := NewRotatingFile(cfg.LogFile)
		out, closer = rotating, rotating
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		handler = NewTraceHandler(slog.NewJSONHandler(out, handlerOpts))
		if so.provider != nil {
			handler = fanout{handler, otelslog.NewHandler(
				cfg.OTel.ServiceName,
				otelslog.WithLoggerProvider(so.provider),
			)}
		}
	} else {
		handler = NewTraceHandler(slog.NewTextHandler(out, handlerOpts))
	}

	slog.SetDefault(slog.New(handler))
	return closer
}

// NewRotatingFile returns a size-rotated log file writer.
func NewRotatingFile(path string) *lumberjack.Logger {
	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

func level(cfg config.Config) slog.Level {
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		return slog.LevelInfo
	}
	if cfg.IsDevelopment() {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type TraceHandler struct {
	slog.Handler
}

func NewTraceHandler(h slog.Handler) *TraceHandler {
	return &TraceHandler{Handler: h}
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if id := CorrelationID(ctx); id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{Handler: h.Handler.WithGroup(name)}
}

// fanout hands each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
