package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"huijin-agent/handler"
	"huijin-agent/internal/app"
	"huijin-agent/internal/config"
	"huijin-agent/internal/logger"
	"huijin-agent/internal/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeLambda)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		slog.Error("failed to initialize telemetry", "err", err)
		os.Exit(1)
	}

	logCloser := logger.Setup(cfg, logger.WithLoggerProvider(tel.LoggerProvider()))

	chatService, err := app.NewChatService(ctx, cfg)
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(chatService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	// SIGKILL follows SIGTERM by roughly 500ms.
	lambda.StartWithOptions(h.Handle, lambda.WithEnableSIGTERM(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", "err", err)
		}
		_ = logCloser.Close()
	}))
}
