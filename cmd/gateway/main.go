package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"huijin-agent/internal/app"
	"huijin-agent/internal/config"
	"huijin-agent/internal/http/handler"
	"huijin-agent/internal/http/middleware"
	httprouter "huijin-agent/internal/http/router"
	"huijin-agent/internal/logger"
	"huijin-agent/internal/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeGateway)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// Telemetry before logger: the production logger bridges into the OTel log provider.
	tel, err := telemetry.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize telemetry: " + err.Error() + "\n")
		os.Exit(1)
	}

	logCloser := logger.Setup(cfg, logger.WithLoggerProvider(tel.LoggerProvider()))
	defer logCloser.Close()

	if tel != nil {
		slog.InfoContext(ctx, "telemetry initialized", "endpoint", cfg.OTel.Endpoint, "metrics_file", cfg.OTel.MetricsFile)
	}
	slog.InfoContext(ctx, "gateway starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)

	chatService, err := app.NewChatService(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create chat service", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, httprouter.Handlers{
		Chat:  handler.NewChatHandler(chatService),
		Voice: handler.NewVoiceHandler(cfg.VoiceURL),
	})

	// Upstream calls may take up to DASHSCOPE_TIMEOUT; leave headroom for the write.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.DashScope.Timeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "telemetry shutdown error", "error", err)
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, h httprouter.Handlers) *gin.Engine {
	router := gin.New()

	// OTel span first so Recovery and Logger see the trace context.
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Correlation())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, h)
	return router
}
