package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"huijin-agent/internal/config"
	"huijin-agent/internal/integrations/gatewayclient"
	"huijin-agent/internal/logger"
	"huijin-agent/internal/session"
	"huijin-agent/internal/tui"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeChat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; logs always go to a file.
	cfg.LogFile = cfg.Chat.LogFile
	logCloser := logger.Setup(cfg)
	defer logCloser.Close()

	gateway, err := gatewayclient.New(cfg.Chat.GatewayURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create gateway client:", err)
		os.Exit(1)
	}

	ctrl, err := session.New(gateway, session.WithFloor(cfg.FloorDuration()))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to create session:", err)
		os.Exit(1)
	}
	defer ctrl.Close()

	linkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	voiceLink, err := gateway.VoiceLink(linkCtx)
	cancel()
	if err != nil {
		slog.WarnContext(ctx, "voice link unavailable", "error", err)
	}

	slog.InfoContext(ctx, "chat client starting", "gateway", cfg.Chat.GatewayURL, "floor", cfg.FloorDuration())

	p := tea.NewProgram(tui.New(ctrl, tui.WithVoiceLink(voiceLink)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		slog.ErrorContext(ctx, "chat ui failed", "error", err)
		fmt.Fprintln(os.Stderr, "chat ui failed:", err)
		os.Exit(1)
	}
}
