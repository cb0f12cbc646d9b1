package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fractionalhub.app/concierge/common/id"
	"fractionalhub.app/concierge/common/logger"
	"fractionalhub.app/concierge/common/otel"
	"fractionalhub.app/concierge/core/config"
	"fractionalhub.app/concierge/internal/extract"
	"fractionalhub.app/concierge/internal/model"
	"fractionalhub.app/concierge/internal/resume"
	"fractionalhub.app/concierge/internal/session"
	"fractionalhub.app/concierge/internal/transport"
)

// wsDialer adapts the websocket transport to the coordinator's Dialer.
type wsDialer struct {
	cfg transport.Config
}

func (d wsDialer) Dial(ctx context.Context, settings transport.ConnectSettings) (session.Transport, error) {
	return transport.Dial(ctx, d.cfg, settings)
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeVoice)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "voice session runner starting", "env", cfg.Env)
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	userID := os.Getenv("VOICE_USER_ID")
	gateway := extract.NewClient(cfg.Gateway.BaseURL)

	profile := model.Profile{UserID: userID}
	if userID != "" {
		p, err := gateway.Profile(ctx, userID)
		switch {
		case err == nil:
			profile = p
		case errors.Is(err, extract.ErrProfileNotFound):
			slog.InfoContext(ctx, "no stored profile, continuing with bare user id")
		default:
			slog.WarnContext(ctx, "profile fetch failed", "error", err)
		}
	}

	priorContext := ""
	if userID != "" {
		priorContext, err = gateway.Context(ctx, userID, "job search history")
		if err != nil {
			slog.WarnContext(ctx, "memory context fetch failed", "error", err)
		}
	}

	resumeStore, err := resume.Open(statePath())
	if err != nil {
		slog.ErrorContext(ctx, "failed to open resume store", "error", err)
		os.Exit(1)
	}

	sessionID := id.New()
	ctx = logger.WithLogFields(ctx, logger.LogFields{SessionID: &sessionID})

	coord := session.NewCoordinator(
		session.Config{
			Profile:      profile,
			PriorContext: priorContext,
			ConfigID:     cfg.Voice.ConfigID,
		},
		session.Deps{
			Dialer:             wsDialer{cfg: transport.Config{WSURL: cfg.Voice.WSURL}},
			Tokens:             gateway,
			ToolRelay:          gateway,
			TranscriptAnalyzer: gateway.TranscriptAnalyzer(),
			PythonAnalyzer:     gateway.PythonAnalyzer(),
			Memory:             gateway,
			Resume:             resumeStore,
		},
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := coord.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "coordinator stopped", "error", err)
		}
	}()

	coord.Connect()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	// Disconnect first so the session-end transcript save can fire, then
	// give its goroutine a moment to resolve before stopping the loop.
	coord.Disconnect()
	waitDisconnected(coord, 5*time.Second)
	time.Sleep(500 * time.Millisecond)
	coord.Stop()

	if telemetry != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "shutdown complete")
}

func waitDisconnected(coord *session.Coordinator, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if coord.Snapshot().Conn == session.StateDisconnected {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func statePath() string {
	if p := os.Getenv("VOICE_STATE_FILE"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "concierge", "resume.json")
}
