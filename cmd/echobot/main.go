// Command echobot is a sample Direqt bot. It verifies every webhook delivery
// and either echoes the user's text or demonstrates rich cards, depending on
// bot.mode.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/direqt/direqt-go/internal/bot"
	"github.com/direqt/direqt-go/internal/platform/config"
	"github.com/direqt/direqt-go/internal/platform/server"
	"github.com/direqt/direqt-go/internal/platform/telemetry"
	"github.com/direqt/direqt-go/pkg/direqt"
	"github.com/direqt/direqt-go/pkg/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)

	srv, err := buildServer(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return srv.Start(ctx)
}

func buildServer(cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	if cfg.Direqt.AccessToken == "" || cfg.Direqt.SigningSecret == "" {
		return nil, fmt.Errorf("missing DIREQT_ACCESS_TOKEN or DIREQT_SIGNING_SECRET")
	}

	var webhookOpts []webhook.Option
	if cfg.Direqt.StrictVersion {
		webhookOpts = append(webhookOpts, webhook.WithStrictVersion())
	}
	api, err := direqt.New(direqt.Config{
		AccessToken:      cfg.Direqt.AccessToken,
		SigningSecret:    cfg.Direqt.SigningSecret,
		MessagingAPIRoot: cfg.Direqt.MessagingAPIRoot,
		WebhookOptions:   webhookOpts,
	})
	if err != nil {
		return nil, fmt.Errorf("creating direqt api: %w", err)
	}

	handler, err := bot.NewHandler(api.Messaging(), bot.Config{
		Mode:         cfg.Bot.Mode,
		MediaBaseURL: cfg.Bot.MediaBaseURL,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating bot: %w", err)
	}

	logger.Info("echobot starting",
		"mode", cfg.Bot.Mode,
		"port", cfg.Server.Port,
		"webhook_path", cfg.Server.WebhookPath,
		"gateway", api.Messaging().APIRoot(),
	)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	return server.New(addr, server.Dependencies{
		Verifier:     api.Verifier(),
		BotHandler:   handler,
		WebhookPath:  cfg.Server.WebhookPath,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		StaticDir:    cfg.Server.StaticDir,
		Logger:       logger,
	}), nil
}
