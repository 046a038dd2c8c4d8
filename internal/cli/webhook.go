package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/direqt/direqt-go/pkg/messaging"
	"github.com/direqt/direqt-go/pkg/webhook"
)

var errAccessTokenRequired = errors.New("access token required: set DIREQT_ACCESS_TOKEN or -access-token")

func runWebhook(ctx context.Context, a *App, args []string) error {
	if len(args) < 1 {
		return errors.New("webhook: expected get, set <url> [instance-id] or delete")
	}
	token := a.get(KeyAccessToken)
	if token == "" {
		return errAccessTokenRequired
	}
	client := messaging.NewClient(token,
		messaging.WithAPIRoot(a.get(KeyMessagingAPIRoot)),
		messaging.WithHTTPClient(a.HTTPClient),
	)

	switch args[0] {
	case "get":
		cfg, err := client.GetWebhookConfig(ctx)
		if messaging.IsNotFound(err) {
			fmt.Fprintln(a.Stdout, "No webhook registered")
			return nil
		}
		if err != nil {
			return err
		}
		a.printWebhook(cfg)
		return nil
	case "set":
		if len(args) < 2 {
			return errors.New("webhook set: url is required")
		}
		cfg := messaging.WebhookConfig{WebhookURL: args[1]}
		if len(args) > 2 {
			cfg.InstanceID = args[2]
		}
		updated, err := client.UpdateWebhookConfig(ctx, cfg)
		if err != nil {
			return err
		}
		a.printWebhook(updated)
		return nil
	case "delete":
		if err := client.DeleteWebhookConfig(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.Stdout, "Webhook deleted")
		return nil
	default:
		return fmt.Errorf("webhook: unknown subcommand %q", args[0])
	}
}

func (a *App) printWebhook(cfg *messaging.WebhookConfig) {
	fmt.Fprintf(a.Stdout, "Webhook URL: %s\n", cfg.WebhookURL)
	if cfg.InstanceID != "" {
		fmt.Fprintf(a.Stdout, "Instance ID: %s\n", cfg.InstanceID)
	}
}

// runSign prints the headers the gateway would send with a body, for testing
// a bot's webhook locally with curl.
func runSign(_ context.Context, a *App, args []string) error {
	flags := flag.NewFlagSet("sign", flag.ContinueOnError)
	bodyPath := flags.String("body", "-", "file holding the request body, or - for stdin")
	timestamp := flags.Int64("timestamp", 0, "unix timestamp to sign with (default now)")
	if err := a.parseFlags(flags, args); err != nil {
		return err
	}

	secret := a.get(KeySigningSecret)
	if secret == "" {
		return fmt.Errorf("signing secret required: set DIREQT_SIGNING_SECRET or -signing-secret")
	}

	var body []byte
	var err error
	if *bodyPath == "-" {
		body, err = io.ReadAll(a.Stdin)
	} else {
		body, err = os.ReadFile(*bodyPath)
	}
	if err != nil {
		return fmt.Errorf("reading body: %w", err)
	}

	at := a.now()
	if *timestamp != 0 {
		at = time.Unix(*timestamp, 0)
	}
	headers := webhook.SignatureHeaders(secret, body, at)

	fmt.Fprintf(a.Stdout, "%s: %s\n", webhook.TimestampHeader, headers.Get(webhook.TimestampHeader))
	fmt.Fprintf(a.Stdout, "%s: %s\n", webhook.SignatureHeader, headers.Get(webhook.SignatureHeader))
	return nil
}

