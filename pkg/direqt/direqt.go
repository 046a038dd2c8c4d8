// Package direqt bundles the messaging client and the webhook verifier behind
// a single value that a bot constructs once and passes to its handlers.
package direqt

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/direqt/direqt-go/pkg/messaging"
	"github.com/direqt/direqt-go/pkg/webhook"
)

var ErrAccessTokenRequired = errors.New("access token is required")

// Config holds the credentials a bot needs to talk to the platform.
type Config struct {
	// AccessToken authenticates outbound gateway calls.
	AccessToken string
	// SigningSecret verifies inbound webhook calls.
	SigningSecret string
	// MessagingAPIRoot overrides the gateway base URL.
	MessagingAPIRoot string
	// HTTPClient is used for outbound calls. Nil selects a client with a 10s timeout.
	HTTPClient *http.Client
	// WebhookOptions are passed to the verifier, e.g. webhook.WithStrictVersion().
	WebhookOptions []webhook.Option
}

type API struct {
	messaging *messaging.Client
	verifier  *webhook.Verifier
}

// New validates cfg and builds the client and verifier.
func New(cfg Config) (*API, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, ErrAccessTokenRequired
	}
	verifier, err := webhook.NewVerifier(cfg.SigningSecret, cfg.WebhookOptions...)
	if err != nil {
		return nil, fmt.Errorf("creating webhook verifier: %w", err)
	}

	opts := []messaging.Option{messaging.WithHTTPClient(cfg.HTTPClient)}
	if cfg.MessagingAPIRoot != "" {
		opts = append(opts, messaging.WithAPIRoot(cfg.MessagingAPIRoot))
	}

	return &API{
		messaging: messaging.NewClient(cfg.AccessToken, opts...),
		verifier:  verifier,
	}, nil
}

func (a *API) Messaging() *messaging.Client { return a.messaging }

func (a *API) Verifier() *webhook.Verifier { return a.verifier }

// VerifyMiddleware returns webhook verification middleware bound to this API's
// signing secret.
func (a *API) VerifyMiddleware(opts ...webhook.MiddlewareOption) func(http.Handler) http.Handler {
	return webhook.Middleware(a.verifier, opts...)
}
