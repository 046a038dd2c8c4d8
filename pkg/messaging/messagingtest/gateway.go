// Package messagingtest provides an in-memory messaging gateway for tests and
// local development, plus helpers for delivering signed webhook events.
package messagingtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/direqt/direqt-go/pkg/messaging"
	"github.com/direqt/direqt-go/pkg/webhook"
)

// SentMessage is one message the gateway accepted from a bot.
type SentMessage struct {
	UserID  string
	Type    string
	Content *messaging.AgentContentMessage
	Status  *messaging.AgentStatusMessage
}

// Gateway mimics the messaging gateway's HTTP surface. The zero value is not
// usable; create one with NewGateway.
type Gateway struct {
	accessToken string

	mu       sync.Mutex
	messages []SentMessage
	webhook  *messaging.WebhookConfig
	failNext int
}

// NewGateway creates a gateway that accepts only the given access token.
func NewGateway(accessToken string) *Gateway {
	return &Gateway{accessToken: accessToken}
}

// Handler returns the gateway's HTTP routes.
func (g *Gateway) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(g.authenticate)

	r.Post("/messages", g.handleSend)
	r.Route("/webhook", func(r chi.Router) {
		r.Get("/", g.handleGetWebhook)
		r.Patch("/", g.handleUpdateWebhook)
		r.Delete("/", g.handleDeleteWebhook)
	})
	return r
}

// Start serves the gateway on a loopback listener and closes it when the test
// finishes. The returned URL is suitable for messaging.WithAPIRoot.
func (g *Gateway) Start(t interface{ Cleanup(func()) }) string {
	srv := httptest.NewServer(g.Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

// Messages returns a copy of every message accepted so far.
func (g *Gateway) Messages() []SentMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]SentMessage, len(g.messages))
	copy(out, g.messages)
	return out
}

// SetWebhook preloads the registered webhook config.
func (g *Gateway) SetWebhook(cfg messaging.WebhookConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.webhook = &cfg
}

// FailNext makes the next n send requests fail with 503.
func (g *Gateway) FailNext(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext = n
}

func (g *Gateway) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("access_token")
		if token == "" {
			auth := r.Header.Get("Authorization")
			if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
				token = auth[7:]
			}
		}
		if token == "" || token != g.accessToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid access token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sendBody struct {
	UserID       string `json:"userId"`
	AgentMessage struct {
		MessageType string                         `json:"messageType"`
		Content     *messaging.AgentContentMessage `json:"content"`
		Status      *messaging.AgentStatusMessage  `json:"status"`
	} `json:"agentMessage"`
}

func (g *Gateway) handleSend(w http.ResponseWriter, r *http.Request) {
	var body sendBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if body.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
		return
	}

	msg := SentMessage{UserID: body.UserID, Type: body.AgentMessage.MessageType}
	switch msg.Type {
	case "content":
		if body.AgentMessage.Content == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content is required"})
			return
		}
		msg.Content = body.AgentMessage.Content
	case "status":
		if body.AgentMessage.Status == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
			return
		}
		msg.Status = body.AgentMessage.Status
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown messageType"})
		return
	}

	g.mu.Lock()
	if g.failNext > 0 {
		g.failNext--
		g.mu.Unlock()
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "gateway unavailable"})
		return
	}
	g.messages = append(g.messages, msg)
	g.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleGetWebhook(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	cfg := g.webhook
	g.mu.Unlock()

	if cfg == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no webhook registered"})
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (g *Gateway) handleUpdateWebhook(w http.ResponseWriter, r *http.Request) {
	var cfg messaging.WebhookConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if cfg.WebhookURL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "webhookUrl is required"})
		return
	}

	g.mu.Lock()
	g.webhook = &cfg
	g.mu.Unlock()
	writeJSON(w, http.StatusOK, cfg)
}

func (g *Gateway) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	g.webhook = nil
	g.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// Deliver posts evt to url the way the gateway does: JSON-encoded and signed
// with secret at time at. It returns the bot's response status and body.
func Deliver(ctx context.Context, client *http.Client, url, secret string, evt messaging.Event, at time.Time) (int, []byte, error) {
	body, err := json.Marshal(evt)
	if err != nil {
		return 0, nil, fmt.Errorf("marshaling event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("building delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	webhook.SignRequest(req, secret, body, at)

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("delivering event: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading delivery response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// TextEvent builds an inbound text message event.
func TextEvent(userID, messageID, text string) messaging.Event {
	return messaging.Event{
		UserID: userID,
		UserMessage: &messaging.UserMessage{
			MessageID:   messageID,
			MessageType: "content",
			Content: &messaging.UserContentMessage{
				ContentType: "text",
				Text:        text,
			},
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
