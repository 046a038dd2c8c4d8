// Package bot is the sample bot's conversation logic. It runs behind webhook
// verification and answers each user message through a Messenger.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/direqt/direqt-go/pkg/messaging"
	"github.com/direqt/direqt-go/pkg/webhook"
)

const (
	ModeEcho      = "echo"
	ModeRichMedia = "richmedia"
)

// Messenger is the subset of the messaging client the bot uses.
type Messenger interface {
	SendTextMessage(ctx context.Context, userID, text string, suggestions ...messaging.Suggestion) error
	SendContentMessage(ctx context.Context, userID string, msg messaging.AgentContentMessage) error
	SendStatusMessage(ctx context.Context, userID string, msg messaging.AgentStatusMessage) error
}

type Config struct {
	Mode string
	// MediaBaseURL prefixes card image paths. Empty derives it from the
	// request's scheme and host.
	MediaBaseURL string
}

type Handler struct {
	messenger Messenger
	cfg       Config
	logger    *slog.Logger
}

func NewHandler(messenger Messenger, cfg Config, logger *slog.Logger) (*Handler, error) {
	switch cfg.Mode {
	case "":
		cfg.Mode = ModeEcho
	case ModeEcho, ModeRichMedia:
	default:
		return nil, fmt.Errorf("unknown bot mode %q", cfg.Mode)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.MediaBaseURL = strings.TrimRight(cfg.MediaBaseURL, "/")
	return &Handler{messenger: messenger, cfg: cfg, logger: logger}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, ok := webhook.RawBody(r.Context())
	if !ok {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reading body"})
			return
		}
	}

	evt, err := messaging.ParseEvent(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	text := evt.Text()
	if text == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	h.logger.Info("message received", "user_id", evt.UserID, "message_id", evt.MessageID(), "text", text)

	if err := h.respond(r.Context(), evt, h.mediaBaseURL(r)); err != nil {
		h.logger.Error("reply failed", "user_id", evt.UserID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "failed to send reply"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respond marks the message read and sends the reply concurrently.
func (h *Handler) respond(ctx context.Context, evt *messaging.Event, mediaBase string) error {
	g, ctx := errgroup.WithContext(ctx)

	if id := evt.MessageID(); id != "" {
		g.Go(func() error {
			return h.messenger.SendStatusMessage(ctx, evt.UserID, messaging.AgentStatusMessage{
				StatusType:       messaging.StatusRead,
				RelatedMessageID: id,
			})
		})
	}

	g.Go(func() error {
		if h.cfg.Mode == ModeEcho {
			return h.messenger.SendTextMessage(ctx, evt.UserID, evt.Text())
		}
		return h.richMediaReply(ctx, evt.UserID, evt.Text(), mediaBase)
	})

	return g.Wait()
}

func (h *Handler) richMediaReply(ctx context.Context, userID, text, mediaBase string) error {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "card":
		return h.messenger.SendContentMessage(ctx, userID, messaging.AgentContentMessage{
			ContentType: messaging.ContentTypeCard,
			Card: &messaging.Card{
				Title:       "Card title",
				Description: "Card description goes here. It can be quite long.",
				MediaURL:    mediaBase + "/1.png",
			},
		})
	case "carousel":
		return h.messenger.SendContentMessage(ctx, userID, messaging.AgentContentMessage{
			ContentType: messaging.ContentTypeCarousel,
			Carousel: &messaging.Carousel{Cards: []messaging.Card{
				{Title: "First card", Description: "I am a description", MediaURL: mediaBase + "/1.png"},
				{Title: "Second card", Description: "I am another description", MediaURL: mediaBase + "/2.png"},
				{Title: "Third card", Description: "I am another description", MediaURL: mediaBase + "/3.png"},
			}},
		})
	default:
		return h.messenger.SendTextMessage(ctx, userID, "You said: "+text,
			messaging.ReplySuggestion("card"),
			messaging.ReplySuggestion("carousel"),
		)
	}
}

func (h *Handler) mediaBaseURL(r *http.Request) string {
	if h.cfg.MediaBaseURL != "" {
		return h.cfg.MediaBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + r.Host + "/static"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
