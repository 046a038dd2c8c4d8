package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/direqt/direqt-go/internal/bot"
	"github.com/direqt/direqt-go/internal/platform/server"
	"github.com/direqt/direqt-go/pkg/messaging"
	"github.com/direqt/direqt-go/pkg/messaging/messagingtest"
	"github.com/direqt/direqt-go/pkg/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_HealthCheck(t *testing.T) {
	srv := server.New(":0", server.Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var body map[string]any
	err := json.Unmarshal(w.Body.Bytes(), &body)
	require.NoError(t, err)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_NotFound(t *testing.T) {
	srv := server.New(":0", server.Dependencies{})

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	w := httptest.NewRecorder()

	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_StartStop(t *testing.T) {
	srv := server.New("127.0.0.1:0", server.Dependencies{})

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	cancel()

	err := <-errCh
	assert.NoError(t, err)
}

func newBotServer(t *testing.T, gw *messagingtest.Gateway, staticDir string) http.Handler {
	t.Helper()

	verifier, err := webhook.NewVerifier("signing-secret")
	require.NoError(t, err)

	client := messaging.NewClient("bot-token", messaging.WithAPIRoot(gw.Start(t)))
	h, err := bot.NewHandler(client, bot.Config{Mode: bot.ModeEcho}, nil)
	require.NoError(t, err)

	return server.New(":0", server.Dependencies{
		Verifier:    verifier,
		BotHandler:  h,
		WebhookPath: "/hooks/direqt",
		StaticDir:   staticDir,
	}).Handler()
}

func TestServer_WebhookEndToEnd(t *testing.T) {
	gw := messagingtest.NewGateway("bot-token")
	ts := httptest.NewServer(newBotServer(t, gw, ""))
	defer ts.Close()

	ctx := context.Background()
	evt := messagingtest.TextEvent("u-1", "m-1", "ping")

	status, _, err := messagingtest.Deliver(ctx, nil, ts.URL+"/hooks/direqt", "signing-secret", evt, time.Now())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	msgs := gw.Messages()
	require.Len(t, msgs, 2)
	var texts []string
	for _, m := range msgs {
		if m.Content != nil {
			texts = append(texts, m.Content.Text)
		}
	}
	assert.Equal(t, []string{"ping"}, texts)
}

func TestServer_WebhookRejectsUnsigned(t *testing.T) {
	gw := messagingtest.NewGateway("bot-token")
	ts := httptest.NewServer(newBotServer(t, gw, ""))
	defer ts.Close()

	ctx := context.Background()
	evt := messagingtest.TextEvent("u-1", "m-1", "ping")

	status, _, err := messagingtest.Deliver(ctx, nil, ts.URL+"/hooks/direqt", "wrong-secret", evt, time.Now())
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _, err = messagingtest.Deliver(ctx, nil, ts.URL+"/hooks/direqt", "signing-secret", evt, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)

	resp, err := http.Post(ts.URL+"/hooks/direqt", "application/json", strings.NewReader(`{"userId":"u-1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Empty(t, gw.Messages())
}

func TestServer_Static(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.png"), []byte("png-bytes"), 0o600))

	h := newBotServer(t, messagingtest.NewGateway("bot-token"), dir)

	req := httptest.NewRequest(http.MethodGet, "/static/1.png", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body, _ := io.ReadAll(w.Body)
	assert.Equal(t, "png-bytes", string(body))
}
