package messaging_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/direqt/direqt-go/pkg/messaging"
	"github.com/direqt/direqt-go/pkg/messaging/messagingtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGatewayClient(t *testing.T, opts ...messaging.Option) (*messaging.Client, *messagingtest.Gateway) {
	t.Helper()
	gw := messagingtest.NewGateway("bot-token")
	url := gw.Start(t)
	opts = append([]messaging.Option{messaging.WithAPIRoot(url)}, opts...)
	return messaging.NewClient("bot-token", opts...), gw
}

func TestSendTextMessage_WireFormat(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := messaging.NewClient("bot-token", messaging.WithAPIRoot(srv.URL+"/"))
	err := c.SendTextMessage(context.Background(), "u-1", "hello", messaging.ReplySuggestion("yes"))
	require.NoError(t, err)

	assert.Equal(t, "/messages", gotPath)
	assert.Equal(t, "bearer bot-token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "u-1", gotBody["userId"])

	agent := gotBody["agentMessage"].(map[string]any)
	assert.Equal(t, "content", agent["messageType"])
	content := agent["content"].(map[string]any)
	assert.Equal(t, "text", content["contentType"])
	assert.Equal(t, "hello", content["text"])
	suggestions := content["suggestions"].([]any)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "reply", suggestions[0].(map[string]any)["suggestionType"])
}

func TestClient_QueryToken(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("access_token")
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := messaging.NewClient("bot-token", messaging.WithAPIRoot(srv.URL), messaging.WithQueryToken())
	require.NoError(t, c.SendStatusMessage(context.Background(), "u-1", messaging.AgentStatusMessage{StatusType: messaging.StatusTyping}))

	assert.Equal(t, "bot-token", gotQuery)
	assert.Empty(t, gotAuth)
}

func TestClient_DefaultAPIRoot(t *testing.T) {
	c := messaging.NewClient("t")
	assert.Equal(t, messaging.DefaultAPIRoot, c.APIRoot())

	c = messaging.NewClient("t", messaging.WithAPIRoot("  "))
	assert.Equal(t, messaging.DefaultAPIRoot, c.APIRoot())
}

func TestSend_RecordedByGateway(t *testing.T) {
	c, gw := newGatewayClient(t)
	ctx := context.Background()

	require.NoError(t, c.SendStatusMessage(ctx, "u-1", messaging.AgentStatusMessage{
		StatusType:       messaging.StatusRead,
		RelatedMessageID: "m-1",
	}))
	require.NoError(t, c.SendContentMessage(ctx, "u-1", messaging.AgentContentMessage{
		ContentType: messaging.ContentTypeCard,
		Card:        &messaging.Card{Title: "Hello", MediaURL: "https://example.com/a.png"},
	}))

	msgs := gw.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "status", msgs[0].Type)
	assert.Equal(t, messaging.StatusRead, msgs[0].Status.StatusType)
	assert.Equal(t, "m-1", msgs[0].Status.RelatedMessageID)
	assert.Equal(t, "content", msgs[1].Type)
	assert.Equal(t, "Hello", msgs[1].Content.Card.Title)
}

func TestSend_ValidatesBeforeSending(t *testing.T) {
	c, gw := newGatewayClient(t)
	ctx := context.Background()

	assert.ErrorIs(t, c.SendTextMessage(ctx, "", "hi"), messaging.ErrUserIDRequired)
	assert.ErrorIs(t, c.SendTextMessage(ctx, "u-1", " "), messaging.ErrInvalidContent)
	assert.ErrorIs(t, c.SendStatusMessage(ctx, "u-1", messaging.AgentStatusMessage{StatusType: "waving"}), messaging.ErrInvalidStatus)
	assert.ErrorIs(t, c.SendTextMessage(ctx, "u-1", "hi", messaging.Suggestion{SuggestionType: messaging.SuggestionDial, Text: "Call"}), messaging.ErrInvalidSuggestion)

	assert.Empty(t, gw.Messages())
}

func TestSend_APIError(t *testing.T) {
	t.Run("unauthorized", func(t *testing.T) {
		gw := messagingtest.NewGateway("bot-token")
		c := messaging.NewClient("wrong", messaging.WithAPIRoot(gw.Start(t)))

		err := c.SendTextMessage(context.Background(), "u-1", "hi")
		require.Error(t, err)
		assert.True(t, messaging.IsUnauthorized(err))

		var apiErr *messaging.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.MethodPost, apiErr.Method)
		assert.Equal(t, "/messages", apiErr.Path)
		assert.Contains(t, apiErr.Body, "invalid access token")
	})

	t.Run("gateway unavailable", func(t *testing.T) {
		c, gw := newGatewayClient(t)
		gw.FailNext(1)

		err := c.SendTextMessage(context.Background(), "u-1", "hi")
		var apiErr *messaging.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)

		require.NoError(t, c.SendTextMessage(context.Background(), "u-1", "hi"))
		assert.Len(t, gw.Messages(), 1)
	})
}

func TestSend_ContextCanceled(t *testing.T) {
	c, _ := newGatewayClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.SendTextMessage(ctx, "u-1", "hi")
	require.ErrorIs(t, err, context.Canceled)
}

func TestWebhookConfig_Lifecycle(t *testing.T) {
	c, _ := newGatewayClient(t)
	ctx := context.Background()

	_, err := c.GetWebhookConfig(ctx)
	require.Error(t, err)
	assert.True(t, messaging.IsNotFound(err))

	updated, err := c.UpdateWebhookConfig(ctx, messaging.WebhookConfig{WebhookURL: "https://bot.example.com/webhook"})
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example.com/webhook", updated.WebhookURL)

	got, err := c.GetWebhookConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example.com/webhook", got.WebhookURL)

	require.NoError(t, c.DeleteWebhookConfig(ctx))
	_, err = c.GetWebhookConfig(ctx)
	assert.True(t, messaging.IsNotFound(err))
}

func TestUpdateWebhookConfig_RejectsBadURL(t *testing.T) {
	c, _ := newGatewayClient(t)

	for _, raw := range []string{"", "not a url", "ftp://bot.example.com", "/relative"} {
		_, err := c.UpdateWebhookConfig(context.Background(), messaging.WebhookConfig{WebhookURL: raw})
		assert.Error(t, err, raw)
	}
}
