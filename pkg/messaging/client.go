// Package messaging is a client for the Direqt messaging gateway: sending
// content and status messages to users and managing a bot's webhook
// registration.
//
// Every call is a single HTTP request. Nothing is retried; a non-2xx response
// is returned as *APIError.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultAPIRoot = "https://gateway.direqt.io/v3"

	defaultHTTPTimeout = 10 * time.Second
	maxErrorBodyBytes  = 64 << 10

	messagesPath = "/messages"
	webhookPath  = "/webhook"
)

// Client sends requests to the messaging gateway on behalf of one bot. It is
// safe for concurrent use.
type Client struct {
	client      *http.Client
	apiRoot     string
	accessToken string
	queryToken  bool
}

// Option configures a Client.
type Option func(*Client)

// WithAPIRoot overrides the gateway base URL.
func WithAPIRoot(apiRoot string) Option {
	return func(c *Client) {
		if root := strings.TrimSpace(apiRoot); root != "" {
			c.apiRoot = strings.TrimRight(root, "/")
		}
	}
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.client = client
		}
	}
}

// WithQueryToken sends the access token as the access_token query parameter,
// as the older gateway protocol expects, instead of an Authorization header.
func WithQueryToken() Option {
	return func(c *Client) {
		c.queryToken = true
	}
}

// NewClient creates a gateway client authenticated with the bot's access token.
func NewClient(accessToken string, opts ...Option) *Client {
	c := &Client{
		client:      &http.Client{Timeout: defaultHTTPTimeout},
		apiRoot:     DefaultAPIRoot,
		accessToken: strings.TrimSpace(accessToken),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIRoot returns the gateway base URL the client talks to.
func (c *Client) APIRoot() string {
	return c.apiRoot
}

type agentMessage struct {
	MessageType string               `json:"messageType"`
	Content     *AgentContentMessage `json:"content,omitempty"`
	Status      *AgentStatusMessage  `json:"status,omitempty"`
}

type sendRequest struct {
	UserID       string       `json:"userId"`
	AgentMessage agentMessage `json:"agentMessage"`
}

// SendTextMessage sends text to a user, optionally with tappable suggestions.
func (c *Client) SendTextMessage(ctx context.Context, userID, text string, suggestions ...Suggestion) error {
	msg := AgentContentMessage{
		ContentType: ContentTypeText,
		Text:        text,
		Suggestions: suggestions,
	}
	if err := c.SendContentMessage(ctx, userID, msg); err != nil {
		return fmt.Errorf("sending text message: %w", err)
	}
	return nil
}

// SendContentMessage sends rich content (text, card, carousel, file) to a user.
func (c *Client) SendContentMessage(ctx context.Context, userID string, msg AgentContentMessage) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, messagesPath, sendRequest{
		UserID: userID,
		AgentMessage: agentMessage{
			MessageType: messageTypeContent,
			Content:     &msg,
		},
	}, nil)
}

// SendStatusMessage sends a status indicator such as typing or read.
func (c *Client) SendStatusMessage(ctx context.Context, userID string, msg AgentStatusMessage) error {
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	err := c.do(ctx, http.MethodPost, messagesPath, sendRequest{
		UserID: userID,
		AgentMessage: agentMessage{
			MessageType: messageTypeStatus,
			Status:      &msg,
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("sending status message: %w", err)
	}
	return nil
}

// GetWebhookConfig retrieves the bot's webhook registration.
func (c *Client) GetWebhookConfig(ctx context.Context) (*WebhookConfig, error) {
	var cfg WebhookConfig
	if err := c.do(ctx, http.MethodGet, webhookPath, nil, &cfg); err != nil {
		return nil, fmt.Errorf("getting webhook config: %w", err)
	}
	return &cfg, nil
}

// UpdateWebhookConfig creates or updates the bot's webhook registration.
func (c *Client) UpdateWebhookConfig(ctx context.Context, cfg WebhookConfig) (*WebhookConfig, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var updated WebhookConfig
	if err := c.do(ctx, http.MethodPatch, webhookPath, cfg, &updated); err != nil {
		return nil, fmt.Errorf("updating webhook config: %w", err)
	}
	return &updated, nil
}

// DeleteWebhookConfig removes the bot's webhook registration. The gateway stops
// delivering messages to the previously registered URL.
func (c *Client) DeleteWebhookConfig(ctx context.Context) error {
	if err := c.do(ctx, http.MethodDelete, webhookPath, nil, nil); err != nil {
		return fmt.Errorf("deleting webhook config: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	endpoint := c.apiRoot + path
	if c.queryToken {
		endpoint += "?" + url.Values{"access_token": {c.accessToken}}.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if !c.queryToken {
		req.Header.Set("Authorization", "bearer "+c.accessToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}
