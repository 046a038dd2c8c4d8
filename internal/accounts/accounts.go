// Package accounts calls the Direqt account and ads REST APIs on behalf of the
// CLI: registration, sign-in, API key generation and account lookups.
package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAPIRoot = "https://api.direqt.io/api/v0"
	DefaultAdsRoot = "https://ads.direqt.io/api/v0"

	defaultHTTPTimeout = 15 * time.Second
	maxErrorBodyBytes  = 64 << 10
)

var (
	ErrNotSignedIn   = errors.New("not signed in: run 'direqt signin' first")
	ErrNoCredentials = errors.New("no credentials: sign in or configure an API key")
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("direqt api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("direqt api returned %d: %s", e.StatusCode, e.Body)
}

// Credentials authenticate account calls. APIToken takes precedence over the
// API key pair.
type Credentials struct {
	APIToken     string
	APIKeyID     string
	APIKeySecret string
}

type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type Session struct {
	Token string `json:"token"`
}

type APIKey struct {
	ID        string    `json:"id"`
	Secret    string    `json:"secret"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

type Publisher struct {
	PublisherID string `json:"publisherId"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type Client struct {
	httpClient *http.Client
	apiRoot    string
	adsRoot    string
	creds      Credentials
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

func NewClient(apiRoot, adsRoot string, creds Credentials, opts ...Option) *Client {
	if apiRoot == "" {
		apiRoot = DefaultAPIRoot
	}
	if adsRoot == "" {
		adsRoot = DefaultAdsRoot
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		apiRoot:    strings.TrimRight(apiRoot, "/"),
		adsRoot:    strings.TrimRight(adsRoot, "/"),
		creds:      creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	if req.Email == "" || req.Password == "" {
		return nil, errors.New("email and password are required")
	}
	var acct Account
	if err := c.do(ctx, http.MethodPost, c.apiRoot+"/accounts", authNone, req, &acct); err != nil {
		return nil, fmt.Errorf("registering account: %w", err)
	}
	return &acct, nil
}

// SignIn exchanges email and password for an API token.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if email == "" || password == "" {
		return nil, errors.New("email and password are required")
	}
	body := map[string]string{"email": email, "password": password}
	var sess Session
	if err := c.do(ctx, http.MethodPost, c.apiRoot+"/auth/signin", authNone, body, &sess); err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}
	if sess.Token == "" {
		return nil, errors.New("signing in: response did not include a token")
	}
	return &sess, nil
}

// GenerateAPIKey creates a new API key pair. It requires a signed-in API token.
func (c *Client) GenerateAPIKey(ctx context.Context) (*APIKey, error) {
	if c.creds.APIToken == "" {
		return nil, ErrNotSignedIn
	}
	var key APIKey
	if err := c.do(ctx, http.MethodPost, c.apiRoot+"/apikeys", authToken, struct{}{}, &key); err != nil {
		return nil, fmt.Errorf("generating api key: %w", err)
	}
	return &key, nil
}

func (c *Client) AccountInfo(ctx context.Context) (*Account, error) {
	var acct Account
	if err := c.do(ctx, http.MethodGet, c.apiRoot+"/accounts/me", authAny, nil, &acct); err != nil {
		return nil, fmt.Errorf("getting account info: %w", err)
	}
	return &acct, nil
}

func (c *Client) PublisherID(ctx context.Context) (string, error) {
	var pub Publisher
	if err := c.do(ctx, http.MethodGet, c.adsRoot+"/publishers/me", authAny, nil, &pub); err != nil {
		return "", fmt.Errorf("getting publisher id: %w", err)
	}
	return pub.PublisherID, nil
}

type authMode int

const (
	authNone authMode = iota
	authToken
	authAny
)

func (c *Client) authorize(req *http.Request, mode authMode) error {
	switch mode {
	case authNone:
		return nil
	case authToken:
		req.Header.Set("Authorization", "Bearer "+c.creds.APIToken)
		return nil
	}
	switch {
	case c.creds.APIToken != "":
		req.Header.Set("Authorization", "Bearer "+c.creds.APIToken)
	case c.creds.APIKeyID != "" && c.creds.APIKeySecret != "":
		req.SetBasicAuth(c.creds.APIKeyID, c.creds.APIKeySecret)
	default:
		return ErrNoCredentials
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, mode authMode, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if err := c.authorize(req, mode); err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
