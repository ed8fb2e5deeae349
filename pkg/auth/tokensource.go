package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/syncerr"
)

// refreshMargin renews cached tokens shortly before they expire.
const refreshMargin = 30 * time.Second

// TokenSource supplies bearer tokens to the remote gateway.
type TokenSource interface {
	// Token returns a token valid for the next request.
	Token(ctx context.Context) (string, error)
	// Refresh discards any cached token so the next call obtains a new one.
	Refresh(ctx context.Context) error
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", syncerr.Auth("token", 0, errors.New("no token configured"))
	}
	return string(t), nil
}

func (StaticToken) Refresh(context.Context) error { return nil }

// TokenRequest is the body of POST /auth/token.
type TokenRequest struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// TokenResponse is the body returned by POST /auth/token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ClientCredentials exchanges device credentials for tokens at tokenURL and
// caches them until shortly before expiry.
type ClientCredentials struct {
	tokenURL string
	creds    TokenRequest
	client   *http.Client
	now      func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewClientCredentials creates a token source for the given credentials.
func NewClientCredentials(tokenURL, clientID, clientSecret string, client *http.Client) *ClientCredentials {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &ClientCredentials{
		tokenURL: tokenURL,
		creds:    TokenRequest{ClientID: clientID, ClientSecret: clientSecret},
		client:   client,
		now:      time.Now,
	}
}

func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(refreshMargin).Before(c.expiresAt) {
		return c.token, nil
	}

	resp, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	c.token = resp.AccessToken
	c.expiresAt = resp.ExpiresAt
	return c.token, nil
}

func (c *ClientCredentials) Refresh(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.expiresAt = time.Time{}
	return nil
}

func (c *ClientCredentials) fetch(ctx context.Context) (*TokenResponse, error) {
	const op = "fetch token"

	body, err := json.Marshal(&c.creds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, syncerr.Transport(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, syncerr.Auth(op, resp.StatusCode, errors.New("credentials rejected"))
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, syncerr.Unavailable(op, resp.StatusCode, fmt.Errorf("token endpoint returned status %d", resp.StatusCode))
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, syncerr.Auth(op, resp.StatusCode, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)))
	}

	var out TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, syncerr.Unavailable(op, resp.StatusCode, fmt.Errorf("failed to decode token response: %w", err))
	}
	if out.AccessToken == "" {
		return nil, syncerr.Auth(op, resp.StatusCode, errors.New("empty access token"))
	}
	return &out, nil
}
