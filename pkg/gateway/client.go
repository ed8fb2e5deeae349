package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/auth"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/config"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/syncerr"
)

// maxErrorBody bounds how much of an error response is kept in the error message.
const maxErrorBody = 1024

// Client implements Gateway over HTTP.
type Client struct {
	baseURL  *url.URL
	tenantID string
	tokens   auth.TokenSource
	http     *http.Client
	logger   *zap.Logger
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a new tenant API client.
func New(cfg *config.RemoteConfig, tokens auth.TokenSource, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid remote base url: %w", err)
	}
	if cfg.TenantID == "" {
		return nil, errors.New("remote tenant id is required")
	}
	if tokens == nil {
		return nil, errors.New("token source is required")
	}

	c := &Client{
		baseURL:  base,
		tenantID: cfg.TenantID,
		tokens:   tokens,
		http:     &http.Client{Timeout: cfg.RequestTimeout},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TenantID returns the tenant the client talks to.
func (c *Client) TenantID() string {
	return c.tenantID
}

func (c *Client) Create(ctx context.Context, t entity.Type, payload entity.Payload) (*entity.RemoteRecord, error) {
	op := "create " + t.String()
	body, err := entity.EncodePayload(payload)
	if err != nil {
		return nil, syncerr.RemoteRejection(op, 0, err)
	}
	var env entity.Envelope
	if err := c.do(ctx, op, http.MethodPost, c.entityPath(t), nil, body, &env, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}
	return decode(op, t, &env)
}

func (c *Client) Update(ctx context.Context, t entity.Type, id string, payload entity.Payload) (*entity.RemoteRecord, error) {
	op := "update " + t.String()
	body, err := entity.EncodePayload(payload)
	if err != nil {
		return nil, syncerr.RemoteRejection(op, 0, err)
	}
	var env entity.Envelope
	if err := c.do(ctx, op, http.MethodPut, c.entityPath(t, id), nil, body, &env, http.StatusOK); err != nil {
		return nil, err
	}
	return decode(op, t, &env)
}

func (c *Client) Delete(ctx context.Context, t entity.Type, id string) error {
	op := "delete " + t.String()
	err := c.do(ctx, op, http.MethodDelete, c.entityPath(t, id), nil, nil, nil, http.StatusNoContent)
	var se *syncerr.Error
	if errors.As(err, &se) && se.Status == http.StatusNotFound {
		// already gone
		return nil
	}
	return err
}

func (c *Client) ListChangesSince(ctx context.Context, t entity.Type, since *time.Time) ([]*entity.RemoteRecord, error) {
	op := "list " + t.String()
	query := url.Values{}
	if since != nil {
		query.Set("since", since.UTC().Format(time.RFC3339Nano))
	}

	var envs []entity.Envelope
	if err := c.do(ctx, op, http.MethodGet, c.entityPath(t), query, nil, &envs, http.StatusOK); err != nil {
		return nil, err
	}

	out := make([]*entity.RemoteRecord, 0, len(envs))
	for i := range envs {
		rec, err := decode(op, t, &envs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Client) Perform(ctx context.Context, t entity.Type, id string, verb entity.Operation, body []byte) (*entity.RemoteRecord, error) {
	op := string(verb) + " " + t.String()
	var env entity.Envelope
	if err := c.do(ctx, op, http.MethodPost, c.entityPath(t, id, string(verb)), nil, body, &env, http.StatusOK); err != nil {
		return nil, err
	}
	return decode(op, t, &env)
}

// Ping checks that the tenant API is reachable. It does not send credentials.
func (c *Client) Ping(ctx context.Context) error {
	const op = "ping"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.JoinPath("health").String(), nil)
	if err != nil {
		return syncerr.Connectivity(op, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return syncerr.Transport(op, err)
	}
	defer drain(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return syncerr.Unavailable(op, resp.StatusCode, fmt.Errorf("health returned status %d", resp.StatusCode))
	}
	return nil
}

func (c *Client) entityPath(t entity.Type, parts ...string) string {
	segments := append([]string{"tenants", c.tenantID, string(t)}, parts...)
	return c.baseURL.JoinPath(segments...).String()
}

// do sends one authenticated request and decodes a successful JSON response into out.
func (c *Client) do(ctx context.Context, op, method, target string, query url.Values, body []byte, out any, expect ...int) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return syncerr.RemoteRejection(op, 0, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("remote request failed",
			zap.String("op", op),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return syncerr.Transport(op, err)
	}
	defer drain(resp.Body)

	c.logger.Debug("remote request",
		zap.String("op", op),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	for _, code := range expect {
		if resp.StatusCode != code {
			continue
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return syncerr.RemoteRejection(op, resp.StatusCode, fmt.Errorf("malformed response: %w", err))
		}
		return nil
	}
	return classify(op, resp)
}

// classify maps an unexpected HTTP status onto the sync error taxonomy.
func classify(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err := fmt.Errorf("unexpected status %d", resp.StatusCode)
	if detail := errorDetail(msg); detail != "" {
		err = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return syncerr.Auth(op, resp.StatusCode, err)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return syncerr.Unavailable(op, resp.StatusCode, err)
	default:
		return syncerr.RemoteRejection(op, resp.StatusCode, err)
	}
}

// errorDetail extracts the "error" field of a JSON error body, falling back to
// the raw text.
func errorDetail(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}

func decode(op string, t entity.Type, env *entity.Envelope) (*entity.RemoteRecord, error) {
	rec, err := env.Decode(t)
	if err != nil {
		return nil, syncerr.RemoteRejection(op, 0, fmt.Errorf("malformed response: %w", err))
	}
	return rec, nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}
