package main

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

	"github.com/coder/websocket"
)

// client talks to the control API of a running syncd.
type client struct {
	baseURL string
	http    *http.Client
}

// apiError is the error body rendered by the control API.
type apiError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("syncd returned %d", e.Status)
	}
	return fmt.Sprintf("syncd returned %d: %s", e.Status, e.Message)
}

func newClient(baseURL string, timeout time.Duration) *client {
	return &client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// do sends a request and returns the raw response body. Non-2xx responses are
// returned as *apiError.
func (c *client) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to reach syncd at %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return resp.StatusCode, data, apiErr
	}
	return resp.StatusCode, data, nil
}

// syncResult posts to a sync endpoint. A 409 still carries a result body, so it
// is returned instead of an error.
func (c *client) syncResult(ctx context.Context, path string) ([]byte, error) {
	_, data, err := c.do(ctx, http.MethodPost, path, nil)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict && apiErr.Message == "" {
		return data, nil
	}
	return data, err
}

// watch reads the status stream until ctx ends or the server closes it.
func (c *client) watch(ctx context.Context, onFrame func([]byte) error) error {
	u, err := url.Parse(c.baseURL + "/status/stream")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to open status stream: %w", err)
	}
	defer func() { _ = conn.CloseNow() }()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusGoingAway ||
				websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if err := onFrame(data); err != nil {
			return err
		}
	}
}
