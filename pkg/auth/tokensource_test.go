package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/syncerr"
)

func TestStaticToken(t *testing.T) {
	tok, err := StaticToken("abc").Token(context.Background())
	if err != nil || tok != "abc" {
		t.Fatalf("expected abc, got %q (%v)", tok, err)
	}
	if _, err := StaticToken("").Token(context.Background()); !syncerr.IsAuth(err) {
		t.Fatalf("expected auth error for empty token, got %v", err)
	}
}

func TestClientCredentials_CachesAndRefreshes(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientID != "device-1" || req.ClientSecret != "s3cret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		n := calls.Add(1)
		_ = json.NewEncoder(w).Encode(&TokenResponse{
			AccessToken: "token-" + string(rune('0'+n)),
			TokenType:   "Bearer",
			ExpiresAt:   time.Now().Add(time.Hour),
		})
	}))
	defer srv.Close()

	ctx := context.Background()
	src := NewClientCredentials(srv.URL, "device-1", "s3cret", srv.Client())

	first, err := src.Token(ctx)
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	again, _ := src.Token(ctx)
	if first != again || calls.Load() != 1 {
		t.Fatalf("expected cached token, got %s then %s after %d calls", first, again, calls.Load())
	}

	if err := src.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() failed: %v", err)
	}
	fresh, err := src.Token(ctx)
	if err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if fresh == first || calls.Load() != 2 {
		t.Fatalf("expected a new token after refresh, got %s", fresh)
	}
}

func TestClientCredentials_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"rejected credentials", http.StatusUnauthorized, syncerr.IsAuth},
		{"server down", http.StatusServiceUnavailable, syncerr.IsConnectivity},
		{"rate limited", http.StatusTooManyRequests, syncerr.IsConnectivity},
		{"bad request", http.StatusBadRequest, syncerr.IsAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := NewClientCredentials(srv.URL, "id", "secret", srv.Client()).Token(context.Background())
			if !tt.check(err) {
				t.Fatalf("unexpected error classification: %v", err)
			}
		})
	}

	_, err := NewClientCredentials("http://127.0.0.1:1/auth/token", "id", "secret", nil).Token(context.Background())
	if !syncerr.IsConnectivity(err) {
		t.Fatalf("expected connectivity error for unreachable endpoint, got %v", err)
	}
}
