package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestSigner_IssueAndVerify(t *testing.T) {
	signer := NewSigner(testSecret, "asset-tracker", time.Hour)
	token, expiresAt, err := signer.Issue("tenant-a", "device-1")
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected expiry in the future, got %s", expiresAt)
	}

	claims, err := NewVerifier(testSecret, "asset-tracker", "").Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if claims.TenantID != "tenant-a" || claims.Subject != "device-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	ctx := context.Background()
	valid := NewSigner(testSecret, "asset-tracker", time.Hour)

	expired := NewSigner(testSecret, "asset-tracker", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tests := []struct {
		name   string
		signer *Signer
		tenant string
		v      *Verifier
	}{
		{"expired", expired, "tenant-a", NewVerifier(testSecret, "asset-tracker", "")},
		{"wrong issuer", valid, "tenant-a", NewVerifier(testSecret, "someone-else", "")},
		{"wrong secret", valid, "tenant-a", NewVerifier([]byte("another-secret-another-secret-xx"), "asset-tracker", "")},
		{"missing tenant", valid, "", NewVerifier(testSecret, "asset-tracker", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, _, err := tt.signer.Issue(tt.tenant, "device-1")
			if err != nil {
				t.Fatalf("Issue() failed: %v", err)
			}
			if _, err := tt.v.Verify(ctx, token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}

	if _, err := NewVerifier(testSecret, "", "").Verify(ctx, ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestVerifier_RS256ViaJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	var fetches atomic.Int32
	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"keys":[{"kid":"k1","kty":"RSA","alg":"RS256","use":"sig","n":"` +
			base64.RawURLEncoding.EncodeToString(key.N.Bytes()) + `","e":"` +
			base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()) + `"}]}`))
	}))
	defer jwks.Close()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, &Claims{
		TenantID: "tenant-a",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "idp",
			Subject:   "device-9",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	v := NewVerifier(nil, "idp", jwks.URL)
	for range 2 {
		claims, err := v.Verify(context.Background(), signed)
		if err != nil {
			t.Fatalf("Verify() failed: %v", err)
		}
		if claims.Subject != "device-9" {
			t.Fatalf("unexpected subject %s", claims.Subject)
		}
	}
	if fetches.Load() != 1 {
		t.Fatalf("expected keys to be cached after one fetch, got %d fetches", fetches.Load())
	}

	// Without a secret, HMAC tokens are refused.
	hmacToken, _, _ := NewSigner(testSecret, "idp", time.Hour).Issue("tenant-a", "x")
	if _, err := v.Verify(context.Background(), hmacToken); err == nil {
		t.Fatal("expected HMAC token to be refused")
	}
}
