package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func newProtectedRouter() http.Handler {
	r := chi.NewRouter()
	r.Route("/tenants/{tenantId}", func(r chi.Router) {
		r.Use(Middleware(NewVerifier(testSecret, "asset-tracker", "")))
		r.Use(RequireTenant("tenantId"))
		r.Get("/items", func(w http.ResponseWriter, r *http.Request) {
			tenant, _ := TenantFromContext(r.Context())
			_, _ = w.Write([]byte(tenant))
		})
	})
	return r
}

func TestMiddleware(t *testing.T) {
	token, _, err := NewSigner(testSecret, "asset-tracker", time.Hour).Issue("tenant-a", "device-1")
	if err != nil {
		t.Fatalf("Issue() failed: %v", err)
	}

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing token", "/tenants/tenant-a/items", "", http.StatusUnauthorized},
		{"garbage token", "/tenants/tenant-a/items", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "/tenants/tenant-a/items", "Basic " + token, http.StatusUnauthorized},
		{"other tenant", "/tenants/tenant-b/items", "Bearer " + token, http.StatusForbidden},
		{"ok", "/tenants/tenant-a/items", "bearer " + token, http.StatusOK},
	}

	router := newProtectedRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
			if tt.want == http.StatusOK && rec.Body.String() != "tenant-a" {
				t.Fatalf("expected tenant in context, got %q", rec.Body.String())
			}
		})
	}
}
