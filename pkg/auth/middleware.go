package auth

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app/errors"
	apphttp "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app/http"
)

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// Middleware rejects requests without a valid bearer token with 401 and stores
// the verified claims in the request context.
func Middleware(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := v.Verify(r.Context(), BearerToken(r))
			if err != nil {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(err, "invalid or missing bearer token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireTenant rejects requests whose URL tenant (chi param) differs from the
// token tenant with 403. It must run after Middleware.
func RequireTenant(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, ok := TenantFromContext(r.Context())
			if !ok {
				apphttp.DefaultErrorHandler(w, apperrors.UnAuthorizedError(nil, "invalid or missing bearer token"))
				return
			}
			if chi.URLParam(r, param) != tenantID {
				apphttp.DefaultErrorHandler(w, apperrors.ForbiddenError(nil, "token is not valid for this tenant"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
