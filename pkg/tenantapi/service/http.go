package service

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/internal/metrics"
	apperrors "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app/errors"
	apphttp "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app/http"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/auth"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/tenantapi"
)

const maxBodySize = 1 << 20

// HTTP wraps the Service to provide HTTP endpoints
type HTTP struct {
	service Service
	logger  *zap.Logger
}

// RegisterRoutes registers the tenant API endpoints on the given chi router.
// Everything under /tenants/{tenantId} requires a bearer token of that tenant.
func RegisterRoutes(r chi.Router, service Service, verifier *auth.Verifier, logger *zap.Logger) {
	h := &HTTP{
		service: service,
		logger:  logger,
	}

	r.Post("/auth/token", apphttp.HandleError(h.issueToken))

	r.Route("/tenants/{tenantId}", func(r chi.Router) {
		r.Use(instrument)
		r.Use(auth.Middleware(verifier))
		r.Use(auth.RequireTenant("tenantId"))

		r.Get("/{entity}", apphttp.HandleError(h.list))
		r.Post("/{entity}", apphttp.HandleError(h.create))
		r.Put("/{entity}/{id}", apphttp.HandleError(h.update))
		r.Delete("/{entity}/{id}", apphttp.HandleError(h.delete))
		r.Post("/{entity}/{id}/{verb}", apphttp.HandleError(h.perform))
	})
}

// instrument records request counts and latency per entity type.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		// route params are resolved once the sub-router has matched
		label := "unknown"
		if t, err := entity.ParseType(chi.URLParam(r, "entity")); err == nil {
			label = t.String()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.TenantAPIRequestsTotal.WithLabelValues(label, r.Method, strconv.Itoa(status)).Inc()
		metrics.TenantAPIRequestDuration.WithLabelValues(label, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (h *HTTP) list(w http.ResponseWriter, r *http.Request) error {
	t, err := entityType(r)
	if err != nil {
		return err
	}

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return apperrors.BadRequestError(err, "since must be an RFC3339 timestamp")
		}
		since = &ts
	}

	recs, err := h.service.ListChanges(r.Context(), chi.URLParam(r, "tenantId"), t, since)
	if err != nil {
		return err
	}

	envs := make([]*entity.Envelope, 0, len(recs))
	for _, rec := range recs {
		env, err := rec.Envelope()
		if err != nil {
			return apperrors.GeneralError(err)
		}
		envs = append(envs, env)
	}
	apphttp.WriteJSON(w, http.StatusOK, envs)
	return nil
}

func (h *HTTP) create(w http.ResponseWriter, r *http.Request) error {
	t, payload, err := readPayload(r)
	if err != nil {
		return err
	}
	rec, err := h.service.Create(r.Context(), chi.URLParam(r, "tenantId"), payload)
	if err != nil {
		return err
	}
	h.logger.Debug("Record created", zap.String("entity", t.String()), zap.String("id", rec.ID))
	return writeRecord(w, http.StatusCreated, rec)
}

func (h *HTTP) update(w http.ResponseWriter, r *http.Request) error {
	_, payload, err := readPayload(r)
	if err != nil {
		return err
	}
	rec, err := h.service.Update(r.Context(), chi.URLParam(r, "tenantId"), chi.URLParam(r, "id"), payload)
	if err != nil {
		return err
	}
	return writeRecord(w, http.StatusOK, rec)
}

func (h *HTTP) delete(w http.ResponseWriter, r *http.Request) error {
	t, err := entityType(r)
	if err != nil {
		return err
	}
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "tenantId"), t, chi.URLParam(r, "id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *HTTP) perform(w http.ResponseWriter, r *http.Request) error {
	t, err := entityType(r)
	if err != nil {
		return err
	}
	body, err := readBody(r)
	if err != nil {
		return err
	}
	verb := entity.Operation(chi.URLParam(r, "verb"))
	if !verb.IsCustom() {
		return apperrors.NotSupportedError(nil, "unsupported verb "+string(verb))
	}

	rec, err := h.service.Perform(r.Context(), chi.URLParam(r, "tenantId"), t, chi.URLParam(r, "id"), verb, body)
	if err != nil {
		return err
	}
	return writeRecord(w, http.StatusOK, rec)
}

func (h *HTTP) issueToken(w http.ResponseWriter, r *http.Request) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	var req auth.TokenRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}

	tok, err := h.service.IssueToken(r.Context(), &req)
	if err != nil {
		return err
	}
	apphttp.WriteJSON(w, http.StatusOK, tok)
	return nil
}

func entityType(r *http.Request) (entity.Type, error) {
	t, err := entity.ParseType(chi.URLParam(r, "entity"))
	if err != nil {
		return "", apperrors.ResourceNotFoundError(err, "unknown entity type")
	}
	return t, nil
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, apperrors.BadRequestError(err, "failed to read request")
	}
	return body, nil
}

func readPayload(r *http.Request) (entity.Type, entity.Payload, error) {
	t, err := entityType(r)
	if err != nil {
		return "", nil, err
	}
	body, err := readBody(r)
	if err != nil {
		return "", nil, err
	}
	payload, err := entity.DecodePayload(t, body)
	if err != nil {
		return "", nil, apperrors.BadRequestError(err, "invalid JSON")
	}
	return t, payload, nil
}

func writeRecord(w http.ResponseWriter, status int, rec *tenantapi.Record) error {
	env, err := rec.Envelope()
	if err != nil {
		return apperrors.GeneralError(err)
	}
	apphttp.WriteJSON(w, status, env)
	return nil
}
