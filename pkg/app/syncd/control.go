package syncd

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app/errors"
	apphttp "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/app/http"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/localstore"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/orchestrator"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/syncerr"
)

const maxBodySize = 1 << 20

// Controller is the part of the orchestrator exposed on the control API.
type Controller interface {
	SyncAll(ctx context.Context) *orchestrator.Result
	QuickSync(ctx context.Context) *orchestrator.Result
	SyncEntity(ctx context.Context, t entity.Type) *orchestrator.EntityResult
	Status(ctx context.Context) (*orchestrator.Status, error)
	ResetSyncState(ctx context.Context) (int, error)
	SetAutoSync(ctx context.Context, enabled bool) error
	Reauthenticated(ctx context.Context) error
	Subscribe() (<-chan *orchestrator.Result, func())

	Save(ctx context.Context, rec *entity.Record) (string, error)
	Delete(ctx context.Context, t entity.Type, id string) error
	Perform(ctx context.Context, t entity.Type, id string, verb entity.Operation, body []byte) error
}

// RecordReader lists local records.
type RecordReader interface {
	ResolveID(ctx context.Context, t entity.Type, id string) (string, error)
	Get(ctx context.Context, t entity.Type, id string) (*entity.Record, error)
	GetAll(ctx context.Context, t entity.Type, opts ...localstore.QueryOption) ([]*entity.Record, error)
}

// Triggerer schedules a debounced background sync.
type Triggerer interface {
	Trigger()
}

// recordView is the JSON shape of a local record.
type recordView struct {
	ID        string          `json:"id"`
	Type      entity.Type     `json:"type"`
	TenantID  string          `json:"tenant_id"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
	SyncedAt  *time.Time      `json:"synced_at,omitempty"`
	Dirty     bool            `json:"dirty"`
}

type autoSyncRequest struct {
	Enabled *bool `json:"enabled"`
}

type resetResponse struct {
	Records int `json:"records"`
}

type saveResponse struct {
	ID string `json:"id"`
}

type control struct {
	ctl     Controller
	records RecordReader
	trigger Triggerer
	logger  *zap.Logger
}

// registerControlRoutes registers the control API. trigger may be nil.
func registerControlRoutes(r chi.Router, ctl Controller, records RecordReader, trigger Triggerer, logger *zap.Logger) {
	h := &control{ctl: ctl, records: records, trigger: trigger, logger: logger}

	r.Get("/status", apphttp.HandleError(h.status))
	r.Post("/sync", apphttp.HandleError(h.syncAll))
	r.Post("/sync/quick", apphttp.HandleError(h.quickSync))
	r.Post("/sync/{entity}", apphttp.HandleError(h.syncEntity))
	r.Post("/reset", apphttp.HandleError(h.reset))
	r.Post("/reauth", apphttp.HandleError(h.reauth))
	r.Put("/settings/auto-sync", apphttp.HandleError(h.setAutoSync))

	r.Route("/records/{entity}", func(r chi.Router) {
		r.Get("/", apphttp.HandleError(h.listRecords))
		r.Post("/", apphttp.HandleError(h.saveRecord))
		r.Get("/{id}", apphttp.HandleError(h.getRecord))
		r.Put("/{id}", apphttp.HandleError(h.saveRecord))
		r.Delete("/{id}", apphttp.HandleError(h.deleteRecord))
		r.Post("/{id}/{verb}", apphttp.HandleError(h.perform))
	})
}

func (h *control) status(w http.ResponseWriter, r *http.Request) error {
	st, err := h.ctl.Status(r.Context())
	if err != nil {
		return apperrors.GeneralError(err)
	}
	apphttp.WriteJSON(w, http.StatusOK, st)
	return nil
}

// syncAll runs a full sync, or only schedules one with ?async=true.
func (h *control) syncAll(w http.ResponseWriter, r *http.Request) error {
	if r.URL.Query().Get("async") == "true" {
		if h.trigger == nil {
			return apperrors.NotSupportedError(nil, "background sync is not available")
		}
		h.trigger.Trigger()
		w.WriteHeader(http.StatusAccepted)
		return nil
	}
	writeResult(w, h.ctl.SyncAll(r.Context()))
	return nil
}

func (h *control) quickSync(w http.ResponseWriter, r *http.Request) error {
	writeResult(w, h.ctl.QuickSync(r.Context()))
	return nil
}

func (h *control) syncEntity(w http.ResponseWriter, r *http.Request) error {
	t, err := entityType(r)
	if err != nil {
		return err
	}
	res := h.ctl.SyncEntity(r.Context(), t)
	status := http.StatusOK
	if res.Reason == orchestrator.ReasonAlreadySyncing {
		status = http.StatusConflict
	}
	apphttp.WriteJSON(w, status, res)
	return nil
}

func (h *control) reset(w http.ResponseWriter, r *http.Request) error {
	n, err := h.ctl.ResetSyncState(r.Context())
	if err != nil {
		if errors.Is(err, orchestrator.ErrSyncInProgress) {
			return apperrors.ConflictError(err, "a sync is in progress")
		}
		return apperrors.GeneralError(err)
	}
	apphttp.WriteJSON(w, http.StatusOK, &resetResponse{Records: n})
	return nil
}

func (h *control) reauth(w http.ResponseWriter, r *http.Request) error {
	if err := h.ctl.Reauthenticated(r.Context()); err != nil {
		return syncerr.ToServiceError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *control) setAutoSync(w http.ResponseWriter, r *http.Request) error {
	var req autoSyncRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	if req.Enabled == nil {
		return apperrors.BadRequestError(nil, "enabled is required")
	}
	if err := h.ctl.SetAutoSync(r.Context(), *req.Enabled); err != nil {
		return apperrors.GeneralError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *control) listRecords(w http.ResponseWriter, r *http.Request) error {
	t, err := entityType(r)
	if err != nil {
		return err
	}
	var opts []localstore.QueryOption
	if r.URL.Query().Get("dirty") == "true" {
		opts = append(opts, localstore.WithDirty(true))
	}
	recs, err := h.records.GetAll(r.Context(), t, opts...)
	if err != nil {
		return apperrors.GeneralError(err)
	}

	views := make([]*recordView, 0, len(recs))
	for _, rec := range recs {
		v, err := toView(rec)
		if err != nil {
			return apperrors.GeneralError(err)
		}
		views = append(views, v)
	}
	apphttp.WriteJSON(w, http.StatusOK, views)
	return nil
}

func (h *control) getRecord(w http.ResponseWriter, r *http.Request) error {
	t, err := entityType(r)
	if err != nil {
		return err
	}
	rec, err := h.lookup(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	v, err := toView(rec)
	if err != nil {
		return apperrors.GeneralError(err)
	}
	apphttp.WriteJSON(w, http.StatusOK, v)
	return nil
}

// lookup finds a record by id, following the remap of a temporary id that has
// since been replaced by the server id.
func (h *control) lookup(ctx context.Context, t entity.Type, id string) (*entity.Record, error) {
	resolved, err := h.records.ResolveID(ctx, t, id)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}
	rec, err := h.records.Get(ctx, t, resolved)
	if err != nil {
		if errors.Is(err, localstore.ErrRecordNotFound) {
			return nil, apperrors.ResourceNotFoundError(err, "record not found")
		}
		return nil, apperrors.GeneralError(err)
	}
	return rec, nil
}

// saveRecord stores the request body as the payload of a new record (POST) or
// of the record named in the path (PUT).
func (h *control) saveRecord(w http.ResponseWriter, r *http.Request) error {
	t, err := entityType(r)
	if err != nil {
		return err
	}
	body, err := readBody(r)
	if err != nil {
		return err
	}
	payload, err := entity.DecodePayload(t, body)
	if err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}

	id := chi.URLParam(r, "id")
	if id != "" {
		rec, err := h.lookup(r.Context(), t, id)
		if err != nil {
			return err
		}
		id = rec.ID
	}

	id, err = h.ctl.Save(r.Context(), &entity.Record{ID: id, Payload: payload})
	if err != nil {
		if errors.Is(err, localstore.ErrRecordNotFound) {
			return apperrors.ResourceNotFoundError(err, "record not found")
		}
		return apperrors.GeneralError(err)
	}

	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	apphttp.WriteJSON(w, status, &saveResponse{ID: id})
	return nil
}

func (h *control) deleteRecord(w http.ResponseWriter, r *http.Request) error {
	t, err := entityType(r)
	if err != nil {
		return err
	}
	if err := h.ctl.Delete(r.Context(), t, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, localstore.ErrRecordNotFound) {
			return apperrors.ResourceNotFoundError(err, "record not found")
		}
		return apperrors.GeneralError(err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *control) perform(w http.ResponseWriter, r *http.Request) error {
	t, err := entityType(r)
	if err != nil {
		return err
	}
	verb := entity.Operation(chi.URLParam(r, "verb"))
	if !verb.IsCustom() {
		return apperrors.NotSupportedError(nil, "unsupported verb "+string(verb))
	}
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if len(body) > 0 && !json.Valid(body) {
		return apperrors.BadRequestError(nil, "invalid JSON")
	}
	if err := h.ctl.Perform(r.Context(), t, chi.URLParam(r, "id"), verb, body); err != nil {
		if errors.Is(err, localstore.ErrRecordNotFound) {
			return apperrors.ResourceNotFoundError(err, "record not found")
		}
		return apperrors.GeneralError(err)
	}
	w.WriteHeader(http.StatusAccepted)
	return nil
}

// writeResult renders a sync result. A run that did not start because another
// one is active is reported as 409.
func writeResult(w http.ResponseWriter, res *orchestrator.Result) {
	status := http.StatusOK
	if res.Reason == orchestrator.ReasonAlreadySyncing {
		status = http.StatusConflict
	}
	apphttp.WriteJSON(w, status, res)
}

func toView(rec *entity.Record) (*recordView, error) {
	data, err := entity.EncodePayload(rec.Payload)
	if err != nil {
		return nil, err
	}
	return &recordView{
		ID:        rec.ID,
		Type:      rec.Type(),
		TenantID:  rec.TenantID,
		Data:      data,
		UpdatedAt: rec.UpdatedAt,
		SyncedAt:  rec.SyncedAt,
		Dirty:     rec.Dirty,
	}, nil
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

func decodeJSON(r *http.Request, out any) error {
	body, err := readBody(r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	return nil
}
