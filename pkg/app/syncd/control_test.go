package syncd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/config"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/localstore"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/orchestrator"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/syncerr"
)

type fakeController struct {
	mu sync.Mutex

	syncAllFn    func(ctx context.Context) *orchestrator.Result
	syncEntityFn func(ctx context.Context, t entity.Type) *orchestrator.EntityResult
	resetFn      func(ctx context.Context) (int, error)
	saveFn       func(ctx context.Context, rec *entity.Record) (string, error)

	autoSync  *bool
	reauthed  bool
	reauthErr error
	deleted   []string
	performed []entity.Operation
	subs      []chan *orchestrator.Result
}

func (f *fakeController) SyncAll(ctx context.Context) *orchestrator.Result {
	if f.syncAllFn != nil {
		return f.syncAllFn(ctx)
	}
	return &orchestrator.Result{Kind: orchestrator.KindFull, Success: true}
}

func (f *fakeController) QuickSync(context.Context) *orchestrator.Result {
	return &orchestrator.Result{Kind: orchestrator.KindQuick, Success: true}
}

func (f *fakeController) SyncEntity(ctx context.Context, t entity.Type) *orchestrator.EntityResult {
	if f.syncEntityFn != nil {
		return f.syncEntityFn(ctx, t)
	}
	return &orchestrator.EntityResult{Type: t, Success: true}
}

func (f *fakeController) Status(context.Context) (*orchestrator.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := &orchestrator.Status{PendingCount: 2, AutoSyncEnabled: true}
	if f.autoSync != nil {
		st.AutoSyncEnabled = *f.autoSync
	}
	return st, nil
}

func (f *fakeController) ResetSyncState(ctx context.Context) (int, error) {
	if f.resetFn != nil {
		return f.resetFn(ctx)
	}
	return 0, nil
}

func (f *fakeController) SetAutoSync(_ context.Context, enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoSync = &enabled
	return nil
}

func (f *fakeController) Reauthenticated(context.Context) error {
	if f.reauthErr != nil {
		return f.reauthErr
	}
	f.reauthed = true
	return nil
}

func (f *fakeController) Subscribe() (<-chan *orchestrator.Result, func()) {
	ch := make(chan *orchestrator.Result, 1)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.mu.Unlock()
	return ch, func() {}
}

func (f *fakeController) publish(res *orchestrator.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		ch <- res
	}
}

func (f *fakeController) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeController) Save(ctx context.Context, rec *entity.Record) (string, error) {
	if f.saveFn != nil {
		return f.saveFn(ctx, rec)
	}
	return "tmp-1", nil
}

func (f *fakeController) Delete(_ context.Context, _ entity.Type, id string) error {
	if id == "missing" {
		return localstore.ErrRecordNotFound
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeController) Perform(_ context.Context, _ entity.Type, _ string, verb entity.Operation, _ []byte) error {
	f.performed = append(f.performed, verb)
	return nil
}

type fakeRecords struct {
	recs   []*entity.Record
	remaps map[string]string
}

func (f *fakeRecords) ResolveID(_ context.Context, _ entity.Type, id string) (string, error) {
	if to, ok := f.remaps[id]; ok {
		return to, nil
	}
	return id, nil
}

func (f *fakeRecords) Get(_ context.Context, t entity.Type, id string) (*entity.Record, error) {
	for _, rec := range f.recs {
		if rec.Type() == t && rec.ID == id {
			return rec, nil
		}
	}
	return nil, localstore.ErrRecordNotFound
}

func (f *fakeRecords) GetAll(_ context.Context, t entity.Type, _ ...localstore.QueryOption) ([]*entity.Record, error) {
	var out []*entity.Record
	for _, rec := range f.recs {
		if rec.Type() == t {
			out = append(out, rec)
		}
	}
	return out, nil
}

type countingTrigger struct{ n int }

func (c *countingTrigger) Trigger() { c.n++ }

func newTestRouter(ctl Controller, records RecordReader, trig Triggerer) http.Handler {
	s := NewServer(&config.SyncdConfig{Monitoring: config.MonitoringConfig{Enabled: true}})
	return s.newRouter(ctl, records, trig, zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestControl_Status(t *testing.T) {
	rec := do(t, newTestRouter(&fakeController{}, &fakeRecords{}, nil), http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var st orchestrator.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("failed to decode response JSON: %v", err)
	}
	if st.PendingCount != 2 {
		t.Fatalf("expected pending count 2, got %d", st.PendingCount)
	}
}

func TestControl_Sync(t *testing.T) {
	busy := &fakeController{
		syncAllFn: func(context.Context) *orchestrator.Result {
			return &orchestrator.Result{Kind: orchestrator.KindFull, Reason: orchestrator.ReasonAlreadySyncing}
		},
		syncEntityFn: func(_ context.Context, t entity.Type) *orchestrator.EntityResult {
			return &orchestrator.EntityResult{Type: t, Reason: orchestrator.ReasonAlreadySyncing}
		},
	}

	tests := []struct {
		name string
		ctl  Controller
		path string
		want int
	}{
		{"full sync", &fakeController{}, "/sync", http.StatusOK},
		{"quick sync", &fakeController{}, "/sync/quick", http.StatusOK},
		{"entity sync", &fakeController{}, "/sync/items", http.StatusOK},
		{"unknown entity", &fakeController{}, "/sync/widgets", http.StatusNotFound},
		{"full sync busy", busy, "/sync", http.StatusConflict},
		{"entity sync busy", busy, "/sync/scan-events", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, newTestRouter(tt.ctl, &fakeRecords{}, nil), http.MethodPost, tt.path, "")
			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestControl_AsyncSyncUsesTrigger(t *testing.T) {
	trig := &countingTrigger{}
	rec := do(t, newTestRouter(&fakeController{}, &fakeRecords{}, trig), http.MethodPost, "/sync?async=true", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
	if trig.n != 1 {
		t.Fatalf("expected one trigger, got %d", trig.n)
	}

	rec = do(t, newTestRouter(&fakeController{}, &fakeRecords{}, nil), http.MethodPost, "/sync?async=true", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d without a trigger, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestControl_Reset(t *testing.T) {
	ctl := &fakeController{resetFn: func(context.Context) (int, error) { return 7, nil }}
	rec := do(t, newTestRouter(ctl, &fakeRecords{}, nil), http.MethodPost, "/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"records":7}` {
		t.Fatalf("unexpected body %s", got)
	}

	busy := &fakeController{resetFn: func(context.Context) (int, error) { return 0, orchestrator.ErrSyncInProgress }}
	rec = do(t, newTestRouter(busy, &fakeRecords{}, nil), http.MethodPost, "/reset", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}

func TestControl_SettingsAndReauth(t *testing.T) {
	ctl := &fakeController{}
	h := newTestRouter(ctl, &fakeRecords{}, nil)

	if rec := do(t, h, http.MethodPut, "/settings/auto-sync", `{"enabled":false}`); rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if ctl.autoSync == nil || *ctl.autoSync {
		t.Fatal("expected auto sync to be disabled")
	}
	if rec := do(t, h, http.MethodPut, "/settings/auto-sync", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	if rec := do(t, h, http.MethodPost, "/reauth", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if !ctl.reauthed {
		t.Fatal("expected Reauthenticated to be called")
	}
}

func TestControl_ReauthFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"rejected credentials", syncerr.Auth("refresh token", http.StatusUnauthorized, nil), http.StatusUnauthorized},
		{"token endpoint unreachable", syncerr.Transport("refresh token", io.ErrUnexpectedEOF), http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(&fakeController{reauthErr: tt.err}, &fakeRecords{}, nil)
			if rec := do(t, h, http.MethodPost, "/reauth", ""); rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestControl_Records(t *testing.T) {
	synced := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	records := &fakeRecords{recs: []*entity.Record{
		{ID: "srv-1", TenantID: "tenant-a", Payload: &entity.ItemPayload{Name: "Drill", Status: "available"}, SyncedAt: &synced},
		{ID: "tmp-2", TenantID: "tenant-a", Payload: &entity.ItemPayload{Name: "Ladder", Status: "available"}, Dirty: true},
	}}

	var saved *entity.Record
	ctl := &fakeController{saveFn: func(_ context.Context, rec *entity.Record) (string, error) {
		saved = rec
		if rec.ID == "" {
			return "tmp-3", nil
		}
		return rec.ID, nil
	}}
	h := newTestRouter(ctl, records, nil)

	rec := do(t, h, http.MethodGet, "/records/items", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var views []recordView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("failed to decode response JSON: %v", err)
	}
	if len(views) != 2 || views[1].ID != "tmp-2" || !views[1].Dirty {
		t.Fatalf("unexpected records: %+v", views)
	}

	rec = do(t, h, http.MethodPost, "/records/items", `{"name":"Saw","status":"available"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if saved == nil || saved.ID != "" || saved.Payload.(*entity.ItemPayload).Name != "Saw" {
		t.Fatalf("unexpected saved record: %+v", saved)
	}

	rec = do(t, h, http.MethodPut, "/records/items/srv-1", `{"name":"Drill","status":"maintenance"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if saved.ID != "srv-1" {
		t.Fatalf("expected update of srv-1, got %s", saved.ID)
	}

	if rec := do(t, h, http.MethodPut, "/records/items/srv-404", `{"name":"X","status":"available"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/records/items", `{nope`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestControl_RecordsFollowRemappedIDs(t *testing.T) {
	synced := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	records := &fakeRecords{
		recs: []*entity.Record{
			{ID: "srv-42", TenantID: "tenant-a", Payload: &entity.ItemPayload{Name: "Ladder", Status: "available"}, SyncedAt: &synced},
		},
		remaps: map[string]string{"tmp-1": "srv-42"},
	}
	var saved *entity.Record
	ctl := &fakeController{saveFn: func(_ context.Context, rec *entity.Record) (string, error) {
		saved = rec
		return rec.ID, nil
	}}
	h := newTestRouter(ctl, records, nil)

	rec := do(t, h, http.MethodGet, "/records/items/tmp-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var v recordView
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("failed to decode response JSON: %v", err)
	}
	if v.ID != "srv-42" {
		t.Fatalf("expected server id, got %s", v.ID)
	}

	rec = do(t, h, http.MethodPut, "/records/items/tmp-1", `{"name":"Ladder","status":"maintenance"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if saved == nil || saved.ID != "srv-42" {
		t.Fatalf("expected update of srv-42, got %+v", saved)
	}
}

func TestControl_DeleteAndPerform(t *testing.T) {
	ctl := &fakeController{}
	h := newTestRouter(ctl, &fakeRecords{}, nil)

	if rec := do(t, h, http.MethodDelete, "/records/users/srv-1", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/records/users/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	if rec := do(t, h, http.MethodPost, "/records/items/srv-1/assign", `{"user_id":"srv-u"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/records/items/srv-1/delete", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status %d for a CRUD verb, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/records/items/srv-1/return", `{bad`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	if len(ctl.deleted) != 1 || len(ctl.performed) != 1 || ctl.performed[0] != entity.OpAssign {
		t.Fatalf("unexpected calls: deleted=%v performed=%v", ctl.deleted, ctl.performed)
	}
}

func TestControl_HealthAndMetrics(t *testing.T) {
	h := newTestRouter(&fakeController{}, &fakeRecords{}, nil)
	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
}

func TestStatusStream(t *testing.T) {
	ctl := &fakeController{}
	r := chi.NewRouter()
	r.Handle("/status/stream", &streamer{ctl: ctl, logger: zap.NewNop()})
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/status/stream", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() StreamMessage {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("Failed to read message: %v", err)
		}
		var msg StreamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Failed to decode message: %v", err)
		}
		return msg
	}

	first := read()
	if first.Type != MessageStatus || first.Status == nil || first.Status.PendingCount != 2 {
		t.Fatalf("unexpected first frame: %+v", first)
	}
	if ctl.subscribers() != 1 {
		t.Fatalf("expected one subscriber, got %d", ctl.subscribers())
	}

	ctl.publish(&orchestrator.Result{Kind: orchestrator.KindQuick, Success: true})
	next := read()
	if next.Type != MessageResult || next.Result == nil || next.Result.Kind != orchestrator.KindQuick {
		t.Fatalf("unexpected result frame: %+v", next)
	}
}

func TestServer_RunRequiresConfig(t *testing.T) {
	if err := NewServer(nil).Run(); err == nil || !strings.Contains(err.Error(), "nil config") {
		t.Fatalf("expected nil config error, got %v", err)
	}
}
