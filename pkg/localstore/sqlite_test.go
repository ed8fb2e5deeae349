package localstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	mghelper "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/dbutil/migrations"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/sqliteutil"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/syncerr"
)

const tenant = "tenant-a"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupStore(t *testing.T) (context.Context, *sqliteStore, *fakeClock) {
	t.Helper()
	ctx := context.Background()
	db := sqliteutil.SetupTestDB(t)

	err := mghelper.CreateSchema(ctx, db,
		&RecordDao{}, &ActionDao{}, &SyncStateDao{}, &SettingDao{}, &IDRemapDao{})
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return ctx, NewStore(db, WithClock(clock.Now)), clock
}

func newItem(id, name string) *entity.Record {
	return &entity.Record{
		ID:       id,
		TenantID: tenant,
		Payload:  &entity.ItemPayload{Name: name, Status: "available"},
	}
}

func mustGet(t *testing.T, s *sqliteStore, typ entity.Type, id string) *entity.Record {
	t.Helper()
	rec, err := s.Get(context.Background(), typ, id)
	if err != nil {
		t.Fatalf("Get(%s, %s) failed: %v", typ, id, err)
	}
	return rec
}

func TestUpsert_LocalWriteIsDirtyWithTempID(t *testing.T) {
	ctx, s, clock := setupStore(t)

	id, err := s.Upsert(ctx, newItem("", "Drill"))
	if err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if !entity.IsTempID(id) {
		t.Fatalf("expected temporary id, got %s", id)
	}

	rec := mustGet(t, s, entity.Items, id)
	if !rec.Dirty || rec.SyncedAt != nil {
		t.Fatalf("expected dirty never-synced record, got dirty=%v synced=%v", rec.Dirty, rec.SyncedAt)
	}
	if !rec.UpdatedAt.Equal(clock.Now()) {
		t.Fatalf("expected updatedAt %s, got %s", clock.Now(), rec.UpdatedAt)
	}
}

func TestUpsert_UpdatedAtIsMonotonic(t *testing.T) {
	ctx, s, _ := setupStore(t)

	// The clock does not move between writes.
	id, err := s.Upsert(ctx, newItem("", "Drill"))
	if err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	first := mustGet(t, s, entity.Items, id).UpdatedAt

	if _, err := s.Upsert(ctx, newItem(id, "Drill v2")); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	second := mustGet(t, s, entity.Items, id)
	if !second.UpdatedAt.After(first) {
		t.Fatalf("expected updatedAt to increase: %s then %s", first, second.UpdatedAt)
	}
	if second.Payload.(*entity.ItemPayload).Name != "Drill v2" {
		t.Fatalf("expected payload replaced, got %+v", second.Payload)
	}
}

func TestUpsert_FromRemoteIsClean(t *testing.T) {
	ctx, s, clock := setupStore(t)
	remoteAt := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

	rec := newItem("srv-1", "Ladder")
	rec.UpdatedAt = remoteAt
	if _, err := s.Upsert(ctx, rec, FromRemote(clock.Now())); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	got := mustGet(t, s, entity.Items, "srv-1")
	if got.Dirty {
		t.Fatal("expected remote copy to be clean")
	}
	if !got.UpdatedAt.Equal(remoteAt) {
		t.Fatalf("expected remote updatedAt kept, got %s", got.UpdatedAt)
	}
	if got.SyncedAt == nil || !got.SyncedAt.Equal(clock.Now()) {
		t.Fatalf("expected syncedAt %s, got %v", clock.Now(), got.SyncedAt)
	}

	// A later local edit keeps the sync stamp so the record pushes as an update.
	clock.Advance(time.Minute)
	if _, err := s.Upsert(ctx, &entity.Record{ID: "srv-1", Payload: &entity.ItemPayload{Name: "Ladder 2"}}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	got = mustGet(t, s, entity.Items, "srv-1")
	if !got.Dirty || got.IsNew() {
		t.Fatalf("expected dirty previously-synced record, got dirty=%v new=%v", got.Dirty, got.IsNew())
	}
	if got.TenantID != tenant {
		t.Fatalf("expected tenant carried over, got %q", got.TenantID)
	}
}

func TestUpsert_AsResolvedKeepsStamps(t *testing.T) {
	ctx, s, _ := setupStore(t)

	updated := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	synced := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	rec := newItem("srv-1", "Drill")
	rec.UpdatedAt = updated
	rec.SyncedAt = &synced
	rec.Dirty = true

	if _, err := s.Upsert(ctx, rec, AsResolved()); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	got := mustGet(t, s, entity.Items, "srv-1")
	if !got.Dirty || !got.UpdatedAt.Equal(updated) || got.SyncedAt == nil || !got.SyncedAt.Equal(synced) {
		t.Fatalf("expected stamps kept as given, got %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	ctx, s, _ := setupStore(t)
	if _, err := s.Get(ctx, entity.Items, "missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestGetAll_Filters(t *testing.T) {
	ctx, s, clock := setupStore(t)

	clean := newItem("srv-1", "Clean")
	clean.UpdatedAt = clock.Now()
	if _, err := s.Upsert(ctx, clean, FromRemote(clock.Now())); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	clock.Advance(time.Second)
	dirtyID, err := s.Upsert(ctx, newItem("", "Dirty"))
	if err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	other := newItem("", "Other tenant")
	other.TenantID = "tenant-b"
	clock.Advance(time.Second)
	if _, err := s.Upsert(ctx, other); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if _, err := s.Upsert(ctx, &entity.Record{TenantID: tenant, Payload: &entity.UserPayload{Email: "a@b.c"}}); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	tests := []struct {
		name string
		opts []QueryOption
		want int
	}{
		{"all items", nil, 3},
		{"dirty", []QueryOption{WithDirty(true)}, 2},
		{"clean", []QueryOption{WithDirty(false)}, 1},
		{"ids", []QueryOption{WithIDs("srv-1", dirtyID)}, 2},
		{"updated after", []QueryOption{WithUpdatedAfter(clean.UpdatedAt)}, 2},
		{"tenant", []QueryOption{WithTenant("tenant-b")}, 1},
		{"combined", []QueryOption{WithTenant(tenant), WithDirty(true)}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetAll(ctx, entity.Items, tt.opts...)
			if err != nil {
				t.Fatalf("GetAll() failed: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d records, got %d", tt.want, len(got))
			}
		})
	}

	dirty, err := s.GetDirty(ctx, entity.Items)
	if err != nil {
		t.Fatalf("GetDirty() failed: %v", err)
	}
	if dirty[0].ID != dirtyID {
		t.Fatalf("expected dirty records ordered by updatedAt, got %s first", dirty[0].ID)
	}

	n, err := s.CountDirty(ctx, "")
	if err != nil {
		t.Fatalf("CountDirty() failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 dirty records across types, got %d", n)
	}
}

func TestMarkSynced_GuardKeepsConcurrentEditDirty(t *testing.T) {
	ctx, s, clock := setupStore(t)

	id, err := s.Upsert(ctx, newItem("srv-7", "Drill"))
	if err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	pushed := mustGet(t, s, entity.Items, id)

	// Edited while the push was in flight.
	clock.Advance(time.Second)
	if _, err := s.Upsert(ctx, newItem(id, "Drill (edited)")); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	if err := s.MarkSynced(ctx, entity.Items, id, clock.Now(), IfUnchangedSince(pushed.UpdatedAt)); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}
	got := mustGet(t, s, entity.Items, id)
	if !got.Dirty {
		t.Fatal("expected concurrent edit to stay dirty")
	}
	if got.SyncedAt == nil {
		t.Fatal("expected syncedAt stamped")
	}

	if err := s.MarkSynced(ctx, entity.Items, id, clock.Now(), IfUnchangedSince(got.UpdatedAt)); err != nil {
		t.Fatalf("MarkSynced() failed: %v", err)
	}
	if mustGet(t, s, entity.Items, id).Dirty {
		t.Fatal("expected record clean once unchanged")
	}
}

func TestPark_SkipsPushUntilNextEdit(t *testing.T) {
	ctx, s, clock := setupStore(t)

	id, err := s.Upsert(ctx, newItem("", "Drill"))
	if err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if _, err := s.Upsert(ctx, newItem("", "Saw")); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if err := s.Park(ctx, entity.Items, id, clock.Now()); err != nil {
		t.Fatalf("Park() failed: %v", err)
	}

	dirty, err := s.GetDirty(ctx, entity.Items)
	if err != nil {
		t.Fatalf("GetDirty() failed: %v", err)
	}
	if len(dirty) != 1 || dirty[0].ID == id {
		t.Fatalf("expected parked record skipped, got %+v", dirty)
	}
	if n, err := s.CountDirty(ctx, entity.Items); err != nil || n != 1 {
		t.Fatalf("expected 1 pending item, got %d (%v)", n, err)
	}
	parked, err := s.GetAll(ctx, entity.Items, WithParked(true))
	if err != nil {
		t.Fatalf("GetAll() failed: %v", err)
	}
	if len(parked) != 1 || parked[0].ID != id || !parked[0].Dirty {
		t.Fatalf("expected parked record still dirty, got %+v", parked)
	}

	// resolved writes keep the marker, local edits clear it
	rec := mustGet(t, s, entity.Items, id)
	if _, err := s.Upsert(ctx, rec, AsResolved()); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if n, _ := s.CountDirty(ctx, entity.Items); n != 1 {
		t.Fatalf("resolved write unparked the record, %d pending", n)
	}
	clock.Advance(time.Second)
	if _, err := s.Upsert(ctx, newItem(id, "Drill v2")); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if n, _ := s.CountDirty(ctx, entity.Items); n != 2 {
		t.Fatalf("expected edit to unpark, got %d pending", n)
	}

	if err := s.Park(ctx, entity.Items, id, clock.Now()); err != nil {
		t.Fatalf("Park() failed: %v", err)
	}
	if _, err := s.ResetSyncState(ctx); err != nil {
		t.Fatalf("ResetSyncState() failed: %v", err)
	}
	if n, _ := s.CountDirty(ctx, entity.Items); n != 2 {
		t.Fatalf("expected reset to unpark, got %d pending", n)
	}
}

func TestRemove(t *testing.T) {
	ctx, s, _ := setupStore(t)

	id, err := s.Upsert(ctx, newItem("", "Drill"))
	if err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if err := s.Remove(ctx, entity.Items, id); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, err := s.Get(ctx, entity.Items, id); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected record removed, got %v", err)
	}
	if err := s.Remove(ctx, entity.Items, id); err != nil {
		t.Fatalf("expected removing a missing record to succeed, got %v", err)
	}
}

func TestConfirmCreate_RemapsRecordDependentsAndQueue(t *testing.T) {
	ctx, s, clock := setupStore(t)

	if _, err := s.Upsert(ctx, newItem("tmp-1", "Drill")); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	item := mustGet(t, s, entity.Items, "tmp-1")

	assignment := &entity.Record{
		ID:       "tmp-2",
		TenantID: tenant,
		Payload:  &entity.AssignmentPayload{ItemID: "tmp-1", UserID: "srv-u1", AssignedAt: clock.Now()},
	}
	if _, err := s.Upsert(ctx, assignment); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	itemAction, err := s.Enqueue(ctx, &entity.PendingAction{EntityType: entity.Items, EntityID: "tmp-1", Operation: entity.OpAssign, Payload: []byte(`{"user_id":"srv-u1"}`)})
	if err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}
	clock.Advance(time.Millisecond)
	assignAction, err := s.Enqueue(ctx, &entity.PendingAction{EntityType: entity.Assignments, EntityID: "tmp-2", Operation: entity.OpCreate, Payload: []byte(`{"item_id":"tmp-1","user_id":"srv-u1"}`)})
	if err != nil {
		t.Fatalf("Enqueue() failed: %v", err)
	}

	clock.Advance(time.Second)
	if err := s.ConfirmCreate(ctx, entity.Items, "tmp-1", "srv-42", clock.Now(), item.UpdatedAt); err != nil {
		t.Fatalf("ConfirmCreate() failed: %v", err)
	}

	if _, err := s.Get(ctx, entity.Items, "tmp-1"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected temporary id gone, got %v", err)
	}
	confirmed := mustGet(t, s, entity.Items, "srv-42")
	if confirmed.Dirty || confirmed.SyncedAt == nil {
		t.Fatalf("expected confirmed record clean and synced, got dirty=%v synced=%v", confirmed.Dirty, confirmed.SyncedAt)
	}

	dep := mustGet(t, s, entity.Assignments, "tmp-2")
	if got := dep.Payload.(*entity.AssignmentPayload).ItemID; got != "srv-42" {
		t.Fatalf("expected dependent item_id srv-42, got %s", got)
	}

	actions, err := s.DequeueAll(ctx)
	if err != nil {
		t.Fatalf("DequeueAll() failed: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].ID != itemAction || actions[0].EntityID != "srv-42" {
		t.Fatalf("expected item action retargeted to srv-42, got %+v", actions[0])
	}
	if actions[1].ID != assignAction || !strings.Contains(string(actions[1].Payload), `"srv-42"`) {
		t.Fatalf("expected assignment payload remapped, got %s", actions[1].Payload)
	}

	resolved, err := s.ResolveID(ctx, entity.Items, "tmp-1")
	if err != nil {
		t.Fatalf("ResolveID() failed: %v", err)
	}
	if resolved != "srv-42" {
		t.Fatalf("expected tmp-1 to resolve to srv-42, got %s", resolved)
	}
	if same, _ := s.ResolveID(ctx, entity.Items, "srv-9"); same != "srv-9" {
		t.Fatalf("expected unknown id unchanged, got %s", same)
	}
}

func TestConfirmCreate_EditDuringPushStaysDirty(t *testing.T) {
	ctx, s, clock := setupStore(t)

	if _, err := s.Upsert(ctx, newItem("tmp-1", "Drill")); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	pushed := mustGet(t, s, entity.Items, "tmp-1")

	clock.Advance(time.Second)
	if _, err := s.Upsert(ctx, newItem("tmp-1", "Drill (edited)")); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}

	if err := s.ConfirmCreate(ctx, entity.Items, "tmp-1", "srv-42", clock.Now(), pushed.UpdatedAt); err != nil {
		t.Fatalf("ConfirmCreate() failed: %v", err)
	}
	got := mustGet(t, s, entity.Items, "srv-42")
	if !got.Dirty || got.IsNew() {
		t.Fatalf("expected dirty update pending, got dirty=%v new=%v", got.Dirty, got.IsNew())
	}
}

func TestConfirmCreate_MissingRecord(t *testing.T) {
	ctx, s, clock := setupStore(t)
	err := s.ConfirmCreate(ctx, entity.Items, "tmp-x", "srv-x", clock.Now(), clock.Now())
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestQueue_FIFOAndRetries(t *testing.T) {
	ctx, s, clock := setupStore(t)

	var ids []string
	for _, typ := range []entity.Type{entity.Items, entity.Users, entity.Items} {
		id, err := s.Enqueue(ctx, &entity.PendingAction{EntityType: typ, EntityID: "srv-1", Operation: entity.OpUpdate})
		if err != nil {
			t.Fatalf("Enqueue() failed: %v", err)
		}
		ids = append(ids, id)
		clock.Advance(time.Millisecond)
	}

	all, err := s.DequeueAll(ctx)
	if err != nil {
		t.Fatalf("DequeueAll() failed: %v", err)
	}
	for i, a := range all {
		if a.ID != ids[i] {
			t.Fatalf("expected FIFO order, position %d got %s want %s", i, a.ID, ids[i])
		}
	}

	items, err := s.DequeueAll(ctx, ForEntity(entity.Items))
	if err != nil {
		t.Fatalf("DequeueAll() failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 item actions, got %d", len(items))
	}

	for want := 1; want <= MaxRetries; want++ {
		got, err := s.IncrementRetry(ctx, ids[0], "rejected")
		if err != nil {
			t.Fatalf("IncrementRetry() failed: %v", err)
		}
		if got != want {
			t.Fatalf("expected retry count %d, got %d", want, got)
		}
	}
	all, _ = s.DequeueAll(ctx)
	if all[0].LastError != "rejected" {
		t.Fatalf("expected last error stored, got %q", all[0].LastError)
	}

	if err := s.RemoveAction(ctx, ids[0]); err != nil {
		t.Fatalf("RemoveAction() failed: %v", err)
	}
	if n, _ := s.CountActions(ctx); n != 2 {
		t.Fatalf("expected 2 actions left, got %d", n)
	}
	if _, err := s.IncrementRetry(ctx, ids[0], "gone"); !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}
}

func TestSettings_CursorsAndFlags(t *testing.T) {
	ctx, s, clock := setupStore(t)

	st, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings() failed: %v", err)
	}
	if st.AutoSyncEnabled != nil || st.LastFullSync != nil || !st.Cursor(entity.Items).IsZero() {
		t.Fatalf("expected empty settings, got %+v", st)
	}

	t1 := clock.Now()
	t0 := t1.Add(-time.Hour)
	if err := s.AdvanceCursor(ctx, entity.Items, t1); err != nil {
		t.Fatalf("AdvanceCursor() failed: %v", err)
	}
	if err := s.AdvanceCursor(ctx, entity.Items, t0); err != nil {
		t.Fatalf("AdvanceCursor() failed: %v", err)
	}
	if err := s.SetLastSynced(ctx, entity.Items, t1); err != nil {
		t.Fatalf("SetLastSynced() failed: %v", err)
	}
	if err := s.SetLastFullSync(ctx, t1); err != nil {
		t.Fatalf("SetLastFullSync() failed: %v", err)
	}
	if err := s.SetAutoSync(ctx, false); err != nil {
		t.Fatalf("SetAutoSync() failed: %v", err)
	}

	st, err = s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings() failed: %v", err)
	}
	if !st.Cursor(entity.Items).Equal(t1) {
		t.Fatalf("expected cursor to never move backwards, got %s", st.Cursor(entity.Items))
	}
	if !st.LastSynced[entity.Items].Equal(t1) {
		t.Fatalf("expected last synced %s, got %s", t1, st.LastSynced[entity.Items])
	}
	if st.LastFullSync == nil || !st.LastFullSync.Equal(t1) {
		t.Fatalf("expected last full sync %s, got %v", t1, st.LastFullSync)
	}
	if st.AutoSyncEnabled == nil || *st.AutoSyncEnabled {
		t.Fatalf("expected auto sync disabled, got %v", st.AutoSyncEnabled)
	}
}

func TestResetSyncState(t *testing.T) {
	ctx, s, clock := setupStore(t)

	for _, id := range []string{"srv-1", "srv-2"} {
		rec := newItem(id, id)
		rec.UpdatedAt = clock.Now()
		if _, err := s.Upsert(ctx, rec, FromRemote(clock.Now())); err != nil {
			t.Fatalf("Upsert() failed: %v", err)
		}
	}
	if _, err := s.Upsert(ctx, newItem("", "local")); err != nil {
		t.Fatalf("Upsert() failed: %v", err)
	}
	if err := s.AdvanceCursor(ctx, entity.Items, clock.Now()); err != nil {
		t.Fatalf("AdvanceCursor() failed: %v", err)
	}
	if err := s.SetLastSynced(ctx, entity.Items, clock.Now()); err != nil {
		t.Fatalf("SetLastSynced() failed: %v", err)
	}

	marked, err := s.ResetSyncState(ctx)
	if err != nil {
		t.Fatalf("ResetSyncState() failed: %v", err)
	}
	if marked != 2 {
		t.Fatalf("expected 2 clean records marked, got %d", marked)
	}
	if n, _ := s.CountDirty(ctx, entity.Items); n != 3 {
		t.Fatalf("expected all 3 records dirty, got %d", n)
	}

	st, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings() failed: %v", err)
	}
	if !st.Cursor(entity.Items).IsZero() {
		t.Fatalf("expected cursor cleared, got %s", st.Cursor(entity.Items))
	}
	if st.LastSynced[entity.Items].IsZero() {
		t.Fatal("expected last synced timestamp kept")
	}
}

func TestStorageFailuresAreClassified(t *testing.T) {
	ctx, s, _ := setupStore(t)
	if err := s.db.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	_, err := s.Upsert(ctx, newItem("", "Drill"))
	if !syncerr.IsStorage(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if _, err := s.DequeueAll(ctx); !syncerr.IsStorage(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if _, err := s.Settings(ctx); !syncerr.IsStorage(err) {
		t.Fatalf("expected storage error, got %v", err)
	}
}
