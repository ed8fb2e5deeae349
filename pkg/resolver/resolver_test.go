package resolver

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/config"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
)

var (
	lastSync = time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	localAt  = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	remoteAt = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	now      = time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
)

// fieldUpdateConflict is the notes/location scenario: the device edited notes
// while the office moved the item to Warehouse B.
func fieldUpdateConflict() (local, remote *entity.Record) {
	synced := lastSync
	local = &entity.Record{
		ID:       "item-x",
		TenantID: "tenant-a",
		Payload: &entity.ItemPayload{
			Name:     "Cordless Drill",
			Status:   "available",
			Location: "Warehouse A",
			Notes:    "field update",
		},
		UpdatedAt: localAt,
		SyncedAt:  &synced,
		Dirty:     true,
	}
	remote = &entity.Record{
		ID:       "item-x",
		TenantID: "tenant-a",
		Payload: &entity.ItemPayload{
			Name:     "Cordless Drill",
			Status:   "available",
			Location: "Warehouse B",
		},
		UpdatedAt: remoteAt,
	}
	return local, remote
}

func marshal(t *testing.T, res *Resolution) []byte {
	t.Helper()
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return append(data, '\n')
}

func TestResolve_Golden(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))

	for _, policy := range []Policy{PolicyMerge, PolicyLocal, PolicyRemote} {
		t.Run(string(policy), func(t *testing.T) {
			local, remote := fieldUpdateConflict()
			res, err := r.Resolve(local, remote, policy, now)
			if err != nil {
				t.Fatalf("Resolve() failed: %v", err)
			}
			g.Assert(t, "field_update_"+string(policy), marshal(t, res))
		})
	}
}

func TestResolve_MergeKeepsBothSides(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	local, remote := fieldUpdateConflict()

	res, err := r.Resolve(local, remote, PolicyMerge, now)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	item := res.Record.Payload.(*entity.ItemPayload)
	if item.Notes != "field update" || item.Location != "Warehouse B" {
		t.Fatalf("expected notes from local and location from remote, got %+v", item)
	}
	if !res.Record.UpdatedAt.Equal(remoteAt) {
		t.Fatalf("expected max updatedAt, got %s", res.Record.UpdatedAt)
	}
	if !res.Record.Dirty {
		t.Fatal("expected merged record to stay dirty for re-push")
	}

	// inputs are untouched
	if local.Payload.(*entity.ItemPayload).Location != "Warehouse A" || remote.Payload.(*entity.ItemPayload).Notes != "" {
		t.Fatal("Resolve mutated its inputs")
	}
}

func TestResolve_MergeWithoutDifferenceIsClean(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	local, remote := fieldUpdateConflict()
	remote.Payload.(*entity.ItemPayload).Notes = "field update"

	res, err := r.Resolve(local, remote, PolicyMerge, now)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if res.Record.Dirty || len(res.Overlaid) != 0 {
		t.Fatalf("expected clean result, got dirty=%v overlaid=%v", res.Record.Dirty, res.Overlaid)
	}
	if res.Record.SyncedAt == nil || !res.Record.SyncedAt.Equal(now) {
		t.Fatalf("expected syncedAt stamped with now, got %v", res.Record.SyncedAt)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	var first []byte
	for i := 0; i < 20; i++ {
		local, remote := fieldUpdateConflict()
		res, err := r.Resolve(local, remote, PolicyMerge, now)
		if err != nil {
			t.Fatalf("Resolve() failed: %v", err)
		}
		got := marshal(t, res)
		if first == nil {
			first = got
			continue
		}
		if string(got) != string(first) {
			t.Fatalf("run %d differs:\n%s\nvs\n%s", i, got, first)
		}
	}
}

func TestResolve_Invalid(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	local, remote := fieldUpdateConflict()

	if _, err := r.Resolve(local, remote, Policy("coinflip"), now); err == nil {
		t.Fatal("expected error for unknown policy")
	}
	other := &entity.Record{ID: "item-x", Payload: &entity.UserPayload{}}
	if _, err := r.Resolve(local, other, PolicyMerge, now); err == nil {
		t.Fatal("expected error for mismatched types")
	}
	remote.ID = "item-y"
	if _, err := r.Resolve(local, remote, PolicyMerge, now); err == nil {
		t.Fatal("expected error for mismatched ids")
	}
}

func TestConflict_BreakerFallsBackToRemote(t *testing.T) {
	r, err := New(WithPolicy(entity.Items, PolicyLocal), WithBreaker(NewBreaker(3)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	for attempt := 1; attempt <= 2; attempt++ {
		local, remote := fieldUpdateConflict()
		res, err := r.Conflict(local, remote, now)
		if err != nil {
			t.Fatalf("Conflict() failed: %v", err)
		}
		if res.Policy != PolicyLocal || res.BreakerTripped {
			t.Fatalf("attempt %d: expected local wins, got %+v", attempt, res)
		}
	}

	local, remote := fieldUpdateConflict()
	res, err := r.Conflict(local, remote, now)
	if err != nil {
		t.Fatalf("Conflict() failed: %v", err)
	}
	if !res.BreakerTripped || res.Policy != PolicyRemote || res.Record.Dirty {
		t.Fatalf("expected breaker to resolve with remote, got %+v", res)
	}
	if res.Record.Payload.(*entity.ItemPayload).Location != "Warehouse B" {
		t.Fatal("expected remote payload after breaker tripped")
	}
	if r.breaker.Count(entity.Items, "item-x") != 0 {
		t.Fatal("expected breaker state cleared after tripping")
	}
}

func TestConflict_BreakerIgnoresDirtyMerges(t *testing.T) {
	r, err := New(WithPolicy(entity.Items, PolicyMerge), WithBreaker(NewBreaker(2)))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		local, remote := fieldUpdateConflict()
		res, err := r.Conflict(local, remote, now)
		if err != nil {
			t.Fatalf("Conflict() failed: %v", err)
		}
		if res.Policy != PolicyMerge || res.BreakerTripped || !res.Record.Dirty {
			t.Fatalf("attempt %d: expected dirty merge, got %+v", attempt, res)
		}
	}
	if got := r.breaker.Count(entity.Items, "item-x"); got != 0 {
		t.Fatalf("merge outcomes must not be counted, got %d", got)
	}
}

func TestTombstone(t *testing.T) {
	r, err := New(WithPolicy(entity.Items, PolicyLocal))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	local, _ := fieldUpdateConflict()
	res := r.Tombstone(local)
	if res.Policy != PolicyLocal || res.Record == nil {
		t.Fatalf("expected local copy kept, got %+v", res)
	}
	if !res.Record.Dirty || !res.Record.IsNew() {
		t.Fatalf("expected a dirty never-synced record, got %+v", res.Record)
	}
	if local.SyncedAt == nil {
		t.Fatal("input record must not be modified")
	}

	local.Payload = &entity.UserPayload{Email: "ana@example.com", DisplayName: "Ana", Role: "field"}
	if res := r.Tombstone(local); res.Record != nil || res.Policy != PolicyRemote {
		t.Fatalf("expected users to follow the deletion under merge, got %+v", res)
	}
}

func TestBreaker_NewRemoteVersionRestartsCount(t *testing.T) {
	b := NewBreaker(3)
	b.Observe(entity.Items, "i-1", remoteAt)
	b.Observe(entity.Items, "i-1", remoteAt)
	if b.Observe(entity.Items, "i-1", remoteAt.Add(time.Second)) {
		t.Fatal("a different remote version is a new conflict")
	}
	if got := b.Count(entity.Items, "i-1"); got != 1 {
		t.Fatalf("expected count 1, got %d", got)
	}

	b.Forget(entity.Items, "i-1")
	if got := b.Count(entity.Items, "i-1"); got != 0 {
		t.Fatalf("expected count cleared, got %d", got)
	}
	if NewBreaker(0).Observe(entity.Items, "i-1", remoteAt) {
		t.Fatal("disabled breaker must never trip")
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.SyncConfig{
		DefaultPolicy:      "merge",
		Policies:           map[string]string{"audit-logs": "remote", "users": "local"},
		MergeFields:        map[string][]string{"items": {"notes", "location"}},
		MaxConflictRepeats: 3,
	}
	r, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig() failed: %v", err)
	}
	if r.PolicyFor(entity.AuditLogs) != PolicyRemote || r.PolicyFor(entity.Users) != PolicyLocal || r.PolicyFor(entity.Items) != PolicyMerge {
		t.Fatal("unexpected policies")
	}
	if got := r.mergers[entity.Items].Fields(); len(got) != 2 {
		t.Fatalf("expected overridden item fields, got %v", got)
	}

	cfg.Policies = map[string]string{"gadgets": "local"}
	if _, err := NewFromConfig(cfg); err == nil {
		t.Fatal("expected error for unknown entity type")
	}
}
