package trigger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/config"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/orchestrator"
)

type togglePinger struct {
	up atomic.Bool
}

func (p *togglePinger) Ping(context.Context) error {
	if p.up.Load() {
		return nil
	}
	return errors.New("connection refused")
}

type mockSyncer struct {
	mu       sync.Mutex
	autoSync bool
	calls    chan struct{}
	count    int
}

func newMockSyncer(autoSync bool) *mockSyncer {
	return &mockSyncer{autoSync: autoSync, calls: make(chan struct{}, 16)}
}

func (m *mockSyncer) SyncAll(context.Context) *orchestrator.Result {
	m.mu.Lock()
	m.count++
	m.mu.Unlock()
	m.calls <- struct{}{}
	return &orchestrator.Result{Kind: orchestrator.KindFull, Success: true}
}

func (m *mockSyncer) AutoSyncEnabled(context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoSync, nil
}

func (m *mockSyncer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

func waitCall(t *testing.T, m *mockSyncer) {
	t.Helper()
	select {
	case <-m.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for sync")
	}
}

func TestProber_Transitions(t *testing.T) {
	pinger := &togglePinger{}
	p := NewProber(pinger, time.Hour, nil)
	ctx := context.Background()

	if p.Check(ctx) || p.Online() {
		t.Fatal("expected offline")
	}
	select {
	case <-p.Transitions():
		t.Fatal("no transition expected while staying offline")
	default:
	}

	pinger.up.Store(true)
	if !p.Check(ctx) {
		t.Fatal("expected online")
	}
	p.Check(ctx)

	pinger.up.Store(false)
	p.Check(ctx)

	// only the latest unread state is kept
	if got := <-p.Transitions(); got {
		t.Fatal("expected latest transition to be offline")
	}
	select {
	case got := <-p.Transitions():
		t.Fatalf("unexpected extra transition %v", got)
	default:
	}
}

func TestDaemon_ManualTriggersAreDebounced(t *testing.T) {
	syncer := newMockSyncer(true)
	d := NewDaemon(syncer, nil, &config.TriggerConfig{
		Interval: time.Hour,
		Debounce: 30 * time.Millisecond,
	}, nil)
	d.Start(context.Background())
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	waitCall(t, syncer)

	time.Sleep(100 * time.Millisecond)
	if got := syncer.Count(); got != 1 {
		t.Fatalf("expected one sync for a burst of triggers, got %d", got)
	}
}

func TestDaemon_SyncsWhenConnectivityReturns(t *testing.T) {
	pinger := &togglePinger{}
	syncer := newMockSyncer(true)
	prober := NewProber(pinger, 10*time.Millisecond, nil)
	d := NewDaemon(syncer, prober, &config.TriggerConfig{
		Interval: time.Hour,
		Debounce: time.Millisecond,
	}, nil)
	d.Start(context.Background())
	defer d.Stop()

	time.Sleep(50 * time.Millisecond)
	if got := syncer.Count(); got != 0 {
		t.Fatalf("expected no sync while offline, got %d", got)
	}

	pinger.up.Store(true)
	waitCall(t, syncer)
}

func TestDaemon_PeriodicHonoursAutoSync(t *testing.T) {
	syncer := newMockSyncer(false)
	d := NewDaemon(syncer, nil, &config.TriggerConfig{
		Interval: 10 * time.Millisecond,
		Debounce: time.Millisecond,
	}, nil)
	d.Start(context.Background())
	defer d.Stop()

	time.Sleep(80 * time.Millisecond)
	if got := syncer.Count(); got != 0 {
		t.Fatalf("expected no periodic sync with auto sync disabled, got %d", got)
	}

	d.Trigger()
	waitCall(t, syncer)

	syncer.mu.Lock()
	syncer.autoSync = true
	syncer.mu.Unlock()
	waitCall(t, syncer)
}
