package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/localstore"
)

// MockGateway is a func-field implementation of gateway.Gateway that records
// every call as "<method> <type> [id]".
type MockGateway struct {
	CreateFunc  func(ctx context.Context, t entity.Type, payload entity.Payload) (*entity.RemoteRecord, error)
	UpdateFunc  func(ctx context.Context, t entity.Type, id string, payload entity.Payload) (*entity.RemoteRecord, error)
	DeleteFunc  func(ctx context.Context, t entity.Type, id string) error
	ListFunc    func(ctx context.Context, t entity.Type, since *time.Time) ([]*entity.RemoteRecord, error)
	PerformFunc func(ctx context.Context, t entity.Type, id string, verb entity.Operation, body []byte) (*entity.RemoteRecord, error)
	PingFunc    func(ctx context.Context) error

	mu      sync.Mutex
	calls   []string
	created int
}

func (m *MockGateway) record(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

// Calls returns the recorded calls starting with prefix.
func (m *MockGateway) Calls(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Writes counts create, update, delete and perform calls.
func (m *MockGateway) Writes() int {
	return len(m.Calls("create")) + len(m.Calls("update")) + len(m.Calls("delete")) + len(m.Calls("perform"))
}

func (m *MockGateway) Create(ctx context.Context, t entity.Type, payload entity.Payload) (*entity.RemoteRecord, error) {
	m.record("create %s", t)
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, t, payload)
	}
	m.mu.Lock()
	m.created++
	id := fmt.Sprintf("srv-%s-%d", t, m.created)
	m.mu.Unlock()
	return &entity.RemoteRecord{ID: id, Payload: payload, UpdatedAt: time.Now().UTC()}, nil
}

func (m *MockGateway) Update(ctx context.Context, t entity.Type, id string, payload entity.Payload) (*entity.RemoteRecord, error) {
	m.record("update %s %s", t, id)
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, t, id, payload)
	}
	return &entity.RemoteRecord{ID: id, Payload: payload, UpdatedAt: time.Now().UTC()}, nil
}

func (m *MockGateway) Delete(ctx context.Context, t entity.Type, id string) error {
	m.record("delete %s %s", t, id)
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, t, id)
	}
	return nil
}

func (m *MockGateway) ListChangesSince(ctx context.Context, t entity.Type, since *time.Time) ([]*entity.RemoteRecord, error) {
	m.record("list %s", t)
	if m.ListFunc != nil {
		return m.ListFunc(ctx, t, since)
	}
	return nil, nil
}

func (m *MockGateway) Perform(ctx context.Context, t entity.Type, id string, verb entity.Operation, body []byte) (*entity.RemoteRecord, error) {
	m.record("perform %s %s %s", t, id, verb)
	if m.PerformFunc != nil {
		return m.PerformFunc(ctx, t, id, verb, body)
	}
	return nil, nil
}

func (m *MockGateway) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// failingStore wraps a real store and fails GetDirty for one entity type.
type failingStore struct {
	localstore.Store
	failType entity.Type
	err      error
}

func (s *failingStore) GetDirty(ctx context.Context, t entity.Type) ([]*entity.Record, error) {
	if t == s.failType {
		return nil, s.err
	}
	return s.Store.GetDirty(ctx, t)
}
