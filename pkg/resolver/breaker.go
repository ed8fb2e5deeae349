package resolver

import (
	"sync"
	"time"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
)

type breakerKey struct {
	t  entity.Type
	id string
}

type breakerEntry struct {
	remoteUpdatedAt time.Time
	count           int
}

// Breaker counts identical local-wins conflicts per record. A conflict is
// identical when the remote copy carries the same updatedAt as last time, i.e.
// the local re-push did not land remotely.
type Breaker struct {
	max int

	mu      sync.Mutex
	entries map[breakerKey]*breakerEntry
}

// NewBreaker creates a breaker tripping at limit repeats. limit < 1 disables it.
func NewBreaker(limit int) *Breaker {
	return &Breaker{max: limit, entries: make(map[breakerKey]*breakerEntry)}
}

// Observe records a local-wins conflict and reports whether it reached the limit.
func (b *Breaker) Observe(t entity.Type, id string, remoteUpdatedAt time.Time) bool {
	if b.max < 1 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	key := breakerKey{t: t, id: id}
	e, ok := b.entries[key]
	if !ok || !e.remoteUpdatedAt.Equal(remoteUpdatedAt) {
		e = &breakerEntry{remoteUpdatedAt: remoteUpdatedAt}
		b.entries[key] = e
	}
	e.count++
	return e.count >= b.max
}

// Count returns the current repeat count of a record.
func (b *Breaker) Count(t entity.Type, id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[breakerKey{t: t, id: id}]; ok {
		return e.count
	}
	return 0
}

// Forget clears the count of a record.
func (b *Breaker) Forget(t entity.Type, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, breakerKey{t: t, id: id})
}
