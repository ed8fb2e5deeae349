// Package localstore persists syncable records, the pending action queue and
// sync settings in the on-device SQLite database.
package localstore

import (
	"context"
	"errors"
	"time"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
)

// MaxRetries is the default number of failed remote attempts after which a
// pending action is dropped.
const MaxRetries = 3

var (
	// ErrRecordNotFound is returned when a record lookup finds no matching row.
	ErrRecordNotFound = errors.New("record not found")
	// ErrActionNotFound is returned when a pending action does not exist.
	ErrActionNotFound = errors.New("pending action not found")
)

// RecordStore defines local record persistence.
type RecordStore interface {
	Upsert(ctx context.Context, rec *entity.Record, opts ...UpsertOption) (string, error)
	Get(ctx context.Context, t entity.Type, id string) (*entity.Record, error)
	GetAll(ctx context.Context, t entity.Type, opts ...QueryOption) ([]*entity.Record, error)
	GetDirty(ctx context.Context, t entity.Type) ([]*entity.Record, error)
	MarkSynced(ctx context.Context, t entity.Type, id string, syncedAt time.Time, opts ...SyncOption) error
	Remove(ctx context.Context, t entity.Type, id string) error
	ConfirmCreate(ctx context.Context, t entity.Type, oldID, newID string, syncedAt, updatedAt time.Time) error
	ResolveID(ctx context.Context, t entity.Type, id string) (string, error)
	Park(ctx context.Context, t entity.Type, id string, at time.Time) error
	MarkAllDirty(ctx context.Context) (int, error)
	CountDirty(ctx context.Context, t entity.Type) (int, error)
}

// Queue defines the pending action queue.
type Queue interface {
	Enqueue(ctx context.Context, action *entity.PendingAction) (string, error)
	DequeueAll(ctx context.Context, opts ...ActionOption) ([]*entity.PendingAction, error)
	RemoveAction(ctx context.Context, id string) error
	IncrementRetry(ctx context.Context, id, lastError string) (int, error)
	CountActions(ctx context.Context) (int, error)
}

// SettingsStore defines persisted sync settings and per-type cursors.
type SettingsStore interface {
	Settings(ctx context.Context) (*Settings, error)
	AdvanceCursor(ctx context.Context, t entity.Type, cursor time.Time) error
	SetLastSynced(ctx context.Context, t entity.Type, at time.Time) error
	SetLastFullSync(ctx context.Context, at time.Time) error
	SetAutoSync(ctx context.Context, enabled bool) error
	ResetCursors(ctx context.Context) error
}

// Store is the complete local store used by the orchestrator.
type Store interface {
	RecordStore
	Queue
	SettingsStore
	// ResetSyncState marks every record dirty and clears all cursors in one
	// transaction. It returns the number of records marked.
	ResetSyncState(ctx context.Context) (int, error)
}

// Settings is a snapshot of persisted sync settings.
type Settings struct {
	LastFullSync *time.Time
	// AutoSyncEnabled is nil until the flag was set explicitly.
	AutoSyncEnabled *bool
	Cursors         map[entity.Type]time.Time
	LastSynced      map[entity.Type]time.Time
}

// Cursor returns the pull cursor of t, zero when t was never pulled.
func (s *Settings) Cursor(t entity.Type) time.Time {
	return s.Cursors[t]
}

// UpsertOptions controls how Upsert stamps a record.
type UpsertOptions struct {
	SyncedAt *time.Time
	Exact    bool
}

// UpsertOption is a functional option for Upsert
type UpsertOption func(*UpsertOptions)

// FromRemote stores the record as a clean copy confirmed at syncedAt, keeping
// its remote updatedAt.
func FromRemote(syncedAt time.Time) UpsertOption {
	return func(opts *UpsertOptions) {
		opts.SyncedAt = &syncedAt
	}
}

// AsResolved stores the record exactly as given, keeping its updatedAt,
// syncedAt and dirty flag. Conflict outcomes are written this way.
func AsResolved() UpsertOption {
	return func(opts *UpsertOptions) {
		opts.Exact = true
	}
}

// QueryOptions defines filters for GetAll
type QueryOptions struct {
	Dirty        *bool
	IDs          []string
	UpdatedAfter *time.Time
	TenantID     *string
	Parked       *bool
}

// QueryOption is a functional option for querying records
type QueryOption func(*QueryOptions)

// WithDirty filters records by dirty flag
func WithDirty(dirty bool) QueryOption {
	return func(opts *QueryOptions) {
		opts.Dirty = &dirty
	}
}

// WithIDs restricts the result to the given ids
func WithIDs(ids ...string) QueryOption {
	return func(opts *QueryOptions) {
		opts.IDs = append(opts.IDs, ids...)
	}
}

// WithUpdatedAfter returns records updated strictly after ts
func WithUpdatedAfter(ts time.Time) QueryOption {
	return func(opts *QueryOptions) {
		opts.UpdatedAfter = &ts
	}
}

// WithTenant filters records by tenant
func WithTenant(tenantID string) QueryOption {
	return func(opts *QueryOptions) {
		opts.TenantID = &tenantID
	}
}

// WithParked filters records by whether their push was given up
func WithParked(parked bool) QueryOption {
	return func(opts *QueryOptions) {
		opts.Parked = &parked
	}
}

// SyncOptions controls MarkSynced.
type SyncOptions struct {
	UnchangedSince *time.Time
}

// SyncOption is a functional option for MarkSynced
type SyncOption func(*SyncOptions)

// IfUnchangedSince only clears the dirty flag when the record's updatedAt still
// equals updatedAt, so an edit made while the push was in flight stays dirty.
func IfUnchangedSince(updatedAt time.Time) SyncOption {
	return func(opts *SyncOptions) {
		opts.UnchangedSince = &updatedAt
	}
}

// ActionOptions defines filters for DequeueAll
type ActionOptions struct {
	EntityType *entity.Type
}

// ActionOption is a functional option for DequeueAll
type ActionOption func(*ActionOptions)

// ForEntity restricts DequeueAll to actions of one entity type
func ForEntity(t entity.Type) ActionOption {
	return func(opts *ActionOptions) {
		opts.EntityType = &t
	}
}
