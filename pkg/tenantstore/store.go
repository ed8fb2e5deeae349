package tenantstore

import (
	"context"
	"errors"
	"time"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/tenantapi"
)

var (
	// ErrRecordNotFound is returned when a record lookup finds no matching row.
	ErrRecordNotFound = errors.New("record not found")
	// ErrRecordExists is returned when a record id is already taken.
	ErrRecordExists = errors.New("record already exists")
	// ErrDeviceNotFound is returned when a device lookup finds no matching row.
	ErrDeviceNotFound = errors.New("device not found")
)

// RecordStore defines tenant record persistence.
type RecordStore interface {
	CreateRecord(ctx context.Context, rec *tenantapi.Record) error
	UpdateRecord(ctx context.Context, rec *tenantapi.Record) error
	// SaveRecords upserts all records in one transaction.
	SaveRecords(ctx context.Context, recs ...*tenantapi.Record) error
	GetRecord(ctx context.Context, tenantID string, t entity.Type, id string) (*tenantapi.Record, error)
	ListRecords(ctx context.Context, tenantID string, t entity.Type, opts ...QueryOption) ([]*tenantapi.Record, error)
	// LatestUpdate returns the newest updated_at of a tenant, or the zero time.
	LatestUpdate(ctx context.Context, tenantID string) (time.Time, error)
}

// DeviceStore defines device credential persistence.
type DeviceStore interface {
	CreateDevice(ctx context.Context, device *tenantapi.Device) error
	GetDevice(ctx context.Context, clientID string) (*tenantapi.Device, error)
}

// Store defines the interface for tenant API data persistence
type Store interface {
	RecordStore
	DeviceStore
}

// QueryOptions defines options for listing records
type QueryOptions struct {
	UpdatedAfter   *time.Time
	IDs            []string
	IncludeDeleted bool
}

// QueryOption is a functional option for listing records
type QueryOption func(*QueryOptions)

// WithUpdatedAfter keeps records changed strictly after ts.
func WithUpdatedAfter(ts time.Time) QueryOption {
	return func(opts *QueryOptions) {
		opts.UpdatedAfter = &ts
	}
}

// WithIDs keeps records with the given ids.
func WithIDs(ids ...string) QueryOption {
	return func(opts *QueryOptions) {
		opts.IDs = ids
	}
}

// WithDeleted includes tombstones.
func WithDeleted() QueryOption {
	return func(opts *QueryOptions) {
		opts.IncludeDeleted = true
	}
}
