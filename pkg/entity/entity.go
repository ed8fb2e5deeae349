// Package entity defines the syncable records tracked by the mobile client and
// the typed payloads carried by each entity type.
package entity

import (
	"fmt"
	"time"
)

// Type identifies an entity collection. The value doubles as the path segment of
// the remote API (/tenants/{tenantId}/{type}).
type Type string

const (
	Users       Type = "users"
	Items       Type = "items"
	Assignments Type = "assignments"
	ScanEvents  Type = "scan-events"
	AuditLogs   Type = "audit-logs"
)

// SyncOrder is the fixed dependency order used by full syncs: referenced
// entities are confirmed remotely before the entities that point at them.
var SyncOrder = []Type{Users, Items, Assignments, ScanEvents, AuditLogs}

// ParseType converts s into a known entity type.
func ParseType(s string) (Type, error) {
	for _, t := range SyncOrder {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

func (t Type) String() string {
	return string(t)
}

// Record is the local representation of a syncable entity.
//
// A record with Dirty == false always has SyncedAt set. A record that was never
// confirmed remotely (SyncedAt == nil) is always dirty.
type Record struct {
	ID        string
	TenantID  string
	Payload   Payload
	UpdatedAt time.Time
	SyncedAt  *time.Time
	Dirty     bool
}

// Type returns the entity type of the record's payload.
func (r *Record) Type() Type {
	if r.Payload == nil {
		return ""
	}
	return r.Payload.EntityType()
}

// IsNew reports whether the record has never been confirmed by the remote side.
func (r *Record) IsNew() bool {
	return r.SyncedAt == nil
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := *r
	if r.Payload != nil {
		c.Payload = r.Payload.Clone()
	}
	if r.SyncedAt != nil {
		at := *r.SyncedAt
		c.SyncedAt = &at
	}
	return &c
}

// RemoteRecord is a record as returned by the remote API.
type RemoteRecord struct {
	ID        string
	Payload   Payload
	UpdatedAt time.Time
	Deleted   bool
}

// ToRecord converts a remote record into a clean local record stamped at syncedAt.
func (r *RemoteRecord) ToRecord(tenantID string, syncedAt time.Time) *Record {
	at := syncedAt
	return &Record{
		ID:        r.ID,
		TenantID:  tenantID,
		Payload:   r.Payload,
		UpdatedAt: r.UpdatedAt,
		SyncedAt:  &at,
		Dirty:     false,
	}
}

// Operation is a mutation kind carried by a pending action.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpAssign Operation = "assign"
	OpReturn Operation = "return"
)

// IsCustom reports whether op is a verb beyond plain CRUD.
func (op Operation) IsCustom() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return false
	}
	return true
}

// PendingAction is a queued mutation awaiting replay against the remote API.
type PendingAction struct {
	ID         string
	EntityType Type
	EntityID   string
	Operation  Operation
	Payload    []byte
	RetryCount int
	LastError  string
	CreatedAt  time.Time
}
