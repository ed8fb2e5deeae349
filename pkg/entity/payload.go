package entity

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Payload is the closed set of entity payloads. Only the types in this package
// implement it.
type Payload interface {
	EntityType() Type
	// References lists the records this payload points at.
	References() []Reference
	// RemapReference rewrites references to (t, oldID) so they point at newID.
	RemapReference(t Type, oldID, newID string) bool
	Clone() Payload

	sealed()
}

// Reference points at another record.
type Reference struct {
	Type Type
	ID   string
}

// UserPayload describes a tenant user.
type UserPayload struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name" validate:"required,max=200"`
	Role        string `json:"role" validate:"required,oneof=admin manager field"`
	Phone       string `json:"phone,omitempty" validate:"max=32"`
	Active      bool   `json:"active"`
}

// ItemPayload describes a tracked asset.
type ItemPayload struct {
	Name          string          `json:"name" validate:"required,max=200"`
	SKU           string          `json:"sku,omitempty" validate:"max=64"`
	Category      string          `json:"category,omitempty"`
	TagID         string          `json:"tag_id,omitempty"`
	Status        string          `json:"status" validate:"required,oneof=available assigned maintenance retired"`
	AssigneeID    string          `json:"assignee_id,omitempty"`
	Location      string          `json:"location,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	PurchaseValue decimal.Decimal `json:"purchase_value"`
}

// AssignmentPayload records an item handed out to a user.
type AssignmentPayload struct {
	ItemID     string     `json:"item_id" validate:"required"`
	UserID     string     `json:"user_id" validate:"required"`
	AssignedAt time.Time  `json:"assigned_at" validate:"required"`
	DueAt      *time.Time `json:"due_at,omitempty"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// ScanEventPayload records a scan of an item tag.
type ScanEventPayload struct {
	ItemID    string    `json:"item_id" validate:"required"`
	ScannedBy string    `json:"scanned_by" validate:"required"`
	Method    string    `json:"method" validate:"required,oneof=nfc qr manual"`
	Location  string    `json:"location,omitempty"`
	Latitude  *float64  `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude *float64  `json:"longitude,omitempty" validate:"omitempty,longitude"`
	ScannedAt time.Time `json:"scanned_at" validate:"required"`
}

// AuditLogPayload records an auditable action taken on another record.
type AuditLogPayload struct {
	ActorID    string    `json:"actor_id" validate:"required"`
	Action     string    `json:"action" validate:"required"`
	TargetType Type      `json:"target_type" validate:"required"`
	TargetID   string    `json:"target_id" validate:"required"`
	Details    string    `json:"details,omitempty"`
	OccurredAt time.Time `json:"occurred_at" validate:"required"`
}

func (*UserPayload) EntityType() Type       { return Users }
func (*ItemPayload) EntityType() Type       { return Items }
func (*AssignmentPayload) EntityType() Type { return Assignments }
func (*ScanEventPayload) EntityType() Type  { return ScanEvents }
func (*AuditLogPayload) EntityType() Type   { return AuditLogs }

func (*UserPayload) sealed()       {}
func (*ItemPayload) sealed()       {}
func (*AssignmentPayload) sealed() {}
func (*ScanEventPayload) sealed()  {}
func (*AuditLogPayload) sealed()   {}

func (p *UserPayload) Clone() Payload { c := *p; return &c }
func (p *ItemPayload) Clone() Payload { c := *p; return &c }

func (p *AssignmentPayload) Clone() Payload {
	c := *p
	c.DueAt = cloneTime(p.DueAt)
	c.ReturnedAt = cloneTime(p.ReturnedAt)
	return &c
}

func (p *ScanEventPayload) Clone() Payload {
	c := *p
	c.Latitude = cloneFloat(p.Latitude)
	c.Longitude = cloneFloat(p.Longitude)
	return &c
}

func (p *AuditLogPayload) Clone() Payload { c := *p; return &c }

func (*UserPayload) References() []Reference { return nil }

func (p *ItemPayload) References() []Reference {
	return refs(Reference{Users, p.AssigneeID})
}

func (p *AssignmentPayload) References() []Reference {
	return refs(Reference{Items, p.ItemID}, Reference{Users, p.UserID})
}

func (p *ScanEventPayload) References() []Reference {
	return refs(Reference{Items, p.ItemID}, Reference{Users, p.ScannedBy})
}

func (p *AuditLogPayload) References() []Reference {
	return refs(Reference{Users, p.ActorID}, Reference{p.TargetType, p.TargetID})
}

func (*UserPayload) RemapReference(Type, string, string) bool { return false }

func (p *ItemPayload) RemapReference(t Type, oldID, newID string) bool {
	return t == Users && remap(&p.AssigneeID, oldID, newID)
}

func (p *AssignmentPayload) RemapReference(t Type, oldID, newID string) bool {
	switch t {
	case Items:
		return remap(&p.ItemID, oldID, newID)
	case Users:
		return remap(&p.UserID, oldID, newID)
	}
	return false
}

func (p *ScanEventPayload) RemapReference(t Type, oldID, newID string) bool {
	switch t {
	case Items:
		return remap(&p.ItemID, oldID, newID)
	case Users:
		return remap(&p.ScannedBy, oldID, newID)
	}
	return false
}

func (p *AuditLogPayload) RemapReference(t Type, oldID, newID string) bool {
	changed := false
	if t == Users && remap(&p.ActorID, oldID, newID) {
		changed = true
	}
	if t == p.TargetType && remap(&p.TargetID, oldID, newID) {
		changed = true
	}
	return changed
}

// NewPayload returns an empty payload for t.
func NewPayload(t Type) (Payload, error) {
	switch t {
	case Users:
		return &UserPayload{}, nil
	case Items:
		return &ItemPayload{}, nil
	case Assignments:
		return &AssignmentPayload{}, nil
	case ScanEvents:
		return &ScanEventPayload{}, nil
	case AuditLogs:
		return &AuditLogPayload{}, nil
	}
	return nil, fmt.Errorf("unknown entity type %q", t)
}

// EncodePayload serializes p to JSON.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("nil payload")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", p.EntityType(), err)
	}
	return data, nil
}

// DecodePayload parses data as the payload of entity type t.
func DecodePayload(t Type, data []byte) (Payload, error) {
	p, err := NewPayload(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return p, nil
}

func refs(candidates ...Reference) []Reference {
	var out []Reference
	for _, r := range candidates {
		if r.ID != "" && r.Type != "" {
			out = append(out, r)
		}
	}
	return out
}

func remap(field *string, oldID, newID string) bool {
	if *field != oldID {
		return false
	}
	*field = newID
	return true
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}
