// Package tenantapi holds the domain model of the reference tenant REST API that
// device sync daemons talk to.
package tenantapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
)

// ServerIDPrefix marks ids assigned by the tenant API.
const ServerIDPrefix = "srv-"

// Record represents a stored entity of one tenant.
type Record struct {
	TenantID  string
	Type      entity.Type
	ID        string
	Payload   entity.Payload
	UpdatedAt time.Time
	Deleted   bool
}

// New creates a Record with a fresh server id.
func New(tenantID string, payload entity.Payload, now time.Time) *Record {
	return &Record{
		TenantID:  tenantID,
		Type:      payload.EntityType(),
		ID:        NewServerID(),
		Payload:   payload,
		UpdatedAt: now.UTC(),
	}
}

// Envelope returns the wire form of the record. Tombstones carry no data.
func (r *Record) Envelope() (*entity.Envelope, error) {
	payload := r.Payload
	if r.Deleted {
		payload = nil
	}
	return entity.NewEnvelope(r.ID, r.UpdatedAt, r.Deleted, payload)
}

// NewServerID returns a time ordered server id such as srv-0190f7c2-....
func NewServerID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return ServerIDPrefix + uuid.NewString()
	}
	return ServerIDPrefix + id.String()
}

// Device is a registered device allowed to exchange its credentials for tokens.
type Device struct {
	ClientID   string
	TenantID   string
	SecretHash string
	CreatedAt  time.Time
}

// Token is an issued bearer token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AssignRequest is the body of POST /items/{id}/assign.
type AssignRequest struct {
	UserID string     `json:"user_id" validate:"required"`
	DueAt  *time.Time `json:"due_at,omitempty"`
	Notes  string     `json:"notes,omitempty"`
}

// ReturnRequest is the body of POST /items/{id}/return.
type ReturnRequest struct {
	Location string `json:"location,omitempty"`
	Notes    string `json:"notes,omitempty"`
}
