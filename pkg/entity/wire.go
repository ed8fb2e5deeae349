package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the JSON shape of a record exchanged with the tenant API.
// Deleted envelopes are tombstones and may carry no data.
type Envelope struct {
	ID        string          `json:"id"`
	UpdatedAt time.Time       `json:"updated_at"`
	Deleted   bool            `json:"deleted,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// Decode converts the envelope into a RemoteRecord of type t.
func (e *Envelope) Decode(t Type) (*RemoteRecord, error) {
	if e.ID == "" {
		return nil, fmt.Errorf("%s envelope without id", t)
	}
	rec := &RemoteRecord{
		ID:        e.ID,
		UpdatedAt: e.UpdatedAt.UTC(),
		Deleted:   e.Deleted,
	}
	if len(e.Data) == 0 || string(e.Data) == "null" {
		if !e.Deleted {
			return nil, fmt.Errorf("%s %s: missing data", t, e.ID)
		}
		return rec, nil
	}
	payload, err := DecodePayload(t, e.Data)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", t, e.ID, err)
	}
	rec.Payload = payload
	return rec, nil
}

// NewEnvelope builds the wire form of a record.
func NewEnvelope(id string, updatedAt time.Time, deleted bool, payload Payload) (*Envelope, error) {
	env := &Envelope{ID: id, UpdatedAt: updatedAt.UTC(), Deleted: deleted}
	if payload != nil {
		data, err := EncodePayload(payload)
		if err != nil {
			return nil, err
		}
		env.Data = data
	}
	return env, nil
}
