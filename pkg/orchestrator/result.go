package orchestrator

import (
	"time"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
)

// Reasons reported when a sync did not run.
const (
	ReasonAlreadySyncing = "already syncing"
	ReasonReauthRequired = "re-authentication required"
	ReasonAborted        = "aborted"
)

// Run kinds.
const (
	KindEntity = "entity"
	KindFull   = "full"
	KindQuick  = "quick"
)

// PermanentFailure reports a pending action dropped after exhausting its retries.
type PermanentFailure struct {
	ActionID  string           `json:"action_id"`
	Type      entity.Type      `json:"type"`
	EntityID  string           `json:"entity_id"`
	Operation entity.Operation `json:"operation"`
	Attempts  int              `json:"attempts"`
	LastError string           `json:"last_error"`
}

// EntityResult is the outcome of syncing one entity type.
type EntityResult struct {
	Type    entity.Type `json:"type"`
	Success bool        `json:"success"`
	// Reason is set when the sync did not run at all.
	Reason string `json:"reason,omitempty"`

	Replayed int `json:"replayed"`
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	// Deferred counts records and actions waiting for a referenced record to
	// receive its server id.
	Deferred     int `json:"deferred"`
	PushFailures int `json:"push_failures"`

	Pulled       int `json:"pulled"`
	Removed      int `json:"removed"`
	Conflicts    int `json:"conflicts"`
	BreakerTrips int `json:"breaker_trips"`

	PermanentFailures []PermanentFailure `json:"permanent_failures,omitempty"`
	Errors            []string           `json:"errors,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Err is the error that stopped the phase, if any.
	Err error `json:"-"`
}

func (r *EntityResult) addError(err error) {
	r.Errors = append(r.Errors, err.Error())
}

func (r *EntityResult) lastError() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	if len(r.Errors) > 0 {
		return r.Errors[len(r.Errors)-1]
	}
	return ""
}

// Result aggregates a sync run over one or more entity types.
type Result struct {
	Kind     string          `json:"kind"`
	Success  bool            `json:"success"`
	Reason   string          `json:"reason,omitempty"`
	Entities []*EntityResult `json:"entities"`
	Error    string          `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Err error `json:"-"`
}

// Entity returns the result of t, nil when t was not part of the run.
func (r *Result) Entity(t entity.Type) *EntityResult {
	for _, er := range r.Entities {
		if er.Type == t {
			return er
		}
	}
	return nil
}

// PermanentFailures returns the permanent failures of every entity type.
func (r *Result) PermanentFailures() []PermanentFailure {
	var out []PermanentFailure
	for _, er := range r.Entities {
		out = append(out, er.PermanentFailures...)
	}
	return out
}

// Status is a read-only snapshot of the sync state.
type Status struct {
	PendingCount      int                       `json:"pending_count"`
	PendingPerEntity  map[entity.Type]int       `json:"pending_per_entity"`
	LastSyncPerEntity map[entity.Type]time.Time `json:"last_sync_per_entity"`
	LastFullSync      *time.Time                `json:"last_full_sync,omitempty"`
	AutoSyncEnabled   bool                      `json:"auto_sync_enabled"`
	IsSyncing         bool                      `json:"is_syncing"`
	Syncing           []entity.Type             `json:"syncing,omitempty"`
	HasError          bool                      `json:"has_error"`
	LastError         string                    `json:"last_error,omitempty"`
	AuthRequired      bool                      `json:"auth_required"`
}
