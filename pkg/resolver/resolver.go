// Package resolver decides the outcome when a pulled remote record meets a
// locally dirty copy.
package resolver

import (
	"errors"
	"fmt"
	"time"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/config"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
)

// Policy selects how a conflict is resolved.
type Policy string

const (
	// PolicyLocal keeps the local record and re-pushes it.
	PolicyLocal Policy = "local"
	// PolicyRemote takes the remote record as is.
	PolicyRemote Policy = "remote"
	// PolicyMerge starts from the remote record and overlays locally-preferred fields.
	PolicyMerge Policy = "merge"
)

// ParsePolicy converts s into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyLocal, PolicyRemote, PolicyMerge:
		return p, nil
	}
	return "", fmt.Errorf("unknown conflict policy %q", s)
}

// Resolution is the outcome of a conflict.
type Resolution struct {
	Record *entity.Record `json:"record"`
	// Policy is the policy that produced Record.
	Policy Policy `json:"policy"`
	// Overlaid lists the local fields merged over the remote copy.
	Overlaid []string `json:"overlaid,omitempty"`
	// BreakerTripped is set when a repeating local-wins conflict was resolved
	// with the remote copy instead.
	BreakerTripped bool `json:"breaker_tripped,omitempty"`
}

// Resolver applies per-type policies.
type Resolver struct {
	defaultPolicy Policy
	policies      map[entity.Type]Policy
	mergers       map[entity.Type]entity.Merger
	breaker       *Breaker
}

// Option configures the resolver
type Option func(*Resolver)

// WithPolicy sets the policy of one entity type.
func WithPolicy(t entity.Type, p Policy) Option {
	return func(r *Resolver) {
		r.policies[t] = p
	}
}

// WithDefaultPolicy sets the policy used for types without an explicit one.
func WithDefaultPolicy(p Policy) Option {
	return func(r *Resolver) {
		r.defaultPolicy = p
	}
}

// WithMergers replaces the locally-preferred field sets.
func WithMergers(m map[entity.Type]entity.Merger) Option {
	return func(r *Resolver) {
		for t, merger := range m {
			r.mergers[t] = merger
		}
	}
}

// WithBreaker enables the repeated-conflict breaker.
func WithBreaker(b *Breaker) Option {
	return func(r *Resolver) {
		r.breaker = b
	}
}

// New creates a resolver using merge for every type and the default field sets.
func New(opts ...Option) (*Resolver, error) {
	mergers, err := entity.Mergers(nil)
	if err != nil {
		return nil, err
	}
	r := &Resolver{
		defaultPolicy: PolicyMerge,
		policies:      make(map[entity.Type]Policy),
		mergers:       mergers,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewFromConfig creates a resolver from sync settings.
func NewFromConfig(cfg *config.SyncConfig) (*Resolver, error) {
	def, err := ParsePolicy(cfg.DefaultPolicy)
	if err != nil {
		return nil, err
	}
	mergers, err := entity.Mergers(cfg.MergeFields)
	if err != nil {
		return nil, err
	}
	opts := []Option{
		WithDefaultPolicy(def),
		WithMergers(mergers),
		WithBreaker(NewBreaker(cfg.MaxConflictRepeats)),
	}
	for name, raw := range cfg.Policies {
		t, err := entity.ParseType(name)
		if err != nil {
			return nil, err
		}
		p, err := ParsePolicy(raw)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithPolicy(t, p))
	}
	return New(opts...)
}

// PolicyFor returns the configured policy of t.
func (r *Resolver) PolicyFor(t entity.Type) Policy {
	if p, ok := r.policies[t]; ok {
		return p
	}
	return r.defaultPolicy
}

// Conflict resolves local against remote with the configured policy of the
// record type. Repeating local-wins outcomes are counted by the breaker.
func (r *Resolver) Conflict(local, remote *entity.Record, now time.Time) (*Resolution, error) {
	t := local.Type()
	res, err := r.Resolve(local, remote, r.PolicyFor(t), now)
	if err != nil {
		return nil, err
	}
	if r.breaker == nil || res.Policy != PolicyLocal {
		return res, nil
	}
	if !r.breaker.Observe(t, local.ID, remote.UpdatedAt) {
		return res, nil
	}

	r.breaker.Forget(t, local.ID)
	res, err = r.Resolve(local, remote, PolicyRemote, now)
	if err != nil {
		return nil, err
	}
	res.BreakerTripped = true
	return res, nil
}

// Tombstone resolves a remote deletion against a dirty local copy. Under the
// local policy the copy survives as a never-synced record, so the next push
// creates it again. Other policies follow the remote side and return a nil
// Record.
func (r *Resolver) Tombstone(local *entity.Record) *Resolution {
	if r.PolicyFor(local.Type()) != PolicyLocal {
		return &Resolution{Policy: PolicyRemote}
	}
	out := local.Clone()
	out.SyncedAt = nil
	out.Dirty = true
	return &Resolution{Record: out, Policy: PolicyLocal}
}

// Forget clears breaker state of a record, after it was pushed successfully.
func (r *Resolver) Forget(t entity.Type, id string) {
	if r.breaker != nil {
		r.breaker.Forget(t, id)
	}
}

// Resolve applies policy to local and remote. The result only depends on its
// inputs; now is used for the syncedAt stamp and nothing else.
func (r *Resolver) Resolve(local, remote *entity.Record, policy Policy, now time.Time) (*Resolution, error) {
	if local == nil || remote == nil || local.Payload == nil || remote.Payload == nil {
		return nil, errors.New("resolve needs a local and a remote record with payloads")
	}
	t := local.Type()
	if remote.Type() != t {
		return nil, fmt.Errorf("cannot resolve %s against %s", t, remote.Type())
	}
	if local.ID != remote.ID {
		return nil, fmt.Errorf("cannot resolve %s %s against %s", t, local.ID, remote.ID)
	}

	synced := now.UTC()
	var out *entity.Record
	var overlaid []string

	switch policy {
	case PolicyRemote:
		out = remote.Clone()
		out.Dirty = false

	case PolicyLocal:
		out = local.Clone()
		out.UpdatedAt = latest(local.UpdatedAt, remote.UpdatedAt)
		out.Dirty = true

	case PolicyMerge:
		merger, ok := r.mergers[t]
		if !ok {
			return nil, fmt.Errorf("no merge fields for %s", t)
		}
		out = remote.Clone()
		changed, err := merger.Overlay(out.Payload, local.Payload)
		if err != nil {
			return nil, err
		}
		overlaid = changed
		out.UpdatedAt = latest(local.UpdatedAt, remote.UpdatedAt)
		out.Dirty = len(changed) > 0

	default:
		return nil, fmt.Errorf("unknown conflict policy %q", policy)
	}

	out.SyncedAt = &synced
	if out.TenantID == "" {
		out.TenantID = local.TenantID
	}
	return &Resolution{Record: out, Policy: policy, Overlaid: overlaid}, nil
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
