// Package orchestrator synchronizes the local store with the remote tenant API:
// it replays queued actions, pushes dirty records, pulls remote changes and
// resolves conflicts, one entity type at a time.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/internal/metrics"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/auth"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/gateway"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/localstore"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/resolver"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/syncerr"
)

// ErrSyncInProgress is returned by operations that need the orchestrator idle.
var ErrSyncInProgress = errors.New("sync in progress")

// Orchestrator owns the sync state of one tenant on the device.
type Orchestrator struct {
	store    localstore.Store
	gateway  gateway.Gateway
	resolver *resolver.Resolver
	tokens   auth.TokenSource
	logger   *zap.Logger

	tenantID        string
	maxRetries      int
	autoSyncDefault bool
	now             func() time.Time
	online          func() bool

	mu         sync.Mutex
	idle       *sync.Cond
	inProgress map[entity.Type]bool
	fullSync   bool
	authErr    error
	errs       map[entity.Type]string
	lastErr    string
	subs       map[chan *Result]struct{}

	wg sync.WaitGroup
}

// Option configures the orchestrator
type Option func(*Orchestrator)

// WithTenant sets the tenant stamped on records pulled for the first time.
func WithTenant(tenantID string) Option {
	return func(o *Orchestrator) {
		o.tenantID = tenantID
	}
}

// WithMaxRetries sets the number of counted failures after which a pending
// action is dropped.
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithClock overrides the time source used for sync stamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithTokenSource sets the token source refreshed by Reauthenticated.
func WithTokenSource(ts auth.TokenSource) Option {
	return func(o *Orchestrator) {
		o.tokens = ts
	}
}

// WithConnectivity sets the check used by the write path to decide whether to
// push a change right away.
func WithConnectivity(online func() bool) Option {
	return func(o *Orchestrator) {
		o.online = online
	}
}

// WithAutoSyncDefault sets the auto-sync flag reported until one is persisted.
func WithAutoSyncDefault(enabled bool) Option {
	return func(o *Orchestrator) {
		o.autoSyncDefault = enabled
	}
}

// New creates a new orchestrator
func New(
	store localstore.Store,
	gw gateway.Gateway,
	res *resolver.Resolver,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		store:           store,
		gateway:         gw,
		resolver:        res,
		logger:          logger.Named("orchestrator"),
		maxRetries:      localstore.MaxRetries,
		autoSyncDefault: true,
		now:             time.Now,
		inProgress:      make(map[entity.Type]bool),
		errs:            make(map[entity.Type]string),
		subs:            make(map[chan *Result]struct{}),
	}
	o.idle = sync.NewCond(&o.mu)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SyncEntity pushes then pulls one entity type. It returns right away with
// ReasonAlreadySyncing when t or a full sync is already running.
func (o *Orchestrator) SyncEntity(ctx context.Context, t entity.Type) *EntityResult {
	now := o.now()
	if reason := o.claim(t); reason != "" {
		o.logger.Debug("Sync skipped", zap.String("entity", t.String()), zap.String("reason", reason))
		return &EntityResult{Type: t, Reason: reason, StartedAt: now, FinishedAt: now}
	}
	defer o.release(t)

	res := o.syncEntity(ctx, t, true)
	o.publish(Single(KindEntity, res))
	return res
}

// SyncAll runs a full push and pull over every entity type in dependency order.
func (o *Orchestrator) SyncAll(ctx context.Context) *Result {
	return o.run(ctx, KindFull, true)
}

// QuickSync pushes every entity type in dependency order without pulling.
func (o *Orchestrator) QuickSync(ctx context.Context) *Result {
	return o.run(ctx, KindQuick, false)
}

// Single wraps one entity result into a run result.
func Single(kind string, er *EntityResult) *Result {
	r := &Result{
		Kind:       kind,
		Success:    er.Success,
		Reason:     er.Reason,
		Entities:   []*EntityResult{er},
		StartedAt:  er.StartedAt,
		FinishedAt: er.FinishedAt,
		Err:        er.Err,
	}
	if er.Err != nil {
		r.Error = er.Err.Error()
	}
	return r
}

func (o *Orchestrator) run(ctx context.Context, kind string, pull bool) *Result {
	result := &Result{Kind: kind, StartedAt: o.now()}
	if reason := o.claimAll(); reason != "" {
		result.Reason = reason
		result.FinishedAt = result.StartedAt
		return result
	}
	defer o.releaseAll()

	o.logger.Info("Starting sync run", zap.String("kind", kind))

	var fatal error
	complete := true
	for _, t := range entity.SyncOrder {
		if fatal != nil {
			at := o.now()
			result.Entities = append(result.Entities, &EntityResult{
				Type: t, Reason: ReasonAborted, StartedAt: at, FinishedAt: at,
			})
			continue
		}

		o.setRunning(t, true)
		er := o.syncEntity(ctx, t, pull)
		o.setRunning(t, false)

		result.Entities = append(result.Entities, er)
		if er.Err != nil {
			complete = false
			if syncerr.IsFatal(er.Err) || ctx.Err() != nil {
				fatal = er.Err
			}
		}
	}

	if kind == KindFull && fatal == nil && complete {
		if err := o.store.SetLastFullSync(ctx, o.now()); err != nil {
			fatal = err
		}
	}

	result.Err = fatal
	result.Success = fatal == nil
	for _, er := range result.Entities {
		if !er.Success {
			result.Success = false
		}
	}
	if fatal != nil {
		result.Error = fatal.Error()
		o.logger.Error("Sync run aborted", zap.String("kind", kind), zap.Error(fatal))
	}
	result.FinishedAt = o.now()

	o.logger.Info("Sync run finished",
		zap.String("kind", kind),
		zap.Bool("success", result.Success),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)))

	o.publish(result)
	return result
}

// syncEntity runs the phases of t. The caller holds the claim on t.
func (o *Orchestrator) syncEntity(ctx context.Context, t entity.Type, pull bool) *EntityResult {
	res := &EntityResult{Type: t, StartedAt: o.now()}

	err := o.push(ctx, t, res)
	if err == nil && pull {
		err = o.pull(ctx, t, res)
	}
	res.Err = err
	res.Success = err == nil && len(res.Errors) == 0
	res.FinishedAt = o.now()

	if err != nil {
		metrics.ErrorsTotal.WithLabelValues("orchestrator", syncerr.KindOf(err).String()).Inc()
		o.logger.Error("Sync failed", zap.String("entity", t.String()), zap.Error(err))
	} else {
		o.logger.Debug("Sync finished",
			zap.String("entity", t.String()),
			zap.Int("created", res.Created),
			zap.Int("updated", res.Updated),
			zap.Int("pulled", res.Pulled),
			zap.Int("conflicts", res.Conflicts))
	}

	o.recordOutcome(res)
	return res
}

// Status returns a snapshot of the sync state. It has no side effects.
func (o *Orchestrator) Status(ctx context.Context) (*Status, error) {
	settings, err := o.store.Settings(ctx)
	if err != nil {
		return nil, err
	}
	actions, err := o.store.DequeueAll(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{
		PendingPerEntity:  make(map[entity.Type]int, len(entity.SyncOrder)),
		LastSyncPerEntity: make(map[entity.Type]time.Time, len(settings.LastSynced)),
		LastFullSync:      settings.LastFullSync,
		AutoSyncEnabled:   o.autoSyncDefault,
	}
	if settings.AutoSyncEnabled != nil {
		st.AutoSyncEnabled = *settings.AutoSyncEnabled
	}
	for t, at := range settings.LastSynced {
		st.LastSyncPerEntity[t] = at
	}
	for _, t := range entity.SyncOrder {
		n, err := o.store.CountDirty(ctx, t)
		if err != nil {
			return nil, err
		}
		st.PendingPerEntity[t] = n
	}
	// create and update actions are already counted as dirty records
	for _, a := range actions {
		if a.Operation == entity.OpCreate || a.Operation == entity.OpUpdate {
			continue
		}
		st.PendingPerEntity[a.EntityType]++
	}
	for t, n := range st.PendingPerEntity {
		st.PendingCount += n
		metrics.PendingChanges.WithLabelValues(t.String()).Set(float64(n))
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	st.IsSyncing = o.fullSync || len(o.inProgress) > 0
	for _, t := range entity.SyncOrder {
		if o.inProgress[t] {
			st.Syncing = append(st.Syncing, t)
		}
	}
	st.AuthRequired = o.authErr != nil
	st.HasError = st.AuthRequired || len(o.errs) > 0
	st.LastError = o.lastErr
	if st.AuthRequired && st.LastError == "" {
		st.LastError = o.authErr.Error()
	}
	return st, nil
}

// ResetSyncState clears every cursor and marks every record dirty, so the next
// full sync re-pushes and re-pulls everything. It returns the number of records
// marked dirty.
func (o *Orchestrator) ResetSyncState(ctx context.Context) (int, error) {
	o.mu.Lock()
	if o.fullSync || len(o.inProgress) > 0 {
		o.mu.Unlock()
		return 0, ErrSyncInProgress
	}
	o.fullSync = true
	o.mu.Unlock()
	defer o.releaseAll()

	n, err := o.store.ResetSyncState(ctx)
	if err != nil {
		return 0, err
	}
	o.logger.Info("Sync state reset", zap.Int("records", n))
	return n, nil
}

// AutoSyncEnabled reports the persisted auto-sync flag.
func (o *Orchestrator) AutoSyncEnabled(ctx context.Context) (bool, error) {
	settings, err := o.store.Settings(ctx)
	if err != nil {
		return false, err
	}
	if settings.AutoSyncEnabled == nil {
		return o.autoSyncDefault, nil
	}
	return *settings.AutoSyncEnabled, nil
}

// SetAutoSync persists the auto-sync flag.
func (o *Orchestrator) SetAutoSync(ctx context.Context, enabled bool) error {
	if err := o.store.SetAutoSync(ctx, enabled); err != nil {
		return err
	}
	o.logger.Info("Auto sync updated", zap.Bool("enabled", enabled))
	return nil
}

// Reauthenticated lifts the auth gate after the user signed in again. The
// token source, if any, drops its cached token first.
func (o *Orchestrator) Reauthenticated(ctx context.Context) error {
	if o.tokens != nil {
		if err := o.tokens.Refresh(ctx); err != nil {
			return err
		}
	}
	o.mu.Lock()
	o.authErr = nil
	o.mu.Unlock()
	o.logger.Info("Re-authenticated, sync resumed")
	return nil
}

// Subscribe returns a channel receiving every finished run, and a function
// ending the subscription. Slow subscribers miss results rather than block syncs.
func (o *Orchestrator) Subscribe() (<-chan *Result, func()) {
	ch := make(chan *Result, 8)
	o.mu.Lock()
	o.subs[ch] = struct{}{}
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, ch)
			o.mu.Unlock()
			close(ch)
		})
	}
}

// Go runs fn in the background and delivers its result on the returned channel.
func (o *Orchestrator) Go(ctx context.Context, fn func(context.Context) *Result) <-chan *Result {
	ch := make(chan *Result, 1)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(ch)
		ch <- fn(ctx)
	}()
	return ch
}

// Wait blocks until every run started with Go returned.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) publish(r *Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for ch := range o.subs {
		select {
		case ch <- r:
		default:
			o.logger.Warn("Dropping sync result for slow subscriber", zap.String("kind", r.Kind))
		}
	}
}

// claim marks t in progress. It returns a non-empty reason when t cannot sync now.
func (o *Orchestrator) claim(t entity.Type) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.authErr != nil {
		return ReasonReauthRequired
	}
	if o.fullSync || o.inProgress[t] {
		return ReasonAlreadySyncing
	}
	o.inProgress[t] = true
	return ""
}

func (o *Orchestrator) release(t entity.Type) {
	o.mu.Lock()
	delete(o.inProgress, t)
	o.idle.Broadcast()
	o.mu.Unlock()
}

// claimAll claims the full-sync flag and waits for running entity syncs to finish.
func (o *Orchestrator) claimAll() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.authErr != nil {
		return ReasonReauthRequired
	}
	if o.fullSync {
		return ReasonAlreadySyncing
	}
	o.fullSync = true
	for len(o.inProgress) > 0 {
		o.idle.Wait()
	}
	return ""
}

func (o *Orchestrator) releaseAll() {
	o.mu.Lock()
	o.fullSync = false
	o.idle.Broadcast()
	o.mu.Unlock()
}

func (o *Orchestrator) setRunning(t entity.Type, running bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if running {
		o.inProgress[t] = true
		return
	}
	delete(o.inProgress, t)
}

func (o *Orchestrator) recordOutcome(res *EntityResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if syncerr.IsAuth(res.Err) {
		o.authErr = res.Err
	}
	if msg := res.lastError(); msg != "" {
		o.errs[res.Type] = msg
		o.lastErr = msg
		return
	}
	delete(o.errs, res.Type)
	if len(o.errs) == 0 {
		o.lastErr = ""
	}
}

func observe(t entity.Type, phase string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.SyncRunsTotal.WithLabelValues(t.String(), phase, status).Inc()
	metrics.SyncDuration.WithLabelValues(t.String(), phase).Observe(time.Since(start).Seconds())
}
