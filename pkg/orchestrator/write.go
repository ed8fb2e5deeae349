package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/localstore"
)

// Save stores rec locally as a dirty record, queues it and tries to push it
// right away. Remote failures leave the change queued; only local failures are
// returned. The returned id is the server id when the push already succeeded.
func (o *Orchestrator) Save(ctx context.Context, rec *entity.Record) (string, error) {
	if rec == nil || rec.Payload == nil {
		return "", errors.New("record payload is required")
	}
	t := rec.Type()
	if rec.ID != "" {
		// callers may still hold a temporary id that was remapped since
		id, err := o.store.ResolveID(ctx, t, rec.ID)
		if err != nil {
			return "", err
		}
		if id != rec.ID {
			rec = rec.Clone()
			rec.ID = id
		}
	}
	if rec.TenantID == "" && o.tenantID != "" {
		rec = rec.Clone()
		rec.TenantID = o.tenantID
	}

	id, err := o.store.Upsert(ctx, rec)
	if err != nil {
		return "", err
	}
	stored, err := o.store.Get(ctx, t, id)
	if err != nil {
		return "", err
	}

	op := entity.OpUpdate
	if stored.IsNew() {
		op = entity.OpCreate
	}
	if _, err := o.enqueueChange(ctx, stored, op); err != nil {
		return id, err
	}

	o.flush(ctx, t)
	return o.store.ResolveID(ctx, t, id)
}

// Delete removes a record locally and queues its remote deletion. A record
// that never reached the remote side is only dropped locally.
func (o *Orchestrator) Delete(ctx context.Context, t entity.Type, id string) error {
	id, err := o.store.ResolveID(ctx, t, id)
	if err != nil {
		return err
	}
	rec, err := o.store.Get(ctx, t, id)
	if err != nil {
		return err
	}
	if err := o.store.Remove(ctx, t, id); err != nil {
		return err
	}
	if err := o.dropActions(ctx, t, id); err != nil {
		return err
	}
	o.resolver.Forget(t, id)
	if rec.IsNew() {
		return nil
	}

	if _, err := o.store.Enqueue(ctx, &entity.PendingAction{
		EntityType: t,
		EntityID:   id,
		Operation:  entity.OpDelete,
	}); err != nil {
		return err
	}
	o.flush(ctx, t)
	return nil
}

// Perform queues a custom verb such as assign or return and tries to deliver
// it right away.
func (o *Orchestrator) Perform(ctx context.Context, t entity.Type, id string, verb entity.Operation, body []byte) error {
	if !verb.IsCustom() {
		return fmt.Errorf("%s is not a custom verb", verb)
	}
	id, err := o.store.ResolveID(ctx, t, id)
	if err != nil {
		return err
	}
	if _, err := o.store.Enqueue(ctx, &entity.PendingAction{
		EntityType: t,
		EntityID:   id,
		Operation:  verb,
		Payload:    body,
	}); err != nil {
		return err
	}
	o.flush(ctx, t)
	return nil
}

// enqueueChange queues a create or update of rec unless one is already queued,
// and returns the queued action. Replay always pushes the latest local state.
func (o *Orchestrator) enqueueChange(ctx context.Context, rec *entity.Record, op entity.Operation) (*entity.PendingAction, error) {
	t := rec.Type()
	actions, err := o.store.DequeueAll(ctx, localstore.ForEntity(t))
	if err != nil {
		return nil, err
	}
	for _, a := range actions {
		if a.EntityID == rec.ID && (a.Operation == entity.OpCreate || a.Operation == entity.OpUpdate) {
			return a, nil
		}
	}

	data, err := entity.EncodePayload(rec.Payload)
	if err != nil {
		return nil, err
	}
	action := &entity.PendingAction{
		EntityType: t,
		EntityID:   rec.ID,
		Operation:  op,
		Payload:    data,
	}
	id, err := o.store.Enqueue(ctx, action)
	if err != nil {
		return nil, err
	}
	action.ID = id
	return action, nil
}

// flush replays the queue of t when the remote side looks reachable and no
// sync of t is running. Outcomes show up in Status.
func (o *Orchestrator) flush(ctx context.Context, t entity.Type) {
	if o.online != nil && !o.online() {
		return
	}
	if reason := o.claim(t); reason != "" {
		o.logger.Debug("Change left queued", zap.String("entity", t.String()), zap.String("reason", reason))
		return
	}
	defer o.release(t)

	res := &EntityResult{Type: t, StartedAt: o.now()}
	if _, err := o.replayActions(ctx, t, res); err != nil {
		res.Err = err
		o.logger.Warn("Failed to flush pending actions", zap.String("entity", t.String()), zap.Error(err))
	}
	res.Success = res.Err == nil && len(res.Errors) == 0
	res.FinishedAt = o.now()
	o.recordOutcome(res)
}
