package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/internal/metrics"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/localstore"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/syncerr"
)

var (
	// errDeferred marks work that waits for a referenced record to get its server id.
	errDeferred = errors.New("waiting for referenced record")
	// errMissingReference marks work pointing at a temporary id whose record was
	// deleted before it ever reached the remote side.
	errMissingReference = errors.New("referenced record no longer exists")
)

// tempRefPattern finds quoted temporary ids in raw action payloads.
var tempRefPattern = regexp.MustCompile(`"` + regexp.QuoteMeta(entity.TempIDPrefix) + `[^"]+"`)

// push replays the queued actions of t, then pushes its remaining dirty records.
func (o *Orchestrator) push(ctx context.Context, t entity.Type, res *EntityResult) (err error) {
	start := time.Now()
	defer func() { observe(t, "push", start, err) }()

	handled, err := o.replayActions(ctx, t, res)
	if err != nil {
		return err
	}
	return o.pushDirty(ctx, t, handled, res)
}

// replayActions replays the queue of t in FIFO order. It returns the ids of the
// records pushed (or deferred) through create and update actions, so the dirty
// push does not send them a second time.
func (o *Orchestrator) replayActions(ctx context.Context, t entity.Type, res *EntityResult) (map[string]bool, error) {
	actions, err := o.store.DequeueAll(ctx, localstore.ForEntity(t))
	if err != nil {
		return nil, err
	}

	handled := make(map[string]bool)
	for _, action := range actions {
		if err := ctx.Err(); err != nil {
			return handled, err
		}

		err := o.replay(ctx, action, handled, res)
		switch {
		case err == nil:
			continue
		case errors.Is(err, errDeferred):
			res.Deferred++
			o.logger.Debug("Pending action deferred",
				zap.String("action_id", action.ID),
				zap.String("entity", t.String()),
				zap.String("entity_id", action.EntityID))
			continue
		case syncerr.IsFatal(err), errors.Is(err, context.Canceled):
			return handled, err
		}

		if err := o.failAction(ctx, action, err, res); err != nil {
			return handled, err
		}
	}
	return handled, nil
}

func (o *Orchestrator) replay(ctx context.Context, action *entity.PendingAction, handled map[string]bool, res *EntityResult) error {
	t := action.EntityType
	id, err := o.store.ResolveID(ctx, t, action.EntityID)
	if err != nil {
		return err
	}

	switch action.Operation {
	case entity.OpCreate, entity.OpUpdate:
		handled[action.EntityID] = true
		handled[id] = true

		rec, err := o.store.Get(ctx, t, id)
		if errors.Is(err, localstore.ErrRecordNotFound) {
			// deleted locally since it was queued
			return o.store.RemoveAction(ctx, action.ID)
		}
		if err != nil {
			return err
		}
		if !rec.Dirty {
			return o.store.RemoveAction(ctx, action.ID)
		}
		deferred, err := o.resolveReferences(ctx, rec)
		if err != nil {
			return err
		}
		if deferred {
			return errDeferred
		}
		newID, err := o.pushRecord(ctx, rec, res)
		if err != nil {
			return err
		}
		handled[newID] = true

	case entity.OpDelete:
		// a record that never reached the remote side has nothing to delete
		if !entity.IsTempID(id) {
			if err := o.gateway.Delete(ctx, t, id); err != nil {
				metrics.ActionsReplayedTotal.WithLabelValues(t.String(), string(action.Operation), "failed").Inc()
				return err
			}
		}

	default:
		if entity.IsTempID(id) || bytes.Contains(action.Payload, []byte(`"`+entity.TempIDPrefix)) {
			if err := o.checkVerbReferences(ctx, t, id, action.Payload); err != nil {
				return err
			}
			return errDeferred
		}
		rr, err := o.gateway.Perform(ctx, t, id, action.Operation, action.Payload)
		if err != nil {
			metrics.ActionsReplayedTotal.WithLabelValues(t.String(), string(action.Operation), "failed").Inc()
			return err
		}
		if rr != nil {
			if err := o.applyConfirmed(ctx, t, rr); err != nil {
				return err
			}
		}
	}

	res.Replayed++
	metrics.ActionsReplayedTotal.WithLabelValues(t.String(), string(action.Operation), "success").Inc()
	o.logger.Debug("Pending action replayed",
		zap.String("action_id", action.ID),
		zap.String("entity", t.String()),
		zap.String("entity_id", id),
		zap.String("operation", string(action.Operation)))
	return o.store.RemoveAction(ctx, action.ID)
}

// failAction books a failed replay. Failures detected as offline keep the
// action untouched; others consume one retry, and the action is dropped and
// reported once the limit is reached.
func (o *Orchestrator) failAction(ctx context.Context, action *entity.PendingAction, cause error, res *EntityResult) error {
	res.addError(cause)
	if !syncerr.CountsAgainstRetries(cause) {
		o.logger.Warn("Pending action not delivered, keeping it queued",
			zap.String("action_id", action.ID),
			zap.String("entity", action.EntityType.String()),
			zap.Error(cause))
		return nil
	}

	attempts, err := o.store.IncrementRetry(ctx, action.ID, cause.Error())
	if err != nil {
		return err
	}
	if attempts < o.maxRetries {
		o.logger.Warn("Pending action failed",
			zap.String("action_id", action.ID),
			zap.String("entity", action.EntityType.String()),
			zap.String("entity_id", action.EntityID),
			zap.Int("attempts", attempts),
			zap.Error(cause))
		return nil
	}

	if err := o.store.RemoveAction(ctx, action.ID); err != nil {
		return err
	}
	if action.Operation == entity.OpCreate || action.Operation == entity.OpUpdate {
		if err := o.park(ctx, action); err != nil {
			return err
		}
	}
	res.PermanentFailures = append(res.PermanentFailures, PermanentFailure{
		ActionID:  action.ID,
		Type:      action.EntityType,
		EntityID:  action.EntityID,
		Operation: action.Operation,
		Attempts:  attempts,
		LastError: cause.Error(),
	})
	metrics.PermanentFailuresTotal.WithLabelValues(action.EntityType.String(), string(action.Operation)).Inc()
	o.logger.Error("Dropping pending action after retry limit",
		zap.String("action_id", action.ID),
		zap.String("entity", action.EntityType.String()),
		zap.String("entity_id", action.EntityID),
		zap.String("operation", string(action.Operation)),
		zap.Int("attempts", attempts),
		zap.Error(cause))
	return nil
}

// park sets aside the record of a dropped create or update so later passes do
// not push it again. The next local edit makes it eligible again.
func (o *Orchestrator) park(ctx context.Context, action *entity.PendingAction) error {
	id, err := o.store.ResolveID(ctx, action.EntityType, action.EntityID)
	if err != nil {
		return err
	}
	return o.store.Park(ctx, action.EntityType, id, o.now())
}

// pushDirty pushes every dirty record of t not already handled by the replay.
// Failures are isolated per record and charged to the retry budget of its
// queued change.
func (o *Orchestrator) pushDirty(ctx context.Context, t entity.Type, handled map[string]bool, res *EntityResult) error {
	records, err := o.store.GetDirty(ctx, t)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if handled[rec.ID] {
			continue
		}

		deferred, err := o.resolveReferences(ctx, rec)
		if err == nil && deferred {
			res.Deferred++
			o.logger.Debug("Record push deferred",
				zap.String("entity", t.String()),
				zap.String("id", rec.ID))
			continue
		}
		if err == nil {
			_, err = o.pushRecord(ctx, rec, res)
		}
		if err == nil {
			continue
		}
		if syncerr.IsFatal(err) || errors.Is(err, context.Canceled) {
			return err
		}

		res.PushFailures++
		o.logger.Warn("Failed to push record",
			zap.String("entity", t.String()),
			zap.String("id", rec.ID),
			zap.Error(err))
		if err := o.chargeFailure(ctx, rec, err, res); err != nil {
			return err
		}
	}
	return nil
}

// chargeFailure books a failed push of rec against the retry budget of its
// queued change, queuing one when there is none.
func (o *Orchestrator) chargeFailure(ctx context.Context, rec *entity.Record, cause error, res *EntityResult) error {
	op := entity.OpUpdate
	if rec.IsNew() {
		op = entity.OpCreate
	}
	action, err := o.enqueueChange(ctx, rec, op)
	if err != nil {
		return err
	}
	return o.failAction(ctx, action, cause, res)
}

// resolveReferences rewrites references of rec that point at remapped
// temporary ids. It reports true when a referenced record has no server id yet,
// and errMissingReference when that record is gone.
func (o *Orchestrator) resolveReferences(ctx context.Context, rec *entity.Record) (bool, error) {
	for _, ref := range rec.Payload.References() {
		if !entity.IsTempID(ref.ID) {
			continue
		}
		id, err := o.store.ResolveID(ctx, ref.Type, ref.ID)
		if err != nil {
			return false, err
		}
		if !entity.IsTempID(id) {
			rec.Payload.RemapReference(ref.Type, ref.ID, id)
			continue
		}
		if err := o.checkExists(ctx, ref.Type, id); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// checkVerbReferences checks the temporary ids a queued verb waits for: its
// target and any quoted in its body.
func (o *Orchestrator) checkVerbReferences(ctx context.Context, t entity.Type, id string, body []byte) error {
	if entity.IsTempID(id) {
		if err := o.checkExists(ctx, t, id); err != nil {
			return err
		}
	}
	for _, quoted := range tempRefPattern.FindAll(body, -1) {
		ref := string(quoted[1 : len(quoted)-1])
		found := false
		for _, rt := range entity.SyncOrder {
			err := o.checkExists(ctx, rt, ref)
			if err == nil {
				found = true
				break
			}
			if !errors.Is(err, errMissingReference) {
				return err
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", errMissingReference, ref)
		}
	}
	return nil
}

func (o *Orchestrator) checkExists(ctx context.Context, t entity.Type, id string) error {
	_, err := o.store.Get(ctx, t, id)
	if errors.Is(err, localstore.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %s", errMissingReference, t, id)
	}
	return err
}

// pushRecord sends rec to the remote API and marks it synced. A record that was
// never synced is created and takes the server id. It returns the record id
// after the push.
func (o *Orchestrator) pushRecord(ctx context.Context, rec *entity.Record, res *EntityResult) (string, error) {
	t := rec.Type()

	if rec.IsNew() {
		rr, err := o.gateway.Create(ctx, t, rec.Payload)
		if err == nil && (rr == nil || rr.ID == "") {
			err = syncerr.RemoteRejection("create "+t.String(), 0, errors.New("created record has no id"))
		}
		if err != nil {
			metrics.RecordsPushedTotal.WithLabelValues(t.String(), string(entity.OpCreate), "failed").Inc()
			return "", err
		}
		if err := o.store.ConfirmCreate(ctx, t, rec.ID, rr.ID, o.now(), rec.UpdatedAt); err != nil {
			return "", fmt.Errorf("failed to confirm %s %s as %s: %w", t, rec.ID, rr.ID, err)
		}
		o.resolver.Forget(t, rec.ID)
		res.Created++
		metrics.RecordsPushedTotal.WithLabelValues(t.String(), string(entity.OpCreate), "success").Inc()
		o.logger.Info("Record created remotely",
			zap.String("entity", t.String()),
			zap.String("local_id", rec.ID),
			zap.String("id", rr.ID))
		return rr.ID, nil
	}

	if _, err := o.gateway.Update(ctx, t, rec.ID, rec.Payload); err != nil {
		metrics.RecordsPushedTotal.WithLabelValues(t.String(), string(entity.OpUpdate), "failed").Inc()
		return "", err
	}
	if err := o.store.MarkSynced(ctx, t, rec.ID, o.now(), localstore.IfUnchangedSince(rec.UpdatedAt)); err != nil {
		return "", err
	}
	o.resolver.Forget(t, rec.ID)
	res.Updated++
	metrics.RecordsPushedTotal.WithLabelValues(t.String(), string(entity.OpUpdate), "success").Inc()
	return rec.ID, nil
}
