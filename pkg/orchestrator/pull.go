package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/internal/metrics"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/localstore"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/syncerr"
)

// pull fetches the changes of t since its cursor and applies them. The cursor
// only moves forward, and never past a record that failed to apply.
func (o *Orchestrator) pull(ctx context.Context, t entity.Type, res *EntityResult) (err error) {
	start := time.Now()
	defer func() { observe(t, "pull", start, err) }()

	settings, err := o.store.Settings(ctx)
	if err != nil {
		return err
	}
	cursor := settings.Cursor(t)
	var since *time.Time
	if !cursor.IsZero() {
		since = &cursor
	}

	changes, err := o.gateway.ListChangesSince(ctx, t, since)
	if err != nil {
		return err
	}
	pendingDeletes, err := o.pendingDeletes(ctx, t)
	if err != nil {
		return err
	}

	var (
		applied []time.Time
		held    *time.Time
	)
	for _, rr := range changes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if since != nil && !rr.UpdatedAt.After(cursor) {
			continue
		}
		if err := o.applyRemote(ctx, t, rr, pendingDeletes, res); err != nil {
			if syncerr.IsFatal(err) || errors.Is(err, context.Canceled) {
				return err
			}
			res.addError(err)
			o.logger.Warn("Failed to apply remote record",
				zap.String("entity", t.String()),
				zap.String("id", rr.ID),
				zap.Error(err))
			if held == nil || rr.UpdatedAt.Before(*held) {
				at := rr.UpdatedAt
				held = &at
			}
			continue
		}
		applied = append(applied, rr.UpdatedAt)
	}

	next := cursor
	for _, at := range applied {
		if held != nil && !at.Before(*held) {
			continue
		}
		if at.After(next) {
			next = at
		}
	}
	if next.After(cursor) {
		if err := o.store.AdvanceCursor(ctx, t, next); err != nil {
			return err
		}
	}
	if held != nil {
		return nil
	}

	now := o.now()
	if err := o.store.SetLastSynced(ctx, t, now); err != nil {
		return err
	}
	metrics.LastSyncTimestamp.WithLabelValues(t.String()).Set(float64(now.Unix()))
	return nil
}

// applyRemote stores one remote record. Clean or missing local copies take the
// remote version as is; dirty ones go through the resolver.
func (o *Orchestrator) applyRemote(ctx context.Context, t entity.Type, rr *entity.RemoteRecord, pendingDeletes map[string]bool, res *EntityResult) error {
	if pendingDeletes[rr.ID] && !rr.Deleted {
		metrics.RecordsPulledTotal.WithLabelValues(t.String(), "skipped").Inc()
		return nil
	}

	local, err := o.store.Get(ctx, t, rr.ID)
	if errors.Is(err, localstore.ErrRecordNotFound) {
		local = nil
	} else if err != nil {
		return err
	}

	if rr.Deleted {
		if local == nil {
			return nil
		}
		if local.Dirty {
			resolution := o.resolver.Tombstone(local)
			res.Conflicts++
			metrics.ConflictsTotal.WithLabelValues(t.String(), string(resolution.Policy)).Inc()
			if resolution.Record != nil {
				if _, err := o.store.Upsert(ctx, resolution.Record, localstore.AsResolved()); err != nil {
					return err
				}
				o.logger.Info("Record deleted remotely, keeping local changes",
					zap.String("entity", t.String()),
					zap.String("id", rr.ID))
				return nil
			}
			o.logger.Warn("Record deleted remotely, discarding local changes",
				zap.String("entity", t.String()),
				zap.String("id", rr.ID))
		}
		if err := o.store.Remove(ctx, t, rr.ID); err != nil {
			return err
		}
		if err := o.dropActions(ctx, t, rr.ID); err != nil {
			return err
		}
		o.resolver.Forget(t, rr.ID)
		res.Removed++
		metrics.RecordsPulledTotal.WithLabelValues(t.String(), "removed").Inc()
		return nil
	}

	now := o.now()
	tenantID := o.tenantID
	if local != nil && local.TenantID != "" {
		tenantID = local.TenantID
	}
	incoming := rr.ToRecord(tenantID, now)

	if local == nil || !local.Dirty {
		if _, err := o.store.Upsert(ctx, incoming, localstore.FromRemote(now)); err != nil {
			return err
		}
		res.Pulled++
		metrics.RecordsPulledTotal.WithLabelValues(t.String(), "applied").Inc()
		return nil
	}

	resolution, err := o.resolver.Conflict(local, incoming, now)
	if err != nil {
		return err
	}
	if _, err := o.store.Upsert(ctx, resolution.Record, localstore.AsResolved()); err != nil {
		return err
	}
	res.Pulled++
	res.Conflicts++
	metrics.RecordsPulledTotal.WithLabelValues(t.String(), "conflict").Inc()
	metrics.ConflictsTotal.WithLabelValues(t.String(), string(resolution.Policy)).Inc()
	if resolution.BreakerTripped {
		res.BreakerTrips++
		metrics.BreakerTripsTotal.WithLabelValues(t.String()).Inc()
		o.logger.Warn("Repeated conflict resolved with the remote copy",
			zap.String("entity", t.String()),
			zap.String("id", rr.ID))
	}
	o.logger.Info("Conflict resolved",
		zap.String("entity", t.String()),
		zap.String("id", rr.ID),
		zap.String("policy", string(resolution.Policy)),
		zap.Strings("overlaid", resolution.Overlaid),
		zap.Bool("dirty", resolution.Record.Dirty))
	return nil
}

// applyConfirmed stores a record returned by a custom verb unless the local
// copy has unpushed changes; the next pull resolves those.
func (o *Orchestrator) applyConfirmed(ctx context.Context, t entity.Type, rr *entity.RemoteRecord) error {
	if rr.Deleted || rr.ID == "" {
		return nil
	}
	local, err := o.store.Get(ctx, t, rr.ID)
	if err != nil && !errors.Is(err, localstore.ErrRecordNotFound) {
		return err
	}
	if local != nil && local.Dirty {
		return nil
	}
	tenantID := o.tenantID
	if local != nil && local.TenantID != "" {
		tenantID = local.TenantID
	}
	now := o.now()
	_, err = o.store.Upsert(ctx, rr.ToRecord(tenantID, now), localstore.FromRemote(now))
	return err
}

func (o *Orchestrator) pendingDeletes(ctx context.Context, t entity.Type) (map[string]bool, error) {
	actions, err := o.store.DequeueAll(ctx, localstore.ForEntity(t))
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	for _, a := range actions {
		if a.Operation == entity.OpDelete {
			ids[a.EntityID] = true
		}
	}
	return ids, nil
}

// dropActions removes every queued action of one record.
func (o *Orchestrator) dropActions(ctx context.Context, t entity.Type, id string) error {
	actions, err := o.store.DequeueAll(ctx, localstore.ForEntity(t))
	if err != nil {
		return err
	}
	for _, a := range actions {
		if a.EntityID != id {
			continue
		}
		if err := o.store.RemoveAction(ctx, a.ID); err != nil {
			return err
		}
	}
	return nil
}
