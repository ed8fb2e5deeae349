package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/syncerr"
)

const (
	settingLastFullSync = "last_full_sync"
	settingAutoSync     = "auto_sync_enabled"

	// maxRemapHops bounds ResolveID when following chained remaps.
	maxRemapHops = 8
)

type sqliteStore struct {
	db  *bun.DB
	now func() time.Time
}

// Option configures the store
type Option func(*sqliteStore)

// WithClock overrides the clock used to stamp local writes.
func WithClock(now func() time.Time) Option {
	return func(s *sqliteStore) {
		s.now = now
	}
}

// NewStore creates a SQLite implementation of the local store.
// The schema must already exist (see migrations/localdb).
func NewStore(db *bun.DB, opts ...Option) *sqliteStore {
	s := &sqliteStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// stamp normalizes ts to the precision SQLite keeps.
func stamp(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Microsecond)
}

// =============================================================================
// RECORDS
// =============================================================================

func (s *sqliteStore) Upsert(ctx context.Context, rec *entity.Record, opts ...UpsertOption) (string, error) {
	if rec == nil || rec.Payload == nil {
		return "", errors.New("record payload is required")
	}
	options := &UpsertOptions{}
	for _, opt := range opts {
		opt(options)
	}

	t := rec.Type()
	id := rec.ID
	if id == "" {
		id = entity.NewTempID()
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		next := rec.Clone()
		next.ID = id

		switch {
		case options.Exact:
			next.UpdatedAt = stamp(rec.UpdatedAt)
			if rec.SyncedAt != nil {
				synced := stamp(*rec.SyncedAt)
				next.SyncedAt = &synced
			}
		case options.SyncedAt != nil:
			synced := stamp(*options.SyncedAt)
			next.UpdatedAt = stamp(rec.UpdatedAt)
			next.SyncedAt = &synced
			next.Dirty = false
		default:
			prev, err := getRecord(ctx, tx, t, id)
			if err != nil && !errors.Is(err, ErrRecordNotFound) {
				return err
			}
			now := stamp(s.now())
			if prev != nil {
				if !now.After(prev.UpdatedAt) {
					now = prev.UpdatedAt.Add(time.Microsecond)
				}
				next.SyncedAt = prev.SyncedAt
				if next.TenantID == "" {
					next.TenantID = prev.TenantID
				}
			} else {
				next.SyncedAt = nil
			}
			next.UpdatedAt = now
			next.Dirty = true
		}

		dao, err := toRecordDao(next)
		if err != nil {
			return err
		}
		q := tx.NewInsert().
			Model(dao).
			On("CONFLICT (entity_type, id) DO UPDATE").
			Set("tenant_id = EXCLUDED.tenant_id").
			Set("payload = EXCLUDED.payload").
			Set("updated_at = EXCLUDED.updated_at").
			Set("synced_at = EXCLUDED.synced_at").
			Set("dirty = EXCLUDED.dirty")
		// local edits and remote copies unpark; resolved writes keep the marker
		if !options.Exact {
			q = q.Set("parked_at = NULL")
		}
		_, err = q.Exec(ctx)
		return err
	})
	if err != nil {
		return "", syncerr.Storage("upsert "+t.String(), err)
	}
	return id, nil
}

func (s *sqliteStore) Get(ctx context.Context, t entity.Type, id string) (*entity.Record, error) {
	rec, err := getRecord(ctx, s.db, t, id)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, err
		}
		return nil, syncerr.Storage("get "+t.String(), err)
	}
	return rec, nil
}

func getRecord(ctx context.Context, db bun.IDB, t entity.Type, id string) (*entity.Record, error) {
	dao := new(RecordDao)
	err := db.NewSelect().
		Model(dao).
		Where("entity_type = ?", string(t)).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return toRecord(dao)
}

func (s *sqliteStore) GetAll(ctx context.Context, t entity.Type, opts ...QueryOption) ([]*entity.Record, error) {
	options := &QueryOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var daos []RecordDao
	query := s.db.NewSelect().
		Model(&daos).
		Where("entity_type = ?", string(t))

	if options.Dirty != nil {
		query = query.Where("dirty = ?", *options.Dirty)
	}
	if len(options.IDs) > 0 {
		query = query.Where("id IN (?)", bun.In(options.IDs))
	}
	if options.UpdatedAfter != nil {
		query = query.Where("updated_at > ?", stamp(*options.UpdatedAfter))
	}
	if options.TenantID != nil {
		query = query.Where("tenant_id = ?", *options.TenantID)
	}
	if options.Parked != nil {
		if *options.Parked {
			query = query.Where("parked_at IS NOT NULL")
		} else {
			query = query.Where("parked_at IS NULL")
		}
	}

	if err := query.Order("updated_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, syncerr.Storage("list "+t.String(), err)
	}
	recs, err := toRecords(daos)
	if err != nil {
		return nil, syncerr.Storage("list "+t.String(), err)
	}
	return recs, nil
}

// GetDirty returns the dirty records of t that are not parked.
func (s *sqliteStore) GetDirty(ctx context.Context, t entity.Type) ([]*entity.Record, error) {
	return s.GetAll(ctx, t, WithDirty(true), WithParked(false))
}

func (s *sqliteStore) MarkSynced(ctx context.Context, t entity.Type, id string, syncedAt time.Time, opts ...SyncOption) error {
	options := &SyncOptions{}
	for _, opt := range opts {
		opt(options)
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return markSynced(ctx, tx, t, id, stamp(syncedAt), options.UnchangedSince)
	})
	return syncerr.Storage("mark synced "+t.String(), err)
}

// markSynced stamps synced_at and clears dirty. With unchangedSince set, a record
// edited after that instant keeps its dirty flag but still records the sync.
func markSynced(ctx context.Context, tx bun.Tx, t entity.Type, id string, syncedAt time.Time, unchangedSince *time.Time) error {
	q := tx.NewUpdate().
		Model((*RecordDao)(nil)).
		Set("synced_at = ?", syncedAt).
		Where("entity_type = ?", string(t)).
		Where("id = ?", id)
	if unchangedSince != nil {
		q = q.Set("dirty = (updated_at > ?)", stamp(*unchangedSince))
	} else {
		q = q.Set("dirty = ?", false)
	}
	_, err := q.Exec(ctx)
	return err
}

func (s *sqliteStore) Remove(ctx context.Context, t entity.Type, id string) error {
	_, err := s.db.NewDelete().
		Model((*RecordDao)(nil)).
		Where("entity_type = ?", string(t)).
		Where("id = ?", id).
		Exec(ctx)
	return syncerr.Storage("remove "+t.String(), err)
}

func (s *sqliteStore) Park(ctx context.Context, t entity.Type, id string, at time.Time) error {
	_, err := s.db.NewUpdate().
		Model((*RecordDao)(nil)).
		Set("parked_at = ?", stamp(at)).
		Where("entity_type = ?", string(t)).
		Where("id = ?", id).
		Exec(ctx)
	return syncerr.Storage("park "+t.String(), err)
}

func (s *sqliteStore) ConfirmCreate(ctx context.Context, t entity.Type, oldID, newID string, syncedAt, updatedAt time.Time) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := getRecord(ctx, tx, t, oldID); err != nil {
			return err
		}

		if newID != oldID {
			// A pull may already have stored the server copy under the new id.
			if _, err := tx.NewDelete().
				Model((*RecordDao)(nil)).
				Where("entity_type = ?", string(t)).
				Where("id = ?", newID).
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to clear record %s: %w", newID, err)
			}
			if _, err := tx.NewUpdate().
				Model((*RecordDao)(nil)).
				Set("id = ?", newID).
				Where("entity_type = ?", string(t)).
				Where("id = ?", oldID).
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to rename record: %w", err)
			}

			remap := &IDRemapDao{
				EntityType: string(t),
				OldID:      oldID,
				NewID:      newID,
				RemappedAt: stamp(s.now()),
			}
			if _, err := tx.NewInsert().
				Model(remap).
				On("CONFLICT (entity_type, old_id) DO UPDATE").
				Set("new_id = EXCLUDED.new_id").
				Set("remapped_at = EXCLUDED.remapped_at").
				Exec(ctx); err != nil {
				return fmt.Errorf("failed to record id remap: %w", err)
			}

			if err := remapDependents(ctx, tx, t, oldID, newID); err != nil {
				return err
			}
			if err := remapActions(ctx, tx, t, oldID, newID); err != nil {
				return err
			}
		}

		unchanged := stamp(updatedAt)
		return markSynced(ctx, tx, t, newID, stamp(syncedAt), &unchanged)
	})
	if errors.Is(err, ErrRecordNotFound) {
		return err
	}
	return syncerr.Storage("confirm create "+t.String(), err)
}

// remapDependents rewrites references to oldID in every record whose payload
// mentions it.
func remapDependents(ctx context.Context, tx bun.Tx, t entity.Type, oldID, newID string) error {
	var daos []RecordDao
	if err := tx.NewSelect().
		Model(&daos).
		Where("instr(payload, ?) > 0", strconv.Quote(oldID)).
		Scan(ctx); err != nil {
		return fmt.Errorf("failed to find dependents of %s: %w", oldID, err)
	}

	for i := range daos {
		rec, err := toRecord(&daos[i])
		if err != nil {
			return err
		}
		if !rec.Payload.RemapReference(t, oldID, newID) {
			continue
		}
		data, err := entity.EncodePayload(rec.Payload)
		if err != nil {
			return err
		}
		if _, err := tx.NewUpdate().
			Model((*RecordDao)(nil)).
			Set("payload = ?", string(data)).
			Where("entity_type = ?", daos[i].EntityType).
			Where("id = ?", daos[i].ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to remap dependent %s/%s: %w", daos[i].EntityType, daos[i].ID, err)
		}
	}
	return nil
}

// remapActions points queued actions at newID. Payloads are rewritten textually:
// temporary ids are unique, so a quoted occurrence can only be a reference.
func remapActions(ctx context.Context, tx bun.Tx, t entity.Type, oldID, newID string) error {
	if _, err := tx.NewUpdate().
		Model((*ActionDao)(nil)).
		Set("entity_id = ?", newID).
		Where("entity_type = ?", string(t)).
		Where("entity_id = ?", oldID).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to remap queued actions: %w", err)
	}

	quotedOld, quotedNew := strconv.Quote(oldID), strconv.Quote(newID)
	var daos []ActionDao
	if err := tx.NewSelect().
		Model(&daos).
		Where("instr(payload, ?) > 0", quotedOld).
		Scan(ctx); err != nil {
		return fmt.Errorf("failed to find queued payloads referencing %s: %w", oldID, err)
	}
	for i := range daos {
		if _, err := tx.NewUpdate().
			Model((*ActionDao)(nil)).
			Set("payload = ?", strings.ReplaceAll(daos[i].Payload, quotedOld, quotedNew)).
			Where("id = ?", daos[i].ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to remap action %s: %w", daos[i].ID, err)
		}
	}
	return nil
}

func (s *sqliteStore) ResolveID(ctx context.Context, t entity.Type, id string) (string, error) {
	current := id
	for range maxRemapHops {
		dao := new(IDRemapDao)
		err := s.db.NewSelect().
			Model(dao).
			Where("entity_type = ?", string(t)).
			Where("old_id = ?", current).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return current, nil
		}
		if err != nil {
			return "", syncerr.Storage("resolve id "+t.String(), err)
		}
		current = dao.NewID
	}
	return current, nil
}

func (s *sqliteStore) MarkAllDirty(ctx context.Context) (int, error) {
	n, err := markAllDirty(ctx, s.db)
	if err != nil {
		return 0, syncerr.Storage("mark all dirty", err)
	}
	return n, nil
}

func markAllDirty(ctx context.Context, db bun.IDB) (int, error) {
	if _, err := db.NewUpdate().
		Model((*RecordDao)(nil)).
		Set("parked_at = NULL").
		Where("parked_at IS NOT NULL").
		Exec(ctx); err != nil {
		return 0, err
	}
	res, err := db.NewUpdate().
		Model((*RecordDao)(nil)).
		Set("dirty = ?", true).
		Where("dirty = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *sqliteStore) CountDirty(ctx context.Context, t entity.Type) (int, error) {
	q := s.db.NewSelect().
		Model((*RecordDao)(nil)).
		Where("dirty = ?", true).
		Where("parked_at IS NULL")
	if t != "" {
		q = q.Where("entity_type = ?", string(t))
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, syncerr.Storage("count dirty", err)
	}
	return n, nil
}

// =============================================================================
// PENDING ACTIONS
// =============================================================================

func (s *sqliteStore) Enqueue(ctx context.Context, action *entity.PendingAction) (string, error) {
	a := *action
	if a.ID == "" {
		a.ID = entity.NewActionID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	a.CreatedAt = stamp(a.CreatedAt)

	if _, err := s.db.NewInsert().Model(toActionDao(&a)).Exec(ctx); err != nil {
		return "", syncerr.Storage("enqueue "+a.EntityType.String(), err)
	}
	return a.ID, nil
}

func (s *sqliteStore) DequeueAll(ctx context.Context, opts ...ActionOption) ([]*entity.PendingAction, error) {
	options := &ActionOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var daos []ActionDao
	query := s.db.NewSelect().Model(&daos)
	if options.EntityType != nil {
		query = query.Where("entity_type = ?", string(*options.EntityType))
	}
	if err := query.Order("created_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, syncerr.Storage("dequeue actions", err)
	}

	actions := make([]*entity.PendingAction, len(daos))
	for i := range daos {
		actions[i] = toAction(&daos[i])
	}
	return actions, nil
}

func (s *sqliteStore) RemoveAction(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().
		Model((*ActionDao)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return syncerr.Storage("remove action", err)
}

func (s *sqliteStore) IncrementRetry(ctx context.Context, id, lastError string) (int, error) {
	var count int
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*ActionDao)(nil)).
			Set("retry_count = retry_count + 1").
			Set("last_error = ?", lastError).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrActionNotFound
		}
		return tx.NewSelect().
			Model((*ActionDao)(nil)).
			Column("retry_count").
			Where("id = ?", id).
			Scan(ctx, &count)
	})
	if errors.Is(err, ErrActionNotFound) {
		return 0, err
	}
	if err != nil {
		return 0, syncerr.Storage("increment retry", err)
	}
	return count, nil
}

func (s *sqliteStore) CountActions(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*ActionDao)(nil)).Count(ctx)
	if err != nil {
		return 0, syncerr.Storage("count actions", err)
	}
	return n, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (s *sqliteStore) Settings(ctx context.Context) (*Settings, error) {
	var states []SyncStateDao
	if err := s.db.NewSelect().Model(&states).Scan(ctx); err != nil {
		return nil, syncerr.Storage("load sync state", err)
	}
	var settings []SettingDao
	if err := s.db.NewSelect().Model(&settings).Scan(ctx); err != nil {
		return nil, syncerr.Storage("load settings", err)
	}

	out := &Settings{
		Cursors:    make(map[entity.Type]time.Time, len(states)),
		LastSynced: make(map[entity.Type]time.Time, len(states)),
	}
	for _, st := range states {
		t := entity.Type(st.EntityType)
		if st.Cursor != nil {
			out.Cursors[t] = st.Cursor.UTC()
		}
		if st.LastSyncedAt != nil {
			out.LastSynced[t] = st.LastSyncedAt.UTC()
		}
	}
	for _, kv := range settings {
		switch kv.Key {
		case settingLastFullSync:
			at, err := time.Parse(time.RFC3339Nano, kv.Value)
			if err != nil {
				return nil, syncerr.Storage("load settings", fmt.Errorf("invalid %s: %w", kv.Key, err))
			}
			out.LastFullSync = &at
		case settingAutoSync:
			enabled, err := strconv.ParseBool(kv.Value)
			if err != nil {
				return nil, syncerr.Storage("load settings", fmt.Errorf("invalid %s: %w", kv.Key, err))
			}
			out.AutoSyncEnabled = &enabled
		}
	}
	return out, nil
}

func (s *sqliteStore) AdvanceCursor(ctx context.Context, t entity.Type, cursor time.Time) error {
	cursor = stamp(cursor)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current := new(SyncStateDao)
		err := tx.NewSelect().
			Model(current).
			Where("entity_type = ?", string(t)).
			Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err == nil && current.Cursor != nil && !cursor.After(*current.Cursor) {
			return nil
		}
		_, err = tx.NewInsert().
			Model(&SyncStateDao{EntityType: string(t), Cursor: &cursor}).
			On("CONFLICT (entity_type) DO UPDATE").
			Set("cursor = EXCLUDED.cursor").
			Exec(ctx)
		return err
	})
	return syncerr.Storage("advance cursor "+t.String(), err)
}

func (s *sqliteStore) SetLastSynced(ctx context.Context, t entity.Type, at time.Time) error {
	at = stamp(at)
	_, err := s.db.NewInsert().
		Model(&SyncStateDao{EntityType: string(t), LastSyncedAt: &at}).
		On("CONFLICT (entity_type) DO UPDATE").
		Set("last_synced_at = EXCLUDED.last_synced_at").
		Exec(ctx)
	return syncerr.Storage("set last synced "+t.String(), err)
}

func (s *sqliteStore) SetLastFullSync(ctx context.Context, at time.Time) error {
	return s.putSetting(ctx, settingLastFullSync, stamp(at).Format(time.RFC3339Nano))
}

func (s *sqliteStore) SetAutoSync(ctx context.Context, enabled bool) error {
	return s.putSetting(ctx, settingAutoSync, strconv.FormatBool(enabled))
}

func (s *sqliteStore) putSetting(ctx context.Context, key, value string) error {
	_, err := s.db.NewInsert().
		Model(&SettingDao{Key: key, Value: value, UpdatedAt: stamp(s.now())}).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return syncerr.Storage("set "+key, err)
}

func (s *sqliteStore) ResetCursors(ctx context.Context) error {
	return syncerr.Storage("reset cursors", resetCursors(ctx, s.db))
}

func resetCursors(ctx context.Context, db bun.IDB) error {
	_, err := db.NewUpdate().
		Model((*SyncStateDao)(nil)).
		Set("cursor = NULL").
		Where("cursor IS NOT NULL").
		Exec(ctx)
	return err
}

func (s *sqliteStore) ResetSyncState(ctx context.Context) (int, error) {
	var marked int
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		n, err := markAllDirty(ctx, tx)
		if err != nil {
			return err
		}
		marked = n
		return resetCursors(ctx, tx)
	})
	if err != nil {
		return 0, syncerr.Storage("reset sync state", err)
	}
	return marked, nil
}
