package localstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
)

// RecordDao maps to the 'records' table. All entity types share the table and
// are told apart by entity_type.
type RecordDao struct {
	bun.BaseModel `bun:"table:records,alias:r"`
	EntityType    string     `bun:"entity_type,pk,type:varchar(32)"`
	ID            string     `bun:"id,pk,type:varchar(64)"`
	TenantID      string     `bun:"tenant_id,notnull,type:varchar(64)"`
	Payload       string     `bun:"payload,notnull,type:text"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull"`
	SyncedAt      *time.Time `bun:"synced_at"`
	Dirty         bool       `bun:"dirty,notnull"`
	// ParkedAt is set when pushing the record gave up after the retry limit.
	// Parked records are left out of pushes until the next local edit.
	ParkedAt *time.Time `bun:"parked_at"`
}

// ActionDao maps to the 'pending_actions' table.
type ActionDao struct {
	bun.BaseModel `bun:"table:pending_actions,alias:pa"`
	ID            string    `bun:"id,pk,type:varchar(64)"`
	EntityType    string    `bun:"entity_type,notnull,type:varchar(32)"`
	EntityID      string    `bun:"entity_id,notnull,type:varchar(64)"`
	Operation     string    `bun:"operation,notnull,type:varchar(32)"`
	Payload       string    `bun:"payload,type:text"`
	RetryCount    int       `bun:"retry_count,notnull,default:0"`
	LastError     string    `bun:"last_error,type:text"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
}

// SyncStateDao maps to the 'sync_state' table, one row per entity type.
type SyncStateDao struct {
	bun.BaseModel `bun:"table:sync_state,alias:ss"`
	EntityType    string     `bun:"entity_type,pk,type:varchar(32)"`
	Cursor        *time.Time `bun:"cursor"`
	LastSyncedAt  *time.Time `bun:"last_synced_at"`
}

// SettingDao maps to the 'sync_settings' key/value table.
type SettingDao struct {
	bun.BaseModel `bun:"table:sync_settings,alias:st"`
	Key           string    `bun:"key,pk,type:varchar(64)"`
	Value         string    `bun:"value,notnull,type:text"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

// IDRemapDao maps to the 'id_remaps' table recording temporary ids replaced by
// server-assigned ones.
type IDRemapDao struct {
	bun.BaseModel `bun:"table:id_remaps,alias:ir"`
	EntityType    string    `bun:"entity_type,pk,type:varchar(32)"`
	OldID         string    `bun:"old_id,pk,type:varchar(64)"`
	NewID         string    `bun:"new_id,notnull,type:varchar(64)"`
	RemappedAt    time.Time `bun:"remapped_at,notnull"`
}

// toRecordDao converts an entity.Record to RecordDao.
func toRecordDao(rec *entity.Record) (*RecordDao, error) {
	data, err := entity.EncodePayload(rec.Payload)
	if err != nil {
		return nil, err
	}
	return &RecordDao{
		EntityType: string(rec.Type()),
		ID:         rec.ID,
		TenantID:   rec.TenantID,
		Payload:    string(data),
		UpdatedAt:  rec.UpdatedAt,
		SyncedAt:   rec.SyncedAt,
		Dirty:      rec.Dirty,
	}, nil
}

// toRecord converts a RecordDao to entity.Record.
func toRecord(dao *RecordDao) (*entity.Record, error) {
	payload, err := entity.DecodePayload(entity.Type(dao.EntityType), []byte(dao.Payload))
	if err != nil {
		return nil, fmt.Errorf("record %s/%s: %w", dao.EntityType, dao.ID, err)
	}
	rec := &entity.Record{
		ID:        dao.ID,
		TenantID:  dao.TenantID,
		Payload:   payload,
		UpdatedAt: dao.UpdatedAt.UTC(),
		Dirty:     dao.Dirty,
	}
	if dao.SyncedAt != nil {
		at := dao.SyncedAt.UTC()
		rec.SyncedAt = &at
	}
	return rec, nil
}

func toRecords(daos []RecordDao) ([]*entity.Record, error) {
	out := make([]*entity.Record, 0, len(daos))
	for i := range daos {
		rec, err := toRecord(&daos[i])
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toActionDao(a *entity.PendingAction) *ActionDao {
	return &ActionDao{
		ID:         a.ID,
		EntityType: string(a.EntityType),
		EntityID:   a.EntityID,
		Operation:  string(a.Operation),
		Payload:    string(a.Payload),
		RetryCount: a.RetryCount,
		LastError:  a.LastError,
		CreatedAt:  a.CreatedAt,
	}
}

func toAction(dao *ActionDao) *entity.PendingAction {
	a := &entity.PendingAction{
		ID:         dao.ID,
		EntityType: entity.Type(dao.EntityType),
		EntityID:   dao.EntityID,
		Operation:  entity.Operation(dao.Operation),
		RetryCount: dao.RetryCount,
		LastError:  dao.LastError,
		CreatedAt:  dao.CreatedAt.UTC(),
	}
	if dao.Payload != "" {
		a.Payload = []byte(dao.Payload)
	}
	return a
}
