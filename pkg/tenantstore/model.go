package tenantstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/tenantapi"
)

// RecordDao is a data access object that maps directly to the 'records' table in PostgreSQL.
// Deleted rows are kept as tombstones so devices can pull deletions.
type RecordDao struct {
	bun.BaseModel `bun:"table:records,alias:r"`
	TenantID      string    `bun:"tenant_id,pk,type:varchar(64)"`
	EntityType    string    `bun:"entity_type,pk,type:varchar(32)"`
	ID            string    `bun:"id,pk,type:varchar(64)"`
	Data          string    `bun:"data,type:jsonb"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
	Deleted       bool      `bun:"deleted,notnull,default:false"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// DeviceDao is a data access object that maps directly to the 'device_credentials' table in PostgreSQL.
type DeviceDao struct {
	bun.BaseModel `bun:"table:device_credentials,alias:d"`
	ClientID      string    `bun:"client_id,pk,type:varchar(128)"`
	TenantID      string    `bun:"tenant_id,notnull,type:varchar(64)"`
	SecretHash    string    `bun:"secret_hash,notnull,type:varchar(255)"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// toRecordDao converts a tenantapi.Record to RecordDao.
func toRecordDao(rec *tenantapi.Record) (*RecordDao, error) {
	dao := &RecordDao{
		TenantID:   rec.TenantID,
		EntityType: rec.Type.String(),
		ID:         rec.ID,
		UpdatedAt:  rec.UpdatedAt.UTC(),
		Deleted:    rec.Deleted,
		Data:       "null",
	}
	if rec.Payload != nil {
		data, err := entity.EncodePayload(rec.Payload)
		if err != nil {
			return nil, err
		}
		dao.Data = string(data)
	}
	return dao, nil
}

// toRecord converts a RecordDao to tenantapi.Record.
func toRecord(dao *RecordDao) (*tenantapi.Record, error) {
	t, err := entity.ParseType(dao.EntityType)
	if err != nil {
		return nil, err
	}
	rec := &tenantapi.Record{
		TenantID:  dao.TenantID,
		Type:      t,
		ID:        dao.ID,
		UpdatedAt: dao.UpdatedAt.UTC(),
		Deleted:   dao.Deleted,
	}
	if dao.Data != "" && dao.Data != "null" {
		payload, err := entity.DecodePayload(t, []byte(dao.Data))
		if err != nil {
			return nil, fmt.Errorf("record %s/%s: %w", t, dao.ID, err)
		}
		rec.Payload = payload
	}
	return rec, nil
}

func toDeviceDao(d *tenantapi.Device) *DeviceDao {
	return &DeviceDao{
		ClientID:   d.ClientID,
		TenantID:   d.TenantID,
		SecretHash: d.SecretHash,
		CreatedAt:  d.CreatedAt,
	}
}

func toDevice(dao *DeviceDao) *tenantapi.Device {
	return &tenantapi.Device{
		ClientID:   dao.ClientID,
		TenantID:   dao.TenantID,
		SecretHash: dao.SecretHash,
		CreatedAt:  dao.CreatedAt,
	}
}
