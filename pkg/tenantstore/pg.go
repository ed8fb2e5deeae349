package tenantstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/entity"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/tenantapi"
)

type pgStore struct {
	db *bun.DB
}

// NewStore creates a new postgres implementation of the tenant store
func NewStore(db *bun.DB) *pgStore {
	return &pgStore{db: db}
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	return errors.As(err, &pgErr) && pgErr.Field('C') == "23505"
}

func (s *pgStore) CreateRecord(ctx context.Context, rec *tenantapi.Record) error {
	dao, err := toRecordDao(rec)
	if err != nil {
		return err
	}

	_, err = s.db.NewInsert().
		Model(dao).
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrRecordExists
		}
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

func (s *pgStore) UpdateRecord(ctx context.Context, rec *tenantapi.Record) error {
	dao, err := toRecordDao(rec)
	if err != nil {
		return err
	}

	res, err := s.db.NewUpdate().
		Model(dao).
		Column("data", "updated_at", "deleted").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *pgStore) SaveRecords(ctx context.Context, recs ...*tenantapi.Record) error {
	if len(recs) == 0 {
		return nil
	}
	daos := make([]*RecordDao, 0, len(recs))
	for _, rec := range recs {
		dao, err := toRecordDao(rec)
		if err != nil {
			return err
		}
		daos = append(daos, dao)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, dao := range daos {
			_, err := tx.NewInsert().
				Model(dao).
				On("CONFLICT (tenant_id, entity_type, id) DO UPDATE").
				Set("data = EXCLUDED.data").
				Set("updated_at = EXCLUDED.updated_at").
				Set("deleted = EXCLUDED.deleted").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to save %s %s: %w", dao.EntityType, dao.ID, err)
			}
		}
		return nil
	})
}

func (s *pgStore) GetRecord(ctx context.Context, tenantID string, t entity.Type, id string) (*tenantapi.Record, error) {
	dao := new(RecordDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("tenant_id = ?", tenantID).
		Where("entity_type = ?", t.String()).
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

func (s *pgStore) ListRecords(ctx context.Context, tenantID string, t entity.Type, opts ...QueryOption) ([]*tenantapi.Record, error) {
	options := &QueryOptions{}
	for _, opt := range opts {
		opt(options)
	}

	var daos []RecordDao
	query := s.db.NewSelect().
		Model(&daos).
		Where("tenant_id = ?", tenantID).
		Where("entity_type = ?", t.String())

	if options.UpdatedAfter != nil {
		query = query.Where("updated_at > ?", options.UpdatedAfter.UTC())
	}
	if len(options.IDs) > 0 {
		query = query.Where("id IN (?)", bun.In(options.IDs))
	}
	if !options.IncludeDeleted {
		query = query.Where("deleted = FALSE")
	}

	err := query.
		Order("updated_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	recs := make([]*tenantapi.Record, 0, len(daos))
	for i := range daos {
		rec, err := toRecord(&daos[i])
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *pgStore) LatestUpdate(ctx context.Context, tenantID string) (time.Time, error) {
	var latest sql.NullTime
	err := s.db.NewSelect().
		Model((*RecordDao)(nil)).
		ColumnExpr("MAX(updated_at)").
		Where("tenant_id = ?", tenantID).
		Scan(ctx, &latest)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest update: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, nil
	}
	return latest.Time.UTC(), nil
}

func (s *pgStore) CreateDevice(ctx context.Context, device *tenantapi.Device) error {
	_, err := s.db.NewInsert().
		Model(toDeviceDao(device)).
		On("CONFLICT (client_id) DO UPDATE").
		Set("tenant_id = EXCLUDED.tenant_id").
		Set("secret_hash = EXCLUDED.secret_hash").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (s *pgStore) GetDevice(ctx context.Context, clientID string) (*tenantapi.Device, error) {
	dao := new(DeviceDao)
	err := s.db.NewSelect().
		Model(dao).
		Where("client_id = ?", clientID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return toDevice(dao), nil
}
