package localdb

import (
	"context"

	"github.com/uptrace/bun"

	mghelper "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/dbutil/migrations"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/localstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if err := mghelper.CreateSchema(ctx, db, &localstore.RecordDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateIndex(ctx, db, "records", "idx_records_dirty", "entity_type", "dirty"); err != nil {
			return err
		}
		return mghelper.CreateIndex(ctx, db, "records", "idx_records_updated_at", "entity_type", "updated_at")
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &localstore.RecordDao{})
	})
}
