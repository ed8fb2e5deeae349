package tenantdb

import (
	"context"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	mghelper "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/dbutil/migrations"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/tenantstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		zap.L().Info("creating records table...")
		if err := mghelper.CreateSchema(ctx, db, &tenantstore.RecordDao{}); err != nil {
			return err
		}
		// serves GET ?since= per tenant and entity type
		return mghelper.CreateIndex(ctx, db, "records", "idx_records_changes", "tenant_id", "entity_type", "updated_at")
	}, func(ctx context.Context, db *bun.DB) error {
		zap.L().Info("dropping records table...")
		return mghelper.DropTables(ctx, db, &tenantstore.RecordDao{})
	})
}
