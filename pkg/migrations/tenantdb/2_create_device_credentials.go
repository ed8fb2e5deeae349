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
		zap.L().Info("creating device_credentials table...")
		if err := mghelper.CreateSchema(ctx, db, &tenantstore.DeviceDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &tenantstore.DeviceDao{}, "tenant_id")
	}, func(ctx context.Context, db *bun.DB) error {
		zap.L().Info("dropping device_credentials table...")
		return mghelper.DropTables(ctx, db, &tenantstore.DeviceDao{})
	})
}
