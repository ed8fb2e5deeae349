package localdb

import (
	"context"

	"github.com/uptrace/bun"

	mghelper "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/dbutil/migrations"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/localstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return mghelper.CreateSchema(ctx, db, &localstore.SyncStateDao{}, &localstore.SettingDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &localstore.SyncStateDao{}, &localstore.SettingDao{})
	})
}
