package localdb

import (
	"context"

	"github.com/uptrace/bun"

	mghelper "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/dbutil/migrations"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/localstore"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		if err := mghelper.CreateSchema(ctx, db, &localstore.IDRemapDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &localstore.IDRemapDao{}, "new_id")
	}, func(ctx context.Context, db *bun.DB) error {
		return mghelper.DropTables(ctx, db, &localstore.IDRemapDao{})
	})
}
