package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// registerTestTable registers the test_table migration. bun names a migration
// after the file calling MustRegister, so it has to live in a versioned file.
func registerTestTable(ms *migrate.Migrations) {
	ms.MustRegister(func(ctx context.Context, db *bun.DB) error {
		return CreateSchema(ctx, db, &testDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		return DropTables(ctx, db, &testDao{})
	})
}
