// Package localdb holds all the migrations for the on-device sync database
package localdb

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the on-device database
var Migrations = migrate.NewMigrations()

// Apply initializes the migration tables and runs all pending migrations.
// The sync daemon calls it on startup since a device has no operator to run
// the migrate command.
func Apply(ctx context.Context, db *bun.DB) (*migrate.MigrationGroup, error) {
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to init migrations: %w", err)
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return group, nil
}
