// Package tenantdb holds all the migrations for the tenant API database
package tenantdb

import "github.com/uptrace/bun/migrate"

// Migrations is the collection of all migrations for the tenant API database
var Migrations = migrate.NewMigrations()
