package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/config"
	mghelper "github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/dbutil/migrations"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/migrations/localdb"
	"github.com/BezelexMarketing/asset-tracker-web-sub001/pkg/sqliteutil"
)

func main() {
	cfgPath := flag.String("config", "config.syncd.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	cfg, err := config.LoadSyncd(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("error creating logger: %s", err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	db, err := sqliteutil.Open(ctx, &cfg.Store)
	if err != nil {
		logger.Fatal("error opening local store", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	logger.Info("Running migrations for local store", zap.String("path", cfg.Store.Path))

	migrator := migrate.NewMigrator(db, localdb.Migrations)
	if err := mghelper.RunMigrations(ctx, migrator, logger, flag.Args()...); err != nil {
		if errors.Is(err, mghelper.ErrNoCommand) {
			flag.Usage()
		}
		logger.Fatal("migration failed", zap.Error(err))
	}
}
