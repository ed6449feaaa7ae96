package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/ignite/resource-workflow/internal/pkg/logger"
	"github.com/ignite/resource-workflow/internal/repository/postgres"
	"github.com/ignite/resource-workflow/migrations"
)

func main() {
	version := flag.Uint("version", 0, "migrate to this version instead of the latest")
	force := flag.Int("force", 0, "mark the schema clean at this version before migrating")
	down := flag.Bool("down", false, "roll back every migration")
	flag.Parse()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := postgres.Open(ctx, dsn, postgres.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		logger.Error("connect failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()

	cfg := postgres.MigrateConfig{Version: *version, Force: *force, Down: *down}
	if err := postgres.Migrate(db.DB, migrations.FS, cfg); err != nil {
		logger.Error("migration failed", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("migrations complete")
}
