package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/ignite/resource-workflow/internal/pkg/logger"
)

// MigrateConfig selects the target of a migration run. Zero values migrate
// up to the latest version.
type MigrateConfig struct {
	Version uint // migrate to this version instead of the latest
	Force   int  // mark the schema clean at this version before migrating
	Down    bool // roll every migration back
}

// migrationLogger adapts the service logger to migrate.Logger.
type migrationLogger struct{ log *logger.Logger }

func (l migrationLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...))
}

func (l migrationLogger) Verbose() bool { return false }

// Migrate applies the embedded migrations in fsys to db.
func Migrate(db *sql.DB, fsys fs.FS, cfg MigrateConfig) error {
	log := logger.Component("migrate")

	src, err := iofs.New(fsys, ".")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	drv, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("open migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", drv)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	m.Log = migrationLogger{log: log}

	if cfg.Force != 0 {
		if err := m.Force(cfg.Force); err != nil {
			return fmt.Errorf("force version %d: %w", cfg.Force, err)
		}
	}

	before, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("read schema version: %w", verr)
	}
	if dirty {
		return fmt.Errorf("schema is dirty at version %d; force a version first", before)
	}

	start := time.Now()
	switch {
	case cfg.Down:
		err = m.Down()
	case cfg.Version != 0:
		err = m.Migrate(cfg.Version)
	default:
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("no new migrations to apply", "version", before)
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	after, _, _ := m.Version()
	log.Info("migrations applied", "from", before, "to", after, "elapsed", time.Since(start).String())
	return nil
}
