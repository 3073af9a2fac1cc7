package dbaccess

import (
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/mysql"

	"github.com/dagrollup/rollupcore/internal/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.PERS)

// DatabaseContext wraps the mysql-backed gorm connection every dbaccess
// query runs against. Adapted from this file's original raw-KV
// DatabaseContext into a gorm connection holder, following the
// gorm+mysql-dialect+golang-migrate wiring apiserver/main.go sets up for
// the DAG-API server's own mysql-backed store.
type DatabaseContext struct {
	DB *gorm.DB
}

// Config carries the connection parameters needed to open and migrate the
// backing store.
type Config struct {
	DSN            string
	MigrationsPath string
	MaxOpenConns   int
	MaxIdleConns   int
}

// New applies every pending migration under cfg.MigrationsPath, opens a
// mysql connection per cfg, and returns a DatabaseContext ready for use by
// infrastructure/db/storage.
func New(cfg Config) (*DatabaseContext, error) {
	if err := migrateUp(cfg); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	db, err := gorm.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.DB().SetMaxOpenConns(cfg.MaxOpenConns)
	db.DB().SetMaxIdleConns(cfg.MaxIdleConns)

	log.Infof("connected to database, migrations applied from %s", cfg.MigrationsPath)
	return &DatabaseContext{DB: db}, nil
}

func migrateUp(cfg Config) error {
	m, err := migrate.New("file://"+cfg.MigrationsPath, "mysql://"+cfg.DSN)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

// Close releases the underlying connection.
func (ctx *DatabaseContext) Close() error {
	return ctx.DB.Close()
}
