package db

import (
	"sync"
	"time"

	"github.com/meridian-works/meridian/internal/models"
	"github.com/meridian-works/meridian/pkg/env"
	"github.com/meridian-works/meridian/pkg/log"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	once sync.Once
	conn *gorm.DB
)

// Open connects to the database of the given type. Supported types are
// "postgres" and "sqlite".
func Open(databaseType, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}

	switch databaseType {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	case "sqlite", "":
		gdb, err := gorm.Open(sqlite.Open(dsn), cfg)
		if err != nil {
			return nil, err
		}
		// sqlite serialises writers; a single connection avoids
		// SQLITE_BUSY under concurrent request handlers.
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return gdb, nil
	default:
		return nil, errors.Errorf("unsupported database type %q", databaseType)
	}
}

// Connection returns the process-wide database handle configured by the
// environment, opening it on first use.
func Connection() *gorm.DB {
	once.Do(func() {
		var err error

		vars := env.Variables()
		if conn, err = Open(vars.DatabaseType, vars.DatabaseDSN); err != nil {
			log.Fatal("failed to connect to database", "type", vars.DatabaseType, "error", err)
		}
	})

	return conn
}

// Migrate creates or updates the schema of every model.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(models.All...); err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}
	return nil
}
