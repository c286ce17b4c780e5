package db

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects per the config and optionally migrates. Only the sqlite driver
// is supported; the DSN is resolved through ResolveSQLiteDSN when empty.
func Open(cfg Config) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.Driver) != "sqlite" {
		return nil, fmt.Errorf("unsupported db driver: %s", cfg.Driver)
	}

	dsn, err := ResolveSQLiteDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite dsn: %w", err)
	}

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	}

	if cfg.SQLite.BusyTimeoutMs > 0 {
		if err := gdb.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.SQLite.BusyTimeoutMs)).Error; err != nil {
			return nil, fmt.Errorf("set busy_timeout: %w", err)
		}
	}
	if cfg.SQLite.WAL {
		if err := gdb.Exec("PRAGMA journal_mode = WAL").Error; err != nil {
			return nil, fmt.Errorf("enable wal: %w", err)
		}
	}
	if cfg.SQLite.ForeignKeys {
		if err := gdb.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable foreign_keys: %w", err)
		}
	}

	if cfg.AutoMigrate {
		if err := AutoMigrate(gdb); err != nil {
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return gdb, nil
}
