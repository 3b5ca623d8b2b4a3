package db

import (
	"fmt"

	"github.com/shoreline-games/shorebot/config"
	dbmysql "github.com/shoreline-games/shorebot/db/mysql"
	dbsqlite "github.com/shoreline-games/shorebot/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeSQLite = "sqlite"
	ModeMySQL  = "mysql"
)

// MemoryPath opens an in-memory SQLite database; used by tests.
const MemoryPath = ":memory:"

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
