package database

import (
	"fmt"
	"strings"
	"time"

	"csgo-floatdb/internal/logger"
	"csgo-floatdb/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Initialize opens the store and provisions the schema. Any error here is a setup
// failure and the caller should not continue without persistence.
func Initialize(driver, dsn string) (*gorm.DB, error) {
	log := logger.WithComponent("database")

	dialector, err := openDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if strings.EqualFold(driver, DriverSQLite) {
		// one writer at a time; in-memory databases also vanish when the last connection closes
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.WithField("driver", driver).Info("database initialized")
	return db, nil
}

func openDialector(driver, dsn string) (gorm.Dialector, error) {
	switch strings.ToLower(driver) {
	case "", DriverMySQL:
		return mysql.Open(dsn), nil
	case DriverPostgres, "postgresql":
		return postgres.Open(dsn), nil
	case DriverSQLite:
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Migrate creates the items and history tables with their unique and lookup indexes.
// It is idempotent.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Item{}, &models.HistoryEntry{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	for _, idx := range []string{"idx_items_identity", "idx_items_floatid", "idx_items_rank"} {
		if !db.Migrator().HasIndex(&models.Item{}, idx) {
			if err := db.Migrator().CreateIndex(&models.Item{}, idx); err != nil {
				return fmt.Errorf("failed to create index %s: %w", idx, err)
			}
		}
	}
	return nil
}
