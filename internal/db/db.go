package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"meeting-resource-backend/config"
	"meeting-resource-backend/internal/logger"
	"meeting-resource-backend/internal/model"
)

// Models lists every table managed by AutoMigrate, in dependency order.
var Models = []any{
	&model.Company{},
	&model.Branch{},
	&model.Department{},
	&model.Employee{},
	&model.EquipmentType{},
	&model.AssetCategory{},
	&model.Asset{},
	&model.Room{},
	&model.Booking{},
	&model.MaintenanceCategory{},
	&model.MaintenanceTeam{},
	&model.MaintenanceRequest{},
	&model.Sequence{},
	&model.PushSubscription{},
	&model.AssistantCall{},
}

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig, log *logger.Logger) (*gorm.DB, error) {
	log = logger.OrNop(log)
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(logLevel(cfg.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Info("running database migrations", "driver", cfg.Driver)
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if cfg.EnableRangeIndexes && cfg.Driver == "postgres" {
		log.Info("applying partial window indexes")
		if err := applyWindowIndexes(db); err != nil {
			log.Warn("failed to apply window index DDL, continuing without it", "error", err)
		}
	}

	log.Info("database initialization complete")
	return db, nil
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func dialectorFor(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "postgres", "postgresql":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func logLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// windowIndexes are partial b-tree indexes over the active rows only. The
// overlap queries filter on the target column plus "start < ? AND end > ?",
// which a b-tree on (target, start) serves as a range scan.
var windowIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_bookings_active_window ON bookings " +
		"(room_id, start_at, end_at) WHERE state IN ('draft', 'confirmed')",

	"CREATE INDEX IF NOT EXISTS idx_maintenance_room_window ON maintenance_requests " +
		"(room_id, downtime_start, downtime_end) " +
		"WHERE state IN ('submitted', 'in_progress') AND room_id IS NOT NULL",

	"CREATE INDEX IF NOT EXISTS idx_maintenance_asset_window ON maintenance_requests " +
		"(asset_id, downtime_start, downtime_end) " +
		"WHERE state IN ('submitted', 'in_progress') AND asset_id IS NOT NULL",
}

func applyWindowIndexes(db *gorm.DB) error {
	for _, ddl := range windowIndexes {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
