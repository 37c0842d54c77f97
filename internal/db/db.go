package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	domain "github.com/yungbote/travelplanner-backend/internal/domain/planner"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Service struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

// Open connects with the named driver. sqlite accepts a file path or
// "file::memory:?cache=shared".
func Open(logg *logger.Logger, driver, dsn string) (*Service, error) {
	serviceLog := logg.With("service", "DatabaseService")
	driver = strings.ToLower(strings.TrimSpace(driver))
	if driver == "" {
		driver = DriverPostgres
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required for driver %q", driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer keeps in-memory databases shared and avoids SQLITE_BUSY.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	serviceLog.Info("database connected", "driver", driver)
	return &Service{db: db, driver: driver, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Driver() string { return s.driver }

func (s *Service) AutoMigrate() error {
	s.log.Info("auto migrating planner tables")
	return AutoMigrateAll(s.db)
}

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Plan{},
		&domain.CacheEntry{},
		&domain.Event{},
	)
}
