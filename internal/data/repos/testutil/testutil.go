package testutil

import (
	"fmt"
	"os"
	"sync/atomic"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/travelplanner-backend/internal/db"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

var dbSeq atomic.Int64

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.NewNop()
}

// DB returns a migrated database. TEST_POSTGRES_DSN selects postgres;
// otherwise every call gets its own in-memory sqlite database.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	}

	var dialector gorm.Dialector
	if dsn := os.Getenv("TEST_POSTGRES_DSN"); dsn != "" {
		dialector = postgres.Open(dsn)
	} else {
		name := fmt.Sprintf("file:planner_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
		dialector = sqlite.Open(name)
	}

	gdb, err := gorm.Open(dialector, cfg)
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		tb.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := db.AutoMigrateAll(gdb); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	return gdb
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
