// Package testutil holds helpers shared by package tests.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/akopjandvd/todo-api/internal/database"
	"github.com/akopjandvd/todo-api/internal/logger"
)

// NewDB returns a migrated in-memory sqlite database that is closed when the test ends.
// The pool is pinned to one connection so every query sees the same in-memory database.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db, logger.Nop()))
	return db
}
