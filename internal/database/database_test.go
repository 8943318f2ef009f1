package database

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akopjandvd/todo-api/internal/config"
	"github.com/akopjandvd/todo-api/internal/logger"
	"github.com/akopjandvd/todo-api/internal/models"
)

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		GinMode:      "test",
		DBDriver:     config.DriverSQLite,
		DBSQLitePath: filepath.Join(t.TempDir(), "todo.db"),
	}
}

func TestConnectAndMigrate(t *testing.T) {
	db, err := Connect(sqliteConfig(t), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	require.NoError(t, Migrate(db, logger.Nop()))
	// Running twice must not try to recreate indexes.
	require.NoError(t, Migrate(db, logger.Nop()))

	migrator := db.Migrator()
	assert.True(t, migrator.HasTable(&models.User{}))
	assert.True(t, migrator.HasTable(&models.Task{}))
	for _, idx := range taskIndexes {
		assert.True(t, migrator.HasIndex(&models.Task{}, idx.name), idx.name)
	}
}

func TestDialectorFor(t *testing.T) {
	for _, driver := range []string{config.DriverSQLite, config.DriverPostgres, config.DriverMySQL} {
		cfg := sqliteConfig(t)
		cfg.DBDriver = driver
		d, err := dialectorFor(cfg)
		require.NoError(t, err, driver)
		assert.Equal(t, driver, d.Name())
	}

	cfg := sqliteConfig(t)
	cfg.DBDriver = "oracle"
	_, err := dialectorFor(cfg)
	assert.Error(t, err)
}

func TestMySQLDSN_CountsMatchedRows(t *testing.T) {
	cfg := &config.Config{
		DBDriver:   config.DriverMySQL,
		DBHost:     "db",
		DBPort:     "3306",
		DBUser:     "todo",
		DBPassword: "secret",
		DBName:     "todos",
	}

	dsn := mysqlDSN(cfg)
	assert.True(t, strings.HasPrefix(dsn, "todo:secret@tcp(db:3306)/todos?"), dsn)
	assert.Contains(t, dsn, "clientFoundRows=true")
	assert.Contains(t, dsn, "parseTime=True")
}
