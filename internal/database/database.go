package database

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/akopjandvd/todo-api/internal/config"
	"github.com/akopjandvd/todo-api/internal/logger"
	"github.com/akopjandvd/todo-api/internal/models"
)

// Connect opens the database selected by cfg.DBDriver.
func Connect(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	level := gormlogger.Warn
	if !cfg.IsRelease() {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(log, level),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBDriver == config.DriverSQLite {
		// sqlite allows a single writer; serialize through one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	log.Info().Str("driver", cfg.DBDriver).Msg("database connection established")
	return db, nil
}

func dialectorFor(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		return sqlite.Open(cfg.DBSQLitePath), nil
	case config.DriverPostgres:
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DBHost,
			cfg.DBUser,
			cfg.DBPassword,
			cfg.DBName,
			cfg.DBPort,
		)
		return postgres.Open(dsn), nil
	case config.DriverMySQL:
		return mysql.Open(mysqlDSN(cfg)), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
	}
}

// Migrate creates or updates the users and tasks tables and their indexes.
func Migrate(db *gorm.DB, log zerolog.Logger) error {
	log.Info().Msg("running database migrations")
	if err := db.AutoMigrate(
		&models.User{},
		&models.Task{},
	); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := AddIndexes(db, log); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}
	log.Info().Msg("database migrations completed")
	return nil
}

// mysqlDSN sets clientFoundRows so RowsAffected counts matched rows. Without it
// an update that changes nothing reports zero rows.
func mysqlDSN(cfg *config.Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC&clientFoundRows=true",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
	)
}
