package database

import (
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/akopjandvd/todo-api/internal/models"
)

type index struct {
	name    string
	columns string
}

// taskIndexes back the owner-scoped list ordering and the completed filter.
var taskIndexes = []index{
	{"idx_tasks_owner_order", "owner_id, pinned, priority, due_date"},
	{"idx_tasks_owner_completed", "owner_id, completed"},
}

// AddIndexes creates the composite task indexes that AutoMigrate does not know about.
func AddIndexes(db *gorm.DB, log zerolog.Logger) error {
	migrator := db.Migrator()
	for _, idx := range taskIndexes {
		if migrator.HasIndex(&models.Task{}, idx.name) {
			log.Debug().Str("index", idx.name).Msg("index already exists, skipping")
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON tasks (%s)", idx.name, idx.columns)
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
		log.Info().Str("index", idx.name).Str("columns", idx.columns).Msg("created index")
	}
	return nil
}
