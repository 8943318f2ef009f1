package database

import (
	"gorm.io/gorm"

	"github.com/akopjandvd/todo-api/internal/utils"
)

// OwnedBy restricts a task query to one owner.
func OwnedBy(ownerID uint64) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tasks.owner_id = ?", ownerID)
	}
}

// Paginate applies pagination to a GORM query
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}
