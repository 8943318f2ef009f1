package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/akopjandvd/todo-api/internal/database"
	"github.com/akopjandvd/todo-api/internal/models"
	"github.com/akopjandvd/todo-api/internal/utils"
)

// taskOrder: pinned first, then priority high to low, then due date with NULLs last.
var taskOrder = []string{
	"tasks.pinned DESC",
	models.PriorityRankExpr("tasks.priority") + " DESC",
	"CASE WHEN tasks.due_date IS NULL THEN 1 ELSE 0 END",
	"tasks.due_date ASC",
	"tasks.id ASC",
}

// updatableTaskColumns never includes owner_id or created_at.
var updatableTaskColumns = []string{
	"title", "description", "completed", "due_date", "priority", "tags", "pinned", "updated_at",
}

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// FindForOwner finds a task by ID within one owner's tasks
func (r *GormTaskRepository) FindForOwner(ctx context.Context, id, ownerID uint64) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).
		Scopes(database.OwnedBy(ownerID)).
		Where("tasks.id = ?", id).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Task{}).Scopes(database.OwnedBy(filter.OwnerID))

	if filter.Completed != nil {
		query = query.Where("tasks.completed = ?", *filter.Completed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query
	for _, order := range taskOrder {
		listQuery = listQuery.Order(order)
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		listQuery = listQuery.Scopes(database.Paginate(utils.PaginationParams{
			Page:   filter.Page,
			Limit:  filter.PageSize,
			Offset: (filter.Page - 1) * filter.PageSize,
		}))
	}

	tasks := []models.Task{}
	if err := listQuery.Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Update writes the mutable columns, matching on both id and owner_id
func (r *GormTaskRepository) Update(ctx context.Context, task *models.Task) error {
	result := r.db.WithContext(ctx).
		Model(task).
		Where("owner_id = ?", task.OwnerID).
		Select(updatableTaskColumns).
		Updates(task)
	if result.Error != nil {
		return fmt.Errorf("task repository: update task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteForOwner deletes a task, reporting gorm.ErrRecordNotFound when nothing matched
func (r *GormTaskRepository) DeleteForOwner(ctx context.Context, id, ownerID uint64) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&models.Task{})
	if result.Error != nil {
		return fmt.Errorf("task repository: delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
