package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/akopjandvd/todo-api/internal/models"
)

// ErrDuplicateUsername is returned by UserRepository.Create when the unique index rejects the username.
var ErrDuplicateUsername = errors.New("user repository: username already exists")

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create inserts a new user; the unique index on username decides races
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByUsername finds a user by exact, case-sensitive username
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// TaskRepository defines the interface for task data access. Every method is
// scoped to a single owner.
type TaskRepository interface {
	// Create creates a new task
	Create(ctx context.Context, task *models.Task) error

	// FindForOwner finds a task by ID only if it belongs to ownerID
	FindForOwner(ctx context.Context, id, ownerID uint64) (*models.Task, error)

	// List retrieves an owner's tasks ordered by pinned, priority, due date
	List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error)

	// Update persists the mutable fields of a task owned by task.OwnerID
	Update(ctx context.Context, task *models.Task) error

	// DeleteForOwner deletes a task by ID only if it belongs to ownerID
	DeleteForOwner(ctx context.Context, id, ownerID uint64) error
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	OwnerID   uint64
	Completed *bool
	Page      int
	PageSize  int
}

// isUniqueViolation matches the translated gorm error, with a message fallback
// for drivers that do not implement error translation.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key")
}
