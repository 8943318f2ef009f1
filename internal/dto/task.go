package dto

import (
	"time"

	"github.com/akopjandvd/todo-api/internal/models"
	"github.com/akopjandvd/todo-api/internal/utils"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// TokenResponse is returned by the token and refresh endpoints
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	// ExpiresIn is the token lifetime in seconds
	ExpiresIn int64 `json:"expires_in"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID          uint64          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Completed   bool            `json:"completed"`
	DueDate     *time.Time      `json:"due_date"`
	Priority    models.Priority `json:"priority"`
	Tags        string          `json:"tags"`
	Pinned      bool            `json:"pinned"`
	OwnerID     uint64          `json:"owner_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO                `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// MessageResponse carries a plain confirmation message
type MessageResponse struct {
	Message string `json:"message"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:       user.ID,
		Username: user.Username,
	}
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	return TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Completed:   task.Completed,
		DueDate:     task.DueDate,
		Priority:    task.Priority,
		Tags:        task.Tags,
		Pinned:      task.Pinned,
		OwnerID:     task.OwnerID,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// ToTaskDTOs converts a slice of tasks, never returning nil
func ToTaskDTOs(tasks []models.Task) []TaskDTO {
	out := make([]TaskDTO, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, ToTaskDTO(t))
	}
	return out
}
