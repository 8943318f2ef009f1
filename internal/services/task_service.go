package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/akopjandvd/todo-api/internal/constants"
	"github.com/akopjandvd/todo-api/internal/models"
	"github.com/akopjandvd/todo-api/internal/repository"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrTitleRequired      = errors.New("title is required")
	ErrTitleTooLong       = errors.New("title must be at most 200 characters")
	ErrDescriptionTooLong = errors.New("description must be at most 300 characters")
	ErrTagsTooLong        = errors.New("tags must be at most 255 characters")
	ErrInvalidPriority    = errors.New("priority must be one of: low, medium, high")
)

// TaskService handles task business logic. Every method is scoped to the
// owner passed in, so one user can never see or change another user's tasks.
type TaskService struct {
	taskRepo repository.TaskRepository
}

// NewTaskService creates a new TaskService
func NewTaskService(taskRepo repository.TaskRepository) *TaskService {
	return &TaskService{
		taskRepo: taskRepo,
	}
}

// ListTasksInput represents filters for listing tasks
type ListTasksInput struct {
	OwnerID   uint64
	Completed *bool
	Page      int
	PageSize  int
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	OwnerID     uint64
	Title       string
	Description string
	Completed   bool
	DueDate     *time.Time
	Priority    models.Priority
	Tags        string
	Pinned      bool
}

// TaskPatch lists the fields to change. Nil fields are left alone; ClearDueDate
// removes the due date.
type TaskPatch struct {
	Title        *string
	Description  *string
	Completed    *bool
	DueDate      *time.Time
	ClearDueDate bool
	Priority     *models.Priority
	Tags         *string
	Pinned       *bool
}

// ListTasks returns one page of the owner's tasks in display order
func (s *TaskService) ListTasks(ctx context.Context, input ListTasksInput) ([]models.Task, int64, error) {
	tasks, total, err := s.taskRepo.List(ctx, repository.TaskFilter{
		OwnerID:   input.OwnerID,
		Completed: input.Completed,
		Page:      input.Page,
		PageSize:  input.PageSize,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, total, nil
}

// ExportTasks returns every task of the owner in display order
func (s *TaskService) ExportTasks(ctx context.Context, ownerID uint64) ([]models.Task, error) {
	tasks, _, err := s.taskRepo.List(ctx, repository.TaskFilter{OwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("failed to export tasks: %w", err)
	}
	return tasks, nil
}

// GetTask returns a task only if it belongs to ownerID
func (s *TaskService) GetTask(ctx context.Context, taskID, ownerID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindForOwner(ctx, taskID, ownerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	return task, nil
}

// CreateTask validates and stores a new task owned by input.OwnerID
func (s *TaskService) CreateTask(ctx context.Context, input CreateTaskInput) (*models.Task, error) {
	if input.Priority == "" {
		input.Priority = models.PriorityMedium
	}

	task := models.Task{
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Completed:   input.Completed,
		DueDate:     input.DueDate,
		Priority:    input.Priority,
		Tags:        input.Tags,
		Pinned:      input.Pinned,
		OwnerID:     input.OwnerID,
	}
	if err := validateTask(task); err != nil {
		return nil, err
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return &task, nil
}

// UpdateTask re-reads the task under ownerID, applies patch and saves it
func (s *TaskService) UpdateTask(ctx context.Context, taskID, ownerID uint64, patch TaskPatch) (*models.Task, error) {
	current, err := s.GetTask(ctx, taskID, ownerID)
	if err != nil {
		return nil, err
	}

	updated, err := ApplyTaskPatch(*current, patch)
	if err != nil {
		return nil, err
	}

	if err := s.taskRepo.Update(ctx, &updated); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return &updated, nil
}

// DeleteTask removes a task only if it belongs to ownerID
func (s *TaskService) DeleteTask(ctx context.Context, taskID, ownerID uint64) error {
	if err := s.taskRepo.DeleteForOwner(ctx, taskID, ownerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// ApplyTaskPatch returns a copy of task with patch applied. ID, OwnerID and
// CreatedAt are never touched. The result is validated before it is returned.
func ApplyTaskPatch(task models.Task, patch TaskPatch) (models.Task, error) {
	if patch.Title != nil {
		task.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
	}
	switch {
	case patch.ClearDueDate:
		task.DueDate = nil
	case patch.DueDate != nil:
		due := *patch.DueDate
		task.DueDate = &due
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.Tags != nil {
		task.Tags = *patch.Tags
	}
	if patch.Pinned != nil {
		task.Pinned = *patch.Pinned
	}

	if err := validateTask(task); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func validateTask(task models.Task) error {
	switch {
	case task.Title == "":
		return ErrTitleRequired
	case utf8.RuneCountInString(task.Title) > constants.MaxTaskTitleLength:
		return ErrTitleTooLong
	case utf8.RuneCountInString(task.Description) > constants.MaxTaskDescriptionLength:
		return ErrDescriptionTooLong
	case utf8.RuneCountInString(task.Tags) > constants.MaxTaskTagsLength:
		return ErrTagsTooLong
	case !task.Priority.Valid():
		return ErrInvalidPriority
	}
	return nil
}
