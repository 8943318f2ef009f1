package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/akopjandvd/todo-api/internal/dto"
	apierrors "github.com/akopjandvd/todo-api/internal/errors"
	"github.com/akopjandvd/todo-api/internal/middleware"
	"github.com/akopjandvd/todo-api/internal/models"
	"github.com/akopjandvd/todo-api/internal/services"
	"github.com/akopjandvd/todo-api/internal/utils"
)

type TaskHandler struct {
	taskService *services.TaskService
	log         zerolog.Logger
}

func NewTaskHandler(taskService *services.TaskService, log zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		log:         log,
	}
}

type createTaskRequest struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Completed   bool            `json:"completed"`
	DueDate     *time.Time      `json:"due_date"`
	Priority    models.Priority `json:"priority" binding:"omitempty,oneof=low medium high"`
	Tags        string          `json:"tags"`
	Pinned      bool            `json:"pinned"`
}

type updateTaskRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Completed   *bool            `json:"completed"`
	DueDate     *time.Time       `json:"due_date"`
	Priority    *models.Priority `json:"priority" binding:"omitempty,oneof=low medium high"`
	Tags        *string          `json:"tags"`
	Pinned      *bool            `json:"pinned"`
}

// ListTasks returns the current user's tasks, pinned first
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	var completed *bool
	if raw := c.Query("completed"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			apierrors.BadRequest(c, "Invalid completed filter")
			return
		}
		completed = &v
	}

	params := utils.GetPaginationParams(c)
	tasks, total, err := h.taskService.ListTasks(c.Request.Context(), services.ListTasksInput{
		OwnerID:   userID,
		Completed: completed,
		Page:      params.Page,
		PageSize:  params.Limit,
	})
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.TaskListResponse{
		Tasks: dto.ToTaskDTOs(tasks),
		Pagination: utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	})
}

// GetTask returns a specific task by ID
// Task is already loaded by RequireTaskAccess middleware
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(task))
}

// CreateTask creates a new task owned by the current user
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), services.CreateTaskInput{
		OwnerID:     userID,
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Tags:        req.Tags,
		Pinned:      req.Pinned,
	})
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// UpdateTask applies the fields present in the body. Sending "due_date": null
// clears the due date.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	taskID, ok := middleware.ParseTaskID(c)
	if !ok {
		return
	}
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		apierrors.BindingError(c, err)
		return
	}
	// Parse raw JSON to detect which fields were sent
	var raw map[string]json.RawMessage
	if err := c.ShouldBindBodyWithJSON(&raw); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	patch := services.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
		DueDate:     req.DueDate,
		Priority:    req.Priority,
		Tags:        req.Tags,
		Pinned:      req.Pinned,
	}
	if v, sent := raw["due_date"]; sent && string(bytes.TrimSpace(v)) == "null" {
		patch.ClearDueDate = true
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), taskID, userID, patch)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	taskID, ok := middleware.ParseTaskID(c)
	if !ok {
		return
	}
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), taskID, userID); err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "Task deleted successfully"})
}

var exportHeader = []string{
	"id", "title", "description", "completed", "due_date", "priority", "tags", "pinned", "created_at", "updated_at",
}

// ExportTasks writes every task of the current user as CSV
func (h *TaskHandler) ExportTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	tasks, err := h.taskService.ExportTasks(c.Request.Context(), userID)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(exportHeader)
	for _, t := range tasks {
		due := ""
		if t.DueDate != nil {
			due = t.DueDate.UTC().Format(time.RFC3339)
		}
		_ = w.Write([]string{
			strconv.FormatUint(t.ID, 10),
			csvCell(t.Title),
			csvCell(t.Description),
			strconv.FormatBool(t.Completed),
			due,
			string(t.Priority),
			csvCell(t.Tags),
			strconv.FormatBool(t.Pinned),
			t.CreatedAt.UTC().Format(time.RFC3339),
			t.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="tasks.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// csvCell stops spreadsheet applications from evaluating user text as a formula.
func csvCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

func (h *TaskHandler) respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, "Task not found")
	case errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrTitleTooLong),
		errors.Is(err, services.ErrDescriptionTooLong),
		errors.Is(err, services.ErrTagsTooLong),
		errors.Is(err, services.ErrInvalidPriority):
		apierrors.BadRequest(c, err.Error())
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("task request failed")
		apierrors.InternalError(c, "")
	}
}
