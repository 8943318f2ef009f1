package middleware

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/akopjandvd/todo-api/internal/constants"
	apierrors "github.com/akopjandvd/todo-api/internal/errors"
	"github.com/akopjandvd/todo-api/internal/models"
	"github.com/akopjandvd/todo-api/internal/services"
)

// TaskFinder looks up a task within one owner's tasks.
type TaskFinder interface {
	GetTask(ctx context.Context, taskID, ownerID uint64) (*models.Task, error)
}

// RequireTaskAccess loads the task named by :id for the current user.
// Tasks owned by someone else are reported as not found.
func RequireTaskAccess(tasks TaskFinder, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		taskID, ok := ParseTaskID(c)
		if !ok {
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			return
		}

		task, err := tasks.GetTask(c.Request.Context(), taskID, userID)
		if err != nil {
			if errors.Is(err, services.ErrTaskNotFound) {
				apierrors.NotFound(c, "Task not found")
				return
			}
			log.Error().Err(err).Uint64("task_id", taskID).Msg("failed to load task")
			apierrors.InternalError(c, "")
			return
		}

		c.Set(constants.ContextKeyTask, *task)
		c.Next()
	}
}

// ParseTaskID reads :id, answering 400 itself when it is not a positive integer.
func ParseTaskID(c *gin.Context) (uint64, bool) {
	taskID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || taskID == 0 {
		apierrors.BadRequest(c, "Invalid task ID")
		return 0, false
	}
	return taskID, true
}

// GetTask retrieves the task stored by RequireTaskAccess
func GetTask(c *gin.Context) (models.Task, bool) {
	v, exists := c.Get(constants.ContextKeyTask)
	if !exists {
		return models.Task{}, false
	}
	task, ok := v.(models.Task)
	return task, ok
}
