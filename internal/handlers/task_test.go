package handlers

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/akopjandvd/todo-api/internal/constants"
	"github.com/akopjandvd/todo-api/internal/dto"
	apierrors "github.com/akopjandvd/todo-api/internal/errors"
	"github.com/akopjandvd/todo-api/internal/logger"
	"github.com/akopjandvd/todo-api/internal/middleware"
	"github.com/akopjandvd/todo-api/internal/models"
	"github.com/akopjandvd/todo-api/internal/repository"
	"github.com/akopjandvd/todo-api/internal/services"
	"github.com/akopjandvd/todo-api/internal/testutil"
)

// TaskHandlerTestSuite defines the test suite for TaskHandler
type TaskHandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
	alice  models.User
	bob    models.User
}

// SetupTest runs before each test
func (suite *TaskHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	apierrors.UseJSONFieldNames()

	suite.db = testutil.NewDB(suite.T())
	suite.alice = suite.createTestUser("alice")
	suite.bob = suite.createTestUser("bob")

	taskService := services.NewTaskService(repository.NewTaskRepository(suite.db))
	handler := NewTaskHandler(taskService, logger.Nop())

	// X-Test-User stands in for RequireAuth
	users := map[string]models.User{"alice": suite.alice, "bob": suite.bob}
	fakeAuth := func(c *gin.Context) {
		user, ok := users[c.GetHeader("X-Test-User")]
		if !ok {
			apierrors.Unauthorized(c, "")
			return
		}
		c.Set(constants.ContextKeyUser, &user)
		c.Set(constants.ContextKeyUserID, user.ID)
	}

	suite.router = gin.New()
	tasks := suite.router.Group("/api/tasks", fakeAuth)
	tasks.GET("", handler.ListTasks)
	tasks.GET("/export", handler.ExportTasks)
	tasks.POST("", handler.CreateTask)
	tasks.GET("/:id", middleware.RequireTaskAccess(taskService, logger.Nop()), handler.GetTask)
	tasks.PATCH("/:id", handler.UpdateTask)
	tasks.PUT("/:id", handler.UpdateTask)
	tasks.DELETE("/:id", handler.DeleteTask)
}

func (suite *TaskHandlerTestSuite) createTestUser(username string) models.User {
	user := models.User{Username: username, PasswordHash: "hashedpassword"}
	suite.Require().NoError(suite.db.Create(&user).Error)
	return user
}

func (suite *TaskHandlerTestSuite) createTestTask(owner models.User, title string) models.Task {
	task := models.Task{Title: title, Description: "Test Description", Priority: models.PriorityMedium, OwnerID: owner.ID}
	suite.Require().NoError(suite.db.Create(&task).Error)
	return task
}

func (suite *TaskHandlerTestSuite) do(method, path, user string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *TaskHandlerTestSuite) decodeTask(w *httptest.ResponseRecorder) dto.TaskDTO {
	var task dto.TaskDTO
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &task))
	return task
}

// TestCreateTask_Success tests creating a task with every field
func (suite *TaskHandlerTestSuite) TestCreateTask_Success() {
	w := suite.do(http.MethodPost, "/api/tasks", "alice", map[string]any{
		"title":    "Write report",
		"priority": "high",
		"pinned":   true,
		"tags":     "work,urgent",
		"due_date": "2025-06-01T09:00:00Z",
	})

	suite.Require().Equal(http.StatusOK, w.Code)
	task := suite.decodeTask(w)
	suite.Equal("Write report", task.Title)
	suite.Equal(models.PriorityHigh, task.Priority)
	suite.True(task.Pinned)
	suite.Equal(suite.alice.ID, task.OwnerID)
	suite.Require().NotNil(task.DueDate)
}

// TestCreateTask_Invalid tests the validation responses
func (suite *TaskHandlerTestSuite) TestCreateTask_Invalid() {
	cases := map[string]any{
		"missing title":  map[string]any{"description": "x"},
		"blank title":    map[string]any{"title": "   "},
		"bad priority":   map[string]any{"title": "t", "priority": "urgent"},
		"malformed json": "{",
		"bad due date":   map[string]any{"title": "t", "due_date": "tomorrow"},
	}
	for name, body := range cases {
		w := suite.do(http.MethodPost, "/api/tasks", "alice", body)
		suite.Equal(http.StatusBadRequest, w.Code, name)
		suite.Contains(w.Body.String(), apierrors.ErrCodeInvalidInput, name)
	}
}

// TestCreateTask_Unauthorized tests creating without authentication
func (suite *TaskHandlerTestSuite) TestCreateTask_Unauthorized() {
	w := suite.do(http.MethodPost, "/api/tasks", "", map[string]any{"title": "t"})
	suite.Equal(http.StatusUnauthorized, w.Code)
}

// TestListTasks_OrderAndScope tests ordering and owner isolation
func (suite *TaskHandlerTestSuite) TestListTasks_OrderAndScope() {
	suite.do(http.MethodPost, "/api/tasks", "alice", map[string]any{"title": "low", "priority": "low"})
	suite.do(http.MethodPost, "/api/tasks", "alice", map[string]any{"title": "pinned", "priority": "low", "pinned": true})
	suite.do(http.MethodPost, "/api/tasks", "alice", map[string]any{"title": "high", "priority": "high"})
	suite.createTestTask(suite.bob, "bob's task")

	w := suite.do(http.MethodGet, "/api/tasks", "alice", nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	var response dto.TaskListResponse
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	suite.Equal(int64(3), response.Pagination.Total)
	suite.Equal(1, response.Pagination.Page)
	suite.Equal(constants.DefaultPageSize, response.Pagination.Limit)

	titles := make([]string, 0, len(response.Tasks))
	for _, t := range response.Tasks {
		titles = append(titles, t.Title)
	}
	suite.Equal([]string{"pinned", "high", "low"}, titles)
}

// TestListTasks_Empty tests that an empty list is an array, not null
func (suite *TaskHandlerTestSuite) TestListTasks_Empty() {
	w := suite.do(http.MethodGet, "/api/tasks", "bob", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"tasks":[]`)
}

// TestListTasks_CompletedFilter tests the completed query parameter
func (suite *TaskHandlerTestSuite) TestListTasks_CompletedFilter() {
	done := suite.createTestTask(suite.alice, "done")
	suite.Require().NoError(suite.db.Model(&done).Update("completed", true).Error)
	suite.createTestTask(suite.alice, "open")

	w := suite.do(http.MethodGet, "/api/tasks?completed=true", "alice", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), `"title":"done"`)
	suite.NotContains(w.Body.String(), `"title":"open"`)

	w = suite.do(http.MethodGet, "/api/tasks?completed=maybe", "alice", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

// TestGetTask tests access through RequireTaskAccess
func (suite *TaskHandlerTestSuite) TestGetTask() {
	task := suite.createTestTask(suite.alice, "Test Task")
	path := fmt.Sprintf("/api/tasks/%d", task.ID)

	w := suite.do(http.MethodGet, path, "alice", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Equal("Test Task", suite.decodeTask(w).Title)

	w = suite.do(http.MethodGet, path, "bob", nil)
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.do(http.MethodGet, "/api/tasks/abc", "alice", nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

// TestUpdateTask_Partial tests that omitted fields are kept
func (suite *TaskHandlerTestSuite) TestUpdateTask_Partial() {
	task := suite.createTestTask(suite.alice, "Original")
	path := fmt.Sprintf("/api/tasks/%d", task.ID)

	w := suite.do(http.MethodPatch, path, "alice", map[string]any{
		"completed": true,
		"due_date":  "2025-06-01T09:00:00Z",
	})
	suite.Require().Equal(http.StatusOK, w.Code)
	updated := suite.decodeTask(w)
	suite.Equal("Original", updated.Title)
	suite.Equal("Test Description", updated.Description)
	suite.True(updated.Completed)
	suite.Require().NotNil(updated.DueDate)

	w = suite.do(http.MethodPut, path, "alice", `{"due_date": null}`)
	suite.Require().Equal(http.StatusOK, w.Code)
	cleared := suite.decodeTask(w)
	suite.Nil(cleared.DueDate)
	suite.True(cleared.Completed)
}

// TestUpdateTask_OtherUser tests that a foreign task looks missing
func (suite *TaskHandlerTestSuite) TestUpdateTask_OtherUser() {
	task := suite.createTestTask(suite.alice, "Original")

	w := suite.do(http.MethodPatch, fmt.Sprintf("/api/tasks/%d", task.ID), "bob", map[string]any{"title": "mine now"})
	suite.Equal(http.StatusNotFound, w.Code)

	var reloaded models.Task
	suite.Require().NoError(suite.db.First(&reloaded, task.ID).Error)
	suite.Equal("Original", reloaded.Title)
	suite.Equal(suite.alice.ID, reloaded.OwnerID)
}

// TestUpdateTask_Invalid tests validation on update
func (suite *TaskHandlerTestSuite) TestUpdateTask_Invalid() {
	task := suite.createTestTask(suite.alice, "Original")
	path := fmt.Sprintf("/api/tasks/%d", task.ID)

	suite.Equal(http.StatusBadRequest, suite.do(http.MethodPatch, path, "alice", map[string]any{"title": ""}).Code)
	suite.Equal(http.StatusBadRequest, suite.do(http.MethodPatch, path, "alice", map[string]any{"priority": "urgent"}).Code)
	suite.Equal(http.StatusBadRequest, suite.do(http.MethodPatch, path, "alice", "[1,2]").Code)
	suite.Equal(http.StatusBadRequest, suite.do(http.MethodPatch, "/api/tasks/0", "alice", map[string]any{"title": "x"}).Code)
}

// TestDeleteTask tests deleting own and foreign tasks
func (suite *TaskHandlerTestSuite) TestDeleteTask() {
	task := suite.createTestTask(suite.alice, "Task to Delete")
	path := fmt.Sprintf("/api/tasks/%d", task.ID)

	w := suite.do(http.MethodDelete, path, "bob", nil)
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.do(http.MethodDelete, path, "alice", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Body.String(), "Task deleted successfully")

	var count int64
	suite.db.Model(&models.Task{}).Where("id = ?", task.ID).Count(&count)
	suite.Equal(int64(0), count)

	w = suite.do(http.MethodDelete, path, "alice", nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

// TestExportTasks tests the CSV export
func (suite *TaskHandlerTestSuite) TestExportTasks() {
	suite.createTestTask(suite.alice, "=SUM(A1)")
	suite.createTestTask(suite.alice, "plain, with comma")
	suite.createTestTask(suite.bob, "bob's")

	w := suite.do(http.MethodGet, "/api/tasks/export", "alice", nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	suite.Contains(w.Header().Get("Content-Type"), "text/csv")
	suite.Contains(w.Header().Get("Content-Disposition"), "tasks.csv")

	records, err := csv.NewReader(bytes.NewReader(w.Body.Bytes())).ReadAll()
	suite.Require().NoError(err)
	suite.Require().Len(records, 3)
	suite.Equal(exportHeader, records[0])

	titles := []string{records[1][1], records[2][1]}
	suite.ElementsMatch([]string{"'=SUM(A1)", "plain, with comma"}, titles)
}

// TestTaskHandlerTestSuite runs the test suite
func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}

func TestCSVCell(t *testing.T) {
	assert.Equal(t, "'=1+1", csvCell("=1+1"))
	assert.Equal(t, "'-5", csvCell("-5"))
	assert.Equal(t, "milk", csvCell("milk"))
	assert.Equal(t, "", csvCell(""))
}
