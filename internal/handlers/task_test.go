package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/nocturne-lab/projecthub/internal/constants"
	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/repository"
	"github.com/nocturne-lab/projecthub/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TaskHandlerTestSuite defines the test suite for TaskHandler
type TaskHandlerTestSuite struct {
	suite.Suite
	db      *gorm.DB
	handler *TaskHandler

	user    *models.User
	project *models.Project
}

// SetupTest runs before each test
func (suite *TaskHandlerTestSuite) SetupTest() {
	var err error

	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = suite.db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.OrganizationMember{},
		&models.Project{},
		&models.Task{},
		&models.TaskAssignment{},
		&models.TaskDependency{},
		&models.TaskWatcher{},
		&models.Comment{},
	)
	suite.Require().NoError(err)

	taskService := services.NewTaskService(
		repository.NewTaskRepository(suite.db),
		repository.NewProjectRepository(suite.db),
		repository.NewCommentRepository(suite.db),
		nil,
		nil,
	)
	suite.handler = NewTaskHandler(taskService)

	gin.SetMode(gin.TestMode)

	suite.user = &models.User{Username: "frank", Email: "frank@example.com", PasswordHash: "x"}
	suite.Require().NoError(suite.db.Create(suite.user).Error)
	org := &models.Organization{Name: "Test Org", InviteCode: "TEST_CODE"}
	suite.Require().NoError(suite.db.Create(org).Error)
	suite.Require().NoError(suite.db.Create(&models.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         suite.user.ID,
		Role:           models.RoleOwner,
	}).Error)
	suite.project = &models.Project{Name: "Test Project", OrganizationID: org.ID, OwnerID: suite.user.ID}
	suite.Require().NoError(suite.db.Create(suite.project).Error)
}

// TearDownTest runs after each test
func (suite *TaskHandlerTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *TaskHandlerTestSuite) createTestTask(title string, status models.TaskStatus) *models.Task {
	task := &models.Task{
		Title:     title,
		Status:    status,
		Priority:  models.TaskPriorityMedium,
		ProjectID: suite.project.ID,
		CreatorID: suite.user.ID,
	}
	suite.db.Create(task)
	return task
}

// Helper function to create an authenticated context with the task
// already resolved, as the access middleware would leave it.
func (suite *TaskHandlerTestSuite) createTaskContext(method, url string, body []byte, task *models.Task) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, url, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, url, nil)
	}

	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set(constants.ContextKeyUserID, suite.user.ID)
	c.Set(constants.ContextKeyTask, *task)

	return c, w
}

func (suite *TaskHandlerTestSuite) addDependency(task, dependsOn *models.Task) {
	body, _ := json.Marshal(map[string]interface{}{"depends_on_task_id": dependsOn.ID})
	c, w := suite.createTaskContext("POST", fmt.Sprintf("/api/tasks/%d/dependencies", task.ID), body, task)
	suite.handler.AddDependency(c)
	suite.Require().Equal(http.StatusCreated, w.Code)
}

// TestAddDependency_Success tests linking a prerequisite
func (suite *TaskHandlerTestSuite) TestAddDependency_Success() {
	task := suite.createTestTask("build", models.TaskStatusOpen)
	dep := suite.createTestTask("design", models.TaskStatusOpen)

	body, _ := json.Marshal(map[string]interface{}{"depends_on_task_id": dep.ID})
	c, w := suite.createTaskContext("POST", "/api/tasks/1/dependencies", body, task)

	suite.handler.AddDependency(c)

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), float64(dep.ID), response["depends_on_task_id"])
	assert.Equal(suite.T(), string(models.DependencyFinishToStart), response["type"])
}

// TestAddDependency_Cycle tests that a cycle is rejected with 409
func (suite *TaskHandlerTestSuite) TestAddDependency_Cycle() {
	a := suite.createTestTask("a", models.TaskStatusOpen)
	b := suite.createTestTask("b", models.TaskStatusOpen)
	suite.addDependency(b, a)

	// a -> b would close the loop
	body, _ := json.Marshal(map[string]interface{}{"depends_on_task_id": b.ID})
	c, w := suite.createTaskContext("POST", "/api/tasks/1/dependencies", body, a)

	suite.handler.AddDependency(c)

	assert.Equal(suite.T(), http.StatusConflict, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "CYCLE_DETECTED", response["code"])
}

// TestAddDependency_Duplicate tests that a repeated link returns 409
func (suite *TaskHandlerTestSuite) TestAddDependency_Duplicate() {
	task := suite.createTestTask("build", models.TaskStatusOpen)
	dep := suite.createTestTask("design", models.TaskStatusOpen)
	suite.addDependency(task, dep)

	body, _ := json.Marshal(map[string]interface{}{"depends_on_task_id": dep.ID})
	c, w := suite.createTaskContext("POST", "/api/tasks/1/dependencies", body, task)

	suite.handler.AddDependency(c)

	assert.Equal(suite.T(), http.StatusConflict, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "CONFLICT", response["code"])
}

// TestUpdateTask_BlockedByDependency tests the 409 envelope with the
// blocking tasks listed in details
func (suite *TaskHandlerTestSuite) TestUpdateTask_BlockedByDependency() {
	task := suite.createTestTask("build", models.TaskStatusOpen)
	dep := suite.createTestTask("design", models.TaskStatusOpen)
	suite.addDependency(task, dep)

	body, _ := json.Marshal(map[string]interface{}{"status": "in_progress"})
	c, w := suite.createTaskContext("PATCH", "/api/tasks/1", body, task)

	suite.handler.UpdateTask(c)

	assert.Equal(suite.T(), http.StatusConflict, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "BLOCKED_BY_DEPENDENCY", response["code"])

	details := response["details"].([]interface{})
	assert.Len(suite.T(), details, 1)
	blocker := details[0].(map[string]interface{})
	assert.Equal(suite.T(), "design", blocker["title"])
}

// TestUpdateTask_AllowedAfterDependencyFinishes tests the happy path
// once the prerequisite completes
func (suite *TaskHandlerTestSuite) TestUpdateTask_AllowedAfterDependencyFinishes() {
	task := suite.createTestTask("build", models.TaskStatusOpen)
	dep := suite.createTestTask("design", models.TaskStatusCompleted)
	suite.addDependency(task, dep)

	body, _ := json.Marshal(map[string]interface{}{"status": "in_progress"})
	c, w := suite.createTaskContext("PATCH", "/api/tasks/1", body, task)

	suite.handler.UpdateTask(c)

	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "in_progress", response["status"])
}

// TestRemoveDependency_NotFound tests removing a link that is not there
func (suite *TaskHandlerTestSuite) TestRemoveDependency_NotFound() {
	task := suite.createTestTask("build", models.TaskStatusOpen)

	c, w := suite.createTaskContext("DELETE", "/api/tasks/1/dependencies/999", nil, task)
	c.Params = gin.Params{{Key: "depends_on_id", Value: "999"}}

	suite.handler.RemoveDependency(c)

	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

// TestGenerateTasks_ServiceUnavailable tests the response when no AI
// service is configured
func (suite *TaskHandlerTestSuite) TestGenerateTasks_ServiceUnavailable() {
	task := suite.createTestTask("seed", models.TaskStatusOpen)

	body, _ := json.Marshal(map[string]interface{}{
		"text": "Plan the launch",
	})
	c, w := suite.createTaskContext("POST", "/api/tasks/generate", body, task)

	suite.handler.GenerateTasks(c)

	assert.Equal(suite.T(), http.StatusServiceUnavailable, w.Code)
}

// TestTaskHandlerTestSuite runs the test suite
func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}
