package services

import (
	"errors"
	"testing"

	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/repository"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TaskGraphTestSuite exercises dependency edges, cycle detection and
// status gating against an in-memory database.
type TaskGraphTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *TaskService
	project *models.Project
	user    *models.User
}

func (suite *TaskGraphTestSuite) SetupTest() {
	var err error

	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	err = suite.db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.OrganizationMember{},
		&models.Project{},
		&models.Task{},
		&models.TaskDependency{},
		&models.TaskAssignment{},
		&models.TaskWatcher{},
		&models.Comment{},
		&models.TimeEntry{},
	)
	suite.Require().NoError(err)

	taskRepo := repository.NewTaskRepository(suite.db)
	projectRepo := repository.NewProjectRepository(suite.db)
	commentRepo := repository.NewCommentRepository(suite.db)
	suite.service = NewTaskService(taskRepo, projectRepo, commentRepo, nil, nil)

	suite.user = &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}
	suite.Require().NoError(suite.db.Create(suite.user).Error)

	org := &models.Organization{Name: "acme", InviteCode: "ACME-0000-0000"}
	suite.Require().NoError(suite.db.Create(org).Error)
	suite.Require().NoError(suite.db.Create(&models.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         suite.user.ID,
		Role:           models.RoleOwner,
	}).Error)

	suite.project = &models.Project{Name: "rollout", OrganizationID: org.ID, OwnerID: suite.user.ID}
	suite.Require().NoError(suite.db.Create(suite.project).Error)
}

func (suite *TaskGraphTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *TaskGraphTestSuite) createTask(title string) *models.Task {
	task, err := suite.service.CreateTask(CreateTaskInput{
		Title:     title,
		ProjectID: suite.project.ID,
		CreatorID: suite.user.ID,
	})
	suite.Require().NoError(err)
	return task
}

func (suite *TaskGraphTestSuite) TestAddDependency() {
	t1 := suite.createTask("design")
	t2 := suite.createTask("build")

	dep, err := suite.service.AddDependency(t2.ID, t1.ID, "")
	suite.Require().NoError(err)
	suite.Equal(models.DependencyFinishToStart, dep.Type)
	suite.Equal(t2.ID, dep.TaskID)
	suite.Equal(t1.ID, dep.DependsOnTaskID)
}

func (suite *TaskGraphTestSuite) TestAddDependencySelf() {
	t1 := suite.createTask("design")

	_, err := suite.service.AddDependency(t1.ID, t1.ID, "")
	suite.Require().ErrorIs(err, ErrSelfDependency)
}

func (suite *TaskGraphTestSuite) TestAddDependencyDuplicate() {
	t1 := suite.createTask("design")
	t2 := suite.createTask("build")

	_, err := suite.service.AddDependency(t2.ID, t1.ID, "")
	suite.Require().NoError(err)

	_, err = suite.service.AddDependency(t2.ID, t1.ID, "")
	suite.Require().ErrorIs(err, ErrDependencyExists)
}

func (suite *TaskGraphTestSuite) TestAddDependencyUnknownTarget() {
	t1 := suite.createTask("design")

	_, err := suite.service.AddDependency(t1.ID, 99999, "")
	suite.Require().ErrorIs(err, ErrDependencyTargetNotFound)
}

func (suite *TaskGraphTestSuite) TestAddDependencyInvalidType() {
	t1 := suite.createTask("design")
	t2 := suite.createTask("build")

	_, err := suite.service.AddDependency(t2.ID, t1.ID, "sideways")
	suite.Require().ErrorIs(err, ErrInvalidDependencyType)
}

func (suite *TaskGraphTestSuite) TestCycleRejected() {
	t1 := suite.createTask("design")
	t2 := suite.createTask("build")
	t3 := suite.createTask("ship")

	_, err := suite.service.AddDependency(t2.ID, t1.ID, "")
	suite.Require().NoError(err)
	_, err = suite.service.AddDependency(t3.ID, t2.ID, "")
	suite.Require().NoError(err)

	// t1 -> t3 would close the loop t1 -> t3 -> t2 -> t1
	_, err = suite.service.AddDependency(t1.ID, t3.ID, "")
	suite.Require().ErrorIs(err, ErrCycleDetected)
}

func (suite *TaskGraphTestSuite) TestDiamondIsNotACycle() {
	top := suite.createTask("spec")
	left := suite.createTask("api")
	right := suite.createTask("ui")
	bottom := suite.createTask("release")

	_, err := suite.service.AddDependency(left.ID, top.ID, "")
	suite.Require().NoError(err)
	_, err = suite.service.AddDependency(right.ID, top.ID, "")
	suite.Require().NoError(err)
	_, err = suite.service.AddDependency(bottom.ID, left.ID, "")
	suite.Require().NoError(err)

	// Two paths from bottom to top share a node; still acyclic.
	_, err = suite.service.AddDependency(bottom.ID, right.ID, "")
	suite.Require().NoError(err)
}

func (suite *TaskGraphTestSuite) TestRemoveDependency() {
	t1 := suite.createTask("design")
	t2 := suite.createTask("build")

	_, err := suite.service.AddDependency(t2.ID, t1.ID, "")
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.RemoveDependency(t2.ID, t1.ID))
	suite.Require().ErrorIs(suite.service.RemoveDependency(t2.ID, t1.ID), ErrDependencyNotFound)
}

func (suite *TaskGraphTestSuite) TestTransitionBlockedByUnfinishedDependency() {
	t1 := suite.createTask("design")
	t2 := suite.createTask("build")

	_, err := suite.service.AddDependency(t2.ID, t1.ID, "")
	suite.Require().NoError(err)

	status := models.TaskStatusInProgress
	_, err = suite.service.UpdateTask(t2.ID, UpdateTaskInput{Status: &status}, suite.user.ID)

	var blocked *BlockedError
	suite.Require().True(errors.As(err, &blocked))
	suite.Require().Len(blocked.Blockers, 1)
	suite.Equal(t1.ID, blocked.Blockers[0].ID)
	suite.Equal("design", blocked.Blockers[0].Title)
}

func (suite *TaskGraphTestSuite) TestTransitionAllowedWhenDependencyFinished() {
	t1 := suite.createTask("design")
	t2 := suite.createTask("build")

	_, err := suite.service.AddDependency(t2.ID, t1.ID, "")
	suite.Require().NoError(err)

	done := models.TaskStatusCompleted
	_, err = suite.service.UpdateTask(t1.ID, UpdateTaskInput{Status: &done}, suite.user.ID)
	suite.Require().NoError(err)

	started := models.TaskStatusInProgress
	updated, err := suite.service.UpdateTask(t2.ID, UpdateTaskInput{Status: &started}, suite.user.ID)
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusInProgress, updated.Status)
}

func (suite *TaskGraphTestSuite) TestUngatedTransitionIgnoresDependencies() {
	t1 := suite.createTask("design")
	t2 := suite.createTask("build")

	_, err := suite.service.AddDependency(t2.ID, t1.ID, "")
	suite.Require().NoError(err)

	// Moving into review is not gated; only in_progress and completed are.
	review := models.TaskStatusReview
	updated, err := suite.service.UpdateTask(t2.ID, UpdateTaskInput{Status: &review}, suite.user.ID)
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusReview, updated.Status)
}

func (suite *TaskGraphTestSuite) TestClosedCountsAsFinishedForGating() {
	t1 := suite.createTask("design")
	t2 := suite.createTask("build")

	_, err := suite.service.AddDependency(t2.ID, t1.ID, "")
	suite.Require().NoError(err)

	closed := models.TaskStatusClosed
	_, err = suite.service.UpdateTask(t1.ID, UpdateTaskInput{Status: &closed}, suite.user.ID)
	suite.Require().NoError(err)

	done := models.TaskStatusCompleted
	_, err = suite.service.UpdateTask(t2.ID, UpdateTaskInput{Status: &done}, suite.user.ID)
	suite.Require().NoError(err)
}

func (suite *TaskGraphTestSuite) TestListDependencies() {
	t1 := suite.createTask("design")
	t2 := suite.createTask("build")
	t3 := suite.createTask("review")

	_, err := suite.service.AddDependency(t3.ID, t1.ID, "")
	suite.Require().NoError(err)
	_, err = suite.service.AddDependency(t3.ID, t2.ID, models.DependencyStartToStart)
	suite.Require().NoError(err)

	deps, err := suite.service.ListDependencies(t3.ID)
	suite.Require().NoError(err)
	suite.Require().Len(deps, 2)
	for _, dep := range deps {
		suite.NotZero(dep.DependsOn.ID)
		suite.NotEmpty(dep.DependsOn.Title)
	}
}

func TestTaskGraphTestSuite(t *testing.T) {
	suite.Run(t, new(TaskGraphTestSuite))
}
