package services

import (
	"testing"

	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/repository"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// TaskHierarchyTestSuite exercises parent/subtask progress roll-up and
// recursive deletion.
type TaskHierarchyTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *TaskService
	project *models.Project
	user    *models.User
}

func (suite *TaskHierarchyTestSuite) SetupTest() {
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

	suite.user = &models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x"}
	suite.Require().NoError(suite.db.Create(suite.user).Error)

	org := &models.Organization{Name: "acme", InviteCode: "ACME-1111-1111"}
	suite.Require().NoError(suite.db.Create(org).Error)
	suite.Require().NoError(suite.db.Create(&models.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         suite.user.ID,
		Role:           models.RoleOwner,
	}).Error)

	suite.project = &models.Project{Name: "migration", OrganizationID: org.ID, OwnerID: suite.user.ID}
	suite.Require().NoError(suite.db.Create(suite.project).Error)
}

func (suite *TaskHierarchyTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *TaskHierarchyTestSuite) createTask(title string, parentID *uint64) *models.Task {
	task, err := suite.service.CreateTask(CreateTaskInput{
		Title:        title,
		ProjectID:    suite.project.ID,
		ParentTaskID: parentID,
		CreatorID:    suite.user.ID,
	})
	suite.Require().NoError(err)
	return task
}

func (suite *TaskHierarchyTestSuite) reload(id uint64) *models.Task {
	var task models.Task
	suite.Require().NoError(suite.db.First(&task, id).Error)
	return &task
}

func (suite *TaskHierarchyTestSuite) setStatus(id uint64, status models.TaskStatus) {
	_, err := suite.service.UpdateTask(id, UpdateTaskInput{Status: &status}, suite.user.ID)
	suite.Require().NoError(err)
}

func (suite *TaskHierarchyTestSuite) TestParentProgressRollsUp() {
	parent := suite.createTask("release", nil)
	subs := make([]*models.Task, 4)
	for i, title := range []string{"code", "tests", "docs", "deploy"} {
		subs[i] = suite.createTask(title, &parent.ID)
	}

	// Creating subtasks resets the parent to 0 finished out of 4.
	suite.Equal(0, suite.reload(parent.ID).Progress)

	suite.setStatus(subs[0].ID, models.TaskStatusCompleted)
	suite.Equal(25, suite.reload(parent.ID).Progress)

	// Closed counts as finished just like completed.
	suite.setStatus(subs[1].ID, models.TaskStatusClosed)
	suite.Equal(50, suite.reload(parent.ID).Progress)

	suite.setStatus(subs[2].ID, models.TaskStatusCompleted)
	suite.setStatus(subs[3].ID, models.TaskStatusCompleted)
	suite.Equal(100, suite.reload(parent.ID).Progress)
}

func (suite *TaskHierarchyTestSuite) TestRollUpDoesNotTouchParentStatus() {
	parent := suite.createTask("release", nil)
	sub := suite.createTask("code", &parent.ID)

	suite.setStatus(sub.ID, models.TaskStatusCompleted)

	reloaded := suite.reload(parent.ID)
	suite.Equal(100, reloaded.Progress)
	suite.Equal(models.TaskStatusOpen, reloaded.Status)
}

func (suite *TaskHierarchyTestSuite) TestRollUpRounds() {
	parent := suite.createTask("release", nil)
	subs := make([]*models.Task, 3)
	for i, title := range []string{"a", "b", "c"} {
		subs[i] = suite.createTask(title, &parent.ID)
	}

	suite.setStatus(subs[0].ID, models.TaskStatusCompleted)
	// 1 of 3 rounds to 33
	suite.Equal(33, suite.reload(parent.ID).Progress)

	suite.setStatus(subs[1].ID, models.TaskStatusCompleted)
	// 2 of 3 rounds to 67
	suite.Equal(67, suite.reload(parent.ID).Progress)
}

func (suite *TaskHierarchyTestSuite) TestManualProgressOnLeafIsClamped() {
	leaf := suite.createTask("solo", nil)

	progress := 150
	updated, err := suite.service.UpdateTask(leaf.ID, UpdateTaskInput{Progress: &progress}, suite.user.ID)
	suite.Require().NoError(err)
	suite.Equal(100, updated.Progress)

	progress = -10
	updated, err = suite.service.UpdateTask(leaf.ID, UpdateTaskInput{Progress: &progress}, suite.user.ID)
	suite.Require().NoError(err)
	suite.Equal(0, updated.Progress)
}

func (suite *TaskHierarchyTestSuite) TestManualProgressOnParentIsIgnored() {
	parent := suite.createTask("release", nil)
	first := suite.createTask("code", &parent.ID)
	suite.createTask("tests", &parent.ID)

	suite.setStatus(first.ID, models.TaskStatusCompleted)
	suite.Equal(50, suite.reload(parent.ID).Progress)

	// The derived value must survive a direct write attempt.
	progress := 10
	updated, err := suite.service.UpdateTask(parent.ID, UpdateTaskInput{Progress: &progress}, suite.user.ID)
	suite.Require().NoError(err)
	suite.Equal(50, updated.Progress)
	suite.Equal(50, suite.reload(parent.ID).Progress)
}

func (suite *TaskHierarchyTestSuite) TestCreateSubtaskInDifferentProjectRejected() {
	other := &models.Project{Name: "other", OrganizationID: suite.project.OrganizationID, OwnerID: suite.user.ID}
	suite.Require().NoError(suite.db.Create(other).Error)

	parent := suite.createTask("release", nil)

	_, err := suite.service.CreateTask(CreateTaskInput{
		Title:        "stray",
		ProjectID:    other.ID,
		ParentTaskID: &parent.ID,
		CreatorID:    suite.user.ID,
	})
	suite.Require().ErrorIs(err, ErrParentTaskWrongProject)
}

func (suite *TaskHierarchyTestSuite) TestDeleteRemovesWholeSubtree() {
	parent := suite.createTask("epic", nil)
	childA := suite.createTask("story-a", &parent.ID)
	childB := suite.createTask("story-b", &parent.ID)
	grandchild := suite.createTask("subtask", &childA.ID)

	// A dependency edge into the subtree must go too.
	outside := suite.createTask("external", nil)
	_, err := suite.service.AddDependency(outside.ID, childB.ID, "")
	suite.Require().NoError(err)

	suite.Require().NoError(suite.service.DeleteTask(parent.ID))

	var count int64
	suite.db.Model(&models.Task{}).
		Where("id IN ?", []uint64{parent.ID, childA.ID, childB.ID, grandchild.ID}).
		Count(&count)
	suite.Equal(int64(0), count)

	var depCount int64
	suite.db.Model(&models.TaskDependency{}).Count(&depCount)
	suite.Equal(int64(0), depCount)

	// The unrelated task survives.
	suite.NotNil(suite.reload(outside.ID))
}

func (suite *TaskHierarchyTestSuite) TestDeleteSubtaskRollsUpParent() {
	parent := suite.createTask("epic", nil)
	keep := suite.createTask("keep", &parent.ID)
	drop := suite.createTask("drop", &parent.ID)

	suite.setStatus(keep.ID, models.TaskStatusCompleted)
	suite.Equal(50, suite.reload(parent.ID).Progress)

	suite.Require().NoError(suite.service.DeleteTask(drop.ID))
	suite.Equal(100, suite.reload(parent.ID).Progress)
}

func (suite *TaskHierarchyTestSuite) TestConcurrentUpdateConflicts() {
	task := suite.createTask("contended", nil)

	// Another writer bumps the row between our read and write.
	taskRepo := repository.NewTaskRepository(suite.db)
	stale, err := taskRepo.FindByID(task.ID)
	suite.Require().NoError(err)

	winner, err := taskRepo.FindByID(task.ID)
	suite.Require().NoError(err)
	winner.Title = "renamed first"
	suite.Require().NoError(taskRepo.Update(winner))

	stale.Title = "renamed second"
	suite.Require().ErrorIs(taskRepo.Update(stale), repository.ErrOptimisticLock)
}

func (suite *TaskHierarchyTestSuite) TestDuplicateCopiesSubtree() {
	root := suite.createTask("release", nil)
	child := suite.createTask("code", &root.ID)
	suite.createTask("unit tests", &child.ID)

	suite.setStatus(child.ID, models.TaskStatusInProgress)

	dup, err := suite.service.DuplicateTask(root.ID, suite.user.ID)
	suite.Require().NoError(err)
	suite.Equal("release (copy)", dup.Title)
	suite.Nil(dup.ParentTaskID)
	suite.Equal(models.TaskStatusOpen, dup.Status)
	suite.Equal(0, dup.Progress)

	// The copy carries the structure but none of the state.
	dupChildren, err := suite.service.ListSubtasks(dup.ID)
	suite.Require().NoError(err)
	suite.Require().Len(dupChildren, 1)
	suite.Equal("code", dupChildren[0].Title)
	suite.Equal(models.TaskStatusOpen, dupChildren[0].Status)

	grandchildren, err := suite.service.ListSubtasks(dupChildren[0].ID)
	suite.Require().NoError(err)
	suite.Require().Len(grandchildren, 1)
	suite.Equal("unit tests", grandchildren[0].Title)

	// The original tree is untouched.
	suite.Equal(models.TaskStatusInProgress, suite.reload(child.ID).Status)
}

func (suite *TaskHierarchyTestSuite) TestDuplicateSubtaskRollsUpParent() {
	parent := suite.createTask("release", nil)
	done := suite.createTask("code", &parent.ID)
	suite.setStatus(done.ID, models.TaskStatusCompleted)
	suite.Equal(100, suite.reload(parent.ID).Progress)

	// The copy joins the parent as an open sibling, halving progress.
	dup, err := suite.service.DuplicateTask(done.ID, suite.user.ID)
	suite.Require().NoError(err)
	suite.Require().NotNil(dup.ParentTaskID)
	suite.Equal(parent.ID, *dup.ParentTaskID)
	suite.Equal(50, suite.reload(parent.ID).Progress)
}

func TestTaskHierarchyTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHierarchyTestSuite))
}
