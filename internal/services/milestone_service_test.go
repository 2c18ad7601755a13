package services

import (
	"testing"
	"time"

	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestComputeProgress(t *testing.T) {
	assert.Equal(t, 0, ComputeProgress(0, 0))
	assert.Equal(t, 0, ComputeProgress(4, 0))
	assert.Equal(t, 25, ComputeProgress(4, 1))
	assert.Equal(t, 33, ComputeProgress(3, 1))
	assert.Equal(t, 67, ComputeProgress(3, 2))
	assert.Equal(t, 100, ComputeProgress(4, 4))
}

func TestDeriveMilestoneStatus(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name     string
		dueDate  *time.Time
		progress int
		want     models.MilestoneStatus
	}{
		{"no tasks, no due date", nil, 0, models.MilestoneStatusPending},
		{"no tasks, future due date", &future, 0, models.MilestoneStatusPending},
		{"no progress past due", &past, 0, models.MilestoneStatusOverdue},
		{"some progress", nil, 40, models.MilestoneStatusInProgress},
		{"progress past due stays in progress", &past, 40, models.MilestoneStatusInProgress},
		{"complete", nil, 100, models.MilestoneStatusCompleted},
		{"complete past due stays completed", &past, 100, models.MilestoneStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &models.Milestone{DueDate: tt.dueDate}
			assert.Equal(t, tt.want, DeriveMilestoneStatus(m, tt.progress, now))
		})
	}
}

type milestoneTestEnv struct {
	db      *gorm.DB
	service *MilestoneService
	project *models.Project
	user    *models.User
}

func setupMilestoneTestEnv(t *testing.T) milestoneTestEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.Project{},
		&models.Task{},
		&models.Milestone{},
		&models.Phase{},
	)
	require.NoError(t, err)

	service := NewMilestoneService(
		repository.NewMilestoneRepository(db),
		repository.NewPhaseRepository(db),
		repository.NewTaskRepository(db),
	)

	user := &models.User{Username: "carol", Email: "carol@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(user).Error)
	org := &models.Organization{Name: "acme", InviteCode: "ACME-2222-2222"}
	require.NoError(t, db.Create(org).Error)
	project := &models.Project{Name: "launch", OrganizationID: org.ID, OwnerID: user.ID}
	require.NoError(t, db.Create(project).Error)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return milestoneTestEnv{db: db, service: service, project: project, user: user}
}

func (env milestoneTestEnv) addTask(t *testing.T, milestoneID *uint64, status models.TaskStatus) {
	t.Helper()
	task := &models.Task{
		Title:       "work",
		Status:      status,
		ProjectID:   env.project.ID,
		CreatorID:   env.user.ID,
		MilestoneID: milestoneID,
	}
	require.NoError(t, env.db.Create(task).Error)
}

func TestMilestoneProgressDerivedFromTasks(t *testing.T) {
	env := setupMilestoneTestEnv(t)

	m, err := env.service.CreateMilestone(CreateMilestoneInput{Name: "beta", ProjectID: env.project.ID})
	require.NoError(t, err)

	view, err := env.service.GetMilestone(m.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Progress)
	assert.Equal(t, models.MilestoneStatusPending, view.Status)

	env.addTask(t, &m.ID, models.TaskStatusCompleted)
	env.addTask(t, &m.ID, models.TaskStatusOpen)
	env.addTask(t, &m.ID, models.TaskStatusClosed)
	env.addTask(t, &m.ID, models.TaskStatusInProgress)

	view, err = env.service.GetMilestone(m.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, view.Progress)
	assert.Equal(t, models.MilestoneStatusInProgress, view.Status)
}

func TestMilestoneOverdue(t *testing.T) {
	env := setupMilestoneTestEnv(t)

	past := time.Now().Add(-48 * time.Hour)
	m, err := env.service.CreateMilestone(CreateMilestoneInput{
		Name:      "missed",
		ProjectID: env.project.ID,
		DueDate:   &past,
	})
	require.NoError(t, err)

	env.addTask(t, &m.ID, models.TaskStatusOpen)

	view, err := env.service.GetMilestone(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusOverdue, view.Status)
}

func TestMilestoneCompletionStampedOnce(t *testing.T) {
	env := setupMilestoneTestEnv(t)

	m, err := env.service.CreateMilestone(CreateMilestoneInput{Name: "beta", ProjectID: env.project.ID})
	require.NoError(t, err)

	env.addTask(t, &m.ID, models.TaskStatusCompleted)

	first := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	env.service.now = func() time.Time { return first }

	view, err := env.service.GetMilestone(m.ID)
	require.NoError(t, err)
	require.Equal(t, models.MilestoneStatusCompleted, view.Status)
	require.NotNil(t, view.CompletedAt)
	assert.True(t, view.CompletedAt.Equal(first))

	// A later read while still complete must not move the stamp.
	env.service.now = func() time.Time { return first.Add(72 * time.Hour) }
	view, err = env.service.GetMilestone(m.ID)
	require.NoError(t, err)
	require.NotNil(t, view.CompletedAt)
	assert.True(t, view.CompletedAt.Equal(first))
}

func TestDeleteMilestoneDetachesTasks(t *testing.T) {
	env := setupMilestoneTestEnv(t)

	m, err := env.service.CreateMilestone(CreateMilestoneInput{Name: "gone", ProjectID: env.project.ID})
	require.NoError(t, err)
	env.addTask(t, &m.ID, models.TaskStatusOpen)

	require.NoError(t, env.service.DeleteMilestone(m.ID))

	var tasks []models.Task
	require.NoError(t, env.db.Find(&tasks).Error)
	require.Len(t, tasks, 1)
	assert.Nil(t, tasks[0].MilestoneID)
}

func TestPhaseProgress(t *testing.T) {
	env := setupMilestoneTestEnv(t)

	p, err := env.service.CreatePhase(CreatePhaseInput{Name: "rollout", ProjectID: env.project.ID})
	require.NoError(t, err)

	task := &models.Task{Title: "a", Status: models.TaskStatusCompleted, ProjectID: env.project.ID, CreatorID: env.user.ID, PhaseID: &p.ID}
	require.NoError(t, env.db.Create(task).Error)
	task2 := &models.Task{Title: "b", Status: models.TaskStatusOpen, ProjectID: env.project.ID, CreatorID: env.user.ID, PhaseID: &p.ID}
	require.NoError(t, env.db.Create(task2).Error)

	view, err := env.service.GetPhase(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, view.Progress)
}
