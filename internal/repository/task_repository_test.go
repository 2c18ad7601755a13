package repository

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// setupMockRepo opens a gorm session over sqlmock so the generated SQL
// can be asserted without a real database.
func setupMockRepo(t *testing.T) (TaskRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return NewTaskRepository(gormDB), mock
}

func TestUpdateGuardsOnLockVersion(t *testing.T) {
	repo, mock := setupMockRepo(t)

	task := &models.Task{ID: 7, Title: "build", LockVersion: 3}

	mock.ExpectExec("UPDATE `tasks` SET .+ WHERE id = \\? AND lock_version = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(task)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), task.LockVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStaleVersionFails(t *testing.T) {
	repo, mock := setupMockRepo(t)

	task := &models.Task{ID: 7, Title: "build", LockVersion: 3}

	mock.ExpectExec("UPDATE `tasks` SET .+ WHERE id = \\? AND lock_version = \\?").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(task)
	assert.ErrorIs(t, err, ErrOptimisticLock)
	// A failed save must not advance the in-memory version.
	assert.Equal(t, uint64(3), task.LockVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddActualHoursIncrementsInPlace(t *testing.T) {
	repo, mock := setupMockRepo(t)

	mock.ExpectExec("UPDATE `tasks` SET `actual_hours`=actual_hours \\+ \\?").
		WithArgs(2.5, uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AddActualHours(7, 2.5)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateProgressWritesColumnDirectly(t *testing.T) {
	repo, mock := setupMockRepo(t)

	mock.ExpectExec("UPDATE `tasks` SET `progress`=\\?").
		WithArgs(60, uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateProgress(7, 60)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
