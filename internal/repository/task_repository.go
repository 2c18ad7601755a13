package repository

import (
	"github.com/nocturne-lab/projecthub/internal/database"
	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create creates a new task
func (r *GormTaskRepository) Create(task *models.Task) error {
	return r.db.Create(task).Error
}

// FindByID finds a task by ID with optional preloading
func (r *GormTaskRepository) FindByID(id uint64, preload ...string) (*models.Task, error) {
	var task models.Task
	query := r.db

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&task, id).Error; err != nil {
		return nil, err
	}

	return &task, nil
}

// FindByIDs loads tasks by primary key
func (r *GormTaskRepository) FindByIDs(ids []uint64) ([]models.Task, error) {
	if len(ids) == 0 {
		return []models.Task{}, nil
	}
	var tasks []models.Task
	if err := r.db.Where("id IN ?", ids).Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// List retrieves tasks with filtering and pagination
func (r *GormTaskRepository) List(filter TaskFilter) ([]models.Task, int64, error) {
	var tasks []models.Task

	query := r.db.Model(&models.Task{})

	if filter.ProjectID != nil {
		query = query.Where("tasks.project_id = ?", *filter.ProjectID)
	} else if len(filter.ProjectIDs) > 0 {
		query = query.Where("tasks.project_id IN ?", filter.ProjectIDs)
	}

	if filter.Status != nil {
		query = query.Where("tasks.status = ?", *filter.Status)
	}
	if filter.Priority != nil {
		query = query.Where("tasks.priority = ?", *filter.Priority)
	}
	if filter.CreatorID != nil {
		query = query.Where("tasks.creator_id = ?", *filter.CreatorID)
	}
	if filter.ParentTaskID != nil {
		query = query.Where("tasks.parent_task_id = ?", *filter.ParentTaskID)
	} else if filter.RootOnly {
		query = query.Where("tasks.parent_task_id IS NULL")
	}
	if filter.MilestoneID != nil {
		query = query.Where("tasks.milestone_id = ?", *filter.MilestoneID)
	}
	if filter.PhaseID != nil {
		query = query.Where("tasks.phase_id = ?", *filter.PhaseID)
	}
	if filter.AssignedUserID != nil {
		assignmentSubQuery := r.db.Model(&models.TaskAssignment{}).
			Select("1").
			Where("task_assignments.task_id = tasks.id").
			Where("task_assignments.user_id = ?", *filter.AssignedUserID).
			Where("task_assignments.deleted_at IS NULL")
		query = query.Where("EXISTS (?)", assignmentSubQuery)
	}
	if filter.DueDateFrom != nil {
		query = query.Where("tasks.due_date >= ?", *filter.DueDateFrom)
	}
	if filter.DueDateTo != nil {
		query = query.Where("tasks.due_date < ?", *filter.DueDateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query
	if filter.SortByDueDate {
		listQuery = listQuery.Order("CASE WHEN tasks.due_date IS NULL THEN 1 ELSE 0 END, tasks.due_date ASC")
	} else {
		listQuery = listQuery.Order("tasks.created_at DESC")
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		listQuery = listQuery.Scopes(database.Paginate(utils.PaginationParams{
			Page:   filter.Page,
			Limit:  filter.PageSize,
			Offset: (filter.Page - 1) * filter.PageSize,
		}))
	}

	if err := listQuery.Preload("Creator").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Update saves a task with an optimistic-lock check on lock_version
func (r *GormTaskRepository) Update(task *models.Task) error {
	res := r.db.Model(&models.Task{}).
		Where("id = ? AND lock_version = ?", task.ID, task.LockVersion).
		Updates(map[string]interface{}{
			"title":           task.Title,
			"description":     task.Description,
			"status":          task.Status,
			"priority":        task.Priority,
			"parent_task_id":  task.ParentTaskID,
			"milestone_id":    task.MilestoneID,
			"phase_id":        task.PhaseID,
			"due_date":        task.DueDate,
			"progress":        task.Progress,
			"estimated_hours": task.EstimatedHours,
			"lock_version":    task.LockVersion + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	task.LockVersion++
	return nil
}

// UpdateProgress writes the derived progress column directly
func (r *GormTaskRepository) UpdateProgress(taskID uint64, progress int) error {
	return r.db.Model(&models.Task{}).
		Where("id = ?", taskID).
		UpdateColumn("progress", progress).Error
}

// AddActualHours atomically increments the actual_hours counter
func (r *GormTaskRepository) AddActualHours(taskID uint64, delta float64) error {
	return r.db.Model(&models.Task{}).
		Where("id = ?", taskID).
		UpdateColumn("actual_hours", gorm.Expr("actual_hours + ?", delta)).Error
}

// ListSubtasks returns the direct children of a task
func (r *GormTaskRepository) ListSubtasks(parentTaskID uint64) ([]models.Task, error) {
	var tasks []models.Task
	if err := r.db.Where("parent_task_id = ?", parentTaskID).Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// DeleteCascade removes tasks and every row referencing them
func (r *GormTaskRepository) DeleteCascade(ids []uint64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id IN ? OR depends_on_task_id IN ?", ids, ids).
			Delete(&models.TaskDependency{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id IN ?", ids).Delete(&models.TaskAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id IN ?", ids).Delete(&models.TaskWatcher{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id IN ?", ids).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id IN ?", ids).Delete(&models.TimeEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Task{}, ids).Error
	})
}

// AddDependency inserts a dependency edge
func (r *GormTaskRepository) AddDependency(dep *models.TaskDependency) error {
	return r.db.Create(dep).Error
}

// RemoveDependency deletes a dependency edge
func (r *GormTaskRepository) RemoveDependency(taskID, dependsOnTaskID uint64) (int64, error) {
	res := r.db.Where("task_id = ? AND depends_on_task_id = ?", taskID, dependsOnTaskID).
		Delete(&models.TaskDependency{})
	return res.RowsAffected, res.Error
}

// ListDependencies returns the outgoing dependency edges of a task
func (r *GormTaskRepository) ListDependencies(taskID uint64) ([]models.TaskDependency, error) {
	var deps []models.TaskDependency
	if err := r.db.Where("task_id = ?", taskID).Find(&deps).Error; err != nil {
		return nil, err
	}
	return deps, nil
}

// AssignUsers assigns multiple users to a task
func (r *GormTaskRepository) AssignUsers(taskID uint64, userIDs []uint64) error {
	assignments := make([]models.TaskAssignment, len(userIDs))

	for i, userID := range userIDs {
		assignments[i] = models.TaskAssignment{
			TaskID: taskID,
			UserID: userID,
		}
	}

	return r.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "task_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"deleted_at": gorm.Expr("NULL")}),
		}).
		Create(&assignments).Error
}

// UnassignUsers removes user assignments from a task
func (r *GormTaskRepository) UnassignUsers(taskID uint64, userIDs []uint64) error {
	return r.db.Where("task_id = ? AND user_id IN ?", taskID, userIDs).
		Delete(&models.TaskAssignment{}).Error
}

// AddWatcher registers a user as a watcher of a task
func (r *GormTaskRepository) AddWatcher(taskID, userID uint64) error {
	watcher := models.TaskWatcher{TaskID: taskID, UserID: userID}
	return r.db.
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&watcher).Error
}

// RemoveWatcher removes a watcher
func (r *GormTaskRepository) RemoveWatcher(taskID, userID uint64) error {
	return r.db.Where("task_id = ? AND user_id = ?", taskID, userID).
		Delete(&models.TaskWatcher{}).Error
}

// ListWatcherIDs returns the user IDs watching a task
func (r *GormTaskRepository) ListWatcherIDs(taskID uint64) ([]uint64, error) {
	var ids []uint64
	if err := r.db.Model(&models.TaskWatcher{}).
		Where("task_id = ?", taskID).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CountUsersByIDs counts how many of the given user IDs are members of
// the organization
func (r *GormTaskRepository) CountUsersByIDs(userIDs []uint64, organizationID uint64) (int64, error) {
	var count int64

	err := r.db.Model(&models.User{}).
		Joins("JOIN organization_members ON users.id = organization_members.user_id").
		Where("organization_members.organization_id = ? AND users.id IN ?", organizationID, userIDs).
		Count(&count).Error

	return count, err
}

// StatusCounts returns total and finished task counts for one grouping
// column value
func (r *GormTaskRepository) StatusCounts(column string, id uint64) (int64, int64, error) {
	var total int64
	if err := r.db.Model(&models.Task{}).
		Where(column+" = ?", id).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}

	var finished int64
	if err := r.db.Model(&models.Task{}).
		Where(column+" = ?", id).
		Where("status IN ?", []models.TaskStatus{models.TaskStatusCompleted, models.TaskStatusClosed}).
		Count(&finished).Error; err != nil {
		return 0, 0, err
	}

	return total, finished, nil
}
