package repository

import (
	"github.com/nocturne-lab/projecthub/internal/models"
	"gorm.io/gorm"
)

// GormProjectRepository is a GORM implementation of ProjectRepository
type GormProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new ProjectRepository
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &GormProjectRepository{db: db}
}

// Create creates a new project
func (r *GormProjectRepository) Create(project *models.Project) error {
	return r.db.Create(project).Error
}

// FindByID finds a project by ID with optional preloading
func (r *GormProjectRepository) FindByID(id uint64, preload ...string) (*models.Project, error) {
	var project models.Project
	query := r.db

	for _, p := range preload {
		query = query.Preload(p)
	}

	if err := query.First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// ListByOrganization lists all projects in an organization
func (r *GormProjectRepository) ListByOrganization(organizationID uint64) ([]models.Project, error) {
	var projects []models.Project
	if err := r.db.Where("organization_id = ?", organizationID).
		Order("created_at DESC").
		Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// Update updates a project
func (r *GormProjectRepository) Update(project *models.Project) error {
	return r.db.Save(project).Error
}

// Delete deletes a project and all related data in a transaction
func (r *GormProjectRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var taskIDs []uint64
		if err := tx.Model(&models.Task{}).
			Where("project_id = ?", id).
			Pluck("id", &taskIDs).Error; err != nil {
			return err
		}

		if len(taskIDs) > 0 {
			if err := tx.Where("task_id IN ? OR depends_on_task_id IN ?", taskIDs, taskIDs).
				Delete(&models.TaskDependency{}).Error; err != nil {
				return err
			}
			if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.TaskAssignment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.TaskWatcher{}).Error; err != nil {
				return err
			}
			if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.TimeEntry{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.Task{}, taskIDs).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("project_id = ?", id).Delete(&models.Milestone{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Phase{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Issue{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Document{}).Error; err != nil {
			return err
		}

		return tx.Delete(&models.Project{}, id).Error
	})
}
