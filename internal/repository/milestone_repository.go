package repository

import (
	"time"

	"github.com/nocturne-lab/projecthub/internal/models"
	"gorm.io/gorm"
)

// GormMilestoneRepository is a GORM implementation of MilestoneRepository
type GormMilestoneRepository struct {
	db *gorm.DB
}

// NewMilestoneRepository creates a new MilestoneRepository
func NewMilestoneRepository(db *gorm.DB) MilestoneRepository {
	return &GormMilestoneRepository{db: db}
}

// Create creates a new milestone
func (r *GormMilestoneRepository) Create(m *models.Milestone) error {
	return r.db.Create(m).Error
}

// FindByID finds a milestone by ID
func (r *GormMilestoneRepository) FindByID(id uint64) (*models.Milestone, error) {
	var m models.Milestone
	if err := r.db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByProject lists milestones in a project ordered by position
func (r *GormMilestoneRepository) ListByProject(projectID uint64) ([]models.Milestone, error) {
	var milestones []models.Milestone
	if err := r.db.Where("project_id = ?", projectID).
		Order("position ASC, id ASC").
		Find(&milestones).Error; err != nil {
		return nil, err
	}
	return milestones, nil
}

// Update updates a milestone
func (r *GormMilestoneRepository) Update(m *models.Milestone) error {
	return r.db.Save(m).Error
}

// Delete deletes a milestone and detaches its tasks
func (r *GormMilestoneRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).
			Where("milestone_id = ?", id).
			UpdateColumn("milestone_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Milestone{}, id).Error
	})
}

// StampCompletedAt sets completed_at only if it has not been set yet
func (r *GormMilestoneRepository) StampCompletedAt(id uint64, at time.Time) error {
	return r.db.Model(&models.Milestone{}).
		Where("id = ? AND completed_at IS NULL", id).
		UpdateColumn("completed_at", at).Error
}
