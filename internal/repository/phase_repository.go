package repository

import (
	"github.com/nocturne-lab/projecthub/internal/models"
	"gorm.io/gorm"
)

// GormPhaseRepository is a GORM implementation of PhaseRepository
type GormPhaseRepository struct {
	db *gorm.DB
}

// NewPhaseRepository creates a new PhaseRepository
func NewPhaseRepository(db *gorm.DB) PhaseRepository {
	return &GormPhaseRepository{db: db}
}

func (r *GormPhaseRepository) Create(p *models.Phase) error {
	return r.db.Create(p).Error
}

func (r *GormPhaseRepository) FindByID(id uint64) (*models.Phase, error) {
	var p models.Phase
	if err := r.db.First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormPhaseRepository) ListByProject(projectID uint64) ([]models.Phase, error) {
	var phases []models.Phase
	if err := r.db.Where("project_id = ?", projectID).
		Order("position ASC, id ASC").
		Find(&phases).Error; err != nil {
		return nil, err
	}
	return phases, nil
}

func (r *GormPhaseRepository) Update(p *models.Phase) error {
	return r.db.Save(p).Error
}

// Delete deletes a phase and detaches its tasks
func (r *GormPhaseRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Task{}).
			Where("phase_id = ?", id).
			UpdateColumn("phase_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Phase{}, id).Error
	})
}
