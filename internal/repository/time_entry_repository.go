package repository

import (
	"time"

	"github.com/nocturne-lab/projecthub/internal/models"
	"gorm.io/gorm"
)

// GormTimeEntryRepository is a GORM implementation of TimeEntryRepository
type GormTimeEntryRepository struct {
	db *gorm.DB
}

// NewTimeEntryRepository creates a new TimeEntryRepository
func NewTimeEntryRepository(db *gorm.DB) TimeEntryRepository {
	return &GormTimeEntryRepository{db: db}
}

func (r *GormTimeEntryRepository) Create(entry *models.TimeEntry) error {
	return r.db.Create(entry).Error
}

func (r *GormTimeEntryRepository) FindByID(id uint64) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	if err := r.db.First(&entry, id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *GormTimeEntryRepository) ListByTask(taskID uint64) ([]models.TimeEntry, error) {
	var entries []models.TimeEntry
	if err := r.db.Where("task_id = ?", taskID).
		Order("date DESC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *GormTimeEntryRepository) ListByUser(userID uint64, from, to *time.Time) ([]models.TimeEntry, error) {
	query := r.db.Where("user_id = ?", userID)
	if from != nil {
		query = query.Where("date >= ?", *from)
	}
	if to != nil {
		query = query.Where("date < ?", *to)
	}

	var entries []models.TimeEntry
	if err := query.Order("date DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *GormTimeEntryRepository) Update(entry *models.TimeEntry) error {
	return r.db.Save(entry).Error
}

func (r *GormTimeEntryRepository) Delete(id uint64) error {
	return r.db.Delete(&models.TimeEntry{}, id).Error
}
