package repository

import (
	"github.com/nocturne-lab/projecthub/internal/models"
	"gorm.io/gorm"
)

// GormIssueRepository is a GORM implementation of IssueRepository
type GormIssueRepository struct {
	db *gorm.DB
}

// NewIssueRepository creates a new IssueRepository
func NewIssueRepository(db *gorm.DB) IssueRepository {
	return &GormIssueRepository{db: db}
}

func (r *GormIssueRepository) Create(issue *models.Issue) error {
	return r.db.Create(issue).Error
}

func (r *GormIssueRepository) FindByID(id uint64, preload ...string) (*models.Issue, error) {
	var issue models.Issue
	query := r.db
	for _, p := range preload {
		query = query.Preload(p)
	}
	if err := query.First(&issue, id).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *GormIssueRepository) ListByProject(projectID uint64, status *models.IssueStatus) ([]models.Issue, error) {
	query := r.db.Where("project_id = ?", projectID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var issues []models.Issue
	if err := query.Order("created_at DESC").Find(&issues).Error; err != nil {
		return nil, err
	}
	return issues, nil
}

func (r *GormIssueRepository) Update(issue *models.Issue) error {
	return r.db.Save(issue).Error
}

func (r *GormIssueRepository) Delete(id uint64) error {
	return r.db.Delete(&models.Issue{}, id).Error
}
