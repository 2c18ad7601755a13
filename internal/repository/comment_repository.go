package repository

import (
	"github.com/nocturne-lab/projecthub/internal/models"
	"gorm.io/gorm"
)

// GormCommentRepository is a GORM implementation of CommentRepository
type GormCommentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &GormCommentRepository{db: db}
}

func (r *GormCommentRepository) Create(comment *models.Comment) error {
	return r.db.Create(comment).Error
}

func (r *GormCommentRepository) ListByTask(taskID uint64) ([]models.Comment, error) {
	var comments []models.Comment
	if err := r.db.Preload("Author").
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&comments).Error; err != nil {
		return nil, err
	}
	return comments, nil
}
