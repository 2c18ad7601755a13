package repository

import (
	"github.com/nocturne-lab/projecthub/internal/models"
	"gorm.io/gorm"
)

// GormDocumentRepository is a GORM implementation of DocumentRepository
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &GormDocumentRepository{db: db}
}

func (r *GormDocumentRepository) Create(doc *models.Document) error {
	return r.db.Create(doc).Error
}

func (r *GormDocumentRepository) FindByID(id uint64, preload ...string) (*models.Document, error) {
	var doc models.Document
	query := r.db
	for _, p := range preload {
		query = query.Preload(p)
	}
	if err := query.First(&doc, id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *GormDocumentRepository) ListByProject(projectID uint64) ([]models.Document, error) {
	var docs []models.Document
	if err := r.db.Where("project_id = ?", projectID).
		Order("updated_at DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *GormDocumentRepository) Update(doc *models.Document) error {
	return r.db.Save(doc).Error
}

// Delete removes a document and its version history
func (r *GormDocumentRepository) Delete(id uint64) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.DocumentVersion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Document{}, id).Error
	})
}

func (r *GormDocumentRepository) AddVersion(v *models.DocumentVersion) error {
	return r.db.Create(v).Error
}

func (r *GormDocumentRepository) ListVersions(documentID uint64) ([]models.DocumentVersion, error) {
	var versions []models.DocumentVersion
	if err := r.db.Where("document_id = ?", documentID).
		Order("created_at DESC").
		Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}
