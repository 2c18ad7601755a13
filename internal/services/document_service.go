package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrDocumentTitleEmpty = errors.New("document title cannot be empty")
	ErrDocumentLocked     = errors.New("document is locked by another user")
)

// DocumentService provides business logic for project documents. The
// edit lock is advisory: it stops simultaneous edits by convention, not
// by transactional guarantee.
type DocumentService struct {
	docRepo repository.DocumentRepository
}

// NewDocumentService creates a new DocumentService.
func NewDocumentService(docRepo repository.DocumentRepository) *DocumentService {
	return &DocumentService{docRepo: docRepo}
}

// CreateDocumentInput represents input for creating a document.
type CreateDocumentInput struct {
	Title     string
	Content   string
	ProjectID uint64
	AuthorID  uint64
}

// CreateDocument creates a document and its initial version snapshot.
func (s *DocumentService) CreateDocument(input CreateDocumentInput) (*models.Document, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrDocumentTitleEmpty
	}

	doc := &models.Document{
		Title:     input.Title,
		Content:   input.Content,
		ProjectID: input.ProjectID,
		AuthorID:  input.AuthorID,
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	version := &models.DocumentVersion{
		DocumentID: doc.ID,
		VersionKey: uuid.NewString(),
		Content:    input.Content,
		EditorID:   input.AuthorID,
	}
	if err := s.docRepo.AddVersion(version); err != nil {
		return nil, fmt.Errorf("failed to record document version: %w", err)
	}
	return doc, nil
}

// GetDocument returns a document by ID.
func (s *DocumentService) GetDocument(documentID uint64) (*models.Document, error) {
	doc, err := s.docRepo.FindByID(documentID, "Author")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns a project's documents.
func (s *DocumentService) ListDocuments(projectID uint64) ([]models.Document, error) {
	docs, err := s.docRepo.ListByProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// UpdateDocument saves new content, snapshots a version, and respects
// another user's advisory lock.
func (s *DocumentService) UpdateDocument(documentID, editorID uint64, title, content *string) (*models.Document, error) {
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to find document: %w", err)
	}

	if doc.LockedBy != nil && *doc.LockedBy != editorID {
		return nil, ErrDocumentLocked
	}

	contentChanged := false
	if title != nil {
		if strings.TrimSpace(*title) == "" {
			return nil, ErrDocumentTitleEmpty
		}
		doc.Title = *title
	}
	if content != nil && *content != doc.Content {
		doc.Content = *content
		contentChanged = true
	}

	if err := s.docRepo.Update(doc); err != nil {
		return nil, fmt.Errorf("failed to update document: %w", err)
	}

	if contentChanged {
		version := &models.DocumentVersion{
			DocumentID: doc.ID,
			VersionKey: uuid.NewString(),
			Content:    doc.Content,
			EditorID:   editorID,
		}
		if err := s.docRepo.AddVersion(version); err != nil {
			return nil, fmt.Errorf("failed to record document version: %w", err)
		}
	}
	return doc, nil
}

// Lock takes the advisory edit lock for a user. Taking a lock already
// held by someone else fails.
func (s *DocumentService) Lock(documentID, userID uint64) (*models.Document, error) {
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to find document: %w", err)
	}

	if doc.LockedBy != nil && *doc.LockedBy != userID {
		return nil, ErrDocumentLocked
	}

	now := time.Now()
	doc.LockedBy = &userID
	doc.LockedAt = &now
	if err := s.docRepo.Update(doc); err != nil {
		return nil, fmt.Errorf("failed to lock document: %w", err)
	}
	return doc, nil
}

// Unlock releases the advisory edit lock. Only the holder may release
// it.
func (s *DocumentService) Unlock(documentID, userID uint64) (*models.Document, error) {
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to find document: %w", err)
	}

	if doc.LockedBy != nil && *doc.LockedBy != userID {
		return nil, ErrDocumentLocked
	}

	doc.LockedBy = nil
	doc.LockedAt = nil
	if err := s.docRepo.Update(doc); err != nil {
		return nil, fmt.Errorf("failed to unlock document: %w", err)
	}
	return doc, nil
}

// ListVersions returns a document's version history, newest first.
func (s *DocumentService) ListVersions(documentID uint64) ([]models.DocumentVersion, error) {
	if _, err := s.docRepo.FindByID(documentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return s.docRepo.ListVersions(documentID)
}

// DeleteDocument removes a document and its version history.
func (s *DocumentService) DeleteDocument(documentID uint64) error {
	if _, err := s.docRepo.FindByID(documentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to find document: %w", err)
	}
	if err := s.docRepo.Delete(documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
