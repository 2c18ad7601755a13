package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apierrors "github.com/nocturne-lab/projecthub/internal/errors"
	"github.com/nocturne-lab/projecthub/internal/middleware"
	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/services"
)

// DocumentHandler coordinates document HTTP handlers.
type DocumentHandler struct {
	docService *services.DocumentService
}

// NewDocumentHandler creates a new DocumentHandler.
func NewDocumentHandler(docService *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		docService: docService,
	}
}

// CreateDocument creates a document and its initial version.
func (h *DocumentHandler) CreateDocument(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	type CreateDocumentRequest struct {
		Title   string `json:"title" binding:"required"`
		Content string `json:"content"`
	}

	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	doc, err := h.docService.CreateDocument(services.CreateDocumentInput{
		Title:     req.Title,
		Content:   req.Content,
		ProjectID: project.ID,
		AuthorID:  userID,
	})
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// ListDocuments returns the project's documents.
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	docs, err := h.docService.ListDocuments(project.ID)
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
	})
}

// GetDocument returns one document.
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	doc, ok := h.loadProjectDocument(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, doc)
}

// UpdateDocument edits a document; a content change snapshots a new
// version.
func (h *DocumentHandler) UpdateDocument(c *gin.Context) {
	doc, ok := h.loadProjectDocument(c)
	if !ok {
		return
	}

	userID, _ := middleware.GetUserID(c)

	var rawReq map[string]any
	if err := c.ShouldBindJSON(&rawReq); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	var title, content *string
	if raw, ok := rawReq["title"].(string); ok {
		title = &raw
	}
	if raw, ok := rawReq["content"].(string); ok {
		content = &raw
	}

	updated, err := h.docService.UpdateDocument(doc.ID, userID, title, content)
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// LockDocument takes the advisory edit lock.
func (h *DocumentHandler) LockDocument(c *gin.Context) {
	doc, ok := h.loadProjectDocument(c)
	if !ok {
		return
	}

	userID, _ := middleware.GetUserID(c)

	locked, err := h.docService.Lock(doc.ID, userID)
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, locked)
}

// UnlockDocument releases the advisory edit lock.
func (h *DocumentHandler) UnlockDocument(c *gin.Context) {
	doc, ok := h.loadProjectDocument(c)
	if !ok {
		return
	}

	userID, _ := middleware.GetUserID(c)

	unlocked, err := h.docService.Unlock(doc.ID, userID)
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, unlocked)
}

// ListVersions returns the document's version history, newest first.
func (h *DocumentHandler) ListVersions(c *gin.Context) {
	doc, ok := h.loadProjectDocument(c)
	if !ok {
		return
	}

	versions, err := h.docService.ListVersions(doc.ID)
	if err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"versions": versions,
	})
}

// DeleteDocument deletes a document and its versions.
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	doc, ok := h.loadProjectDocument(c)
	if !ok {
		return
	}

	if err := h.docService.DeleteDocument(doc.ID); err != nil {
		respondDocumentError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Document deleted successfully",
	})
}

func (h *DocumentHandler) loadProjectDocument(c *gin.Context) (*models.Document, bool) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return nil, false
	}

	documentID, err := strconv.ParseUint(c.Param("document_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid document ID")
		return nil, false
	}

	doc, err := h.docService.GetDocument(documentID)
	if err != nil {
		respondDocumentError(c, err)
		return nil, false
	}

	if doc.ProjectID != project.ID {
		apierrors.NotFound(c, "Document not found")
		return nil, false
	}

	return doc, true
}

func respondDocumentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrDocumentTitleEmpty):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrDocumentNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrDocumentLocked):
		apierrors.Conflict(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
