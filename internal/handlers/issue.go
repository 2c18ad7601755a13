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

// IssueHandler coordinates issue HTTP handlers.
type IssueHandler struct {
	issueService *services.IssueService
}

// NewIssueHandler creates a new IssueHandler.
func NewIssueHandler(issueService *services.IssueService) *IssueHandler {
	return &IssueHandler{
		issueService: issueService,
	}
}

// CreateIssue reports a new issue in the project.
func (h *IssueHandler) CreateIssue(c *gin.Context) {
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

	type CreateIssueRequest struct {
		Title       string               `json:"title" binding:"required"`
		Description string               `json:"description"`
		Severity    models.IssueSeverity `json:"severity"`
		AssigneeID  *uint64              `json:"assignee_id"`
		TaskID      *uint64              `json:"task_id"`
	}

	var req CreateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	issue, err := h.issueService.CreateIssue(services.CreateIssueInput{
		Title:       req.Title,
		Description: req.Description,
		Severity:    req.Severity,
		ProjectID:   project.ID,
		ReporterID:  userID,
		AssigneeID:  req.AssigneeID,
		TaskID:      req.TaskID,
	})
	if err != nil {
		respondIssueError(c, err)
		return
	}

	c.JSON(http.StatusCreated, issue)
}

// ListIssues returns the project's issues, optionally filtered by status.
func (h *IssueHandler) ListIssues(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	var status *models.IssueStatus
	if statusStr := c.Query("status"); statusStr != "" {
		s := models.IssueStatus(statusStr)
		status = &s
	}

	issues, err := h.issueService.ListIssues(project.ID, status)
	if err != nil {
		respondIssueError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issues": issues,
	})
}

// GetIssue returns one issue.
func (h *IssueHandler) GetIssue(c *gin.Context) {
	issue, ok := h.loadProjectIssue(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, issue)
}

// UpdateIssue applies partial changes to an issue.
func (h *IssueHandler) UpdateIssue(c *gin.Context) {
	issue, ok := h.loadProjectIssue(c)
	if !ok {
		return
	}

	actorID, _ := middleware.GetUserID(c)

	var rawReq map[string]any
	if err := c.ShouldBindJSON(&rawReq); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	var input services.UpdateIssueInput
	if title, ok := rawReq["title"].(string); ok {
		input.Title = &title
	}
	if description, ok := rawReq["description"].(string); ok {
		input.Description = &description
	}
	if severityStr, ok := rawReq["severity"].(string); ok {
		severity := models.IssueSeverity(severityStr)
		input.Severity = &severity
	}
	if statusStr, ok := rawReq["status"].(string); ok {
		status := models.IssueStatus(statusStr)
		input.Status = &status
	}
	if raw, present := rawReq["assignee_id"]; present {
		if raw == nil {
			input.ClearAssignee = true
		} else if id, ok := toUint64(raw); ok {
			input.AssigneeID = &id
		}
	}

	updated, err := h.issueService.UpdateIssue(issue.ID, input, actorID)
	if err != nil {
		respondIssueError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteIssue deletes an issue.
func (h *IssueHandler) DeleteIssue(c *gin.Context) {
	issue, ok := h.loadProjectIssue(c)
	if !ok {
		return
	}

	if err := h.issueService.DeleteIssue(issue.ID); err != nil {
		respondIssueError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Issue deleted successfully",
	})
}

func (h *IssueHandler) loadProjectIssue(c *gin.Context) (*models.Issue, bool) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return nil, false
	}

	issueID, err := strconv.ParseUint(c.Param("issue_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid issue ID")
		return nil, false
	}

	issue, err := h.issueService.GetIssue(issueID)
	if err != nil {
		respondIssueError(c, err)
		return nil, false
	}

	if issue.ProjectID != project.ID {
		apierrors.NotFound(c, "Issue not found")
		return nil, false
	}

	return issue, true
}

func respondIssueError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrIssueTitleEmpty):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrIssueNotFound),
		errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
