package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nocturne-lab/projecthub/internal/constants"
	"github.com/nocturne-lab/projecthub/internal/dto"
	apierrors "github.com/nocturne-lab/projecthub/internal/errors"
	"github.com/nocturne-lab/projecthub/internal/middleware"
	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/services"
)

// ProjectHandler coordinates project HTTP handlers.
type ProjectHandler struct {
	projectService *services.ProjectService
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(projectService *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{
		projectService: projectService,
	}
}

// CreateProject creates a new project in the organization.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	orgInterface, _ := c.Get(constants.ContextKeyOrganization)
	org := orgInterface.(models.Organization)

	type CreateProjectRequest struct {
		Name        string     `json:"name" binding:"required"`
		Description string     `json:"description"`
		StartDate   *time.Time `json:"start_date"`
		EndDate     *time.Time `json:"end_date"`
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	project, err := h.projectService.CreateProject(services.CreateProjectInput{
		Name:           req.Name,
		Description:    req.Description,
		OrganizationID: org.ID,
		OwnerID:        userID,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	})
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToProjectDTO(*project))
}

// ListProjects returns all projects in the organization.
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	orgInterface, _ := c.Get(constants.ContextKeyOrganization)
	org := orgInterface.(models.Organization)

	projects, err := h.projectService.ListProjects(org.ID)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	items := make([]dto.ProjectDTO, len(projects))
	for i, p := range projects {
		items[i] = dto.ToProjectDTO(p)
	}

	c.JSON(http.StatusOK, gin.H{
		"projects": items,
	})
}

// GetProject returns a specific project.
// The project is already loaded by RequireProjectAccess middleware.
func (h *ProjectHandler) GetProject(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTO(project))
}

// UpdateProject applies partial changes to a project.
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	actorID, _ := middleware.GetUserID(c)

	type UpdateProjectRequest struct {
		Name        *string               `json:"name"`
		Description *string               `json:"description"`
		Status      *models.ProjectStatus `json:"status"`
		StartDate   *time.Time            `json:"start_date"`
		EndDate     *time.Time            `json:"end_date"`
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.projectService.UpdateProject(project.ID, services.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	}, actorID)
	if err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToProjectDTO(*updated))
}

// DeleteProject deletes a project along with its tasks, milestones,
// phases, issues, documents and time entries.
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	if err := h.projectService.DeleteProject(project.ID); err != nil {
		respondProjectError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Project deleted successfully",
	})
}

func respondProjectError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrProjectNameEmpty),
		errors.Is(err, services.ErrInvalidProjectStatus):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrOrganizationNotFound):
		apierrors.NotFound(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
