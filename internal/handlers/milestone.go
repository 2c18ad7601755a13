package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apierrors "github.com/nocturne-lab/projecthub/internal/errors"
	"github.com/nocturne-lab/projecthub/internal/middleware"
	"github.com/nocturne-lab/projecthub/internal/services"
)

// MilestoneHandler coordinates milestone and phase HTTP handlers.
// Progress and status in every response are derived from task state at
// read time.
type MilestoneHandler struct {
	milestoneService *services.MilestoneService
}

// NewMilestoneHandler creates a new MilestoneHandler.
func NewMilestoneHandler(milestoneService *services.MilestoneService) *MilestoneHandler {
	return &MilestoneHandler{
		milestoneService: milestoneService,
	}
}

// CreateMilestone creates a milestone in the project.
func (h *MilestoneHandler) CreateMilestone(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	type CreateMilestoneRequest struct {
		Name        string     `json:"name" binding:"required"`
		Description string     `json:"description"`
		DueDate     *time.Time `json:"due_date"`
		Position    int        `json:"position"`
	}

	var req CreateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	milestone, err := h.milestoneService.CreateMilestone(services.CreateMilestoneInput{
		Name:        req.Name,
		Description: req.Description,
		ProjectID:   project.ID,
		DueDate:     req.DueDate,
		Position:    req.Position,
	})
	if err != nil {
		respondMilestoneError(c, err)
		return
	}

	c.JSON(http.StatusCreated, milestone)
}

// ListMilestones returns the project's milestones with derived progress.
func (h *MilestoneHandler) ListMilestones(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	views, err := h.milestoneService.ListMilestones(project.ID)
	if err != nil {
		respondMilestoneError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"milestones": views,
	})
}

// GetMilestone returns one milestone with derived progress and status.
func (h *MilestoneHandler) GetMilestone(c *gin.Context) {
	view, ok := h.loadProjectMilestone(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, view)
}

// UpdateMilestone applies partial changes to a milestone.
func (h *MilestoneHandler) UpdateMilestone(c *gin.Context) {
	view, ok := h.loadProjectMilestone(c)
	if !ok {
		return
	}

	var rawReq map[string]any
	if err := c.ShouldBindJSON(&rawReq); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	var input services.UpdateMilestoneInput
	if name, ok := rawReq["name"].(string); ok {
		input.Name = &name
	}
	if description, ok := rawReq["description"].(string); ok {
		input.Description = &description
	}
	if raw, present := rawReq["due_date"]; present {
		if raw == nil {
			input.ClearDueDate = true
		} else if dueDateStr, ok := raw.(string); ok {
			parsed, err := time.Parse(time.RFC3339, dueDateStr)
			if err != nil {
				apierrors.BadRequest(c, "Invalid due_date format")
				return
			}
			input.DueDate = &parsed
		}
	}
	if raw, ok := rawReq["position"].(float64); ok {
		position := int(raw)
		input.Position = &position
	}

	updated, err := h.milestoneService.UpdateMilestone(view.ID, input)
	if err != nil {
		respondMilestoneError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeleteMilestone deletes a milestone; its tasks are detached, not
// deleted.
func (h *MilestoneHandler) DeleteMilestone(c *gin.Context) {
	view, ok := h.loadProjectMilestone(c)
	if !ok {
		return
	}

	if err := h.milestoneService.DeleteMilestone(view.ID); err != nil {
		respondMilestoneError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Milestone deleted successfully",
	})
}

// CreatePhase creates a phase in the project.
func (h *MilestoneHandler) CreatePhase(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	type CreatePhaseRequest struct {
		Name     string `json:"name" binding:"required"`
		Position int    `json:"position"`
	}

	var req CreatePhaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	phase, err := h.milestoneService.CreatePhase(services.CreatePhaseInput{
		Name:      req.Name,
		ProjectID: project.ID,
		Position:  req.Position,
	})
	if err != nil {
		respondMilestoneError(c, err)
		return
	}

	c.JSON(http.StatusCreated, phase)
}

// ListPhases returns the project's phases with derived progress.
func (h *MilestoneHandler) ListPhases(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	views, err := h.milestoneService.ListPhases(project.ID)
	if err != nil {
		respondMilestoneError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"phases": views,
	})
}

// UpdatePhase applies partial changes to a phase.
func (h *MilestoneHandler) UpdatePhase(c *gin.Context) {
	view, ok := h.loadProjectPhase(c)
	if !ok {
		return
	}

	var rawReq map[string]any
	if err := c.ShouldBindJSON(&rawReq); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	var name *string
	if raw, ok := rawReq["name"].(string); ok {
		name = &raw
	}
	var position *int
	if raw, ok := rawReq["position"].(float64); ok {
		p := int(raw)
		position = &p
	}

	updated, err := h.milestoneService.UpdatePhase(view.ID, name, position)
	if err != nil {
		respondMilestoneError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// DeletePhase deletes a phase; its tasks are detached, not deleted.
func (h *MilestoneHandler) DeletePhase(c *gin.Context) {
	view, ok := h.loadProjectPhase(c)
	if !ok {
		return
	}

	if err := h.milestoneService.DeletePhase(view.ID); err != nil {
		respondMilestoneError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Phase deleted successfully",
	})
}

// loadProjectMilestone resolves :milestone_id within the project from
// the context; writes the error response itself on failure.
func (h *MilestoneHandler) loadProjectMilestone(c *gin.Context) (*services.MilestoneView, bool) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return nil, false
	}

	milestoneID, err := strconv.ParseUint(c.Param("milestone_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid milestone ID")
		return nil, false
	}

	view, err := h.milestoneService.GetMilestone(milestoneID)
	if err != nil {
		respondMilestoneError(c, err)
		return nil, false
	}

	if view.ProjectID != project.ID {
		apierrors.NotFound(c, "Milestone not found")
		return nil, false
	}

	return view, true
}

func (h *MilestoneHandler) loadProjectPhase(c *gin.Context) (*services.PhaseView, bool) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return nil, false
	}

	phaseID, err := strconv.ParseUint(c.Param("phase_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid phase ID")
		return nil, false
	}

	view, err := h.milestoneService.GetPhase(phaseID)
	if err != nil {
		respondMilestoneError(c, err)
		return nil, false
	}

	if view.ProjectID != project.ID {
		apierrors.NotFound(c, "Phase not found")
		return nil, false
	}

	return view, true
}

func respondMilestoneError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrMilestoneNameEmpty),
		errors.Is(err, services.ErrPhaseNameEmpty):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrMilestoneNotFound),
		errors.Is(err, services.ErrPhaseNotFound),
		errors.Is(err, services.ErrProjectNotFound):
		apierrors.NotFound(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
