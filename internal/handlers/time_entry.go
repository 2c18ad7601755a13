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

// TimeEntryHandler coordinates time tracking HTTP handlers.
type TimeEntryHandler struct {
	timeService *services.TimeEntryService
}

// NewTimeEntryHandler creates a new TimeEntryHandler.
func NewTimeEntryHandler(timeService *services.TimeEntryService) *TimeEntryHandler {
	return &TimeEntryHandler{
		timeService: timeService,
	}
}

// LogTime records hours against a task.
func (h *TimeEntryHandler) LogTime(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	userID, _ := middleware.GetUserID(c)

	type LogTimeRequest struct {
		Hours       float64    `json:"hours" binding:"required"`
		Description string     `json:"description"`
		Date        *time.Time `json:"date"`
	}

	var req LogTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	date := time.Now()
	if req.Date != nil {
		date = *req.Date
	}

	entry, err := h.timeService.LogTime(services.LogTimeInput{
		TaskID:      task.ID,
		UserID:      userID,
		Hours:       req.Hours,
		Description: req.Description,
		Date:        date,
	})
	if err != nil {
		respondTimeEntryError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// ListTaskEntries returns the time entries logged against a task.
func (h *TimeEntryHandler) ListTaskEntries(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	entries, err := h.timeService.ListByTask(task.ID)
	if err != nil {
		respondTimeEntryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"time_entries": entries,
	})
}

// ListMyEntries returns the caller's own time entries, optionally
// bounded by date.
func (h *TimeEntryHandler) ListMyEntries(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	var from, to *time.Time
	if fromStr := c.Query("from"); fromStr != "" {
		parsed, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			apierrors.BadRequest(c, "Invalid from date")
			return
		}
		from = &parsed
	}
	if toStr := c.Query("to"); toStr != "" {
		parsed, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			apierrors.BadRequest(c, "Invalid to date")
			return
		}
		to = &parsed
	}

	entries, err := h.timeService.ListByUser(userID, from, to)
	if err != nil {
		respondTimeEntryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"time_entries": entries,
	})
}

// ApproveEntry marks a time entry as approved. Approval is one-shot.
func (h *TimeEntryHandler) ApproveEntry(c *gin.Context) {
	entryID, err := strconv.ParseUint(c.Param("entry_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid time entry ID")
		return
	}

	approverID, _ := middleware.GetUserID(c)

	entry, err := h.timeService.Approve(entryID, approverID)
	if err != nil {
		respondTimeEntryError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// DeleteEntry removes an unapproved time entry and reverses its hours.
func (h *TimeEntryHandler) DeleteEntry(c *gin.Context) {
	entryID, err := strconv.ParseUint(c.Param("entry_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid time entry ID")
		return
	}

	actorID, _ := middleware.GetUserID(c)

	if err := h.timeService.DeleteEntry(entryID, actorID); err != nil {
		respondTimeEntryError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Time entry deleted successfully",
	})
}

func respondTimeEntryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidHours):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrTimeEntryNotFound),
		errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrTimeEntryAlreadyApproved):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrNotTimeEntryOwner):
		apierrors.Forbidden(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
