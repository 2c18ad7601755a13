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
	"github.com/nocturne-lab/projecthub/internal/utils"
)

// NotificationHandler coordinates notification HTTP handlers.
type NotificationHandler struct {
	notifService *services.NotificationService
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(notifService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notifService: notifService,
	}
}

// ListNotifications returns the caller's in-app notifications.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	params := utils.GetPaginationParams(c)
	unreadOnly := c.Query("unread") == "true"

	notifications, total, err := h.notifService.ListNotifications(userID, unreadOnly, params.Page, params.Limit)
	if err != nil {
		respondNotificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"pagination": utils.PaginationResponse{
			Page:  params.Page,
			Limit: params.Limit,
			Total: total,
		},
	})
}

// MarkRead marks one notification as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	notifID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid notification ID")
		return
	}

	if err := h.notifService.MarkRead(notifID, userID); err != nil {
		respondNotificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Notification marked as read",
	})
}

// MarkAllRead marks all of the caller's notifications as read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	if err := h.notifService.MarkAllRead(userID); err != nil {
		respondNotificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "All notifications marked as read",
	})
}

// GetPreferences returns the caller's notification preferences, created
// with defaults on first access.
func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	pref, err := h.notifService.GetPreferences(userID)
	if err != nil {
		respondNotificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, pref)
}

// UpdatePreferences applies partial changes to the caller's preferences.
func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type UpdatePreferencesRequest struct {
		EmailEnabled      *bool                                           `json:"email_enabled"`
		InAppEnabled      *bool                                           `json:"in_app_enabled"`
		PushEnabled       *bool                                           `json:"push_enabled"`
		TypeOverrides     map[models.NotificationType]models.ChannelToggle `json:"type_overrides"`
		QuietHoursEnabled *bool                                           `json:"quiet_hours_enabled"`
		QuietHoursStart   *string                                         `json:"quiet_hours_start"`
		QuietHoursEnd     *string                                         `json:"quiet_hours_end"`
		MutedProjectIDs   []uint64                                        `json:"muted_project_ids"`
	}

	var req UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	pref, err := h.notifService.UpdatePreferences(userID, services.UpdatePreferencesInput{
		EmailEnabled:      req.EmailEnabled,
		InAppEnabled:      req.InAppEnabled,
		PushEnabled:       req.PushEnabled,
		TypeOverrides:     req.TypeOverrides,
		QuietHoursEnabled: req.QuietHoursEnabled,
		QuietHoursStart:   req.QuietHoursStart,
		QuietHoursEnd:     req.QuietHoursEnd,
		MutedProjectIDs:   req.MutedProjectIDs,
		SetMutedProjects:  req.MutedProjectIDs != nil,
	})
	if err != nil {
		respondNotificationError(c, err)
		return
	}

	c.JSON(http.StatusOK, pref)
}

func respondNotificationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotificationNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrInvalidQuietHours):
		apierrors.BadRequest(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
