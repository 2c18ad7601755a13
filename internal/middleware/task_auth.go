package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nocturne-lab/projecthub/internal/constants"
	"github.com/nocturne-lab/projecthub/internal/database"
	apierrors "github.com/nocturne-lab/projecthub/internal/errors"
	"github.com/nocturne-lab/projecthub/internal/models"
)

// RequireTaskAccess checks if the user has access to a task.
// User must be a member of the organization owning the task's project.
func RequireTaskAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		taskIDStr := c.Param("id")
		taskID, err := strconv.ParseUint(taskIDStr, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid task ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		var task models.Task
		if err := database.GetDB().
			Preload("Project").
			Preload("Creator").
			Preload("Assignments").
			Preload("Assignments.User").
			First(&task, taskID).Error; err != nil {
			apierrors.NotFound(c, "Task not found")
			c.Abort()
			return
		}

		var member models.OrganizationMember
		err = database.GetDB().
			Where("organization_id = ? AND user_id = ?", task.Project.OrganizationID, userID).
			First(&member).Error
		if err != nil {
			// Return 404 instead of 403 to avoid leaking task existence
			apierrors.NotFound(c, "Task not found")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyTask, task)
		c.Set(constants.ContextKeyOrgMember, member)
		c.Next()
	}
}

// GetTask retrieves the task loaded by RequireTaskAccess
func GetTask(c *gin.Context) (models.Task, bool) {
	taskInterface, exists := c.Get(constants.ContextKeyTask)
	if !exists {
		return models.Task{}, false
	}
	task, ok := taskInterface.(models.Task)
	return task, ok
}
