package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nocturne-lab/projecthub/internal/constants"
	"github.com/nocturne-lab/projecthub/internal/database"
	apierrors "github.com/nocturne-lab/projecthub/internal/errors"
	"github.com/nocturne-lab/projecthub/internal/models"
)

// RequireProjectAccess checks if the user is a member of the project's
// organization. The project is loaded into the context.
func RequireProjectAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		projectIDStr := c.Param("id")
		projectID, err := strconv.ParseUint(projectIDStr, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid project ID")
			c.Abort()
			return
		}

		userID, exists := GetUserID(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		var project models.Project
		if err := database.GetDB().First(&project, projectID).Error; err != nil {
			apierrors.NotFound(c, "Project not found")
			c.Abort()
			return
		}

		var member models.OrganizationMember
		err = database.GetDB().
			Where("organization_id = ? AND user_id = ?", project.OrganizationID, userID).
			First(&member).Error
		if err != nil {
			// Return 404 instead of 403 to avoid leaking project existence
			apierrors.NotFound(c, "Project not found")
			c.Abort()
			return
		}

		c.Set(constants.ContextKeyProject, project)
		c.Set(constants.ContextKeyOrgMember, member)
		c.Next()
	}
}

// GetProject retrieves the project loaded by RequireProjectAccess
func GetProject(c *gin.Context) (models.Project, bool) {
	projectInterface, exists := c.Get(constants.ContextKeyProject)
	if !exists {
		return models.Project{}, false
	}
	project, ok := projectInterface.(models.Project)
	return project, ok
}
