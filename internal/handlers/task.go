package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nocturne-lab/projecthub/internal/dto"
	apierrors "github.com/nocturne-lab/projecthub/internal/errors"
	"github.com/nocturne-lab/projecthub/internal/middleware"
	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/repository"
	"github.com/nocturne-lab/projecthub/internal/services"
	"github.com/nocturne-lab/projecthub/internal/utils"
)

// TaskHandler coordinates task HTTP handlers.
type TaskHandler struct {
	taskService *services.TaskService
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

// ListTasks returns tasks in a project, filtered and paginated.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	project, ok := middleware.GetProject(c)
	if !ok {
		apierrors.InternalError(c, "Project not found in context")
		return
	}

	params := utils.GetPaginationParams(c)

	projectID := project.ID
	filter := repository.TaskFilter{
		ProjectID: &projectID,
		Page:      params.Page,
		PageSize:  params.Limit,
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.TaskStatus(statusStr)
		if !models.ValidTaskStatus(status) {
			apierrors.BadRequest(c, "Invalid status filter")
			return
		}
		filter.Status = &status
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		priority := models.TaskPriority(priorityStr)
		filter.Priority = &priority
	}
	if assigneeStr := c.Query("assignee_id"); assigneeStr != "" {
		assigneeID, err := strconv.ParseUint(assigneeStr, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid assignee_id")
			return
		}
		filter.AssignedUserID = &assigneeID
	}
	if milestoneStr := c.Query("milestone_id"); milestoneStr != "" {
		milestoneID, err := strconv.ParseUint(milestoneStr, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid milestone_id")
			return
		}
		filter.MilestoneID = &milestoneID
	}
	if phaseStr := c.Query("phase_id"); phaseStr != "" {
		phaseID, err := strconv.ParseUint(phaseStr, 10, 64)
		if err != nil {
			apierrors.BadRequest(c, "Invalid phase_id")
			return
		}
		filter.PhaseID = &phaseID
	}
	if c.Query("root_only") == "true" {
		filter.RootOnly = true
	}
	if c.Query("sort") == "due_date" {
		filter.SortByDueDate = true
	}

	tasks, total, err := h.taskService.ListTasks(filter)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, params.Page, params.Limit, total))
}

// CreateTask creates a new task in a project.
func (h *TaskHandler) CreateTask(c *gin.Context) {
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

	type CreateTaskRequest struct {
		Title          string              `json:"title" binding:"required"`
		Description    string              `json:"description"`
		Status         models.TaskStatus   `json:"status"`
		Priority       models.TaskPriority `json:"priority"`
		ParentTaskID   *uint64             `json:"parent_task_id"`
		MilestoneID    *uint64             `json:"milestone_id"`
		PhaseID        *uint64             `json:"phase_id"`
		DueDate        *time.Time          `json:"due_date"`
		EstimatedHours float64             `json:"estimated_hours"`
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	task, err := h.taskService.CreateTask(services.CreateTaskInput{
		Title:          req.Title,
		Description:    req.Description,
		Status:         req.Status,
		Priority:       req.Priority,
		ProjectID:      project.ID,
		ParentTaskID:   req.ParentTaskID,
		MilestoneID:    req.MilestoneID,
		PhaseID:        req.PhaseID,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		CreatorID:      userID,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// GetTask returns a specific task.
// The task is already loaded with relations by RequireTaskAccess middleware.
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(task))
}

// UpdateTask applies partial changes to a task.
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	actorID, _ := middleware.GetUserID(c)

	// Parse raw JSON to distinguish absent fields from explicit nulls
	var rawReq map[string]any
	if err := c.ShouldBindJSON(&rawReq); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	var input services.UpdateTaskInput
	if title, ok := rawReq["title"].(string); ok {
		input.Title = &title
	}
	if description, ok := rawReq["description"].(string); ok {
		input.Description = &description
	}
	if statusStr, ok := rawReq["status"].(string); ok {
		status := models.TaskStatus(statusStr)
		input.Status = &status
	}
	if priorityStr, ok := rawReq["priority"].(string); ok {
		priority := models.TaskPriority(priorityStr)
		input.Priority = &priority
	}
	if raw, present := rawReq["milestone_id"]; present {
		if raw == nil {
			input.ClearMilestone = true
		} else if id, ok := toUint64(raw); ok {
			input.MilestoneID = &id
		}
	}
	if raw, present := rawReq["phase_id"]; present {
		if raw == nil {
			input.ClearPhase = true
		} else if id, ok := toUint64(raw); ok {
			input.PhaseID = &id
		}
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
	if raw, ok := rawReq["progress"].(float64); ok {
		progress := int(raw)
		input.Progress = &progress
	}
	if raw, ok := rawReq["estimated_hours"].(float64); ok {
		input.EstimatedHours = &raw
	}

	updated, err := h.taskService.UpdateTask(task.ID, input, actorID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

// DeleteTask deletes a task and its whole subtask tree.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	if err := h.taskService.DeleteTask(task.ID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task deleted successfully",
	})
}

// DuplicateTask copies a task and its whole subtask tree.
func (h *TaskHandler) DuplicateTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	actorID, _ := middleware.GetUserID(c)

	dup, err := h.taskService.DuplicateTask(task.ID, actorID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*dup))
}

// ListSubtasks returns the direct subtasks of a task.
func (h *TaskHandler) ListSubtasks(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	subtasks, err := h.taskService.ListSubtasks(task.ID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	items := make([]dto.TaskListItemDTO, len(subtasks))
	for i, t := range subtasks {
		items[i] = dto.ToTaskListItemDTO(t)
	}

	c.JSON(http.StatusOK, gin.H{
		"subtasks": items,
	})
}

// AssignTask assigns users to a task.
func (h *TaskHandler) AssignTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	actorID, _ := middleware.GetUserID(c)

	type AssignUserRequest struct {
		UserIDs []uint64 `json:"user_ids" binding:"required"`
	}

	var req AssignUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.taskService.AssignUsers(services.AssignUsersInput{
		TaskID:  task.ID,
		ActorID: actorID,
		UserIDs: req.UserIDs,
	}); err != nil {
		respondTaskError(c, err)
		return
	}

	updated, err := h.taskService.GetTask(task.ID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Users assigned successfully",
		"assignments": dto.ToTaskDTO(*updated).Assignments,
	})
}

// UnassignTask removes user assignments from a task.
func (h *TaskHandler) UnassignTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	type AssignUserRequest struct {
		UserIDs []uint64 `json:"user_ids" binding:"required"`
	}

	var req AssignUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	if err := h.taskService.UnassignUsers(task.ID, req.UserIDs); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Users unassigned successfully",
	})
}

// WatchTask subscribes the caller to task notifications.
func (h *TaskHandler) WatchTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	userID, _ := middleware.GetUserID(c)

	if err := h.taskService.Watch(task.ID, userID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Watching task",
	})
}

// UnwatchTask unsubscribes the caller from task notifications.
func (h *TaskHandler) UnwatchTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	userID, _ := middleware.GetUserID(c)

	if err := h.taskService.Unwatch(task.ID, userID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Stopped watching task",
	})
}

// ListDependencies returns the tasks this task depends on.
func (h *TaskHandler) ListDependencies(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	deps, err := h.taskService.ListDependencies(task.ID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	items := make([]dto.DependencyDTO, len(deps))
	for i, d := range deps {
		items[i] = dto.ToDependencyDTO(d)
	}

	c.JSON(http.StatusOK, gin.H{
		"dependencies": items,
	})
}

// AddDependency links this task to a prerequisite task.
func (h *TaskHandler) AddDependency(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	type AddDependencyRequest struct {
		DependsOnTaskID uint64                `json:"depends_on_task_id" binding:"required"`
		Type            models.DependencyType `json:"type"`
	}

	var req AddDependencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	dep, err := h.taskService.AddDependency(task.ID, req.DependsOnTaskID, req.Type)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToDependencyDTO(*dep))
}

// RemoveDependency removes a dependency link.
func (h *TaskHandler) RemoveDependency(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	dependsOnID, err := strconv.ParseUint(c.Param("depends_on_id"), 10, 64)
	if err != nil {
		apierrors.BadRequest(c, "Invalid dependency task ID")
		return
	}

	if err := h.taskService.RemoveDependency(task.ID, dependsOnID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Dependency removed successfully",
	})
}

// AddComment posts a comment on a task.
func (h *TaskHandler) AddComment(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	userID, _ := middleware.GetUserID(c)

	type AddCommentRequest struct {
		Body             string   `json:"body" binding:"required"`
		MentionedUserIDs []uint64 `json:"mentioned_user_ids"`
	}

	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	comment, err := h.taskService.AddComment(services.AddCommentInput{
		TaskID:           task.ID,
		AuthorID:         userID,
		Body:             req.Body,
		MentionedUserIDs: req.MentionedUserIDs,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// ListComments returns the comments on a task.
func (h *TaskHandler) ListComments(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	comments, err := h.taskService.ListComments(task.ID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
	})
}

// GenerateTasks generates task drafts from free-form text using AI.
func (h *TaskHandler) GenerateTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	type GenerateTasksRequest struct {
		Text string `json:"text" binding:"required"`
	}

	var req GenerateTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	generated, err := h.taskService.GenerateTasks(c.Request.Context(), services.GenerateTasksInput{
		Text:      req.Text,
		CreatorID: userID,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": generated,
	})
}

func toUint64(raw any) (uint64, bool) {
	f, ok := raw.(float64)
	if !ok || f < 0 {
		return 0, false
	}
	return uint64(f), true
}

func respondTaskError(c *gin.Context, err error) {
	var blocked *services.BlockedError
	if errors.As(err, &blocked) {
		apierrors.BlockedByDependency(c, blocked.Error(), blocked.Blockers)
		return
	}

	switch {
	case errors.Is(err, services.ErrTitleRequired),
		errors.Is(err, services.ErrTitleEmpty),
		errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrParentTaskWrongProject),
		errors.Is(err, services.ErrNoUserIDsProvided),
		errors.Is(err, services.ErrCommentBodyEmpty),
		errors.Is(err, services.ErrInvalidTaskAssignee),
		errors.Is(err, services.ErrSelfDependency),
		errors.Is(err, services.ErrInvalidDependencyType):
		apierrors.BadRequest(c, err.Error())
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrParentTaskNotFound),
		errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrDependencyTargetNotFound),
		errors.Is(err, services.ErrDependencyNotFound):
		apierrors.NotFound(c, err.Error())
	case errors.Is(err, services.ErrDependencyExists):
		apierrors.Conflict(c, err.Error())
	case errors.Is(err, services.ErrCycleDetected):
		apierrors.CycleDetected(c, err.Error())
	case errors.Is(err, services.ErrConcurrencyConflict):
		apierrors.ConcurrencyConflict(c, "")
	case errors.Is(err, services.ErrAIServiceNotConfigured):
		apierrors.RespondWithError(c, http.StatusServiceUnavailable,
			apierrors.NewAPIError(apierrors.ErrCodeServiceUnavailable, err.Error()))
	case errors.Is(err, services.ErrAINoTasksGenerated),
		errors.Is(err, services.ErrAINoValidTasks):
		apierrors.InternalError(c, err.Error())
	default:
		apierrors.InternalError(c, "Internal server error")
	}
}
