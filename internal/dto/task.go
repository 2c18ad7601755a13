package dto

import (
	"time"

	"github.com/nocturne-lab/projecthub/internal/models"
)

// UserDTO represents a user in API responses
type UserDTO struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

// OrganizationDTO represents an organization in API responses
type OrganizationDTO struct {
	ID         uint64 `json:"id"`
	Name       string `json:"name"`
	InviteCode string `json:"invite_code,omitempty"`
}

// ProjectDTO represents a project in API responses
type ProjectDTO struct {
	ID             uint64               `json:"id"`
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	Status         models.ProjectStatus `json:"status"`
	OrganizationID uint64               `json:"organization_id"`
	OwnerID        uint64               `json:"owner_id"`
	StartDate      *time.Time           `json:"start_date"`
	EndDate        *time.Time           `json:"end_date"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// TaskAssignmentDTO represents a task assignment in API responses
type TaskAssignmentDTO struct {
	User UserDTO `json:"user"`
}

// TaskDTO represents a task in API responses
type TaskDTO struct {
	ID             uint64              `json:"id"`
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	Status         models.TaskStatus   `json:"status"`
	Priority       models.TaskPriority `json:"priority"`
	ProjectID      uint64              `json:"project_id"`
	ParentTaskID   *uint64             `json:"parent_task_id"`
	MilestoneID    *uint64             `json:"milestone_id"`
	PhaseID        *uint64             `json:"phase_id"`
	DueDate        *time.Time          `json:"due_date"`
	Progress       int                 `json:"progress"`
	EstimatedHours float64             `json:"estimated_hours"`
	ActualHours    float64             `json:"actual_hours"`
	LockVersion    uint64              `json:"lock_version"`
	CreatorID      uint64              `json:"creator_id"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Creator        *UserDTO            `json:"creator,omitempty"`
	Assignments    []TaskAssignmentDTO `json:"assignments,omitempty"`
}

// TaskListItemDTO represents a task in list responses (minimal data)
type TaskListItemDTO struct {
	ID           uint64              `json:"id"`
	Title        string              `json:"title"`
	Status       models.TaskStatus   `json:"status"`
	Priority     models.TaskPriority `json:"priority"`
	ParentTaskID *uint64             `json:"parent_task_id"`
	DueDate      *time.Time          `json:"due_date"`
	Progress     int                 `json:"progress"`
	CreatorID    uint64              `json:"creator_id"`
	Creator      *UserDTO            `json:"creator,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskListItemDTO `json:"tasks"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalCount int64             `json:"total_count"`
	TotalPages int               `json:"total_pages"`
}

// DependencyDTO represents a task dependency in API responses
type DependencyDTO struct {
	TaskID          uint64                `json:"task_id"`
	DependsOnTaskID uint64                `json:"depends_on_task_id"`
	Type            models.DependencyType `json:"type"`
	DependsOn       *TaskListItemDTO      `json:"depends_on,omitempty"`
}

// Conversion functions

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	return UserDTO{
		ID:       user.ID,
		Username: user.Username,
	}
}

// ToOrganizationDTO converts an Organization model to OrganizationDTO
func ToOrganizationDTO(org models.Organization, includeInviteCode bool) OrganizationDTO {
	dto := OrganizationDTO{
		ID:   org.ID,
		Name: org.Name,
	}
	if includeInviteCode {
		dto.InviteCode = org.InviteCode
	}
	return dto
}

// ToProjectDTO converts a Project model to ProjectDTO
func ToProjectDTO(project models.Project) ProjectDTO {
	return ProjectDTO{
		ID:             project.ID,
		Name:           project.Name,
		Description:    project.Description,
		Status:         project.Status,
		OrganizationID: project.OrganizationID,
		OwnerID:        project.OwnerID,
		StartDate:      project.StartDate,
		EndDate:        project.EndDate,
		CreatedAt:      project.CreatedAt,
		UpdatedAt:      project.UpdatedAt,
	}
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	dto := TaskDTO{
		ID:             task.ID,
		Title:          task.Title,
		Description:    task.Description,
		Status:         task.Status,
		Priority:       task.Priority,
		ProjectID:      task.ProjectID,
		ParentTaskID:   task.ParentTaskID,
		MilestoneID:    task.MilestoneID,
		PhaseID:        task.PhaseID,
		DueDate:        task.DueDate,
		Progress:       task.Progress,
		EstimatedHours: task.EstimatedHours,
		ActualHours:    task.ActualHours,
		LockVersion:    task.LockVersion,
		CreatorID:      task.CreatorID,
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
	}

	// Include creator if preloaded
	if task.Creator.ID != 0 {
		creator := ToUserDTO(task.Creator)
		dto.Creator = &creator
	}

	// Include assignments if preloaded
	if len(task.Assignments) > 0 {
		dto.Assignments = make([]TaskAssignmentDTO, len(task.Assignments))
		for i, assignment := range task.Assignments {
			dto.Assignments[i] = TaskAssignmentDTO{
				User: ToUserDTO(assignment.User),
			}
		}
	}

	return dto
}

// ToTaskListItemDTO converts a Task model to TaskListItemDTO
func ToTaskListItemDTO(task models.Task) TaskListItemDTO {
	dto := TaskListItemDTO{
		ID:           task.ID,
		Title:        task.Title,
		Status:       task.Status,
		Priority:     task.Priority,
		ParentTaskID: task.ParentTaskID,
		DueDate:      task.DueDate,
		Progress:     task.Progress,
		CreatorID:    task.CreatorID,
		CreatedAt:    task.CreatedAt,
	}

	if task.Creator.ID != 0 {
		creator := ToUserDTO(task.Creator)
		dto.Creator = &creator
	}

	return dto
}

// ToTaskListResponse converts a slice of tasks to TaskListResponse
func ToTaskListResponse(tasks []models.Task, page, pageSize int, totalCount int64) TaskListResponse {
	items := make([]TaskListItemDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskListItemDTO(task)
	}

	totalPages := int(totalCount) / pageSize
	if int(totalCount)%pageSize > 0 {
		totalPages++
	}

	return TaskListResponse{
		Tasks:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}
}

// ToDependencyDTO converts a TaskDependency model to DependencyDTO
func ToDependencyDTO(dep models.TaskDependency) DependencyDTO {
	dto := DependencyDTO{
		TaskID:          dep.TaskID,
		DependsOnTaskID: dep.DependsOnTaskID,
		Type:            dep.Type,
	}
	if dep.DependsOn.ID != 0 {
		item := ToTaskListItemDTO(dep.DependsOn)
		dto.DependsOn = &item
	}
	return dto
}
