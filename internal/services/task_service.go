package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nocturne-lab/projecthub/internal/constants"
	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound           = errors.New("task not found")
	ErrParentTaskNotFound     = errors.New("parent task not found")
	ErrParentTaskWrongProject = errors.New("parent task belongs to a different project")
	ErrProjectNotFound        = errors.New("project not found")
	ErrTitleRequired          = errors.New("title is required")
	ErrTitleEmpty             = errors.New("title cannot be empty")
	ErrInvalidStatus          = errors.New("invalid task status")
	ErrNoUserIDsProvided      = errors.New("at least one user ID is required")
	ErrCommentBodyEmpty       = errors.New("comment body cannot be empty")
	ErrInvalidTaskAssignee    = errors.New("one or more users do not exist or are not members of the organization")
	ErrConcurrencyConflict    = errors.New("task was modified concurrently, retry the operation")
	ErrAIServiceNotConfigured = errors.New("AI service is not configured")
	ErrAINoTasksGenerated     = errors.New("AI did not generate any tasks")
	ErrAINoValidTasks         = errors.New("no valid tasks could be created from AI output")
)

// TaskService handles task business logic: CRUD, the parent/subtask
// hierarchy with progress roll-up, and the dependency graph (see
// task_graph.go).
type TaskService struct {
	taskRepo    repository.TaskRepository
	projectRepo repository.ProjectRepository
	commentRepo repository.CommentRepository
	notifier    Notifier
	aiService   *AIService
}

// NewTaskService creates a new TaskService. notifier and aiService may
// be nil; the corresponding side effects are then skipped.
func NewTaskService(taskRepo repository.TaskRepository, projectRepo repository.ProjectRepository, commentRepo repository.CommentRepository, notifier Notifier, aiService *AIService) *TaskService {
	return &TaskService{
		taskRepo:    taskRepo,
		projectRepo: projectRepo,
		commentRepo: commentRepo,
		notifier:    notifier,
		aiService:   aiService,
	}
}

// CreateTaskInput represents input for creating a task
type CreateTaskInput struct {
	Title          string
	Description    string
	Status         models.TaskStatus
	Priority       models.TaskPriority
	ProjectID      uint64
	ParentTaskID   *uint64
	MilestoneID    *uint64
	PhaseID        *uint64
	DueDate        *time.Time
	EstimatedHours float64
	CreatorID      uint64
}

// CreateTask creates a new task, validates the parent link, and rolls
// up the parent's progress.
func (s *TaskService) CreateTask(input CreateTaskInput) (*models.Task, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrTitleRequired
	}

	if _, err := s.projectRepo.FindByID(input.ProjectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	if input.ParentTaskID != nil {
		parent, err := s.taskRepo.FindByID(*input.ParentTaskID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentTaskNotFound
			}
			return nil, fmt.Errorf("failed to find parent task: %w", err)
		}
		if parent.ProjectID != input.ProjectID {
			return nil, ErrParentTaskWrongProject
		}
	}

	if input.Status == "" {
		input.Status = models.TaskStatusOpen
	}
	if !models.ValidTaskStatus(input.Status) {
		return nil, ErrInvalidStatus
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	}

	task := &models.Task{
		Title:          input.Title,
		Description:    input.Description,
		Status:         input.Status,
		Priority:       input.Priority,
		ProjectID:      input.ProjectID,
		ParentTaskID:   input.ParentTaskID,
		MilestoneID:    input.MilestoneID,
		PhaseID:        input.PhaseID,
		DueDate:        input.DueDate,
		EstimatedHours: input.EstimatedHours,
		CreatorID:      input.CreatorID,
	}

	if err := s.taskRepo.Create(task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := s.taskRepo.AssignUsers(task.ID, []uint64{input.CreatorID}); err != nil {
		return nil, fmt.Errorf("failed to assign creator to task: %w", err)
	}

	if input.ParentTaskID != nil {
		if err := s.RecomputeProgress(*input.ParentTaskID); err != nil {
			return nil, err
		}
	}

	return s.taskRepo.FindByID(task.ID, "Creator", "Assignments", "Assignments.User", "Dependencies")
}

// GetTask returns a task with related data
func (s *TaskService) GetTask(taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID, "Creator", "Assignments", "Assignments.User", "Watchers", "Dependencies", "Dependencies.DependsOn")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// ListTasks returns tasks matching the filter
func (s *TaskService) ListTasks(filter repository.TaskFilter) ([]models.Task, int64, error) {
	tasks, total, err := s.taskRepo.List(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}

// ListSubtasks returns the direct children of a task
func (s *TaskService) ListSubtasks(taskID uint64) ([]models.Task, error) {
	if _, err := s.taskRepo.FindByID(taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return s.taskRepo.ListSubtasks(taskID)
}

// UpdateTaskInput represents input for updating a task
type UpdateTaskInput struct {
	Title          *string
	Description    *string
	Status         *models.TaskStatus
	Priority       *models.TaskPriority
	MilestoneID    *uint64
	ClearMilestone bool
	PhaseID        *uint64
	ClearPhase     bool
	DueDate        *time.Time
	ClearDueDate   bool
	Progress       *int
	EstimatedHours *float64
}

// UpdateTask applies changes to a task. A status change to in_progress
// or completed is gated on the task's dependencies; on success the
// parent's progress is rolled up.
func (s *TaskService) UpdateTask(taskID uint64, input UpdateTaskInput, actorID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	statusChanged := false
	if input.Status != nil && *input.Status != task.Status {
		if !models.ValidTaskStatus(*input.Status) {
			return nil, ErrInvalidStatus
		}
		if err := s.CanTransition(task, *input.Status); err != nil {
			return nil, err
		}
		task.Status = *input.Status
		statusChanged = true
	}

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, ErrTitleEmpty
		}
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.ClearMilestone {
		task.MilestoneID = nil
	} else if input.MilestoneID != nil {
		task.MilestoneID = input.MilestoneID
	}
	if input.ClearPhase {
		task.PhaseID = nil
	} else if input.PhaseID != nil {
		task.PhaseID = input.PhaseID
	}
	if input.ClearDueDate {
		task.DueDate = nil
	} else if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.Progress != nil {
		subtasks, err := s.taskRepo.ListSubtasks(task.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list subtasks: %w", err)
		}
		// Manual progress only applies to leaf tasks; a parent's
		// progress is always derived from its subtasks.
		if len(subtasks) == 0 {
			p := *input.Progress
			if p < 0 {
				p = 0
			}
			if p > 100 {
				p = 100
			}
			task.Progress = p
		}
	}
	if input.EstimatedHours != nil {
		task.EstimatedHours = *input.EstimatedHours
	}

	if err := s.taskRepo.Update(task); err != nil {
		if errors.Is(err, repository.ErrOptimisticLock) {
			return nil, ErrConcurrencyConflict
		}
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if statusChanged {
		if task.ParentTaskID != nil {
			if err := s.RecomputeProgress(*task.ParentTaskID); err != nil {
				return nil, err
			}
		}
		s.notifyStatusChange(task, actorID)
	}

	return s.taskRepo.FindByID(task.ID, "Creator", "Assignments", "Assignments.User", "Dependencies")
}

// DeleteTask deletes a task, all of its subtasks recursively, and every
// dependency edge referencing any of them, then rolls up the former
// parent's progress.
func (s *TaskService) DeleteTask(taskID uint64) error {
	task, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to find task: %w", err)
	}

	ids, err := s.collectSubtree(taskID)
	if err != nil {
		return err
	}

	if err := s.taskRepo.DeleteCascade(ids); err != nil {
		return fmt.Errorf("failed to delete task tree: %w", err)
	}

	if task.ParentTaskID != nil {
		if err := s.RecomputeProgress(*task.ParentTaskID); err != nil {
			return err
		}
	}
	return nil
}

// DuplicateTask copies a task and its whole subtask tree. The copies
// start over: status open, progress zero, no assignments, comments, or
// dependency edges. The new root sits next to the original under the
// same parent. The tree is walked with an explicit worklist, so deep
// trees cannot exhaust the stack.
func (s *TaskService) DuplicateTask(taskID, actorID uint64) (*models.Task, error) {
	source, err := s.taskRepo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	type workItem struct {
		sourceID  uint64
		newParent *uint64
	}

	var rootID uint64
	work := []workItem{{sourceID: source.ID, newParent: source.ParentTaskID}}

	for len(work) > 0 {
		item := work[len(work)-1]
		work = work[:len(work)-1]

		src, err := s.taskRepo.FindByID(item.sourceID)
		if err != nil {
			return nil, fmt.Errorf("failed to load task %d: %w", item.sourceID, err)
		}

		dup := &models.Task{
			Title:          src.Title,
			Description:    src.Description,
			Status:         models.TaskStatusOpen,
			Priority:       src.Priority,
			ProjectID:      src.ProjectID,
			ParentTaskID:   item.newParent,
			MilestoneID:    src.MilestoneID,
			PhaseID:        src.PhaseID,
			DueDate:        src.DueDate,
			EstimatedHours: src.EstimatedHours,
			CreatorID:      actorID,
		}
		if item.sourceID == source.ID {
			dup.Title = src.Title + " (copy)"
		}
		if err := s.taskRepo.Create(dup); err != nil {
			return nil, fmt.Errorf("failed to copy task %d: %w", item.sourceID, err)
		}
		if item.sourceID == source.ID {
			rootID = dup.ID
		}

		children, err := s.taskRepo.ListSubtasks(item.sourceID)
		if err != nil {
			return nil, fmt.Errorf("failed to list subtasks of %d: %w", item.sourceID, err)
		}
		for i := range children {
			work = append(work, workItem{sourceID: children[i].ID, newParent: &dup.ID})
		}
	}

	if source.ParentTaskID != nil {
		if err := s.RecomputeProgress(*source.ParentTaskID); err != nil {
			return nil, err
		}
	}

	return s.taskRepo.FindByID(rootID, "Creator", "Assignments", "Assignments.User", "Dependencies")
}

// collectSubtree gathers a task and all of its descendants with an
// explicit worklist, so deep trees cannot exhaust the stack.
func (s *TaskService) collectSubtree(rootID uint64) ([]uint64, error) {
	ids := []uint64{}
	seen := map[uint64]struct{}{}
	work := []uint64{rootID}

	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)

		children, err := s.taskRepo.ListSubtasks(id)
		if err != nil {
			return nil, fmt.Errorf("failed to list subtasks of %d: %w", id, err)
		}
		for _, child := range children {
			work = append(work, child.ID)
		}
	}
	return ids, nil
}

// RecomputeProgress recalculates a task's progress from its direct
// subtasks. A task with no subtasks keeps its manually set progress.
func (s *TaskService) RecomputeProgress(taskID uint64) error {
	subtasks, err := s.taskRepo.ListSubtasks(taskID)
	if err != nil {
		return fmt.Errorf("failed to list subtasks: %w", err)
	}
	if len(subtasks) == 0 {
		return nil
	}

	finished := 0
	for _, sub := range subtasks {
		if sub.Status.IsFinished() {
			finished++
		}
	}

	progress := int(math.Round(100 * float64(finished) / float64(len(subtasks))))
	if err := s.taskRepo.UpdateProgress(taskID, progress); err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// AssignUsersInput represents input for assigning users to a task
type AssignUsersInput struct {
	TaskID  uint64
	ActorID uint64
	UserIDs []uint64
}

// AssignUsers assigns multiple users to a task with validation and
// notifies the newly assigned users.
func (s *TaskService) AssignUsers(input AssignUsersInput) error {
	if len(input.UserIDs) == 0 {
		return ErrNoUserIDsProvided
	}

	task, err := s.taskRepo.FindByID(input.TaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to find task: %w", err)
	}

	project, err := s.projectRepo.FindByID(task.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to find project: %w", err)
	}

	userIDs := uniqueUint64(input.UserIDs)

	count, err := s.taskRepo.CountUsersByIDs(userIDs, project.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to verify users: %w", err)
	}
	if int(count) != len(userIDs) {
		return ErrInvalidTaskAssignee
	}

	if err := s.taskRepo.AssignUsers(task.ID, userIDs); err != nil {
		return fmt.Errorf("failed to assign users: %w", err)
	}

	if s.notifier != nil {
		s.notifier.Dispatch(Event{
			Type:       models.NotificationTaskAssigned,
			ActorID:    input.ActorID,
			ProjectID:  &task.ProjectID,
			EntityKind: "task",
			EntityID:   task.ID,
			Title:      task.Title,
			Message:    "You were assigned to this task",
			Recipients: userIDs,
		})
	}
	return nil
}

// UnassignUsers removes user assignments from a task
func (s *TaskService) UnassignUsers(taskID uint64, userIDs []uint64) error {
	if len(userIDs) == 0 {
		return ErrNoUserIDsProvided
	}

	if _, err := s.taskRepo.FindByID(taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to find task: %w", err)
	}

	if err := s.taskRepo.UnassignUsers(taskID, uniqueUint64(userIDs)); err != nil {
		return fmt.Errorf("failed to unassign users: %w", err)
	}
	return nil
}

// Watch registers the user as a watcher of the task
func (s *TaskService) Watch(taskID, userID uint64) error {
	if _, err := s.taskRepo.FindByID(taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to find task: %w", err)
	}
	return s.taskRepo.AddWatcher(taskID, userID)
}

// Unwatch removes the user from the task's watcher set
func (s *TaskService) Unwatch(taskID, userID uint64) error {
	return s.taskRepo.RemoveWatcher(taskID, userID)
}

// AddCommentInput represents input for commenting on a task
type AddCommentInput struct {
	TaskID           uint64
	AuthorID         uint64
	Body             string
	MentionedUserIDs []uint64
}

// AddComment posts a comment and fans out comment_added to watchers
// plus an independent mention notification per mentioned user.
func (s *TaskService) AddComment(input AddCommentInput) (*models.Comment, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, ErrCommentBodyEmpty
	}

	task, err := s.taskRepo.FindByID(input.TaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	comment := &models.Comment{
		TaskID:           input.TaskID,
		AuthorID:         input.AuthorID,
		Body:             input.Body,
		MentionedUserIDs: uniqueUint64(input.MentionedUserIDs),
	}
	if err := s.commentRepo.Create(comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	if s.notifier != nil {
		watchers, err := s.taskRepo.ListWatcherIDs(task.ID)
		if err != nil {
			watchers = nil
		}
		s.notifier.Dispatch(Event{
			Type:             models.NotificationCommentAdded,
			ActorID:          input.AuthorID,
			ProjectID:        &task.ProjectID,
			EntityKind:       "task",
			EntityID:         task.ID,
			Title:            task.Title,
			Message:          input.Body,
			Recipients:       watchers,
			MentionedUserIDs: comment.MentionedUserIDs,
		})
	}

	return comment, nil
}

// ListComments returns the comments on a task
func (s *TaskService) ListComments(taskID uint64) ([]models.Comment, error) {
	return s.commentRepo.ListByTask(taskID)
}

// notifyStatusChange fans out a status_update to watchers and assignees.
func (s *TaskService) notifyStatusChange(task *models.Task, actorID uint64) {
	if s.notifier == nil {
		return
	}

	recipients, err := s.taskRepo.ListWatcherIDs(task.ID)
	if err != nil {
		recipients = nil
	}
	full, err := s.taskRepo.FindByID(task.ID, "Assignments")
	if err == nil {
		for _, a := range full.Assignments {
			recipients = append(recipients, a.UserID)
		}
	}

	s.notifier.Dispatch(Event{
		Type:       models.NotificationStatusUpdate,
		ActorID:    actorID,
		ProjectID:  &task.ProjectID,
		EntityKind: "task",
		EntityID:   task.ID,
		Title:      task.Title,
		Message:    fmt.Sprintf("Status changed to %s", task.Status),
		Recipients: recipients,
	})
}

// GenerateTasksInput represents input for AI task generation
type GenerateTasksInput struct {
	Text      string
	CreatorID uint64
}

// GenerateTasks uses AI to draft tasks from free-form text
func (s *TaskService) GenerateTasks(ctx context.Context, input GenerateTasksInput) ([]GeneratedTask, error) {
	if s.aiService == nil {
		return nil, ErrAIServiceNotConfigured
	}

	aiTasks, err := s.aiService.GenerateTasksFromText(ctx, input.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tasks: %w", err)
	}

	if len(aiTasks) == 0 {
		return nil, ErrAINoTasksGenerated
	}
	if len(aiTasks) > constants.MaxAIGeneratedTasks {
		return nil, fmt.Errorf("AI generated too many tasks (max %d)", constants.MaxAIGeneratedTasks)
	}

	validTasks := make([]GeneratedTask, 0, len(aiTasks))
	cutoff := time.Now().Add(-24 * time.Hour)
	for _, aiTask := range aiTasks {
		if strings.TrimSpace(aiTask.Title) == "" {
			continue
		}
		if aiTask.DueDate != nil && aiTask.DueDate.Before(cutoff) {
			aiTask.DueDate = nil
		}
		validTasks = append(validTasks, aiTask)
	}

	if len(validTasks) == 0 {
		return nil, ErrAINoValidTasks
	}
	return validTasks, nil
}

// uniqueUint64 removes duplicate values from a slice of uint64
func uniqueUint64(values []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(values))
	result := make([]uint64, 0, len(values))

	for _, v := range values {
		if _, exists := seen[v]; exists {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}

	return result
}
