package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrIssueNotFound   = errors.New("issue not found")
	ErrIssueTitleEmpty = errors.New("issue title cannot be empty")
)

// IssueService provides business logic for issue tracking.
type IssueService struct {
	issueRepo repository.IssueRepository
	taskRepo  repository.TaskRepository
	notifier  Notifier
}

// NewIssueService creates a new IssueService.
func NewIssueService(issueRepo repository.IssueRepository, taskRepo repository.TaskRepository, notifier Notifier) *IssueService {
	return &IssueService{
		issueRepo: issueRepo,
		taskRepo:  taskRepo,
		notifier:  notifier,
	}
}

// CreateIssueInput represents input for reporting an issue.
type CreateIssueInput struct {
	Title       string
	Description string
	Severity    models.IssueSeverity
	ProjectID   uint64
	ReporterID  uint64
	AssigneeID  *uint64
	TaskID      *uint64
}

// CreateIssue reports a new issue, optionally linked to a task, and
// notifies the assignee.
func (s *IssueService) CreateIssue(input CreateIssueInput) (*models.Issue, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrIssueTitleEmpty
	}

	if input.TaskID != nil {
		if _, err := s.taskRepo.FindByID(*input.TaskID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrTaskNotFound
			}
			return nil, fmt.Errorf("failed to find linked task: %w", err)
		}
	}

	if input.Severity == "" {
		input.Severity = models.IssueSeverityMedium
	}

	issue := &models.Issue{
		Title:       input.Title,
		Description: input.Description,
		Severity:    input.Severity,
		Status:      models.IssueStatusOpen,
		ProjectID:   input.ProjectID,
		ReporterID:  input.ReporterID,
		AssigneeID:  input.AssigneeID,
		TaskID:      input.TaskID,
	}
	if err := s.issueRepo.Create(issue); err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}

	if input.AssigneeID != nil {
		s.notifyAssignment(issue, input.ReporterID, *input.AssigneeID)
	}
	return issue, nil
}

// GetIssue returns an issue with related data.
func (s *IssueService) GetIssue(issueID uint64) (*models.Issue, error) {
	issue, err := s.issueRepo.FindByID(issueID, "Reporter", "Assignee")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIssueNotFound
		}
		return nil, fmt.Errorf("failed to find issue: %w", err)
	}
	return issue, nil
}

// ListIssues lists issues in a project with an optional status filter.
func (s *IssueService) ListIssues(projectID uint64, status *models.IssueStatus) ([]models.Issue, error) {
	issues, err := s.issueRepo.ListByProject(projectID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	return issues, nil
}

// UpdateIssueInput represents input for updating an issue.
type UpdateIssueInput struct {
	Title         *string
	Description   *string
	Severity      *models.IssueSeverity
	Status        *models.IssueStatus
	AssigneeID    *uint64
	ClearAssignee bool
}

// UpdateIssue applies changes to an issue and notifies a newly set
// assignee.
func (s *IssueService) UpdateIssue(issueID uint64, input UpdateIssueInput, actorID uint64) (*models.Issue, error) {
	issue, err := s.issueRepo.FindByID(issueID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIssueNotFound
		}
		return nil, fmt.Errorf("failed to find issue: %w", err)
	}

	var newAssignee *uint64
	if input.ClearAssignee {
		issue.AssigneeID = nil
	} else if input.AssigneeID != nil {
		if issue.AssigneeID == nil || *issue.AssigneeID != *input.AssigneeID {
			newAssignee = input.AssigneeID
		}
		issue.AssigneeID = input.AssigneeID
	}
	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, ErrIssueTitleEmpty
		}
		issue.Title = *input.Title
	}
	if input.Description != nil {
		issue.Description = *input.Description
	}
	if input.Severity != nil {
		issue.Severity = *input.Severity
	}
	if input.Status != nil {
		issue.Status = *input.Status
	}

	if err := s.issueRepo.Update(issue); err != nil {
		return nil, fmt.Errorf("failed to update issue: %w", err)
	}

	if newAssignee != nil {
		s.notifyAssignment(issue, actorID, *newAssignee)
	}
	return issue, nil
}

// DeleteIssue removes an issue.
func (s *IssueService) DeleteIssue(issueID uint64) error {
	if _, err := s.issueRepo.FindByID(issueID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrIssueNotFound
		}
		return fmt.Errorf("failed to find issue: %w", err)
	}
	if err := s.issueRepo.Delete(issueID); err != nil {
		return fmt.Errorf("failed to delete issue: %w", err)
	}
	return nil
}

func (s *IssueService) notifyAssignment(issue *models.Issue, actorID, assigneeID uint64) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(Event{
		Type:       models.NotificationIssueAssigned,
		ActorID:    actorID,
		ProjectID:  &issue.ProjectID,
		EntityKind: "issue",
		EntityID:   issue.ID,
		Title:      issue.Title,
		Message:    "You were assigned to this issue",
		Recipients: []uint64{assigneeID},
	})
}
