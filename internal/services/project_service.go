package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrProjectNameEmpty     = errors.New("project name cannot be empty")
	ErrInvalidProjectStatus = errors.New("invalid project status")
)

// ProjectService provides business logic for project operations.
type ProjectService struct {
	projectRepo repository.ProjectRepository
	orgRepo     repository.OrganizationRepository
	notifier    Notifier
}

// NewProjectService creates a new ProjectService.
func NewProjectService(projectRepo repository.ProjectRepository, orgRepo repository.OrganizationRepository, notifier Notifier) *ProjectService {
	return &ProjectService{
		projectRepo: projectRepo,
		orgRepo:     orgRepo,
		notifier:    notifier,
	}
}

// CreateProjectInput represents parameters to create a new project.
type CreateProjectInput struct {
	Name           string
	Description    string
	OrganizationID uint64
	OwnerID        uint64
	StartDate      *time.Time
	EndDate        *time.Time
}

// CreateProject creates a new project in an organization.
func (s *ProjectService) CreateProject(input CreateProjectInput) (*models.Project, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrProjectNameEmpty
	}

	if _, err := s.orgRepo.FindByID(input.OrganizationID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to find organization: %w", err)
	}

	project := &models.Project{
		Name:           input.Name,
		Description:    input.Description,
		Status:         models.ProjectStatusActive,
		OrganizationID: input.OrganizationID,
		OwnerID:        input.OwnerID,
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
	}

	if err := s.projectRepo.Create(project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

// GetProject returns a project by ID.
func (s *ProjectService) GetProject(projectID uint64) (*models.Project, error) {
	project, err := s.projectRepo.FindByID(projectID, "Owner")
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}
	return project, nil
}

// ListProjects returns projects in an organization.
func (s *ProjectService) ListProjects(organizationID uint64) ([]models.Project, error) {
	projects, err := s.projectRepo.ListByOrganization(organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	return projects, nil
}

// UpdateProjectInput represents parameters to update a project.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Status      *models.ProjectStatus
	StartDate   *time.Time
	EndDate     *time.Time
}

// UpdateProject applies changes to a project and notifies members of
// status changes.
func (s *ProjectService) UpdateProject(projectID uint64, input UpdateProjectInput, actorID uint64) (*models.Project, error) {
	project, err := s.projectRepo.FindByID(projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to find project: %w", err)
	}

	statusChanged := false
	if input.Status != nil && *input.Status != project.Status {
		switch *input.Status {
		case models.ProjectStatusActive, models.ProjectStatusOnHold, models.ProjectStatusCompleted, models.ProjectStatusArchived:
		default:
			return nil, ErrInvalidProjectStatus
		}
		project.Status = *input.Status
		statusChanged = true
	}
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, ErrProjectNameEmpty
		}
		project.Name = *input.Name
	}
	if input.Description != nil {
		project.Description = *input.Description
	}
	if input.StartDate != nil {
		project.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		project.EndDate = input.EndDate
	}

	if err := s.projectRepo.Update(project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	if statusChanged && s.notifier != nil {
		members, err := s.orgRepo.ListMembers(project.OrganizationID)
		if err == nil {
			recipients := make([]uint64, 0, len(members))
			for _, m := range members {
				recipients = append(recipients, m.UserID)
			}
			s.notifier.Dispatch(Event{
				Type:       models.NotificationProjectUpdate,
				ActorID:    actorID,
				ProjectID:  &project.ID,
				EntityKind: "project",
				EntityID:   project.ID,
				Title:      project.Name,
				Message:    fmt.Sprintf("Project status changed to %s", project.Status),
				Recipients: recipients,
			})
		}
	}

	return project, nil
}

// DeleteProject removes a project and its contents.
func (s *ProjectService) DeleteProject(projectID uint64) error {
	if _, err := s.projectRepo.FindByID(projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("failed to find project: %w", err)
	}

	if err := s.projectRepo.Delete(projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}
