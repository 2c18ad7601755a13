package services

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrMilestoneNotFound    = errors.New("milestone not found")
	ErrPhaseNotFound        = errors.New("phase not found")
	ErrMilestoneNameEmpty   = errors.New("milestone name cannot be empty")
	ErrPhaseNameEmpty       = errors.New("phase name cannot be empty")
)

// MilestoneService computes milestone and phase progress as a read-time
// view over task state. Nothing here is persisted as a source of truth;
// only the one-shot completion timestamp is written back.
type MilestoneService struct {
	milestoneRepo repository.MilestoneRepository
	phaseRepo     repository.PhaseRepository
	taskRepo      repository.TaskRepository

	// now is swappable for due-date tests
	now func() time.Time
}

// NewMilestoneService creates a new MilestoneService
func NewMilestoneService(milestoneRepo repository.MilestoneRepository, phaseRepo repository.PhaseRepository, taskRepo repository.TaskRepository) *MilestoneService {
	return &MilestoneService{
		milestoneRepo: milestoneRepo,
		phaseRepo:     phaseRepo,
		taskRepo:      taskRepo,
		now:           time.Now,
	}
}

// MilestoneView is a milestone together with its derived progress and
// status.
type MilestoneView struct {
	models.Milestone
	Progress int                    `json:"progress"`
	Status   models.MilestoneStatus `json:"status"`
}

// PhaseView is a phase together with its derived progress.
type PhaseView struct {
	models.Phase
	Progress int `json:"progress"`
}

// ComputeProgress derives a completion percentage from task counts:
// round(100 * finished / total), or 0 when there are no tasks.
func ComputeProgress(total, finished int64) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(finished) / float64(total)))
}

// DeriveMilestoneStatus derives the milestone status from progress and
// due date. It is a pure function and must be re-evaluated on every
// read, never cached.
func DeriveMilestoneStatus(m *models.Milestone, progress int, now time.Time) models.MilestoneStatus {
	switch {
	case progress == 100:
		return models.MilestoneStatusCompleted
	case progress > 0:
		return models.MilestoneStatusInProgress
	case m.DueDate != nil && m.DueDate.Before(now):
		return models.MilestoneStatusOverdue
	default:
		return models.MilestoneStatusPending
	}
}

// CreateMilestoneInput represents input for creating a milestone
type CreateMilestoneInput struct {
	Name        string
	Description string
	ProjectID   uint64
	DueDate     *time.Time
	Position    int
}

// CreateMilestone creates a new milestone
func (s *MilestoneService) CreateMilestone(input CreateMilestoneInput) (*models.Milestone, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrMilestoneNameEmpty
	}

	m := &models.Milestone{
		Name:        input.Name,
		Description: input.Description,
		ProjectID:   input.ProjectID,
		DueDate:     input.DueDate,
		Position:    input.Position,
	}
	if err := s.milestoneRepo.Create(m); err != nil {
		return nil, fmt.Errorf("failed to create milestone: %w", err)
	}
	return m, nil
}

// GetMilestone returns a milestone with derived progress and status.
// When progress first reaches 100 the completion timestamp is stamped,
// idempotently.
func (s *MilestoneService) GetMilestone(id uint64) (*MilestoneView, error) {
	m, err := s.milestoneRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, fmt.Errorf("failed to find milestone: %w", err)
	}
	return s.snapshot(m)
}

// ListMilestones returns a project's milestones with derived progress
// and status.
func (s *MilestoneService) ListMilestones(projectID uint64) ([]MilestoneView, error) {
	milestones, err := s.milestoneRepo.ListByProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}

	views := make([]MilestoneView, 0, len(milestones))
	for i := range milestones {
		view, err := s.snapshot(&milestones[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *MilestoneService) snapshot(m *models.Milestone) (*MilestoneView, error) {
	total, finished, err := s.taskRepo.StatusCounts("milestone_id", m.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count milestone tasks: %w", err)
	}

	progress := ComputeProgress(total, finished)
	status := DeriveMilestoneStatus(m, progress, s.now())

	if status == models.MilestoneStatusCompleted && m.CompletedAt == nil {
		at := s.now()
		if err := s.milestoneRepo.StampCompletedAt(m.ID, at); err != nil {
			return nil, fmt.Errorf("failed to stamp milestone completion: %w", err)
		}
		m.CompletedAt = &at
	}

	return &MilestoneView{Milestone: *m, Progress: progress, Status: status}, nil
}

// UpdateMilestoneInput represents input for updating a milestone
type UpdateMilestoneInput struct {
	Name         *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
	Position     *int
}

// UpdateMilestone applies changes to a milestone
func (s *MilestoneService) UpdateMilestone(id uint64, input UpdateMilestoneInput) (*MilestoneView, error) {
	m, err := s.milestoneRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, fmt.Errorf("failed to find milestone: %w", err)
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, ErrMilestoneNameEmpty
		}
		m.Name = *input.Name
	}
	if input.Description != nil {
		m.Description = *input.Description
	}
	if input.ClearDueDate {
		m.DueDate = nil
	} else if input.DueDate != nil {
		m.DueDate = input.DueDate
	}
	if input.Position != nil {
		m.Position = *input.Position
	}

	if err := s.milestoneRepo.Update(m); err != nil {
		return nil, fmt.Errorf("failed to update milestone: %w", err)
	}
	return s.snapshot(m)
}

// DeleteMilestone removes a milestone and detaches its tasks
func (s *MilestoneService) DeleteMilestone(id uint64) error {
	if _, err := s.milestoneRepo.FindByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMilestoneNotFound
		}
		return fmt.Errorf("failed to find milestone: %w", err)
	}
	if err := s.milestoneRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete milestone: %w", err)
	}
	return nil
}

// CreatePhaseInput represents input for creating a phase
type CreatePhaseInput struct {
	Name      string
	ProjectID uint64
	Position  int
}

// CreatePhase creates a new phase
func (s *MilestoneService) CreatePhase(input CreatePhaseInput) (*models.Phase, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, ErrPhaseNameEmpty
	}

	p := &models.Phase{
		Name:      input.Name,
		ProjectID: input.ProjectID,
		Position:  input.Position,
	}
	if err := s.phaseRepo.Create(p); err != nil {
		return nil, fmt.Errorf("failed to create phase: %w", err)
	}
	return p, nil
}

// GetPhase returns a phase with derived progress. Phase progress counts
// its tasks directly, without milestone indirection.
func (s *MilestoneService) GetPhase(id uint64) (*PhaseView, error) {
	p, err := s.phaseRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to find phase: %w", err)
	}

	total, finished, err := s.taskRepo.StatusCounts("phase_id", p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count phase tasks: %w", err)
	}
	return &PhaseView{Phase: *p, Progress: ComputeProgress(total, finished)}, nil
}

// ListPhases returns a project's phases with derived progress
func (s *MilestoneService) ListPhases(projectID uint64) ([]PhaseView, error) {
	phases, err := s.phaseRepo.ListByProject(projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phases: %w", err)
	}

	views := make([]PhaseView, 0, len(phases))
	for i := range phases {
		total, finished, err := s.taskRepo.StatusCounts("phase_id", phases[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count phase tasks: %w", err)
		}
		views = append(views, PhaseView{Phase: phases[i], Progress: ComputeProgress(total, finished)})
	}
	return views, nil
}

// UpdatePhase applies changes to a phase
func (s *MilestoneService) UpdatePhase(id uint64, name *string, position *int) (*PhaseView, error) {
	p, err := s.phaseRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to find phase: %w", err)
	}

	if name != nil {
		if strings.TrimSpace(*name) == "" {
			return nil, ErrPhaseNameEmpty
		}
		p.Name = *name
	}
	if position != nil {
		p.Position = *position
	}

	if err := s.phaseRepo.Update(p); err != nil {
		return nil, fmt.Errorf("failed to update phase: %w", err)
	}
	return s.GetPhase(p.ID)
}

// DeletePhase removes a phase and detaches its tasks
func (s *MilestoneService) DeletePhase(id uint64) error {
	if _, err := s.phaseRepo.FindByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPhaseNotFound
		}
		return fmt.Errorf("failed to find phase: %w", err)
	}
	if err := s.phaseRepo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete phase: %w", err)
	}
	return nil
}
