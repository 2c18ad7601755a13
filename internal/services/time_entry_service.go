package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrTimeEntryNotFound        = errors.New("time entry not found")
	ErrInvalidHours             = errors.New("hours must be greater than zero")
	ErrTimeEntryAlreadyApproved = errors.New("time entry is already approved")
	ErrNotTimeEntryOwner        = errors.New("only the owner can delete a time entry")
)

// TimeEntryService provides business logic for time tracking. Logged
// hours roll into the task's actual_hours counter atomically.
type TimeEntryService struct {
	entryRepo repository.TimeEntryRepository
	taskRepo  repository.TaskRepository
	notifier  Notifier
}

// NewTimeEntryService creates a new TimeEntryService.
func NewTimeEntryService(entryRepo repository.TimeEntryRepository, taskRepo repository.TaskRepository, notifier Notifier) *TimeEntryService {
	return &TimeEntryService{
		entryRepo: entryRepo,
		taskRepo:  taskRepo,
		notifier:  notifier,
	}
}

// LogTimeInput represents input for logging time against a task.
type LogTimeInput struct {
	TaskID      uint64
	UserID      uint64
	Hours       float64
	Description string
	Date        time.Time
}

// LogTime records a time entry and increments the task's actual hours.
func (s *TimeEntryService) LogTime(input LogTimeInput) (*models.TimeEntry, error) {
	if input.Hours <= 0 {
		return nil, ErrInvalidHours
	}

	if _, err := s.taskRepo.FindByID(input.TaskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}

	if input.Date.IsZero() {
		input.Date = time.Now()
	}

	entry := &models.TimeEntry{
		TaskID:      input.TaskID,
		UserID:      input.UserID,
		Hours:       input.Hours,
		Description: input.Description,
		Date:        input.Date,
	}
	if err := s.entryRepo.Create(entry); err != nil {
		return nil, fmt.Errorf("failed to create time entry: %w", err)
	}

	if err := s.taskRepo.AddActualHours(input.TaskID, input.Hours); err != nil {
		return nil, fmt.Errorf("failed to update task hours: %w", err)
	}
	return entry, nil
}

// ListByTask returns the time entries logged against a task.
func (s *TimeEntryService) ListByTask(taskID uint64) ([]models.TimeEntry, error) {
	return s.entryRepo.ListByTask(taskID)
}

// ListByUser returns a user's time entries within an optional window.
func (s *TimeEntryService) ListByUser(userID uint64, from, to *time.Time) ([]models.TimeEntry, error) {
	return s.entryRepo.ListByUser(userID, from, to)
}

// Approve marks a time entry approved and notifies its owner.
func (s *TimeEntryService) Approve(entryID, approverID uint64) (*models.TimeEntry, error) {
	entry, err := s.entryRepo.FindByID(entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimeEntryNotFound
		}
		return nil, fmt.Errorf("failed to find time entry: %w", err)
	}

	if entry.Approved {
		return nil, ErrTimeEntryAlreadyApproved
	}

	now := time.Now()
	entry.Approved = true
	entry.ApproverID = &approverID
	entry.ApprovedAt = &now
	if err := s.entryRepo.Update(entry); err != nil {
		return nil, fmt.Errorf("failed to approve time entry: %w", err)
	}

	if s.notifier != nil {
		task, err := s.taskRepo.FindByID(entry.TaskID)
		title := ""
		var projectID *uint64
		if err == nil {
			title = task.Title
			projectID = &task.ProjectID
		}
		s.notifier.Dispatch(Event{
			Type:       models.NotificationTimesheetApproved,
			ActorID:    approverID,
			ProjectID:  projectID,
			EntityKind: "time_entry",
			EntityID:   entry.ID,
			Title:      title,
			Message:    fmt.Sprintf("%.2f hours approved", entry.Hours),
			Recipients: []uint64{entry.UserID},
		})
	}
	return entry, nil
}

// DeleteEntry removes an unapproved time entry and reverses its hours.
func (s *TimeEntryService) DeleteEntry(entryID, actorID uint64) error {
	entry, err := s.entryRepo.FindByID(entryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTimeEntryNotFound
		}
		return fmt.Errorf("failed to find time entry: %w", err)
	}

	if entry.Approved {
		return ErrTimeEntryAlreadyApproved
	}
	if entry.UserID != actorID {
		return ErrNotTimeEntryOwner
	}

	if err := s.entryRepo.Delete(entryID); err != nil {
		return fmt.Errorf("failed to delete time entry: %w", err)
	}
	return s.taskRepo.AddActualHours(entry.TaskID, -entry.Hours)
}
