package models

import (
	"time"

	"gorm.io/gorm"
)

type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusClosed     TaskStatus = "closed"
)

// IsFinished reports whether the status counts as done for dependency
// gating and progress roll-up purposes.
func (s TaskStatus) IsFinished() bool {
	return s == TaskStatusCompleted || s == TaskStatusClosed
}

// ValidTaskStatus reports whether s is one of the known task statuses.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusOpen, TaskStatusInProgress, TaskStatusReview, TaskStatusCompleted, TaskStatusClosed:
		return true
	}
	return false
}

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "low"
	TaskPriorityMedium TaskPriority = "medium"
	TaskPriorityHigh   TaskPriority = "high"
	TaskPriorityUrgent TaskPriority = "urgent"
)

type Task struct {
	ID             uint64       `gorm:"primarykey" json:"id"`
	Title          string       `gorm:"not null" json:"title"`
	Description    string       `gorm:"type:text" json:"description"`
	Status         TaskStatus   `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	Priority       TaskPriority `gorm:"type:varchar(20);not null;default:'medium'" json:"priority"`
	ProjectID      uint64       `gorm:"not null;index" json:"project_id"`
	ParentTaskID   *uint64      `gorm:"index" json:"parent_task_id"`
	MilestoneID    *uint64      `gorm:"index" json:"milestone_id"`
	PhaseID        *uint64      `gorm:"index" json:"phase_id"`
	CreatorID      uint64       `gorm:"not null" json:"creator_id"`
	DueDate        *time.Time   `json:"due_date"`
	// Progress is derived from direct subtasks when any exist; with no
	// subtasks it holds whatever value was last set manually.
	Progress       int     `gorm:"not null;default:0" json:"progress"`
	EstimatedHours float64 `gorm:"not null;default:0" json:"estimated_hours"`
	ActualHours    float64 `gorm:"not null;default:0" json:"actual_hours"`
	// LockVersion guards read-modify-write task updates; a mismatch on
	// save means a concurrent writer won.
	LockVersion uint64         `gorm:"not null;default:0" json:"lock_version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Project      Project          `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	ParentTask   *Task            `gorm:"foreignKey:ParentTaskID" json:"parent_task,omitempty"`
	Creator      User             `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Assignments  []TaskAssignment `gorm:"foreignKey:TaskID" json:"assignments,omitempty"`
	Watchers     []TaskWatcher    `gorm:"foreignKey:TaskID" json:"watchers,omitempty"`
	Dependencies []TaskDependency `gorm:"foreignKey:TaskID" json:"dependencies,omitempty"`
}
