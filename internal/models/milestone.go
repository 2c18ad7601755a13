package models

import (
	"time"

	"gorm.io/gorm"
)

// MilestoneStatus is derived at read time from progress and due date,
// never set directly.
type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusCompleted  MilestoneStatus = "completed"
	MilestoneStatusOverdue    MilestoneStatus = "overdue"
)

type Milestone struct {
	ID          uint64     `gorm:"primarykey" json:"id"`
	Name        string     `gorm:"type:varchar(255);not null" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	ProjectID   uint64     `gorm:"not null;index" json:"project_id"`
	DueDate     *time.Time `json:"due_date"`
	Position    int        `gorm:"not null;default:0" json:"position"`
	// CompletedAt is stamped once when derived progress first reaches 100.
	CompletedAt *time.Time     `json:"completed_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Tasks   []Task  `gorm:"foreignKey:MilestoneID" json:"tasks,omitempty"`
}
