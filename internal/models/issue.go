package models

import (
	"time"

	"gorm.io/gorm"
)

type IssueSeverity string

const (
	IssueSeverityLow      IssueSeverity = "low"
	IssueSeverityMedium   IssueSeverity = "medium"
	IssueSeverityHigh     IssueSeverity = "high"
	IssueSeverityCritical IssueSeverity = "critical"
)

type IssueStatus string

const (
	IssueStatusOpen       IssueStatus = "open"
	IssueStatusInProgress IssueStatus = "in_progress"
	IssueStatusResolved   IssueStatus = "resolved"
	IssueStatusClosed     IssueStatus = "closed"
)

type Issue struct {
	ID          uint64         `gorm:"primarykey" json:"id"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Severity    IssueSeverity  `gorm:"type:varchar(20);not null;default:'medium'" json:"severity"`
	Status      IssueStatus    `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`
	ProjectID   uint64         `gorm:"not null;index" json:"project_id"`
	ReporterID  uint64         `gorm:"not null" json:"reporter_id"`
	AssigneeID  *uint64        `gorm:"index" json:"assignee_id"`
	TaskID      *uint64        `gorm:"index" json:"task_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Project  Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Reporter User    `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	Assignee *User   `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	Task     *Task   `gorm:"foreignKey:TaskID" json:"linked_task,omitempty"`
}
