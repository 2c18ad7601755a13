package models

import (
	"time"

	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusArchived  ProjectStatus = "archived"
)

type Project struct {
	ID             uint64         `gorm:"primarykey" json:"id"`
	Name           string         `gorm:"type:varchar(255);not null" json:"name"`
	Description    string         `gorm:"type:text" json:"description"`
	Status         ProjectStatus  `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	OrganizationID uint64         `gorm:"not null;index" json:"organization_id"`
	OwnerID        uint64         `gorm:"not null" json:"owner_id"`
	StartDate      *time.Time     `json:"start_date"`
	EndDate        *time.Time     `json:"end_date"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Organization Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	Owner        User         `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Tasks        []Task       `gorm:"foreignKey:ProjectID" json:"tasks,omitempty"`
	Milestones   []Milestone  `gorm:"foreignKey:ProjectID" json:"milestones,omitempty"`
	Phases       []Phase      `gorm:"foreignKey:ProjectID" json:"phases,omitempty"`
}
