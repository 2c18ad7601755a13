package models

import (
	"time"

	"gorm.io/gorm"
)

// Phase is an ordered container of tasks within a project. Its progress
// is computed directly from the tasks that reference it.
type Phase struct {
	ID        uint64         `gorm:"primarykey" json:"id"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	ProjectID uint64         `gorm:"not null;index" json:"project_id"`
	Position  int            `gorm:"not null;default:0" json:"position"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Project Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Tasks   []Task  `gorm:"foreignKey:PhaseID" json:"tasks,omitempty"`
}
