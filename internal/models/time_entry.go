package models

import (
	"time"

	"gorm.io/gorm"
)

type TimeEntry struct {
	ID          uint64         `gorm:"primarykey" json:"id"`
	TaskID      uint64         `gorm:"not null;index" json:"task_id"`
	UserID      uint64         `gorm:"not null;index" json:"user_id"`
	Hours       float64        `gorm:"not null" json:"hours"`
	Description string         `gorm:"type:text" json:"description"`
	Date        time.Time      `gorm:"not null" json:"date"`
	Approved    bool           `gorm:"not null;default:false" json:"approved"`
	ApproverID  *uint64        `json:"approver_id"`
	ApprovedAt  *time.Time     `json:"approved_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Task     Task  `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	User     User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Approver *User `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
}
