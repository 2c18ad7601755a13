package models

import (
	"time"

	"gorm.io/gorm"
)

type Comment struct {
	ID       uint64 `gorm:"primarykey" json:"id"`
	TaskID   uint64 `gorm:"not null;index" json:"task_id"`
	AuthorID uint64 `gorm:"not null" json:"author_id"`
	Body     string `gorm:"type:text;not null" json:"body"`
	// MentionedUserIDs feeds the mention notification fan-out.
	MentionedUserIDs []uint64       `gorm:"serializer:json" json:"mentioned_user_ids"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Task   Task `gorm:"foreignKey:TaskID" json:"task,omitempty"`
	Author User `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
}
