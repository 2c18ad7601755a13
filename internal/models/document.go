package models

import (
	"time"

	"gorm.io/gorm"
)

type Document struct {
	ID        uint64 `gorm:"primarykey" json:"id"`
	Title     string `gorm:"type:varchar(255);not null" json:"title"`
	Content   string `gorm:"type:longtext" json:"content"`
	ProjectID uint64 `gorm:"not null;index" json:"project_id"`
	AuthorID  uint64 `gorm:"not null" json:"author_id"`
	// LockedBy is an advisory edit lock. It prevents simultaneous edits
	// by UI convention only, not transactionally.
	LockedBy  *uint64        `json:"locked_by"`
	LockedAt  *time.Time     `json:"locked_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Project  Project           `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Author   User              `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Versions []DocumentVersion `gorm:"foreignKey:DocumentID" json:"versions,omitempty"`
}

// DocumentVersion is an immutable snapshot of a document's content,
// keyed by a random version key.
type DocumentVersion struct {
	ID         uint64    `gorm:"primarykey" json:"id"`
	DocumentID uint64    `gorm:"not null;index" json:"document_id"`
	VersionKey string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"version_key"`
	Content    string    `gorm:"type:longtext" json:"content"`
	EditorID   uint64    `gorm:"not null" json:"editor_id"`
	CreatedAt  time.Time `json:"created_at"`

	// Relations
	Document Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
	Editor   User     `gorm:"foreignKey:EditorID" json:"editor,omitempty"`
}
