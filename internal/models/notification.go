package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationTaskAssigned      NotificationType = "task_assigned"
	NotificationStatusUpdate      NotificationType = "status_update"
	NotificationCommentAdded      NotificationType = "comment_added"
	NotificationMention           NotificationType = "mention"
	NotificationDeadlineReminder  NotificationType = "deadline_reminder"
	NotificationMilestoneDue      NotificationType = "milestone_due"
	NotificationIssueAssigned     NotificationType = "issue_assigned"
	NotificationTimesheetApproved NotificationType = "timesheet_approved"
	NotificationDependencyBlocked NotificationType = "dependency_blocked"
	NotificationWatcherUpdate     NotificationType = "watcher_update"
	NotificationProjectUpdate     NotificationType = "project_update"
)

type Notification struct {
	ID      uint64           `gorm:"primarykey" json:"id"`
	UserID  uint64           `gorm:"not null;index" json:"user_id"`
	Type    NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	Title   string           `gorm:"type:varchar(255);not null" json:"title"`
	Message string           `gorm:"type:text" json:"message"`
	// EntityKind/EntityID link the notification back to the task,
	// milestone, issue, or document it concerns.
	EntityKind string    `gorm:"type:varchar(30)" json:"entity_kind"`
	EntityID   uint64    `json:"entity_id"`
	ProjectID  *uint64   `gorm:"index" json:"project_id"`
	Read       bool      `gorm:"not null;default:false;index" json:"read"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// ChannelToggle holds per-channel on/off flags for one notification type.
type ChannelToggle struct {
	Email bool `json:"email"`
	InApp bool `json:"in_app"`
	Push  bool `json:"push"`
}

// NotificationPreference holds a user's delivery settings. A missing
// per-type override means every channel is enabled for that type.
type NotificationPreference struct {
	ID     uint64 `gorm:"primarykey" json:"id"`
	UserID uint64 `gorm:"uniqueIndex;not null" json:"user_id"`

	EmailEnabled bool `gorm:"not null;default:true" json:"email_enabled"`
	InAppEnabled bool `gorm:"not null;default:true" json:"in_app_enabled"`
	PushEnabled  bool `gorm:"not null;default:true" json:"push_enabled"`

	TypeOverrides map[NotificationType]ChannelToggle `gorm:"serializer:json" json:"type_overrides"`

	QuietHoursEnabled bool   `gorm:"not null;default:false" json:"quiet_hours_enabled"`
	QuietHoursStart   string `gorm:"type:varchar(5)" json:"quiet_hours_start"`
	QuietHoursEnd     string `gorm:"type:varchar(5)" json:"quiet_hours_end"`

	MutedProjectIDs []uint64 `gorm:"serializer:json" json:"muted_project_ids"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// DefaultNotificationPreference returns the preference row created
// lazily the first time a user is considered for delivery.
func DefaultNotificationPreference(userID uint64) *NotificationPreference {
	return &NotificationPreference{
		UserID:       userID,
		EmailEnabled: true,
		InAppEnabled: true,
		PushEnabled:  true,
	}
}

// IsProjectMuted reports whether projectID is in the muted set.
func (p *NotificationPreference) IsProjectMuted(projectID uint64) bool {
	for _, id := range p.MutedProjectIDs {
		if id == projectID {
			return true
		}
	}
	return false
}

// TypeToggle returns the per-type channel settings, defaulting to all
// channels enabled when no override exists.
func (p *NotificationPreference) TypeToggle(t NotificationType) ChannelToggle {
	if toggle, ok := p.TypeOverrides[t]; ok {
		return toggle
	}
	return ChannelToggle{Email: true, InApp: true, Push: true}
}
