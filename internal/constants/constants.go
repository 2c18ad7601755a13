package constants

// Context keys shared between middleware and handlers
const (
	ContextKeyUserID       = "user_id"
	ContextKeyOrganization = "organization"
	ContextKeyOrgMember    = "organization_member"
	ContextKeyProject      = "project"
	ContextKeyTask         = "task"
)

// Pagination limits
const (
	MinPageSize     = 1
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Authentication
const (
	MinPasswordLength = 8
	SessionCookieName = "projecthub_session"
)

// Notifications
const (
	// NotificationTTLDays is how long a notification is kept before the
	// reaper removes it.
	NotificationTTLDays = 90
)

// AI task generation
const (
	MaxAIGeneratedTasks = 20
)
