package repository

import (
	"errors"
	"time"

	"github.com/nocturne-lab/projecthub/internal/models"
)

// ErrOptimisticLock is returned when a compare-and-swap update matched
// zero rows because a concurrent writer bumped the lock version first.
var ErrOptimisticLock = errors.New("repository: row was modified concurrently")

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *models.Task) error

	// FindByID finds a task by ID with optional preloading
	FindByID(id uint64, preload ...string) (*models.Task, error)

	// FindByIDs loads the given tasks; missing IDs are silently absent
	FindByIDs(ids []uint64) ([]models.Task, error)

	// List retrieves tasks with filtering and pagination
	List(filter TaskFilter) ([]models.Task, int64, error)

	// Update saves a task guarded by its lock version. Returns
	// ErrOptimisticLock when the row changed underneath the caller.
	Update(task *models.Task) error

	// UpdateProgress writes the derived progress column directly,
	// bypassing the optimistic lock (progress is not user-editable
	// state when subtasks exist).
	UpdateProgress(taskID uint64, progress int) error

	// AddActualHours atomically increments the actual_hours counter
	AddActualHours(taskID uint64, delta float64) error

	// ListSubtasks returns the direct children of a task
	ListSubtasks(parentTaskID uint64) ([]models.Task, error)

	// DeleteCascade removes the given tasks together with their
	// assignments, watchers, comments, time entries, and every
	// dependency edge touching them, in one transaction.
	DeleteCascade(ids []uint64) error

	// AddDependency inserts a dependency edge
	AddDependency(dep *models.TaskDependency) error

	// RemoveDependency deletes a dependency edge if present
	RemoveDependency(taskID, dependsOnTaskID uint64) (int64, error)

	// ListDependencies returns the outgoing edges of a task
	ListDependencies(taskID uint64) ([]models.TaskDependency, error)

	// AssignUsers assigns multiple users to a task
	AssignUsers(taskID uint64, userIDs []uint64) error

	// UnassignUsers removes user assignments from a task
	UnassignUsers(taskID uint64, userIDs []uint64) error

	// AddWatcher registers a user as a watcher of a task
	AddWatcher(taskID, userID uint64) error

	// RemoveWatcher removes a watcher
	RemoveWatcher(taskID, userID uint64) error

	// ListWatcherIDs returns the user IDs watching a task
	ListWatcherIDs(taskID uint64) ([]uint64, error)

	// CountUsersByIDs counts how many of the given user IDs are members
	// of the organization
	CountUsersByIDs(userIDs []uint64, organizationID uint64) (int64, error)

	// StatusCounts returns total and finished (completed or closed) task
	// counts for one grouping column value, e.g. ("milestone_id", 3).
	StatusCounts(column string, id uint64) (total int64, finished int64, err error)
}

// TaskFilter holds filtering options for listing tasks
type TaskFilter struct {
	ProjectID      *uint64
	ProjectIDs     []uint64
	Status         *models.TaskStatus
	Priority       *models.TaskPriority
	CreatorID      *uint64
	AssignedUserID *uint64
	ParentTaskID   *uint64
	RootOnly       bool
	MilestoneID    *uint64
	PhaseID        *uint64
	DueDateFrom    *time.Time
	DueDateTo      *time.Time
	SortByDueDate  bool
	Page           int
	PageSize       int
}

// ProjectRepository defines the interface for project data access
type ProjectRepository interface {
	Create(project *models.Project) error
	FindByID(id uint64, preload ...string) (*models.Project, error)
	ListByOrganization(organizationID uint64) ([]models.Project, error)
	Update(project *models.Project) error
	// Delete removes a project and its tasks, milestones, phases,
	// issues, and documents in one transaction
	Delete(id uint64) error
}

// MilestoneRepository defines the interface for milestone data access
type MilestoneRepository interface {
	Create(m *models.Milestone) error
	FindByID(id uint64) (*models.Milestone, error)
	ListByProject(projectID uint64) ([]models.Milestone, error)
	Update(m *models.Milestone) error
	Delete(id uint64) error
	// StampCompletedAt sets completed_at if and only if it is still
	// NULL, so repeated derivations never move the timestamp.
	StampCompletedAt(id uint64, at time.Time) error
}

// PhaseRepository defines the interface for phase data access
type PhaseRepository interface {
	Create(p *models.Phase) error
	FindByID(id uint64) (*models.Phase, error)
	ListByProject(projectID uint64) ([]models.Phase, error)
	Update(p *models.Phase) error
	Delete(id uint64) error
}

// NotificationRepository defines the interface for notification and
// preference data access
type NotificationRepository interface {
	Create(n *models.Notification) error
	// ListByUser returns non-expired notifications, newest first
	ListByUser(userID uint64, unreadOnly bool, page, pageSize int) ([]models.Notification, int64, error)
	MarkRead(id, userID uint64) error
	MarkAllRead(userID uint64) error
	// DeleteExpired removes notifications past their expiry
	DeleteExpired(now time.Time) (int64, error)

	FindPreference(userID uint64) (*models.NotificationPreference, error)
	CreatePreference(p *models.NotificationPreference) error
	UpdatePreference(p *models.NotificationPreference) error
}

// IssueRepository defines the interface for issue data access
type IssueRepository interface {
	Create(issue *models.Issue) error
	FindByID(id uint64, preload ...string) (*models.Issue, error)
	ListByProject(projectID uint64, status *models.IssueStatus) ([]models.Issue, error)
	Update(issue *models.Issue) error
	Delete(id uint64) error
}

// DocumentRepository defines the interface for document data access
type DocumentRepository interface {
	Create(doc *models.Document) error
	FindByID(id uint64, preload ...string) (*models.Document, error)
	ListByProject(projectID uint64) ([]models.Document, error)
	Update(doc *models.Document) error
	Delete(id uint64) error
	AddVersion(v *models.DocumentVersion) error
	ListVersions(documentID uint64) ([]models.DocumentVersion, error)
}

// TimeEntryRepository defines the interface for time entry data access
type TimeEntryRepository interface {
	Create(entry *models.TimeEntry) error
	FindByID(id uint64) (*models.TimeEntry, error)
	ListByTask(taskID uint64) ([]models.TimeEntry, error)
	ListByUser(userID uint64, from, to *time.Time) ([]models.TimeEntry, error)
	Update(entry *models.TimeEntry) error
	Delete(id uint64) error
}

// CommentRepository defines the interface for comment data access
type CommentRepository interface {
	Create(comment *models.Comment) error
	ListByTask(taskID uint64) ([]models.Comment, error)
}

// OrganizationRepository defines the interface for organization data access
type OrganizationRepository interface {
	Create(org *models.Organization) error
	FindByID(id uint64) (*models.Organization, error)
	FindByInviteCode(code string) (*models.Organization, error)
	Update(org *models.Organization) error
	// Delete deletes an organization and all related data
	Delete(id uint64) error
	AddMember(member *models.OrganizationMember) error
	RemoveMember(organizationID, userID uint64) error
	FindMember(organizationID, userID uint64) (*models.OrganizationMember, error)
	ListMembersByUserID(userID uint64) ([]models.OrganizationMember, error)
	ListMembers(organizationID uint64) ([]models.OrganizationMember, error)
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(user *models.User) error

	// CreateWithPersonalOrganization creates a user, their personal
	// organization, and corresponding membership within a single
	// transaction.
	CreateWithPersonalOrganization(user *models.User, org *models.Organization, member *models.OrganizationMember) error

	FindByID(id uint64) (*models.User, error)
	FindByIDs(ids []uint64) ([]models.User, error)
	FindByUsername(username string) (*models.User, error)
}
