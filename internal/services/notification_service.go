package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nocturne-lab/projecthub/internal/constants"
	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/realtime"
	"github.com/nocturne-lab/projecthub/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidQuietHours    = errors.New("quiet hours must be in HH:MM format")
)

// Event is a domain occurrence that may fan out to multiple recipients
// over multiple channels.
type Event struct {
	Type       models.NotificationType
	ActorID    uint64
	ProjectID  *uint64
	EntityKind string
	EntityID   uint64
	Title      string
	Message    string
	// Recipients is the candidate set before dedupe, self-exclusion,
	// and preference filtering.
	Recipients []uint64
	// MentionedUserIDs fan out as an independent mention notification,
	// gated by the same preference rules.
	MentionedUserIDs []uint64
}

// Notifier dispatches domain events to recipients. Satisfied by
// NotificationService; other services depend on the interface so tests
// can record dispatches.
type Notifier interface {
	Dispatch(event Event)
}

// NotificationService decides, per user and event, whether and how to
// notify: in-app persistence plus realtime emit, templated email, and a
// push channel with no transport yet.
type NotificationService struct {
	notifRepo repository.NotificationRepository
	userRepo  repository.UserRepository
	mailer    Mailer
	emitter   realtime.Emitter

	// now is swappable for quiet-hours tests
	now func() time.Time
}

// NewNotificationService creates a new NotificationService. mailer may
// be nil when SMTP is not configured; email delivery is then skipped.
func NewNotificationService(notifRepo repository.NotificationRepository, userRepo repository.UserRepository, mailer Mailer, emitter realtime.Emitter) *NotificationService {
	if emitter == nil {
		emitter = realtime.NopEmitter{}
	}
	return &NotificationService{
		notifRepo: notifRepo,
		userRepo:  userRepo,
		mailer:    mailer,
		emitter:   emitter,
		now:       time.Now,
	}
}

// Dispatch routes an event to its recipients. Each recipient is handled
// independently: a failure for one is logged and never blocks the rest,
// and dispatch failures never propagate to the caller.
func (s *NotificationService) Dispatch(event Event) {
	for _, userID := range dedupeExcluding(event.Recipients, event.ActorID) {
		if err := s.deliverTo(userID, event); err != nil {
			log.Printf("notification: delivery to user %d failed for %s: %v", userID, event.Type, err)
		}
	}

	if len(event.MentionedUserIDs) == 0 {
		return
	}

	mention := event
	mention.Type = models.NotificationMention
	mention.Title = event.Title
	for _, userID := range dedupeExcluding(event.MentionedUserIDs, event.ActorID) {
		if err := s.deliverTo(userID, mention); err != nil {
			log.Printf("notification: mention delivery to user %d failed: %v", userID, err)
		}
	}
}

// deliverTo runs the per-recipient gating pipeline and dispatches on
// every channel that passes.
func (s *NotificationService) deliverTo(userID uint64, event Event) error {
	pref, err := s.getOrCreatePreference(userID)
	if err != nil {
		return fmt.Errorf("failed to load preferences: %w", err)
	}

	// A muted project suppresses every channel.
	if event.ProjectID != nil && pref.IsProjectMuted(*event.ProjectID) {
		return nil
	}

	toggle := pref.TypeToggle(event.Type)
	quiet := s.inQuietHours(pref)

	if pref.InAppEnabled && toggle.InApp {
		if err := s.deliverInApp(userID, event); err != nil {
			return err
		}
	}

	if pref.EmailEnabled && !quiet && toggle.Email {
		// Best effort: an email failure must not look like a delivery
		// failure for the in-app channel.
		if err := s.deliverEmail(userID, event); err != nil {
			log.Printf("notification: email to user %d failed for %s: %v", userID, event.Type, err)
		}
	}

	if pref.PushEnabled && !quiet && toggle.Push {
		s.deliverPush(userID, event)
	}

	return nil
}

func (s *NotificationService) deliverInApp(userID uint64, event Event) error {
	n := &models.Notification{
		UserID:     userID,
		Type:       event.Type,
		Title:      event.Title,
		Message:    event.Message,
		EntityKind: event.EntityKind,
		EntityID:   event.EntityID,
		ProjectID:  event.ProjectID,
		ExpiresAt:  s.now().AddDate(0, 0, constants.NotificationTTLDays),
	}
	if err := s.notifRepo.Create(n); err != nil {
		return fmt.Errorf("failed to persist notification: %w", err)
	}

	s.emitter.EmitToUser(userID, "notification", n)
	return nil
}

func (s *NotificationService) deliverEmail(userID uint64, event Event) error {
	if s.mailer == nil {
		return nil
	}

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		return fmt.Errorf("failed to load recipient: %w", err)
	}

	data := map[string]interface{}{
		"Title":   event.Title,
		"Message": event.Message,
	}
	return s.mailer.SendTemplatedEmail(user.Email, event.Type, data)
}

// deliverPush is gated like the other channels but has no transport
// yet. It must never fail.
func (s *NotificationService) deliverPush(uint64, Event) {}

// getOrCreatePreference loads a user's preferences, creating the
// default row on first use.
func (s *NotificationService) getOrCreatePreference(userID uint64) (*models.NotificationPreference, error) {
	pref, err := s.notifRepo.FindPreference(userID)
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	pref = models.DefaultNotificationPreference(userID)
	if err := s.notifRepo.CreatePreference(pref); err != nil {
		return nil, err
	}
	return pref, nil
}

// inQuietHours reports whether the user's quiet window covers the
// current local time. A window with start > end wraps midnight.
func (s *NotificationService) inQuietHours(pref *models.NotificationPreference) bool {
	if !pref.QuietHoursEnabled {
		return false
	}

	start, okStart := parseMinuteOfDay(pref.QuietHoursStart)
	end, okEnd := parseMinuteOfDay(pref.QuietHoursEnd)
	if !okStart || !okEnd || start == end {
		return false
	}

	now := s.now()
	cur := now.Hour()*60 + now.Minute()

	if start > end {
		// Wraps midnight: [start, 24:00) or [00:00, end)
		return cur >= start || cur < end
	}
	return cur >= start && cur < end
}

// parseMinuteOfDay parses an "HH:MM" string into minutes since midnight.
func parseMinuteOfDay(value string) (int, bool) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// ListNotifications returns a user's non-expired notifications.
func (s *NotificationService) ListNotifications(userID uint64, unreadOnly bool, page, pageSize int) ([]models.Notification, int64, error) {
	return s.notifRepo.ListByUser(userID, unreadOnly, page, pageSize)
}

// MarkRead marks one notification as read.
func (s *NotificationService) MarkRead(id, userID uint64) error {
	if err := s.notifRepo.MarkRead(id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of a user as read.
func (s *NotificationService) MarkAllRead(userID uint64) error {
	return s.notifRepo.MarkAllRead(userID)
}

// GetPreferences returns a user's preferences, creating defaults on
// first access.
func (s *NotificationService) GetPreferences(userID uint64) (*models.NotificationPreference, error) {
	return s.getOrCreatePreference(userID)
}

// UpdatePreferencesInput carries preference changes; nil fields keep
// their current value.
type UpdatePreferencesInput struct {
	EmailEnabled      *bool
	InAppEnabled      *bool
	PushEnabled       *bool
	TypeOverrides     map[models.NotificationType]models.ChannelToggle
	QuietHoursEnabled *bool
	QuietHoursStart   *string
	QuietHoursEnd     *string
	MutedProjectIDs   []uint64
	SetMutedProjects  bool
}

// UpdatePreferences applies partial changes to a user's preferences.
func (s *NotificationService) UpdatePreferences(userID uint64, input UpdatePreferencesInput) (*models.NotificationPreference, error) {
	pref, err := s.getOrCreatePreference(userID)
	if err != nil {
		return nil, err
	}

	if input.EmailEnabled != nil {
		pref.EmailEnabled = *input.EmailEnabled
	}
	if input.InAppEnabled != nil {
		pref.InAppEnabled = *input.InAppEnabled
	}
	if input.PushEnabled != nil {
		pref.PushEnabled = *input.PushEnabled
	}
	if input.TypeOverrides != nil {
		pref.TypeOverrides = input.TypeOverrides
	}
	if input.QuietHoursEnabled != nil {
		pref.QuietHoursEnabled = *input.QuietHoursEnabled
	}
	if input.QuietHoursStart != nil {
		if _, ok := parseMinuteOfDay(*input.QuietHoursStart); !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidQuietHours, *input.QuietHoursStart)
		}
		pref.QuietHoursStart = *input.QuietHoursStart
	}
	if input.QuietHoursEnd != nil {
		if _, ok := parseMinuteOfDay(*input.QuietHoursEnd); !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidQuietHours, *input.QuietHoursEnd)
		}
		pref.QuietHoursEnd = *input.QuietHoursEnd
	}
	if input.SetMutedProjects {
		pref.MutedProjectIDs = input.MutedProjectIDs
	}

	if err := s.notifRepo.UpdatePreference(pref); err != nil {
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}
	return pref, nil
}

// ReapExpired deletes notifications past their TTL.
func (s *NotificationService) ReapExpired() (int64, error) {
	return s.notifRepo.DeleteExpired(s.now())
}

// dedupeExcluding removes duplicates and the acting user from a
// recipient set, preserving order.
func dedupeExcluding(ids []uint64, exclude uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	result := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
