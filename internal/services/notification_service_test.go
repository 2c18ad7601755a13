package services

import (
	"errors"
	"testing"
	"time"

	"github.com/nocturne-lab/projecthub/internal/models"
	"github.com/nocturne-lab/projecthub/internal/repository"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type sentEmail struct {
	To   string
	Kind models.NotificationType
}

// recordingMailer captures sends instead of talking to SMTP.
type recordingMailer struct {
	sent []sentEmail
	err  error
}

func (m *recordingMailer) SendTemplatedEmail(toAddress string, kind models.NotificationType, data map[string]interface{}) error {
	m.sent = append(m.sent, sentEmail{To: toAddress, Kind: kind})
	return m.err
}

type emittedEvent struct {
	UserID uint64
	Event  string
}

type recordingEmitter struct {
	events []emittedEvent
}

func (e *recordingEmitter) EmitToUser(userID uint64, event string, payload interface{}) {
	e.events = append(e.events, emittedEvent{UserID: userID, Event: event})
}

type NotificationServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	service *NotificationService
	mailer  *recordingMailer
	emitter *recordingEmitter

	actor     *models.User
	recipient *models.User
	project   *models.Project
}

func (s *NotificationServiceTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	s.Require().NoError(err)
	s.db = db

	err = db.AutoMigrate(
		&models.User{},
		&models.Organization{},
		&models.Project{},
		&models.Notification{},
		&models.NotificationPreference{},
	)
	s.Require().NoError(err)

	s.mailer = &recordingMailer{}
	s.emitter = &recordingEmitter{}
	s.service = NewNotificationService(
		repository.NewNotificationRepository(db),
		repository.NewUserRepository(db),
		s.mailer,
		s.emitter,
	)

	s.actor = &models.User{Username: "actor", Email: "actor@example.com", PasswordHash: "x"}
	s.Require().NoError(db.Create(s.actor).Error)
	s.recipient = &models.User{Username: "dana", Email: "dana@example.com", PasswordHash: "x"}
	s.Require().NoError(db.Create(s.recipient).Error)

	org := &models.Organization{Name: "acme", InviteCode: "ACME-3333-3333"}
	s.Require().NoError(db.Create(org).Error)
	s.project = &models.Project{Name: "apollo", OrganizationID: org.ID, OwnerID: s.actor.ID}
	s.Require().NoError(db.Create(s.project).Error)
}

func (s *NotificationServiceTestSuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	s.Require().NoError(err)
	sqlDB.Close()
}

func (s *NotificationServiceTestSuite) event(recipients ...uint64) Event {
	return Event{
		Type:       models.NotificationTaskAssigned,
		ActorID:    s.actor.ID,
		ProjectID:  &s.project.ID,
		EntityKind: "task",
		EntityID:   42,
		Title:      "Ship the importer",
		Message:    "You were assigned",
		Recipients: recipients,
	}
}

func (s *NotificationServiceTestSuite) storedNotifications() []models.Notification {
	var rows []models.Notification
	s.Require().NoError(s.db.Find(&rows).Error)
	return rows
}

func (s *NotificationServiceTestSuite) TestDispatchDeliversAllChannels() {
	s.service.Dispatch(s.event(s.recipient.ID))

	rows := s.storedNotifications()
	s.Require().Len(rows, 1)
	s.Equal(s.recipient.ID, rows[0].UserID)
	s.Equal(models.NotificationTaskAssigned, rows[0].Type)
	s.False(rows[0].Read)
	s.True(rows[0].ExpiresAt.After(time.Now()))

	s.Require().Len(s.emitter.events, 1)
	s.Equal(s.recipient.ID, s.emitter.events[0].UserID)
	s.Equal("notification", s.emitter.events[0].Event)

	s.Require().Len(s.mailer.sent, 1)
	s.Equal("dana@example.com", s.mailer.sent[0].To)
}

func (s *NotificationServiceTestSuite) TestDispatchExcludesActorAndDuplicates() {
	s.service.Dispatch(s.event(s.recipient.ID, s.actor.ID, s.recipient.ID))

	s.Len(s.storedNotifications(), 1)
	s.Len(s.mailer.sent, 1)
}

func (s *NotificationServiceTestSuite) TestDispatchCreatesDefaultPreference() {
	s.service.Dispatch(s.event(s.recipient.ID))

	var pref models.NotificationPreference
	err := s.db.Where("user_id = ?", s.recipient.ID).First(&pref).Error
	s.Require().NoError(err)
	s.True(pref.EmailEnabled)
	s.True(pref.InAppEnabled)
	s.True(pref.PushEnabled)
	s.False(pref.QuietHoursEnabled)
}

func (s *NotificationServiceTestSuite) TestMutedProjectSuppressesEverything() {
	_, err := s.service.UpdatePreferences(s.recipient.ID, UpdatePreferencesInput{
		MutedProjectIDs:  []uint64{s.project.ID},
		SetMutedProjects: true,
	})
	s.Require().NoError(err)

	s.service.Dispatch(s.event(s.recipient.ID))

	s.Empty(s.storedNotifications())
	s.Empty(s.emitter.events)
	s.Empty(s.mailer.sent)
}

func (s *NotificationServiceTestSuite) TestQuietHoursSuppressEmailButNotInApp() {
	enabled := true
	start := "22:00"
	end := "08:00"
	_, err := s.service.UpdatePreferences(s.recipient.ID, UpdatePreferencesInput{
		QuietHoursEnabled: &enabled,
		QuietHoursStart:   &start,
		QuietHoursEnd:     &end,
	})
	s.Require().NoError(err)

	// 23:00 falls inside a window that wraps midnight.
	s.service.now = func() time.Time {
		return time.Date(2025, 6, 1, 23, 0, 0, 0, time.UTC)
	}
	s.service.Dispatch(s.event(s.recipient.ID))

	s.Len(s.storedNotifications(), 1)
	s.Len(s.emitter.events, 1)
	s.Empty(s.mailer.sent)

	// 02:30 is still inside the wrapped window.
	s.service.now = func() time.Time {
		return time.Date(2025, 6, 2, 2, 30, 0, 0, time.UTC)
	}
	s.service.Dispatch(s.event(s.recipient.ID))
	s.Empty(s.mailer.sent)

	// 09:00 is outside, email resumes.
	s.service.now = func() time.Time {
		return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	}
	s.service.Dispatch(s.event(s.recipient.ID))
	s.Len(s.mailer.sent, 1)
}

func (s *NotificationServiceTestSuite) TestTypeOverrideDisablesSingleChannel() {
	_, err := s.service.UpdatePreferences(s.recipient.ID, UpdatePreferencesInput{
		TypeOverrides: map[models.NotificationType]models.ChannelToggle{
			models.NotificationTaskAssigned: {Email: false, InApp: true, Push: true},
		},
	})
	s.Require().NoError(err)

	s.service.Dispatch(s.event(s.recipient.ID))

	s.Len(s.storedNotifications(), 1)
	s.Empty(s.mailer.sent)

	// Types without an override keep all channels on.
	ev := s.event(s.recipient.ID)
	ev.Type = models.NotificationCommentAdded
	s.service.Dispatch(ev)
	s.Len(s.mailer.sent, 1)
}

func (s *NotificationServiceTestSuite) TestEmailFailureDoesNotBlockInApp() {
	s.mailer.err = errors.New("smtp connection refused")

	s.service.Dispatch(s.event(s.recipient.ID))

	s.Len(s.storedNotifications(), 1)
	s.Len(s.emitter.events, 1)
}

func (s *NotificationServiceTestSuite) TestFailureForOneRecipientDoesNotBlockOthers() {
	other := &models.User{Username: "erin", Email: "erin@example.com", PasswordHash: "x"}
	s.Require().NoError(s.db.Create(other).Error)

	// Recipient 99999 has no user row, so its email lookup fails.
	s.service.Dispatch(s.event(99999, other.ID))

	rows := s.storedNotifications()
	userIDs := make([]uint64, 0, len(rows))
	for _, row := range rows {
		userIDs = append(userIDs, row.UserID)
	}
	s.Contains(userIDs, other.ID)
}

func (s *NotificationServiceTestSuite) TestMentionFansOutSeparately() {
	ev := s.event(s.recipient.ID)
	ev.MentionedUserIDs = []uint64{s.recipient.ID}
	s.service.Dispatch(ev)

	rows := s.storedNotifications()
	s.Require().Len(rows, 2)
	types := []models.NotificationType{rows[0].Type, rows[1].Type}
	s.Contains(types, models.NotificationTaskAssigned)
	s.Contains(types, models.NotificationMention)
}

func (s *NotificationServiceTestSuite) TestMarkReadScopedToOwner() {
	s.service.Dispatch(s.event(s.recipient.ID))
	rows := s.storedNotifications()
	s.Require().Len(rows, 1)

	err := s.service.MarkRead(rows[0].ID, s.actor.ID)
	s.ErrorIs(err, ErrNotificationNotFound)

	s.Require().NoError(s.service.MarkRead(rows[0].ID, s.recipient.ID))
	var n models.Notification
	s.Require().NoError(s.db.First(&n, rows[0].ID).Error)
	s.True(n.Read)
}

func (s *NotificationServiceTestSuite) TestMarkAllRead() {
	s.service.Dispatch(s.event(s.recipient.ID))
	ev := s.event(s.recipient.ID)
	ev.Type = models.NotificationCommentAdded
	s.service.Dispatch(ev)

	s.Require().NoError(s.service.MarkAllRead(s.recipient.ID))

	var unread int64
	s.Require().NoError(s.db.Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", s.recipient.ID, false).
		Count(&unread).Error)
	s.Zero(unread)
}

func (s *NotificationServiceTestSuite) TestUpdatePreferencesRejectsBadQuietHours() {
	start := "25:99"
	_, err := s.service.UpdatePreferences(s.recipient.ID, UpdatePreferencesInput{
		QuietHoursStart: &start,
	})
	s.ErrorIs(err, ErrInvalidQuietHours)
}

func (s *NotificationServiceTestSuite) TestReapExpired() {
	s.service.now = func() time.Time {
		return time.Now().AddDate(0, 0, -120)
	}
	s.service.Dispatch(s.event(s.recipient.ID))

	s.service.now = time.Now
	removed, err := s.service.ReapExpired()
	s.Require().NoError(err)
	s.Equal(int64(1), removed)
	s.Empty(s.storedNotifications())
}

func TestNotificationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(NotificationServiceTestSuite))
}
