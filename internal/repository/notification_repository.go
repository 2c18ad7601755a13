package repository

import (
	"time"

	"github.com/nocturne-lab/projecthub/internal/models"
	"gorm.io/gorm"
)

// GormNotificationRepository is a GORM implementation of NotificationRepository
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Create persists a notification
func (r *GormNotificationRepository) Create(n *models.Notification) error {
	return r.db.Create(n).Error
}

// ListByUser returns non-expired notifications for a user, newest first
func (r *GormNotificationRepository) ListByUser(userID uint64, unreadOnly bool, page, pageSize int) ([]models.Notification, int64, error) {
	query := r.db.Model(&models.Notification{}).
		Where("user_id = ?", userID).
		Where("expires_at > ?", time.Now())

	if unreadOnly {
		query = query.Where("`read` = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Order("created_at DESC")
	if page > 0 && pageSize > 0 {
		listQuery = listQuery.Offset((page - 1) * pageSize).Limit(pageSize)
	}

	var notifications []models.Notification
	if err := listQuery.Find(&notifications).Error; err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

// MarkRead marks one notification as read, scoped to the owner
func (r *GormNotificationRepository) MarkRead(id, userID uint64) error {
	res := r.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		UpdateColumn("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of a user as read
func (r *GormNotificationRepository) MarkAllRead(userID uint64) error {
	return r.db.Model(&models.Notification{}).
		Where("user_id = ? AND `read` = ?", userID, false).
		UpdateColumn("read", true).Error
}

// DeleteExpired removes notifications past their expiry
func (r *GormNotificationRepository) DeleteExpired(now time.Time) (int64, error) {
	res := r.db.Where("expires_at <= ?", now).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

// FindPreference loads a user's notification preference row
func (r *GormNotificationRepository) FindPreference(userID uint64) (*models.NotificationPreference, error) {
	var pref models.NotificationPreference
	if err := r.db.Where("user_id = ?", userID).First(&pref).Error; err != nil {
		return nil, err
	}
	return &pref, nil
}

// CreatePreference persists a new preference row
func (r *GormNotificationRepository) CreatePreference(p *models.NotificationPreference) error {
	return r.db.Create(p).Error
}

// UpdatePreference saves changes to a preference row
func (r *GormNotificationRepository) UpdatePreference(p *models.NotificationPreference) error {
	return r.db.Save(p).Error
}
