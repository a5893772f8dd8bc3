package implementation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type NotificationRepositoryImpl struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) contract.NotificationRepository {
	return &NotificationRepositoryImpl{db: db}
}

func (r *NotificationRepositoryImpl) Create(ctx context.Context, notification *model.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *NotificationRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var n model.Notification
	err := r.db.WithContext(ctx).First(&n, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, contract.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// AppendDeliveryOutcomes takes a row lock for the read-modify-write so a
// dispatch and a concurrent retry on the same notification serialize
// instead of clobbering each other's history.
func (r *NotificationRepositoryImpl) AppendDeliveryOutcomes(ctx context.Context, id uuid.UUID, outcomes []model.DeliveryOutcome) (*model.Notification, error) {
	var updated model.Notification

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n model.Notification
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&n, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return contract.ErrNotFound
		}
		if err != nil {
			return err
		}

		merged := append(n.Outcomes(), outcomes...)
		if err := n.SetOutcomes(merged); err != nil {
			return err
		}
		n.Status = model.DeriveStatus(merged)
		n.UpdatedAt = time.Now()

		if err := tx.Model(&model.Notification{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"delivery_status": n.DeliveryStatus,
				"status":          n.Status,
				"updated_at":      n.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		updated = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *NotificationRepositoryImpl) MarkAsRead(ctx context.Context, id uuid.UUID, readAt time.Time) error {
	// is_read = false guard keeps the update idempotent; a second call
	// touches zero rows and does not move read_at.
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ? AND is_read = ?", id, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": readAt,
		})
	return result.Error
}

func (r *NotificationRepositoryImpl) MarkAllAsRead(ctx context.Context, userID uuid.UUID, readAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": readAt,
		})
	return result.RowsAffected, result.Error
}

func (r *NotificationRepositoryImpl) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *NotificationRepositoryImpl) List(ctx context.Context, userID uuid.UUID, filter contract.NotificationFilter, limit, offset int) ([]model.Notification, int64, error) {
	var notifications []model.Notification
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Notification{}).Where("recipient_id = ?", userID)

	if filter.Type != nil {
		db = db.Where("type = ?", *filter.Type)
	}
	if filter.Priority != nil {
		db = db.Where("priority = ?", *filter.Priority)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", *filter.Status)
	}
	if filter.IsRead != nil {
		db = db.Where("is_read = ?", *filter.IsRead)
	}
	if filter.EntityType != "" {
		db = db.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != "" {
		db = db.Where("entity_id = ?", filter.EntityID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	if filter.Channel != nil {
		// Match any attempt on the channel in the JSONB history.
		db = db.Where("delivery_status @> ?", fmt.Sprintf(`[{"channel": %q}]`, *filter.Channel))
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := db.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error

	return notifications, total, err
}

func (r *NotificationRepositoryImpl) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]model.Notification, error) {
	var notifications []model.Notification
	err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?", model.StatusPending, now).
		Order("scheduled_for ASC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (r *NotificationRepositoryImpl) GetPreferences(ctx context.Context, userID uuid.UUID) (*model.NotificationPreferences, error) {
	var prefs model.NotificationPreferences
	err := r.db.WithContext(ctx).First(&prefs, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, contract.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (r *NotificationRepositoryImpl) SavePreferences(ctx context.Context, prefs *model.NotificationPreferences) error {
	prefs.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(prefs).Error
}
