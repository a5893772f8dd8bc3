package contract

import (
	"context"
	"errors"
	"time"

	"fieldops-notify-be/internal/model"

	"github.com/google/uuid"
)

// ErrNotFound is returned by any lookup that matches nothing. Storage
// backends map their own not-found signal to this sentinel.
var ErrNotFound = errors.New("record not found")

// NotificationFilter narrows List queries. Nil / zero fields are ignored.
type NotificationFilter struct {
	Type          *model.NotificationType
	Priority      *model.Priority
	Status        *model.Status
	Channel       *model.Channel
	IsRead        *bool
	EntityType    string
	EntityID      string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *model.Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)

	// AppendDeliveryOutcomes atomically appends to the delivery history
	// and recomputes the derived status. Concurrent appends to the same
	// notification (dispatch racing a retry) must not clobber each other.
	AppendDeliveryOutcomes(ctx context.Context, id uuid.UUID, outcomes []model.DeliveryOutcome) (*model.Notification, error)

	MarkAsRead(ctx context.Context, id uuid.UUID, readAt time.Time) error
	MarkAllAsRead(ctx context.Context, userID uuid.UUID, readAt time.Time) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	List(ctx context.Context, userID uuid.UUID, filter NotificationFilter, limit, offset int) ([]model.Notification, int64, error)

	// ListDueScheduled returns pending notifications whose scheduled_for
	// has come due, oldest first.
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]model.Notification, error)

	GetPreferences(ctx context.Context, userID uuid.UUID) (*model.NotificationPreferences, error)
	SavePreferences(ctx context.Context, prefs *model.NotificationPreferences) error
}
