package service

import (
	"context"
	"errors"

	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/pkg/clock"
	"fieldops-notify-be/internal/pkg/logger"
	"fieldops-notify-be/internal/repository/contract"

	"github.com/google/uuid"
)

// NotificationService is the store coordinator: it owns creation, the
// derived aggregate status, read-state transitions and queries. Delivery
// itself lives in DispatchService.
type NotificationService struct {
	repo   contract.NotificationRepository
	clock  clock.Clock
	logger logger.ILogger
}

func NewNotificationService(repo contract.NotificationRepository, clk clock.Clock, log logger.ILogger) *NotificationService {
	return &NotificationService{repo: repo, clock: clk, logger: log}
}

// Create persists a new notification in pending state, assigning its id.
func (s *NotificationService) Create(ctx context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	n.Status = model.StatusPending
	now := s.clock.Now()
	n.CreatedAt = now
	n.UpdatedAt = now
	if err := n.SetOutcomes(nil); err != nil {
		return err
	}
	return s.repo.Create(ctx, n)
}

// Get loads one notification.
func (s *NotificationService) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	n, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, ErrNotificationNotFound
	}
	return n, err
}

// RecordDeliveryOutcomes appends dispatch results and recomputes the
// aggregate status. An empty outcome list records a policy skip.
func (s *NotificationService) RecordDeliveryOutcomes(ctx context.Context, id uuid.UUID, outcomes []model.DeliveryOutcome) (*model.Notification, error) {
	n, err := s.repo.AppendDeliveryOutcomes(ctx, id, outcomes)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, ErrNotificationNotFound
	}
	return n, err
}

// MarkRead transitions read state. Only the recipient may do this;
// marking an already-read notification is a no-op returning the
// unchanged entity.
func (s *NotificationService) MarkRead(ctx context.Context, id, requestingUserID uuid.UUID) (*model.Notification, error) {
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != requestingUserID {
		return nil, ErrUnauthorized
	}
	if n.IsRead {
		return n, nil
	}

	readAt := s.clock.Now()
	if err := s.repo.MarkAsRead(ctx, id, readAt); err != nil {
		return nil, err
	}
	n.IsRead = true
	n.ReadAt = &readAt
	return n, nil
}

// MarkAllRead transitions every unread notification owned by the user
// and returns the number affected. The storage-level unread guard makes
// a retry count nothing twice.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.MarkAllAsRead(ctx, userID, s.clock.Now())
}

// UnreadCount returns the user's unread total.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// List returns a filtered page of the user's notifications plus the
// total matching count.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, filter contract.NotificationFilter, limit, offset int) ([]model.Notification, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, userID, filter, limit, offset)
}

// DueScheduled returns pending notifications whose scheduled time has
// arrived.
func (s *NotificationService) DueScheduled(ctx context.Context, limit int) ([]model.Notification, error) {
	return s.repo.ListDueScheduled(ctx, s.clock.Now(), limit)
}
