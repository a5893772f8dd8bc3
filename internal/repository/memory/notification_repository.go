package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/repository/contract"

	"github.com/google/uuid"
)

// NotificationRepository is the in-memory backend used by tests and local
// tooling. Same contract, map-backed, a single mutex standing in for the
// row locks of the SQL implementation.
type NotificationRepository struct {
	mu            sync.RWMutex
	notifications map[uuid.UUID]*model.Notification
	preferences   map[uuid.UUID]*model.NotificationPreferences
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		notifications: make(map[uuid.UUID]*model.Notification),
		preferences:   make(map[uuid.UUID]*model.NotificationPreferences),
	}
}

func (r *NotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.notifications[n.ID] = &cp
	return nil
}

func (r *NotificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, contract.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (r *NotificationRepository) AppendDeliveryOutcomes(ctx context.Context, id uuid.UUID, outcomes []model.DeliveryOutcome) (*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return nil, contract.ErrNotFound
	}
	merged := append(n.Outcomes(), outcomes...)
	if err := n.SetOutcomes(merged); err != nil {
		return nil, err
	}
	n.Status = model.DeriveStatus(merged)
	n.UpdatedAt = time.Now()
	cp := *n
	return &cp, nil
}

func (r *NotificationRepository) MarkAsRead(ctx context.Context, id uuid.UUID, readAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok || n.IsRead {
		return nil
	}
	n.IsRead = true
	t := readAt
	n.ReadAt = &t
	return nil
}

func (r *NotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID, readAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var affected int64
	for _, n := range r.notifications {
		if n.RecipientID == userID && !n.IsRead {
			n.IsRead = true
			t := readAt
			n.ReadAt = &t
			affected++
		}
	}
	return affected, nil
}

func (r *NotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, n := range r.notifications {
		if n.RecipientID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) List(ctx context.Context, userID uuid.UUID, filter contract.NotificationFilter, limit, offset int) ([]model.Notification, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []model.Notification
	for _, n := range r.notifications {
		if n.RecipientID != userID || !matches(n, filter) {
			continue
		}
		matched = append(matched, *n)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if offset >= len(matched) {
		return []model.Notification{}, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func matches(n *model.Notification, f contract.NotificationFilter) bool {
	if f.Type != nil && n.Type != *f.Type {
		return false
	}
	if f.Priority != nil && n.Priority != *f.Priority {
		return false
	}
	if f.Status != nil && n.Status != *f.Status {
		return false
	}
	if f.IsRead != nil && n.IsRead != *f.IsRead {
		return false
	}
	if f.EntityType != "" && n.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && n.EntityID != f.EntityID {
		return false
	}
	if f.CreatedAfter != nil && n.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && n.CreatedAt.After(*f.CreatedBefore) {
		return false
	}
	if f.Channel != nil {
		found := false
		for _, o := range n.Outcomes() {
			if o.Channel == *f.Channel {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (r *NotificationRepository) ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var due []model.Notification
	for _, n := range r.notifications {
		if n.Status == model.StatusPending && n.ScheduledFor != nil && !n.ScheduledFor.After(now) {
			due = append(due, *n)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledFor.Before(*due[j].ScheduledFor)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *NotificationRepository) GetPreferences(ctx context.Context, userID uuid.UUID) (*model.NotificationPreferences, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.preferences[userID]
	if !ok {
		return nil, contract.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *NotificationRepository) SavePreferences(ctx context.Context, prefs *model.NotificationPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefs.UpdatedAt = time.Now()
	cp := *prefs
	r.preferences[prefs.UserID] = &cp
	return nil
}
