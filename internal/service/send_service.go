package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"fieldops-notify-be/internal/config"
	"fieldops-notify-be/internal/dto"
	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/pkg/clock"
	"fieldops-notify-be/internal/pkg/logger"
	"fieldops-notify-be/internal/repository/contract"
	"fieldops-notify-be/pkg/events"
	"fieldops-notify-be/pkg/policy"
	"fieldops-notify-be/pkg/template"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SendService runs the full single-notification pipeline (resolve
// preferences, select channels, bind template, dispatch, persist
// outcomes) and fans it out across recipients for bulk sends.
type SendService struct {
	users       contract.UserDirectory
	preferences *PreferenceService
	store       *NotificationService
	dispatcher  *DispatchService
	registry    *template.Registry
	bus         EventPublisher
	clock       clock.Clock
	bulk        config.BulkConfig
	logger      logger.ILogger
}

func NewSendService(
	users contract.UserDirectory,
	preferences *PreferenceService,
	store *NotificationService,
	dispatcher *DispatchService,
	registry *template.Registry,
	bus EventPublisher,
	clk clock.Clock,
	bulk config.BulkConfig,
	log logger.ILogger,
) *SendService {
	return &SendService{
		users:       users,
		preferences: preferences,
		store:       store,
		dispatcher:  dispatcher,
		registry:    registry,
		bus:         bus,
		clock:       clk,
		bulk:        bulk,
		logger:      log,
	}
}

// Send creates and delivers one notification. Input errors (unknown
// recipient, unknown template) and persistence errors propagate;
// per-channel delivery failures never do; they end up in the stored
// outcome history. A notification scheduled for the future is persisted
// as pending and left for the scheduler.
func (s *SendService) Send(ctx context.Context, req dto.SendNotificationRequest) (*model.Notification, error) {
	user, err := s.users.FindByID(ctx, req.RecipientID)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, err
	}

	n, err := s.buildNotification(req)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, n); err != nil {
		return nil, err
	}

	if n.ScheduledFor != nil && n.ScheduledFor.After(s.clock.Now()) {
		s.logger.Info("SendService", "Notification deferred until scheduled time", map[string]interface{}{
			"notification_id": n.ID, "scheduled_for": n.ScheduledFor,
		})
		return n, nil
	}

	return s.Deliver(ctx, n, user)
}

// Deliver runs preference resolution, channel selection and dispatch for
// an already-persisted notification. Also used by the scheduler when a
// deferred notification comes due.
func (s *SendService) Deliver(ctx context.Context, n *model.Notification, user *model.User) (*model.Notification, error) {
	prefs, err := s.preferences.Resolve(ctx, n.RecipientID)
	if err != nil {
		// Defaults were returned; deliver with those.
		s.logger.Warn("SendService", "Delivering with default preferences", map[string]interface{}{
			"notification_id": n.ID, "error": err.Error(),
		})
	}

	selected := policy.SelectChannels(n.Type, n.Priority, prefs, s.clock.Now())

	var outcomes []model.DeliveryOutcome
	if len(selected) > 0 {
		outcomes = s.dispatcher.Dispatch(ctx, n, selected, RecipientOf(user))
	}
	// An empty selection is a deliberate policy outcome, not an error;
	// recording the empty history marks the notification skipped.

	updated, err := s.store.RecordDeliveryOutcomes(ctx, n.ID, outcomes)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, updated)
	return updated, nil
}

// announce emits a NOTIFICATION_DELIVERED event onto the bus once an
// outcome history is recorded, so other platform services can react to
// the final status. Best-effort; a bus failure never fails the send.
func (s *SendService) announce(ctx context.Context, n *model.Notification) {
	if s.bus == nil {
		return
	}

	event := events.BaseEvent{
		Type: "NOTIFICATION_DELIVERED",
		Data: map[string]interface{}{
			"notification_id": n.ID.String(),
			"recipient_id":    n.RecipientID.String(),
			"type":            string(n.Type),
			"status":          string(n.Status),
		},
		OccurredAt: s.clock.Now(),
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Warn("SendService", "Failed to announce delivery", map[string]interface{}{
			"notification_id": n.ID, "error": err.Error(),
		})
	}
}

// DeliverByID is the scheduler entry point: it resolves the recipient
// for a stored notification and delivers. A recipient that has vanished
// since scheduling records an empty history (skip) so the row stops
// coming up as due.
func (s *SendService) DeliverByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, n.RecipientID)
	if errors.Is(err, contract.ErrNotFound) {
		s.logger.Warn("SendService", "Recipient gone, skipping scheduled notification", map[string]interface{}{
			"notification_id": n.ID, "recipient_id": n.RecipientID,
		})
		return s.store.RecordDeliveryOutcomes(ctx, n.ID, nil)
	}
	if err != nil {
		return nil, err
	}

	return s.Deliver(ctx, n, user)
}

// SendBulk applies the single-notification pipeline to every recipient
// independently. One recipient's failure never stops the rest; every
// input id lands in exactly one of the success/failed partitions.
// Recipients are processed in chunks with a configurable inter-chunk
// delay, through a bounded worker pool. Cancellation is honored between
// recipients; an in-flight dispatch completes.
func (s *SendService) SendBulk(ctx context.Context, req dto.BulkSendNotificationRequest) *dto.BulkSendResult {
	result := &dto.BulkSendResult{
		Success: []uuid.UUID{},
		Failed:  []dto.BulkFailure{},
	}

	chunkSize := s.bulk.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 100
	}
	workers := s.bulk.Workers
	if workers <= 0 {
		workers = 1
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for start := 0; start < len(req.RecipientIDs); start += chunkSize {
		end := start + chunkSize
		if end > len(req.RecipientIDs) {
			end = len(req.RecipientIDs)
		}

		if start > 0 && s.bulk.ChunkDelay > 0 && ctx.Err() == nil {
			select {
			case <-time.After(s.bulk.ChunkDelay):
			case <-ctx.Done():
			}
		}

		for _, recipientID := range req.RecipientIDs[start:end] {
			if err := ctx.Err(); err != nil {
				mu.Lock()
				result.Failed = append(result.Failed, dto.BulkFailure{
					RecipientID: recipientID, Error: "cancelled before dispatch",
				})
				mu.Unlock()
				continue
			}

			wg.Add(1)
			sem <- struct{}{}
			go func(recipientID uuid.UUID) {
				defer wg.Done()
				defer func() { <-sem }()

				single := req.SendNotificationRequest
				single.RecipientID = recipientID

				n, err := s.Send(ctx, single)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					result.Failed = append(result.Failed, dto.BulkFailure{
						RecipientID: recipientID, Error: err.Error(),
					})
					return
				}
				result.Success = append(result.Success, n.ID)
			}(recipientID)
		}
	}

	wg.Wait()

	s.logger.Info("SendService", "Bulk fan-out finished", map[string]interface{}{
		"recipients": len(req.RecipientIDs),
		"success":    len(result.Success),
		"failed":     len(result.Failed),
	})
	return result
}

func (s *SendService) buildNotification(req dto.SendNotificationRequest) (*model.Notification, error) {
	title, message := req.Title, req.Message
	if req.TemplateID != "" {
		rendered, err := s.registry.Bind(req.TemplateID, req.Variables)
		if err != nil {
			return nil, err
		}
		title, message = rendered.Title, rendered.Message
	}

	priority := req.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	actionURL := req.ActionURL
	if actionURL == "" && req.EntityType != "" && req.EntityID != "" {
		actionURL = "/" + req.EntityType + "s/" + req.EntityID
	}

	var data datatypes.JSON
	if len(req.Data) > 0 {
		raw, err := json.Marshal(req.Data)
		if err != nil {
			return nil, err
		}
		data = datatypes.JSON(raw)
	}

	return &model.Notification{
		Type:         req.Type,
		Priority:     priority,
		RecipientID:  req.RecipientID,
		SenderID:     req.SenderID,
		Title:        title,
		Message:      message,
		EntityType:   req.EntityType,
		EntityID:     req.EntityID,
		ActionURL:    actionURL,
		Data:         data,
		ScheduledFor: req.ScheduledFor,
		ExpiresAt:    req.ExpiresAt,
	}, nil
}
