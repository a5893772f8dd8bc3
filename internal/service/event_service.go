package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fieldops-notify-be/internal/dto"
	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/pkg/logger"
	"fieldops-notify-be/pkg/events"

	"github.com/google/uuid"
)

type IEventService interface {
	Start() error
}

// EventSubscriber is the broker surface the intake needs; satisfied by
// pkg/nats.Subscriber.
type EventSubscriber interface {
	Subscribe(subject string, durableName string, handler EventHandler) error
}

// EventPublisher is the outbound counterpart; satisfied by
// pkg/nats.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// EventHandler mirrors pkg/nats.EventHandler so the service package does
// not import the broker package.
type EventHandler = func(ctx context.Context, event events.Event) error

// eventRoute maps a platform event code onto a notification intent.
type eventRoute struct {
	templateID string
	typ        model.NotificationType
	priority   model.Priority
	entityType string
}

var eventRoutes = map[string]eventRoute{
	"INSPECTION_ASSIGNED": {
		templateID: "inspection_assigned",
		typ:        model.TypeInspectionAssigned,
		priority:   model.PriorityMedium,
		entityType: "inspection",
	},
	"INSPECTION_OVERDUE": {
		templateID: "inspection_overdue",
		typ:        model.TypeInspectionOverdue,
		priority:   model.PriorityHigh,
		entityType: "inspection",
	},
	"INSPECTION_DUE_REMINDER": {
		templateID: "inspection_due_reminder",
		typ:        model.TypeInspectionDueReminder,
		priority:   model.PriorityMedium,
		entityType: "inspection",
	},
	"INSPECTION_COMPLETED": {
		templateID: "inspection_completed",
		typ:        model.TypeInspectionCompleted,
		priority:   model.PriorityLow,
		entityType: "inspection",
	},
	"ASSET_MAINTENANCE_DUE": {
		templateID: "asset_maintenance_due",
		typ:        model.TypeAssetMaintenanceDue,
		priority:   model.PriorityHigh,
		entityType: "asset",
	},
	"ASSET_STATUS_CHANGED": {
		templateID: "asset_status_changed",
		typ:        model.TypeAssetStatusChanged,
		priority:   model.PriorityMedium,
		entityType: "asset",
	},
	"SYSTEM_MAINTENANCE": {
		templateID: "system_maintenance",
		typ:        model.TypeSystemMaintenance,
		priority:   model.PriorityCritical,
	},
}

// eventService subscribes to the platform event bus and turns inspection
// and asset events into notifications through the send pipeline.
type eventService struct {
	subscriber EventSubscriber
	sender     *SendService
	logger     logger.ILogger
}

func NewEventService(subscriber EventSubscriber, sender *SendService, log logger.ILogger) IEventService {
	return &eventService{subscriber: subscriber, sender: sender, logger: log}
}

func (es *eventService) Start() error {
	return es.subscriber.Subscribe("events.>", "notify-engine-worker", es.handleEvent)
}

func (es *eventService) handleEvent(ctx context.Context, event events.Event) error {
	code := eventCode(event.EventType())

	route, ok := eventRoutes[code]
	if !ok {
		// Not every platform event produces a notification.
		es.logger.Debug("EventService", "Ignoring unrouted event", map[string]interface{}{
			"event": code,
		})
		return nil
	}

	payload := event.Payload()
	recipients, err := recipientIDs(payload)
	if err != nil {
		// Malformed payloads will never parse on redelivery; drop them.
		es.logger.Error("EventService", "Event has no usable recipients", map[string]interface{}{
			"event": code, "error": err.Error(),
		})
		return nil
	}

	req := dto.SendNotificationRequest{
		Type:       route.typ,
		Priority:   route.priority,
		TemplateID: route.templateID,
		Variables:  stringVariables(payload),
		EntityType: route.entityType,
		EntityID:   stringField(payload, "entity_id"),
	}

	for _, recipientID := range recipients {
		req.RecipientID = recipientID
		if _, err := es.sender.Send(ctx, req); err != nil {
			if isInputError(err) {
				es.logger.Warn("EventService", "Skipping recipient for event", map[string]interface{}{
					"event": code, "recipient_id": recipientID, "error": err.Error(),
				})
				continue
			}
			// Persistence failures are retriable; nack so JetStream redelivers.
			return err
		}
	}

	return nil
}

func isInputError(err error) bool {
	return errors.Is(err, ErrRecipientNotFound) ||
		errors.Is(err, ErrNotificationNotFound) ||
		errors.Is(err, ErrInvalidChannel)
}

// eventCode strips the subject prefix, so both "events.INSPECTION_OVERDUE"
// and a bare code resolve the same route.
func eventCode(subject string) string {
	if i := strings.LastIndex(subject, "."); i >= 0 {
		return subject[i+1:]
	}
	return subject
}

func recipientIDs(payload map[string]interface{}) ([]uuid.UUID, error) {
	if raw, ok := payload["recipient_ids"].([]interface{}); ok {
		ids := make([]uuid.UUID, 0, len(raw))
		for _, v := range raw {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("recipient_ids contains a non-string entry")
			}
			id, err := uuid.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("invalid recipient id %q: %w", s, err)
			}
			ids = append(ids, id)
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}

	if s, ok := payload["recipient_id"].(string); ok {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient id %q: %w", s, err)
		}
		return []uuid.UUID{id}, nil
	}

	return nil, fmt.Errorf("payload carries neither recipient_id nor recipient_ids")
}

// stringVariables flattens the payload into template variables. Nested
// values are skipped; templates only substitute scalars.
func stringVariables(payload map[string]interface{}) map[string]string {
	vars := make(map[string]string, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			vars[k] = val
		case float64:
			vars[k] = formatNumber(val)
		case bool:
			vars[k] = fmt.Sprintf("%t", val)
		}
	}
	return vars
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}

func stringField(payload map[string]interface{}, key string) string {
	s, _ := payload[key].(string)
	return s
}
