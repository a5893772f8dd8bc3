package dto

import (
	"time"

	"fieldops-notify-be/internal/model"

	"github.com/google/uuid"
)

// SendNotificationRequest is a single-recipient notification intent.
// Either a template id with variables or a literal title/message pair is
// supplied; template binding wins when both are present.
type SendNotificationRequest struct {
	Type         model.NotificationType `json:"type" validate:"required,oneof=inspection_assigned inspection_overdue inspection_due_reminder inspection_completed asset_maintenance_due asset_status_changed system_maintenance"`
	Priority     model.Priority         `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	RecipientID  uuid.UUID              `json:"recipient_id" validate:"required"`
	SenderID     *uuid.UUID             `json:"sender_id,omitempty"`
	TemplateID   string                 `json:"template_id,omitempty"`
	Variables    map[string]string      `json:"variables,omitempty"`
	Title        string                 `json:"title,omitempty" validate:"omitempty,max=200"`
	Message      string                 `json:"message,omitempty" validate:"omitempty,max=1000"`
	EntityType   string                 `json:"entity_type,omitempty" validate:"omitempty,max=50"`
	EntityID     string                 `json:"entity_id,omitempty" validate:"omitempty,max=100"`
	ActionURL    string                 `json:"action_url,omitempty" validate:"omitempty,max=500"`
	Data         map[string]interface{} `json:"data,omitempty"`
	ScheduledFor *time.Time             `json:"scheduled_for,omitempty"`
	ExpiresAt    *time.Time             `json:"expires_at,omitempty"`
}

// BulkSendNotificationRequest fans the same intent out to many
// recipients, producing one independent notification per recipient.
type BulkSendNotificationRequest struct {
	SendNotificationRequest
	RecipientIDs []uuid.UUID `json:"recipient_ids" validate:"required,min=1"`
}

// BulkFailure explains why one recipient was not processed.
type BulkFailure struct {
	RecipientID uuid.UUID `json:"recipient_id"`
	Error       string    `json:"error"`
}

// BulkSendResult partitions every input recipient into exactly one of
// the two lists.
type BulkSendResult struct {
	Success []uuid.UUID   `json:"success"`
	Failed  []BulkFailure `json:"failed"`
}

// QueuedNotificationMessage is the envelope for asynchronous intake
// (internal queue or external broker). The idempotency key lets consumers
// drop redeliveries under at-least-once semantics.
type QueuedNotificationMessage struct {
	IdempotencyKey string                       `json:"idempotency_key,omitempty"`
	Send           *SendNotificationRequest     `json:"send,omitempty"`
	Bulk           *BulkSendNotificationRequest `json:"bulk,omitempty"`
}

// ChannelPreferenceRequest mirrors model.ChannelPreference for updates.
type ChannelPreferenceRequest struct {
	Enabled bool                     `json:"enabled"`
	Types   []model.NotificationType `json:"types" validate:"dive,oneof=inspection_assigned inspection_overdue inspection_due_reminder inspection_completed asset_maintenance_due asset_status_changed system_maintenance"`
}

// QuietHoursRequest mirrors model.QuietHours for updates.
type QuietHoursRequest struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start" validate:"omitempty,len=5"`
	End      string `json:"end" validate:"omitempty,len=5"`
	Timezone string `json:"timezone" validate:"omitempty,max=64"`
}

// UpdatePreferencesRequest replaces the caller's stored preferences.
type UpdatePreferencesRequest struct {
	Email      ChannelPreferenceRequest `json:"email"`
	Push       ChannelPreferenceRequest `json:"push"`
	SMS        ChannelPreferenceRequest `json:"sms"`
	InApp      ChannelPreferenceRequest `json:"in_app"`
	QuietHours QuietHoursRequest        `json:"quiet_hours"`
	Frequency  model.Frequency          `json:"frequency" validate:"omitempty,oneof=immediate digest"`
}

// ListNotificationsQuery carries the list filters and offset/limit
// pagination from the HTTP surface.
type ListNotificationsQuery struct {
	Type       string `query:"type"`
	Priority   string `query:"priority"`
	Status     string `query:"status"`
	Channel    string `query:"channel"`
	Unread     *bool  `query:"unread"`
	EntityType string `query:"entity_type"`
	EntityID   string `query:"entity_id"`
	From       string `query:"from"`
	To         string `query:"to"`
	Limit      int    `query:"limit"`
	Offset     int    `query:"offset"`
}
