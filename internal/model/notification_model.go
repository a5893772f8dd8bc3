package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Channel is a delivery mechanism for a notification.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
)

// AllChannels returns every channel in canonical selection order.
// Selection, dispatch and outcome lists all follow this order.
func AllChannels() []Channel {
	return []Channel{ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS}
}

func (c Channel) Valid() bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelPush, ChannelSMS:
		return true
	}
	return false
}

// NotificationType is the closed set of notification categories.
type NotificationType string

const (
	TypeInspectionAssigned    NotificationType = "inspection_assigned"
	TypeInspectionOverdue     NotificationType = "inspection_overdue"
	TypeInspectionDueReminder NotificationType = "inspection_due_reminder"
	TypeInspectionCompleted   NotificationType = "inspection_completed"
	TypeAssetMaintenanceDue   NotificationType = "asset_maintenance_due"
	TypeAssetStatusChanged    NotificationType = "asset_status_changed"
	TypeSystemMaintenance     NotificationType = "system_maintenance"
)

// AllNotificationTypes lists the full closed set.
func AllNotificationTypes() []NotificationType {
	return []NotificationType{
		TypeInspectionAssigned,
		TypeInspectionOverdue,
		TypeInspectionDueReminder,
		TypeInspectionCompleted,
		TypeAssetMaintenanceDue,
		TypeAssetStatusChanged,
		TypeSystemMaintenance,
	}
}

// Priority drives channel selection and the quiet-hours override.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Status is the aggregate delivery state of a notification. It is derived
// from the per-channel outcomes, never set independently.
type Status string

const (
	StatusPending            Status = "pending"
	StatusSent               Status = "sent"
	StatusPartiallyDelivered Status = "partially_delivered"
	StatusFailed             Status = "failed"
	StatusSkipped            Status = "skipped"
)

// DeliveryOutcome records a single channel-send attempt. The outcome list
// on a notification is append-only: a retry adds a new entry instead of
// rewriting the failed one.
type DeliveryOutcome struct {
	Channel     Channel    `json:"channel"`
	Success     bool       `json:"success"`
	Error       string     `json:"error,omitempty"`
	AttemptedAt time.Time  `json:"attempted_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// Notification stores one addressed message instance and its delivery history.
type Notification struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Type           NotificationType `gorm:"type:varchar(50);not null;index:idx_notifications_type" json:"type"`
	Priority       Priority         `gorm:"type:varchar(10);not null;default:'medium'" json:"priority"`
	RecipientID    uuid.UUID        `gorm:"type:uuid;not null;index:idx_notifications_user_created,priority:1;index:idx_notifications_user_unread,priority:1" json:"recipient_id"`
	SenderID       *uuid.UUID       `gorm:"type:uuid" json:"sender_id,omitempty"`
	Title          string           `gorm:"type:varchar(200);not null" json:"title"`
	Message        string           `gorm:"type:text;not null" json:"message"`
	EntityType     string           `gorm:"type:varchar(50);index:idx_notifications_entity,priority:1" json:"entity_type,omitempty"`
	EntityID       string           `gorm:"type:varchar(100);index:idx_notifications_entity,priority:2" json:"entity_id,omitempty"`
	ActionURL      string           `gorm:"type:varchar(500)" json:"action_url,omitempty"`
	Data           datatypes.JSON   `gorm:"type:jsonb" json:"data,omitempty"`
	Status         Status           `gorm:"type:varchar(25);not null;default:'pending';index:idx_notifications_status" json:"status"`
	IsRead         bool             `gorm:"default:false;index:idx_notifications_user_unread,priority:2" json:"is_read"`
	ReadAt         *time.Time       `json:"read_at,omitempty"`
	DeliveryStatus datatypes.JSON   `gorm:"type:jsonb;default:'[]'" json:"delivery_status"`
	ScheduledFor   *time.Time       `gorm:"index:idx_notifications_scheduled" json:"scheduled_for,omitempty"`
	ExpiresAt      *time.Time       `json:"expires_at,omitempty"`
	CreatedAt      time.Time        `gorm:"default:CURRENT_TIMESTAMP;index:idx_notifications_user_created,priority:2" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// Outcomes decodes the stored delivery history. A corrupt or empty column
// reads as no attempts.
func (n *Notification) Outcomes() []DeliveryOutcome {
	if len(n.DeliveryStatus) == 0 {
		return nil
	}
	var outcomes []DeliveryOutcome
	if err := json.Unmarshal(n.DeliveryStatus, &outcomes); err != nil {
		return nil
	}
	return outcomes
}

// SetOutcomes replaces the stored delivery history.
func (n *Notification) SetOutcomes(outcomes []DeliveryOutcome) error {
	if outcomes == nil {
		outcomes = []DeliveryOutcome{}
	}
	raw, err := json.Marshal(outcomes)
	if err != nil {
		return err
	}
	n.DeliveryStatus = datatypes.JSON(raw)
	return nil
}

// DataMap decodes the free-form payload carried through to channel senders.
func (n *Notification) DataMap() map[string]interface{} {
	if len(n.Data) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(n.Data, &m); err != nil {
		return nil
	}
	return m
}

// Expired reports whether the notification must no longer be delivered.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && now.After(*n.ExpiresAt)
}

// DeriveStatus computes the aggregate status from the delivery history.
// Only the latest attempt per channel counts, so a successful retry flips
// a previously failed channel:
//
//	no attempts             -> skipped
//	every channel succeeded -> sent
//	every channel failed    -> failed
//	mixed                   -> partially_delivered
func DeriveStatus(outcomes []DeliveryOutcome) Status {
	latest := make(map[Channel]bool)
	for _, o := range outcomes {
		latest[o.Channel] = o.Success
	}
	if len(latest) == 0 {
		return StatusSkipped
	}

	succeeded, failed := 0, 0
	for _, ok := range latest {
		if ok {
			succeeded++
		} else {
			failed++
		}
	}
	switch {
	case failed == 0:
		return StatusSent
	case succeeded == 0:
		return StatusFailed
	default:
		return StatusPartiallyDelivered
	}
}
