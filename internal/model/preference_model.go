package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Frequency is the delivery batching intent. The engine only distinguishes
// "deliver now" from "defer"; digest assembly lives in a scheduler outside
// this service.
type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyDigest    Frequency = "digest"
)

// ChannelPreference gates one channel: it must be enabled and the
// notification type must be on its allow-list.
type ChannelPreference struct {
	Enabled bool               `json:"enabled"`
	Types   []NotificationType `json:"types"`
}

func (p ChannelPreference) Allows(t NotificationType) bool {
	for _, allowed := range p.Types {
		if allowed == t {
			return true
		}
	}
	return false
}

// QuietHours suppresses non-critical outward deliveries inside the
// [Start, End) window, evaluated in the preference timezone. Windows may
// wrap midnight (e.g. 22:00-08:00).
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"` // "HH:MM"
	End      string `json:"end"`   // "HH:MM"
	Timezone string `json:"timezone"`
}

// NotificationPreferences is one logical record per user. Missing records
// resolve to DefaultPreferences without being persisted.
type NotificationPreferences struct {
	UserID     uuid.UUID                             `gorm:"type:uuid;primaryKey" json:"user_id"`
	Email      datatypes.JSONType[ChannelPreference] `gorm:"type:jsonb" json:"email"`
	Push       datatypes.JSONType[ChannelPreference] `gorm:"type:jsonb" json:"push"`
	SMS        datatypes.JSONType[ChannelPreference] `gorm:"type:jsonb" json:"sms"`
	InApp      datatypes.JSONType[ChannelPreference] `gorm:"type:jsonb" json:"in_app"`
	QuietHours datatypes.JSONType[QuietHours]        `gorm:"type:jsonb" json:"quiet_hours"`
	Frequency  Frequency                             `gorm:"type:varchar(20);default:'immediate'" json:"frequency"`
	UpdatedAt  time.Time                             `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (NotificationPreferences) TableName() string {
	return "notification_preferences"
}

// Channel returns the preference block for the given channel.
func (p *NotificationPreferences) Channel(c Channel) ChannelPreference {
	switch c {
	case ChannelEmail:
		return p.Email.Data()
	case ChannelPush:
		return p.Push.Data()
	case ChannelSMS:
		return p.SMS.Data()
	case ChannelInApp:
		return p.InApp.Data()
	}
	return ChannelPreference{}
}

// QuietHoursPolicy returns the decoded quiet-hours window.
func (p *NotificationPreferences) QuietHoursPolicy() QuietHours {
	return p.QuietHours.Data()
}

// DefaultPreferences is the process-wide default policy applied when a
// user has never saved preferences: email for assignment/overdue, push for
// assignment/reminder, SMS off, in-app for everything, quiet hours
// 22:00-08:00 UTC.
func DefaultPreferences(userID uuid.UUID) *NotificationPreferences {
	return &NotificationPreferences{
		UserID: userID,
		Email: datatypes.NewJSONType(ChannelPreference{
			Enabled: true,
			Types:   []NotificationType{TypeInspectionAssigned, TypeInspectionOverdue},
		}),
		Push: datatypes.NewJSONType(ChannelPreference{
			Enabled: true,
			Types:   []NotificationType{TypeInspectionAssigned, TypeInspectionDueReminder},
		}),
		SMS: datatypes.NewJSONType(ChannelPreference{
			Enabled: false,
			Types:   []NotificationType{},
		}),
		InApp: datatypes.NewJSONType(ChannelPreference{
			Enabled: true,
			Types:   AllNotificationTypes(),
		}),
		QuietHours: datatypes.NewJSONType(QuietHours{
			Enabled:  true,
			Start:    "22:00",
			End:      "08:00",
			Timezone: "UTC",
		}),
		Frequency: FrequencyImmediate,
	}
}
