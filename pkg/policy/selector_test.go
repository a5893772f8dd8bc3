package policy

import (
	"testing"
	"time"

	"fieldops-notify-be/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func allChannelsEnabled(t model.NotificationType) *model.NotificationPreferences {
	all := model.ChannelPreference{Enabled: true, Types: []model.NotificationType{t}}
	return &model.NotificationPreferences{
		UserID:     uuid.New(),
		Email:      datatypes.NewJSONType(all),
		Push:       datatypes.NewJSONType(all),
		SMS:        datatypes.NewJSONType(all),
		InApp:      datatypes.NewJSONType(all),
		QuietHours: datatypes.NewJSONType(model.QuietHours{}),
		Frequency:  model.FrequencyImmediate,
	}
}

func withQuietHours(p *model.NotificationPreferences, start, end, tz string) *model.NotificationPreferences {
	p.QuietHours = datatypes.NewJSONType(model.QuietHours{
		Enabled:  true,
		Start:    start,
		End:      end,
		Timezone: tz,
	})
	return p
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestSelectChannels(t *testing.T) {
	noon := at(12, 0)

	tests := []struct {
		name     string
		typ      model.NotificationType
		priority model.Priority
		prefs    *model.NotificationPreferences
		now      time.Time
		want     []model.Channel
	}{
		{
			name:     "all enabled high priority gets every channel",
			typ:      model.TypeInspectionOverdue,
			priority: model.PriorityHigh,
			prefs:    allChannelsEnabled(model.TypeInspectionOverdue),
			now:      noon,
			want:     []model.Channel{model.ChannelInApp, model.ChannelEmail, model.ChannelPush, model.ChannelSMS},
		},
		{
			name:     "sms dropped below high priority even when enabled",
			typ:      model.TypeInspectionOverdue,
			priority: model.PriorityMedium,
			prefs:    allChannelsEnabled(model.TypeInspectionOverdue),
			now:      noon,
			want:     []model.Channel{model.ChannelInApp, model.ChannelEmail, model.ChannelPush},
		},
		{
			name:     "type not on allow-list drops the channel",
			typ:      model.TypeAssetStatusChanged,
			priority: model.PriorityHigh,
			prefs:    allChannelsEnabled(model.TypeInspectionOverdue),
			now:      noon,
			want:     nil,
		},
		{
			name:     "defaults route overdue to in-app and email",
			typ:      model.TypeInspectionOverdue,
			priority: model.PriorityHigh,
			prefs:    model.DefaultPreferences(uuid.New()),
			now:      noon,
			want:     []model.Channel{model.ChannelInApp, model.ChannelEmail},
		},
		{
			name:     "nil preferences select nothing",
			typ:      model.TypeInspectionOverdue,
			priority: model.PriorityHigh,
			prefs:    nil,
			now:      noon,
			want:     nil,
		},
		{
			name:     "quiet hours keep only in-app",
			typ:      model.TypeInspectionOverdue,
			priority: model.PriorityHigh,
			prefs:    withQuietHours(allChannelsEnabled(model.TypeInspectionOverdue), "22:00", "08:00", "UTC"),
			now:      at(23, 30),
			want:     []model.Channel{model.ChannelInApp},
		},
		{
			name:     "critical bypasses quiet hours",
			typ:      model.TypeInspectionOverdue,
			priority: model.PriorityCritical,
			prefs:    withQuietHours(allChannelsEnabled(model.TypeInspectionOverdue), "22:00", "08:00", "UTC"),
			now:      at(23, 30),
			want:     []model.Channel{model.ChannelInApp, model.ChannelEmail, model.ChannelPush, model.ChannelSMS},
		},
		{
			name:     "quiet hours with in-app disabled select nothing",
			typ:      model.TypeInspectionAssigned,
			priority: model.PriorityHigh,
			prefs: func() *model.NotificationPreferences {
				p := withQuietHours(allChannelsEnabled(model.TypeInspectionAssigned), "22:00", "08:00", "UTC")
				p.InApp = datatypes.NewJSONType(model.ChannelPreference{Enabled: false})
				return p
			}(),
			now:  at(23, 30),
			want: []model.Channel{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectChannels(tt.typ, tt.priority, tt.prefs, tt.now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectChannelsIsPure(t *testing.T) {
	prefs := withQuietHours(allChannelsEnabled(model.TypeInspectionOverdue), "22:00", "08:00", "UTC")
	now := at(23, 0)

	first := SelectChannels(model.TypeInspectionOverdue, model.PriorityHigh, prefs, now)
	for i := 0; i < 10; i++ {
		again := SelectChannels(model.TypeInspectionOverdue, model.PriorityHigh, prefs, now)
		assert.Equal(t, first, again)
	}
}

func TestInQuietHours(t *testing.T) {
	wrap := model.QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "UTC"}
	sameDay := model.QuietHours{Enabled: true, Start: "13:00", End: "15:00", Timezone: "UTC"}

	tests := []struct {
		name string
		qh   model.QuietHours
		now  time.Time
		want bool
	}{
		{"start is inclusive", wrap, at(22, 0), true},
		{"end is exclusive", wrap, at(8, 0), false},
		{"inside wrapped window before midnight", wrap, at(23, 59), true},
		{"inside wrapped window after midnight", wrap, at(3, 0), true},
		{"outside wrapped window", wrap, at(12, 0), false},
		{"just before start", wrap, at(21, 59), false},
		{"just before end", wrap, at(7, 59), true},
		{"same-day window inside", sameDay, at(14, 0), true},
		{"same-day window outside", sameDay, at(15, 0), false},
		{"zero-length window never matches", model.QuietHours{Enabled: true, Start: "09:00", End: "09:00"}, at(9, 0), false},
		{"unparsable start never matches", model.QuietHours{Enabled: true, Start: "late", End: "08:00"}, at(23, 0), false},
		{"unknown timezone falls back to UTC", model.QuietHours{Enabled: true, Start: "22:00", End: "08:00", Timezone: "Mars/Olympus"}, at(23, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InQuietHours(tt.qh, tt.now))
		})
	}
}

func TestInQuietHoursTimezone(t *testing.T) {
	// 02:00 UTC is 21:00 the previous evening in New York (EST), inside
	// a 20:00-06:00 local window.
	qh := model.QuietHours{Enabled: true, Start: "20:00", End: "06:00", Timezone: "America/New_York"}
	now := time.Date(2026, 1, 15, 2, 0, 0, 0, time.UTC)
	assert.True(t, InQuietHours(qh, now))

	// 17:00 UTC is midday in New York, outside the window.
	midday := time.Date(2026, 1, 15, 17, 0, 0, 0, time.UTC)
	assert.False(t, InQuietHours(qh, midday))
}
