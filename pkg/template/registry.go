package template

import (
	"fieldops-notify-be/internal/model"
)

// Template renders the title and message for one notification kind.
// Placeholders use {{variable}} syntax. Channels is a suggestion for
// callers composing a send request; actual selection still runs through
// the channel policy.
type Template struct {
	ID        string
	Type      model.NotificationType
	Title     string
	Message   string
	Channels  []model.Channel
	Variables []string
}

// Registry is the immutable process-wide template table, built once at
// startup. Template administration is an external concern writing to
// persistent storage; this table is its cache, refreshed on restart.
type Registry struct {
	templates map[string]Template
}

// NewRegistry builds a registry from the given templates. The input slice
// is copied; later mutation of it does not affect the registry.
func NewRegistry(templates []Template) *Registry {
	m := make(map[string]Template, len(templates))
	for _, t := range templates {
		m[t.ID] = t
	}
	return &Registry{templates: m}
}

// Get looks up a template by id.
func (r *Registry) Get(id string) (Template, bool) {
	t, ok := r.templates[id]
	return t, ok
}

// Builtin returns the default template table shipped with the engine.
func Builtin() []Template {
	return []Template{
		{
			ID:        "inspection_assigned",
			Type:      model.TypeInspectionAssigned,
			Title:     "New Inspection Assigned",
			Message:   "You have been assigned to \"{{inspection_name}}\" ({{inspection_id}}). Due date: {{due_date}}.",
			Channels:  []model.Channel{model.ChannelInApp, model.ChannelEmail, model.ChannelPush},
			Variables: []string{"inspection_name", "inspection_id", "due_date"},
		},
		{
			ID:        "inspection_overdue",
			Type:      model.TypeInspectionOverdue,
			Title:     "Inspection Overdue: {{inspection_name}}",
			Message:   "Inspection \"{{inspection_name}}\" ({{inspection_id}}) is {{days_overdue}} days overdue. It was due on {{due_date}}.",
			Channels:  []model.Channel{model.ChannelInApp, model.ChannelEmail, model.ChannelSMS},
			Variables: []string{"inspection_name", "inspection_id", "days_overdue", "due_date"},
		},
		{
			ID:        "inspection_due_reminder",
			Type:      model.TypeInspectionDueReminder,
			Title:     "Inspection Due Soon",
			Message:   "Reminder: inspection \"{{inspection_name}}\" is due on {{due_date}}.",
			Channels:  []model.Channel{model.ChannelInApp, model.ChannelPush},
			Variables: []string{"inspection_name", "due_date"},
		},
		{
			ID:        "inspection_completed",
			Type:      model.TypeInspectionCompleted,
			Title:     "Inspection Completed",
			Message:   "{{completed_by}} completed inspection \"{{inspection_name}}\" ({{inspection_id}}).",
			Channels:  []model.Channel{model.ChannelInApp},
			Variables: []string{"completed_by", "inspection_name", "inspection_id"},
		},
		{
			ID:        "asset_maintenance_due",
			Type:      model.TypeAssetMaintenanceDue,
			Title:     "Maintenance Due: {{asset_name}}",
			Message:   "Asset \"{{asset_name}}\" ({{asset_id}}) is due for maintenance on {{due_date}}.",
			Channels:  []model.Channel{model.ChannelInApp, model.ChannelEmail},
			Variables: []string{"asset_name", "asset_id", "due_date"},
		},
		{
			ID:        "asset_status_changed",
			Type:      model.TypeAssetStatusChanged,
			Title:     "Asset Status Changed",
			Message:   "Asset \"{{asset_name}}\" changed status from {{old_status}} to {{new_status}}.",
			Channels:  []model.Channel{model.ChannelInApp},
			Variables: []string{"asset_name", "old_status", "new_status"},
		},
		{
			ID:        "system_maintenance",
			Type:      model.TypeSystemMaintenance,
			Title:     "Scheduled Maintenance",
			Message:   "The system will be under maintenance from {{start_time}} to {{end_time}}. {{details}}",
			Channels:  []model.Channel{model.ChannelInApp, model.ChannelEmail},
			Variables: []string{"start_time", "end_time", "details"},
		},
	}
}
