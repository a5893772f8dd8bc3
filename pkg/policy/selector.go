package policy

import (
	"strconv"
	"strings"
	"time"

	"fieldops-notify-be/internal/model"
)

// SelectChannels computes the ordered set of channels to attempt for a
// notification. Pure: identical inputs always yield identical output, the
// clock is the caller's problem.
//
// Each channel must be enabled and have the type on its allow-list. SMS
// additionally requires high or critical priority regardless of
// preference. When quiet hours are active, everything except in-app is
// suppressed unless the priority is critical.
//
// An empty result means the notification is skipped by policy, not failed.
func SelectChannels(t model.NotificationType, p model.Priority, prefs *model.NotificationPreferences, now time.Time) []model.Channel {
	if prefs == nil {
		return nil
	}

	var selected []model.Channel
	for _, ch := range model.AllChannels() {
		cp := prefs.Channel(ch)
		if !cp.Enabled || !cp.Allows(t) {
			continue
		}
		// Hard ceiling: SMS never goes out for low/medium.
		if ch == model.ChannelSMS && p != model.PriorityHigh && p != model.PriorityCritical {
			continue
		}
		selected = append(selected, ch)
	}

	qh := prefs.QuietHoursPolicy()
	if qh.Enabled && p != model.PriorityCritical && InQuietHours(qh, now) {
		quiet := selected[:0]
		for _, ch := range selected {
			if ch == model.ChannelInApp {
				quiet = append(quiet, ch)
			}
		}
		selected = quiet
	}

	return selected
}

// InQuietHours reports whether now falls inside the [start, end) window of
// the given quiet-hours policy, evaluated in its timezone. Windows whose
// start is later than their end wrap midnight. An unparsable window never
// matches; an unknown timezone falls back to UTC rather than aborting
// selection.
func InQuietHours(qh model.QuietHours, now time.Time) bool {
	start, okStart := parseMinuteOfDay(qh.Start)
	end, okEnd := parseMinuteOfDay(qh.End)
	if !okStart || !okEnd || start == end {
		return false
	}

	loc := time.UTC
	if qh.Timezone != "" {
		if l, err := time.LoadLocation(qh.Timezone); err == nil {
			loc = l
		}
	}

	local := now.In(loc)
	m := local.Hour()*60 + local.Minute()

	if start < end {
		return m >= start && m < end
	}
	return m >= start || m < end
}

// parseMinuteOfDay converts "HH:MM" into minutes since midnight.
func parseMinuteOfDay(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
