package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(ch Channel) DeliveryOutcome {
	return DeliveryOutcome{Channel: ch, Success: true, AttemptedAt: time.Now()}
}

func fail(ch Channel, reason string) DeliveryOutcome {
	return DeliveryOutcome{Channel: ch, Success: false, Error: reason, AttemptedAt: time.Now()}
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []DeliveryOutcome
		want     Status
	}{
		{"no attempts is skipped", nil, StatusSkipped},
		{"empty history is skipped", []DeliveryOutcome{}, StatusSkipped},
		{"all success is sent", []DeliveryOutcome{ok(ChannelInApp), ok(ChannelEmail)}, StatusSent},
		{"all failure is failed", []DeliveryOutcome{fail(ChannelEmail, "smtp down"), fail(ChannelSMS, "no credit")}, StatusFailed},
		{"mixed is partially delivered", []DeliveryOutcome{ok(ChannelInApp), fail(ChannelEmail, "smtp down")}, StatusPartiallyDelivered},
		{"single success is sent", []DeliveryOutcome{ok(ChannelPush)}, StatusSent},
		{"single failure is failed", []DeliveryOutcome{fail(ChannelPush, "token stale")}, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.outcomes))
		})
	}
}

func TestDeriveStatusRetryUsesLatestPerChannel(t *testing.T) {
	// Email failed, then a retry succeeded. The earlier failure stays in
	// the history but no longer counts against the aggregate.
	history := []DeliveryOutcome{
		ok(ChannelInApp),
		fail(ChannelEmail, "smtp down"),
		ok(ChannelEmail),
	}
	assert.Equal(t, StatusSent, DeriveStatus(history))

	// A retry that fails again keeps the channel failed.
	history = []DeliveryOutcome{
		fail(ChannelEmail, "smtp down"),
		fail(ChannelEmail, "smtp still down"),
	}
	assert.Equal(t, StatusFailed, DeriveStatus(history))
}

func TestOutcomesRoundTrip(t *testing.T) {
	n := &Notification{}
	delivered := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	in := []DeliveryOutcome{
		{Channel: ChannelInApp, Success: true, AttemptedAt: delivered, DeliveredAt: &delivered},
		{Channel: ChannelEmail, Success: false, Error: "smtp down", AttemptedAt: delivered},
	}

	require.NoError(t, n.SetOutcomes(in))
	got := n.Outcomes()
	require.Len(t, got, 2)
	assert.Equal(t, ChannelInApp, got[0].Channel)
	assert.True(t, got[0].Success)
	assert.Equal(t, "smtp down", got[1].Error)
}

func TestOutcomesToleratesBadColumn(t *testing.T) {
	n := &Notification{DeliveryStatus: []byte("not json")}
	assert.Nil(t, n.Outcomes())

	n = &Notification{}
	assert.Nil(t, n.Outcomes())
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.False(t, (&Notification{}).Expired(now))
	assert.False(t, (&Notification{ExpiresAt: &future}).Expired(now))
	assert.True(t, (&Notification{ExpiresAt: &past}).Expired(now))
	// Exactly at the deadline is still deliverable.
	assert.False(t, (&Notification{ExpiresAt: &now}).Expired(now))
}

func TestChannelValid(t *testing.T) {
	for _, ch := range AllChannels() {
		assert.True(t, ch.Valid())
	}
	assert.False(t, Channel("fax").Valid())
	assert.False(t, Channel("").Valid())
}
