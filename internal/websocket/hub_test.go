package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"fieldops-notify-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	h := NewHub(nil, logger.NewNopLogger())
	go h.Run()
	return h
}

func registerClient(t *testing.T, h *Hub, userID uuid.UUID, buffer int) *Client {
	t.Helper()
	c := &Client{Hub: h, UserID: userID, Send: make(chan []byte, buffer)}
	h.register <- c
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		return len(h.clients[userID]) > 0
	}, time.Second, 5*time.Millisecond)
	return c
}

func TestPublishReachesConnectedClient(t *testing.T) {
	h := newTestHub()
	userID := uuid.New()
	c := registerClient(t, h, userID, 4)

	h.Publish(userID, "notification.created", map[string]string{"title": "Overdue"})

	select {
	case raw := <-c.Send:
		var envelope struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &envelope))
		assert.Equal(t, "notification.created", envelope.Type)
	case <-time.After(time.Second):
		t.Fatal("message never reached the client")
	}
}

func TestPublishDropsStalledClient(t *testing.T) {
	h := newTestHub()
	userID := uuid.New()
	// Unbuffered and never read: the first publish cannot be queued.
	stalled := registerClient(t, h, userID, 0)

	h.Publish(userID, "notification.created", nil)

	// Run owns the single close of Send; observing the close proves the
	// stalled client was unregistered without a double close.
	select {
	case _, ok := <-stalled.Send:
		require.False(t, ok, "expected Send to be closed, got a message")
	case <-time.After(time.Second):
		t.Fatal("stalled client was never dropped")
	}

	h.mu.RLock()
	_, present := h.clients[userID]
	h.mu.RUnlock()
	assert.False(t, present)

	// Publishing again after the drop must not panic or block.
	h.Publish(userID, "notification.created", nil)
}

func TestBroadcastSurvivesStalledClients(t *testing.T) {
	h := newTestHub()
	a := registerClient(t, h, uuid.New(), 0)
	b := registerClient(t, h, uuid.New(), 0)
	healthy := registerClient(t, h, uuid.New(), 4)

	done := make(chan struct{})
	go func() {
		h.Broadcast("system.maintenance", nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on stalled clients")
	}

	select {
	case <-healthy.Send:
	case <-time.After(time.Second):
		t.Fatal("healthy client missed the broadcast")
	}

	for _, c := range []*Client{a, b} {
		select {
		case _, ok := <-c.Send:
			require.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("stalled client was never dropped")
		}
	}
}

func TestHandleRelaySkipsOwnEnvelopes(t *testing.T) {
	h := newTestHub()
	userID := uuid.New()
	c := registerClient(t, h, userID, 4)

	message := json.RawMessage(`{"type":"notification.created","data":null}`)

	own, err := json.Marshal(map[string]interface{}{
		"origin":         h.instanceID,
		"target_user_id": userID.String(),
		"message":        message,
	})
	require.NoError(t, err)
	h.handleRelay(own)

	remote, err := json.Marshal(map[string]interface{}{
		"origin":         uuid.NewString(),
		"target_user_id": userID.String(),
		"message":        message,
	})
	require.NoError(t, err)
	h.handleRelay(remote)

	// Only the remote envelope lands; the instance's own relay was
	// already delivered locally by Publish.
	select {
	case got := <-c.Send:
		assert.JSONEq(t, string(message), string(got))
	case <-time.After(time.Second):
		t.Fatal("remote relay was not delivered")
	}
	assert.Empty(t, c.Send)
}
