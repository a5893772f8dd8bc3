package channels

import (
	"context"

	"fieldops-notify-be/internal/model"

	"github.com/google/uuid"
)

// RealtimePublisher pushes a payload to a user's live connections.
// Implemented by the WebSocket hub; a user with no open connection still
// "receives" in-app delivery through the stored inbox record.
type RealtimePublisher interface {
	Publish(userID uuid.UUID, event string, data interface{})
}

// InAppSender delivers to the real-time hub. It never fails for a valid
// user id: live push is best-effort on top of the persisted record.
type InAppSender struct {
	realtime RealtimePublisher
}

func NewInAppSender(realtime RealtimePublisher) *InAppSender {
	return &InAppSender{realtime: realtime}
}

func (s *InAppSender) Channel() model.Channel { return model.ChannelInApp }

func (s *InAppSender) Send(ctx context.Context, to Recipient, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.realtime.Publish(to.ID, "notification", map[string]interface{}{
		"title":      msg.Title,
		"message":    msg.Body,
		"action_url": msg.ActionURL,
		"data":       msg.Data,
	})
	return nil
}
