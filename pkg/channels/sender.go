package channels

import (
	"context"

	"fieldops-notify-be/internal/model"

	"github.com/google/uuid"
)

// Recipient carries the contact surface a sender may need. Email and
// phone can be empty; the dispatcher checks preconditions before calling
// the sender.
type Recipient struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}

// Message is the channel-agnostic rendered payload.
type Message struct {
	Title     string
	Body      string
	ActionURL string
	Data      map[string]interface{}
}

// Sender delivers one message over one channel. Implementations must
// honor ctx cancellation where the transport allows it and must not retry
// on their own; retries are an explicit engine operation.
type Sender interface {
	Channel() model.Channel
	Send(ctx context.Context, to Recipient, msg Message) error
}

// SenderTable maps channels to their senders. Registering a new channel
// means adding a sender implementation, not editing a switch.
func SenderTable(senders ...Sender) map[model.Channel]Sender {
	table := make(map[model.Channel]Sender, len(senders))
	for _, s := range senders {
		table[s.Channel()] = s
	}
	return table
}
