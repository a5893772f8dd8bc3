package service

import (
	"context"
	"encoding/json"
	"time"

	"fieldops-notify-be/internal/dto"
	"fieldops-notify-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	gocache "github.com/patrickmn/go-cache"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the internal dispatch queue. Producers enqueue
// QueuedNotificationMessage envelopes; the consumer runs them through
// the send pipeline off the request path.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	sender    *SendService
	seen      *gocache.Cache
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	sender *SendService,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		sender:    sender,
		seen:      gocache.New(30*time.Minute, 10*time.Minute),
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.QueuedNotificationMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("ConsumerService", "Failed to unmarshal queued message", map[string]interface{}{
			"message_id": msg.UUID, "error": err.Error(),
		})
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	if payload.IdempotencyKey != "" {
		if _, dup := cs.seen.Get(payload.IdempotencyKey); dup {
			cs.logger.Info("ConsumerService", "Dropping duplicate queued message", map[string]interface{}{
				"idempotency_key": payload.IdempotencyKey,
			})
			msg.Ack()
			return
		}
		cs.seen.SetDefault(payload.IdempotencyKey, struct{}{})
	}

	switch {
	case payload.Bulk != nil:
		result := cs.sender.SendBulk(ctx, *payload.Bulk)
		cs.logger.Info("ConsumerService", "Processed queued bulk send", map[string]interface{}{
			"success": len(result.Success), "failed": len(result.Failed),
		})
	case payload.Send != nil:
		if _, err := cs.sender.Send(ctx, *payload.Send); err != nil {
			// Input errors are not retriable; log and drop.
			cs.logger.Error("ConsumerService", "Queued send failed", map[string]interface{}{
				"recipient_id": payload.Send.RecipientID, "error": err.Error(),
			})
		}
	default:
		cs.logger.Warn("ConsumerService", "Queued message carries no payload", map[string]interface{}{
			"message_id": msg.UUID,
		})
	}

	msg.Ack()
}
