package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fieldops-notify-be/internal/config"
	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/pkg/clock"
	"fieldops-notify-be/internal/pkg/logger"
	"fieldops-notify-be/internal/repository/contract"
	"fieldops-notify-be/pkg/channels"

	"github.com/google/uuid"
)

// DispatchService drives the channel senders for one notification.
// Channels run concurrently with independent timeouts; one channel's
// failure or latency never blocks or fails the others, and no sender
// error ever escapes Dispatch; everything lands in an outcome entry.
type DispatchService struct {
	senders map[model.Channel]channels.Sender
	users   contract.UserDirectory
	store   *NotificationService
	clock   clock.Clock
	cfg     config.DispatchConfig
	logger  logger.ILogger
}

func NewDispatchService(
	senders map[model.Channel]channels.Sender,
	users contract.UserDirectory,
	store *NotificationService,
	clk clock.Clock,
	cfg config.DispatchConfig,
	log logger.ILogger,
) *DispatchService {
	return &DispatchService{
		senders: senders,
		users:   users,
		store:   store,
		clock:   clk,
		cfg:     cfg,
		logger:  log,
	}
}

// Dispatch attempts every given channel for the notification and returns
// one outcome per channel in the given order. An expired notification
// returns no outcomes at all, which the store coordinator records as a
// skip rather than a failure.
func (s *DispatchService) Dispatch(ctx context.Context, n *model.Notification, chs []model.Channel, to channels.Recipient) []model.DeliveryOutcome {
	if n.Expired(s.clock.Now()) {
		s.logger.Info("DispatchService", "Notification expired before dispatch", map[string]interface{}{
			"notification_id": n.ID, "expires_at": n.ExpiresAt,
		})
		return nil
	}
	if len(chs) == 0 {
		return nil
	}

	msg := channels.Message{
		Title:     n.Title,
		Body:      n.Message,
		ActionURL: n.ActionURL,
		Data:      n.DataMap(),
	}

	outcomes := make([]model.DeliveryOutcome, len(chs))
	var wg sync.WaitGroup
	for i, ch := range chs {
		wg.Add(1)
		go func(i int, ch model.Channel) {
			defer wg.Done()
			outcomes[i] = s.attempt(ctx, ch, to, msg)
		}(i, ch)
	}
	wg.Wait()

	return outcomes
}

// RetryChannel re-runs a single channel for an existing notification and
// appends a fresh outcome; the earlier failed entry stays in the history.
func (s *DispatchService) RetryChannel(ctx context.Context, notificationID uuid.UUID, ch model.Channel) (*model.Notification, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidChannel, ch)
	}

	n, err := s.store.Get(ctx, notificationID)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, n.RecipientID)
	if errors.Is(err, contract.ErrNotFound) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, err
	}

	outcomes := s.Dispatch(ctx, n, []model.Channel{ch}, RecipientOf(user))
	return s.store.RecordDeliveryOutcomes(ctx, n.ID, outcomes)
}

func (s *DispatchService) attempt(ctx context.Context, ch model.Channel, to channels.Recipient, msg channels.Message) model.DeliveryOutcome {
	outcome := model.DeliveryOutcome{
		Channel:     ch,
		AttemptedAt: s.clock.Now(),
	}

	if reason, ok := precondition(ch, to); !ok {
		outcome.Error = reason
		return outcome
	}

	sender, ok := s.senders[ch]
	if !ok {
		outcome.Error = "no sender registered for channel"
		return outcome
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeoutFor(ch))
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errCh <- fmt.Errorf("sender panic: %v", r)
			}
		}()
		errCh <- sender.Send(sendCtx, to, msg)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			outcome.Error = err.Error()
			s.logger.Warn("DispatchService", "Channel send failed", map[string]interface{}{
				"channel": ch, "recipient_id": to.ID, "error": err.Error(),
			})
			return outcome
		}
		delivered := s.clock.Now()
		outcome.Success = true
		outcome.DeliveredAt = &delivered
	case <-sendCtx.Done():
		// A timed-out send is a failed outcome, never left pending.
		outcome.Error = "timeout"
		s.logger.Warn("DispatchService", "Channel send timed out", map[string]interface{}{
			"channel": ch, "recipient_id": to.ID,
		})
	}

	return outcome
}

// precondition checks the contact surface a channel needs before any
// network call. Push and in-app only need a valid user id.
func precondition(ch model.Channel, to channels.Recipient) (string, bool) {
	switch ch {
	case model.ChannelEmail:
		if to.Email == "" {
			return "no email address available", false
		}
	case model.ChannelSMS:
		if to.Phone == "" {
			return "no phone number available", false
		}
	}
	return "", true
}

func (s *DispatchService) timeoutFor(ch model.Channel) time.Duration {
	var d time.Duration
	switch ch {
	case model.ChannelInApp:
		d = s.cfg.InAppTimeout
	case model.ChannelPush:
		d = s.cfg.PushTimeout
	case model.ChannelEmail:
		d = s.cfg.EmailTimeout
	case model.ChannelSMS:
		d = s.cfg.SMSTimeout
	}
	if d <= 0 {
		d = 10 * time.Second
	}
	return d
}

// RecipientOf projects a directory user onto the sender contact surface.
func RecipientOf(user *model.User) channels.Recipient {
	return channels.Recipient{
		ID:    user.ID,
		Name:  user.FullName,
		Email: user.Email,
		Phone: user.Phone,
	}
}
