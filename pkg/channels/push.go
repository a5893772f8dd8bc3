package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/pkg/logger"
)

// PushSender posts to an FCM-style HTTP endpoint. Device token resolution
// happens provider-side keyed by user id; this service does not store
// device registrations.
type PushSender struct {
	endpoint  string
	serverKey string
	client    *http.Client
	logger    logger.ILogger
}

func NewPushSender(endpoint, serverKey string, log logger.ILogger) *PushSender {
	return &PushSender{
		endpoint:  endpoint,
		serverKey: serverKey,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    log,
	}
}

func (s *PushSender) Channel() model.Channel { return model.ChannelPush }

func (s *PushSender) Send(ctx context.Context, to Recipient, msg Message) error {
	payload, err := json.Marshal(map[string]interface{}{
		"user_id": to.ID.String(),
		"notification": map[string]string{
			"title": msg.Title,
			"body":  msg.Body,
		},
		"data":       msg.Data,
		"action_url": msg.ActionURL,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+s.serverKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("PushSender", "Provider rejected message", map[string]interface{}{"status": resp.StatusCode, "user_id": to.ID})
		return fmt.Errorf("push provider returned status %d", resp.StatusCode)
	}
	return nil
}
