package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/pkg/logger"
)

// SMSSender posts to a provider REST API. The provider gateway is a dumb
// relay; priority gating and quiet hours were already applied upstream.
type SMSSender struct {
	endpoint string
	apiKey   string
	sender   string
	client   *http.Client
	logger   logger.ILogger
}

func NewSMSSender(endpoint, apiKey, sender string, log logger.ILogger) *SMSSender {
	return &SMSSender{
		endpoint: endpoint,
		apiKey:   apiKey,
		sender:   sender,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   log,
	}
}

func (s *SMSSender) Channel() model.Channel { return model.ChannelSMS }

func (s *SMSSender) Send(ctx context.Context, to Recipient, msg Message) error {
	payload, err := json.Marshal(map[string]string{
		"from": s.sender,
		"to":   to.Phone,
		"body": fmt.Sprintf("%s: %s", msg.Title, msg.Body),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.Warn("SMSSender", "Provider rejected message", map[string]interface{}{"status": resp.StatusCode, "body": string(body)})
		return fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}
	return nil
}
