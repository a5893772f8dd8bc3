package channels

import (
	"context"
	"fmt"
	"html"

	"fieldops-notify-be/internal/model"
	"fieldops-notify-be/internal/pkg/logger"

	"gopkg.in/gomail.v2"
)

// EmailSender delivers over SMTP via gomail.
type EmailSender struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
	logger      logger.ILogger
}

func NewEmailSender(host string, port int, username, password, senderEmail, senderName string, log logger.ILogger) *EmailSender {
	return &EmailSender{
		dialer:      gomail.NewDialer(host, port, username, password),
		senderEmail: senderEmail,
		senderName:  senderName,
		logger:      log,
	}
}

func (s *EmailSender) Channel() model.Channel { return model.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, to Recipient, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.senderEmail, s.senderName))
	m.SetHeader("To", to.Email)
	m.SetHeader("Subject", msg.Title)

	link := ""
	if msg.ActionURL != "" {
		link = fmt.Sprintf(`<p><a href="%s" style="background-color: #007BFF; color: white; padding: 10px 20px; text-decoration: none; border-radius: 5px; display: inline-block;">View Details</a></p>`, msg.ActionURL)
	}
	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>%s</h2>
			<p>%s</p>
			%s
		</div>
	`, html.EscapeString(msg.Title), html.EscapeString(msg.Body), link)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Warn("EmailSender", "SMTP send failed", map[string]interface{}{"to": to.Email, "error": err.Error()})
		return err
	}
	return nil
}
