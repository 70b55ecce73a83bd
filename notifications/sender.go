package notifications

import (
	"context"
	"fmt"

	config "github.com/anjiri1684/campus_manager/configs"
	"github.com/anjiri1684/campus_manager/logger"
	"github.com/google/uuid"
)

// Message is one outbound email. HTML is required; Text is optional.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
	Provider() string
}

// NewSender picks the email provider named in configuration.
func NewSender(ctx context.Context, cfg config.EmailConfig, log logger.Logger) (Sender, error) {
	switch cfg.Provider {
	case "brevo":
		if cfg.BrevoAPIKey == "" {
			return nil, fmt.Errorf("BREVO_API_KEY is required for the brevo provider")
		}
		return NewBrevoSender(cfg.BrevoAPIKey, cfg.From, cfg.FromName), nil
	case "sendgrid":
		if cfg.SendgridAPIKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is required for the sendgrid provider")
		}
		return NewSendGridSender(cfg.SendgridAPIKey, cfg.From, cfg.FromName), nil
	case "ses":
		return NewSESSender(ctx, cfg.SESRegion, cfg.From, cfg.FromName)
	default:
		return NewLogSender(log), nil
	}
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	log logger.Logger
}

func NewLogSender(log logger.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Provider() string { return "log" }

func (s *LogSender) Send(_ context.Context, msg Message) (string, error) {
	if err := validateRecipient(msg.To); err != nil {
		return "", err
	}
	id := "log-" + uuid.NewString()
	s.log.Info("Email captured by log sender", map[string]interface{}{
		"to":        msg.To,
		"subject":   msg.Subject,
		"messageId": id,
	})
	return id, nil
}
