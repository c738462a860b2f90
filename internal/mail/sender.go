// Package mail delivers rendered notification emails.
package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/timeoff-service/internal/config"
)

// Message is one outbound email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender delivers a message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// NoopSender logs instead of sending. Used when no SMTP relay is configured.
type NoopSender struct {
	logger *zap.Logger
}

func NewNoopSender(logger *zap.Logger) *NoopSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopSender{logger: logger}
}

func (s *NoopSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("email suppressed by noop sender",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}

// NewSenderFromConfig builds the configured sender wrapped in the rate limiter.
func NewSenderFromConfig(cfg config.MailConfig, logger *zap.Logger) Sender {
	var inner Sender
	switch cfg.Driver {
	case config.MailDriverSMTP:
		inner = NewSMTPSender(SMTPConfig{
			Host:        cfg.Host,
			Port:        cfg.Port,
			Username:    cfg.Username,
			Password:    cfg.Password,
			FromAddress: cfg.FromAddress,
			FromName:    cfg.FromName,
		})
	default:
		inner = NewNoopSender(logger)
	}
	return NewRateLimitedSender(inner, cfg.RatePerSecond, cfg.Burst)
}
