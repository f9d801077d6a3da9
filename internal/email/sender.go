package email

import (
	"context"
	"errors"
	"time"
)

// Sender define la interfaz para las notificaciones de cuenta.
type Sender interface {
	Enabled() bool
	SendWelcome(ctx context.Context, toEmail, name string) error
	SendEmailVerification(ctx context.Context, toEmail, name, link string, expiresAt time.Time) error
	SendPasswordReset(ctx context.Context, toEmail, name, link string, expiresAt time.Time) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) Enabled() bool { return false }

func (s *disabledSender) SendWelcome(_ context.Context, _, _ string) error {
	return s.err()
}

func (s *disabledSender) SendEmailVerification(_ context.Context, _, _, _ string, _ time.Time) error {
	return s.err()
}

func (s *disabledSender) SendPasswordReset(_ context.Context, _, _, _ string, _ time.Time) error {
	return s.err()
}

func (s *disabledSender) err() error {
	if s.reason == "" {
		return errors.New("email sender disabled")
	}
	return errors.New(s.reason)
}
