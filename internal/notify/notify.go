// Package notify sends named notifications to the admin users of this
// service. A notification is only sent while its flag is enabled.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ServicePlaceholder is replaced by the service name in headings and bodies.
const ServicePlaceholder = "%service"

// Flags reports and stores whether named notifications are enabled. Names
// that were never set are disabled.
type Flags interface {
	Enabled(ctx context.Context, name string) (bool, error)
	SetEnabled(ctx context.Context, name string, enabled bool) error
}

// Sender delivers a message to recipients.
type Sender interface {
	Send(ctx context.Context, recipients []string, heading, body string) error
}

// RecipientsFunc lists the usernames that receive notifications.
type RecipientsFunc func(ctx context.Context) ([]string, error)

// Service issues notifications.
type Service struct {
	name       string
	flags      Flags
	sender     Sender
	recipients RecipientsFunc
	logger     *zap.SugaredLogger
}

// Option configures a Service.
type Option func(*Service)

// WithSender replaces the default log sender.
func WithSender(s Sender) Option {
	return func(svc *Service) {
		if s != nil {
			svc.sender = s
		}
	}
}

// WithLogger sets the logger used by the default sender and for skipped
// notifications.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// New returns a service named serviceName that checks flags and sends to the
// users recipients lists.
func New(serviceName string, flags Flags, recipients RecipientsFunc, opts ...Option) *Service {
	svc := &Service{
		name:       serviceName,
		flags:      flags,
		recipients: recipients,
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.flags == nil {
		svc.flags = NewMemoryFlags()
	}
	if svc.sender == nil {
		svc.sender = LogSender{Logger: svc.logger}
	}
	return svc
}

// Issue sends the notification if it is enabled and reports whether it was
// sent. A notification with nobody to receive it is not sent.
func (s *Service) Issue(ctx context.Context, name, heading, body string) (bool, error) {
	enabled, err := s.flags.Enabled(ctx, name)
	if err != nil {
		return false, fmt.Errorf("notification %s: %w", name, err)
	}
	if !enabled {
		s.logger.Debugw("notification disabled", "notification", name)
		return false, nil
	}
	if s.recipients == nil {
		return false, errors.New("no notification recipients configured")
	}
	to, err := s.recipients(ctx)
	if err != nil {
		return false, fmt.Errorf("notification %s recipients: %w", name, err)
	}
	if len(to) == 0 {
		s.logger.Warnw("notification has no recipients", "notification", name)
		return false, nil
	}
	heading = strings.ReplaceAll(heading, ServicePlaceholder, s.name)
	body = strings.ReplaceAll(body, ServicePlaceholder, s.name)
	if err := s.sender.Send(ctx, to, heading, body); err != nil {
		return false, fmt.Errorf("send notification %s: %w", name, err)
	}
	return true, nil
}

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct {
	Logger *zap.SugaredLogger
}

// Send implements Sender.
func (l LogSender) Send(_ context.Context, recipients []string, heading, body string) error {
	l.Logger.Infow("notification", "to", recipients, "heading", heading, "body", body)
	return nil
}
