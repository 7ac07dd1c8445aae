package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
)

// NotificationService handles emitting notifications for account events. It
// is the opaque notification sender boundary: delivery failures are logged
// and never propagate into the account flows that triggered them.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAccountRegistered, n.handleVerificationTokenIssued)
	n.dispatcher.Subscribe(events.EventVerificationRequested, n.handleVerificationTokenIssued)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)
	n.dispatcher.Subscribe(events.EventAccountVerified, n.handleAccountVerified)
	n.dispatcher.Subscribe(events.EventAccountDeleted, n.handleAccountDeleted)
}

func (n *NotificationService) handleVerificationTokenIssued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.VerificationTokenPayload)
	if !ok {
		n.logger.Warn("unexpected payload for verification event", zap.String("account_id", event.AccountID))
		return nil
	}
	link := fmt.Sprintf("%s/verify-email?token=%s", strings.TrimRight(n.cfg.FrontendBaseURL, "/"), payload.Token)
	n.sendEmailNotificationStub(ctx, event, "Verify your email address", link)
	return nil
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordResetPayload)
	if !ok {
		n.logger.Warn("unexpected payload for reset event", zap.String("account_id", event.AccountID))
		return nil
	}
	link := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(n.cfg.FrontendBaseURL, "/"), payload.Token)
	n.sendEmailNotificationStub(ctx, event, "Reset your password", link)
	return nil
}

func (n *NotificationService) handleAccountVerified(ctx context.Context, event events.Event) error {
	n.logger.Info("AccountVerified", zap.String("account_id", event.AccountID))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleAccountDeleted(ctx context.Context, event events.Event) error {
	n.logger.Info("AccountDeleted", zap.String("account_id", event.AccountID))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, subject, link string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", event.Email),
		zap.String("subject", subject),
		zap.String("link", link),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("account_id", event.AccountID),
		zap.String("event_type", string(event.Type)))
}
