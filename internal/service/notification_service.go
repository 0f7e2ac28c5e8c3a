package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/taskboard/internal/config"
	"github.com/spec-kit/taskboard/internal/events"
)

// NotificationService turns committed domain events into user-facing
// notifications. Delivery goes through log-only email and webhook stubs.
type NotificationService struct {
	logger *zap.Logger
	cfg    config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{logger: logger, cfg: cfg}
}

// Notify routes one event to its channels. Ticket progress goes to the
// webhook, anything a specific user must act on also goes by mail.
func (n *NotificationService) Notify(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.EventTicketCreated, events.EventTicketClaimed:
		n.logger.Info(string(event.Type), zap.String("ticket_id", event.Subject), zap.String("actor_id", event.ActorID))
		n.sendWebhook(ctx, event)
	case events.EventCompletionSubmitted, events.EventCompletionVerified:
		n.logger.Info(string(event.Type), zap.String("ticket_id", event.Subject), zap.Any("payload", event.Payload))
		n.sendEmail(ctx, event, n.completionRecipient(event))
		n.sendWebhook(ctx, event)
	case events.EventFriendRequestSent, events.EventFriendRequestApproved, events.EventFriendRequestRejected:
		n.logger.Info(string(event.Type), zap.String("user_id", event.Subject), zap.String("actor_id", event.ActorID))
		n.sendEmail(ctx, event, event.Subject)
	default:
		n.logger.Debug("no notification route", zap.String("event_type", string(event.Type)))
	}
	return nil
}

// A submission is for the creator; a verdict is for the submitter.
func (n *NotificationService) completionRecipient(event events.Event) string {
	switch p := event.Payload.(type) {
	case events.CompletionSubmittedPayload:
		return p.CreatedBy
	case events.CompletionVerifiedPayload:
		return p.SubmittedBy
	}
	return ""
}

func (n *NotificationService) sendEmail(_ context.Context, event events.Event, recipient string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || recipient == "" {
		return
	}
	n.logger.Debug("email notification",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to_user", recipient),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhook(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("webhook notification",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("subject", event.Subject),
		zap.String("event_type", string(event.Type)))
}
