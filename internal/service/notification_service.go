package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/leadcrm/internal/config"
	"github.com/spec-kit/leadcrm/internal/events"
)

// NotificationService emits notifications for lead events.
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

// EventTypes lists the events the service reacts to.
func (n *NotificationService) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventLeadCreated,
		events.EventLeadAssigned,
		events.EventLeadStatusChanged,
		events.EventLeadActivityAdded,
	}
}

// Notify routes one event to its channels.
func (n *NotificationService) Notify(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.String("lead_id", event.SubjectID),
		zap.String("actor_id", event.ActorID),
		zap.Any("payload", event.Payload))

	switch event.Type {
	case events.EventLeadCreated, events.EventLeadAssigned:
		n.sendEmailNotificationStub(ctx, event)
		n.sendWebhookNotificationStub(ctx, event)
	case events.EventLeadStatusChanged:
		n.sendWebhookNotificationStub(ctx, event)
	case events.EventLeadActivityAdded:
		n.sendEmailNotificationStub(ctx, event)
	}
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("lead_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("lead_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}
