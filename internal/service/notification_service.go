package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/access-gate-service/internal/config"
	"github.com/spec-kit/access-gate-service/internal/events"
)

// NotificationService handles emitting notifications for domain events.
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
	n.dispatcher.Subscribe(events.EventMembershipActivated, n.handleMembershipActivated)
	n.dispatcher.Subscribe(events.EventMembershipExpired, n.handleMembershipExpired)
	n.dispatcher.Subscribe(events.EventAdmissionProcessed, n.handleAdmissionProcessed)
}

func (n *NotificationService) handleMembershipActivated(ctx context.Context, event events.Event) error {
	n.logger.Info("MembershipActivated", zap.String("subject_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleMembershipExpired(ctx context.Context, event events.Event) error {
	n.logger.Info("MembershipExpired", zap.String("subject_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleAdmissionProcessed(ctx context.Context, event events.Event) error {
	n.logger.Info("AdmissionProcessed", zap.String("subject_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}
