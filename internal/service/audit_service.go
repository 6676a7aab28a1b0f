package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/admin-console/internal/events"
)

// AuditService writes an audit trail of sign-in activity.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events and returns a function removing
// every subscription.
func (a *AuditService) RegisterHandlers() (unsubscribe func()) {
	if a.dispatcher == nil {
		return func() {}
	}
	subs := []func(){
		a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleLoginSucceeded),
		a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed),
		a.dispatcher.Subscribe(events.EventLogout, a.handleLogout),
	}
	return func() {
		for _, unsub := range subs {
			unsub()
		}
	}
}

func (a *AuditService) handleLoginSucceeded(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.LoginPayload)
	a.logger.Info("LoginSucceeded",
		zap.String("event_id", event.ID),
		zap.String("admin_id", event.Subject),
		zap.String("email", payload.Email),
		zap.String("ip", payload.IP))
	return nil
}

func (a *AuditService) handleLoginFailed(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.LoginPayload)
	a.logger.Warn("LoginFailed",
		zap.String("event_id", event.ID),
		zap.String("email", payload.Email),
		zap.String("ip", payload.IP),
		zap.String("reason", payload.Reason))
	return nil
}

func (a *AuditService) handleLogout(_ context.Context, event events.Event) error {
	a.logger.Info("Logout",
		zap.String("event_id", event.ID),
		zap.String("admin_id", event.Subject))
	return nil
}
