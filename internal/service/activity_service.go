package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

// ActivityService records ticket activity from domain events.
type ActivityService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewActivityService creates the service.
func NewActivityService(dispatcher events.Dispatcher, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (a *ActivityService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketCreated, a.handle("TicketCreated"))
	a.dispatcher.Subscribe(events.EventTicketUpdated, a.handle("TicketUpdated"))
	a.dispatcher.Subscribe(events.EventTicketStatusChanged, a.handle("TicketStatusChanged"))
	a.dispatcher.Subscribe(events.EventTicketAssigned, a.handle("TicketAssigned"))
	a.dispatcher.Subscribe(events.EventTicketCommentAdded, a.handle("TicketCommentAdded"))
}

func (a *ActivityService) handle(name string) events.EventHandler {
	return func(_ context.Context, event events.Event) error {
		a.logger.Info(name,
			zap.String("event_id", event.ID),
			zap.String("ticket_id", event.TicketID),
			zap.String("actor_id", event.Actor.UserID),
			zap.String("actor_role", string(event.Actor.Role)),
			zap.Any("payload", event.Payload))
		return nil
	}
}
