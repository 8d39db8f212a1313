package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"ryde/internal/realtime"
)

// InboundRouter dispatches parsed session messages to the relay and accept
// services. Errors are logged; the session stays open.
type InboundRouter struct {
	relay  *RelayService
	accept *AcceptService
	log    *zap.Logger
}

// NewInboundRouter creates a new InboundRouter.
func NewInboundRouter(relay *RelayService, accept *AcceptService, log *zap.Logger) *InboundRouter {
	return &InboundRouter{relay: relay, accept: accept, log: log}
}

// HandleInbound implements realtime.InboundHandler.
func (r *InboundRouter) HandleInbound(ctx context.Context, s *realtime.Session, msg realtime.Inbound) {
	actor := s.Actor()

	var err error
	switch m := msg.(type) {
	case realtime.RideAcceptedMessage:
		if !actor.Type.IsDriver() {
			err = ErrUnauthorized
			break
		}
		err = r.accept.ConfirmAccepted(ctx, actor, m)
	case realtime.LocationMessage:
		err = r.relay.RelayLocation(ctx, m.RideID, actor, m)
	case realtime.ChatInbound:
		err = r.relay.RelayChat(ctx, m.RideID, actor, m.Message, m.Timestamp)
	case realtime.StatusInbound:
		err = r.relay.RelayStatus(ctx, m.RideID, actor, m.Status, m.Message, m.Timestamp)
	default:
		r.log.Warn("unhandled inbound message", zap.String("type", msg.InboundType()))
		return
	}

	if err != nil {
		level := r.log.Error
		if errors.Is(err, ErrUnauthorized) {
			level = r.log.Warn
		}
		level("inbound message failed",
			zap.String("type", msg.InboundType()),
			zap.String("actor_id", actor.ID),
			zap.Error(err),
		)
	}
}

var _ realtime.InboundHandler = (*InboundRouter)(nil)
