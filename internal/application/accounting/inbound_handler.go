package accounting

import (
	"context"

	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/posting"
	"github.com/JasonPDev313/Oppsera-sub010/internal/domain/shared"
	"go.uber.org/zap"
)

// InboundHandler subscribes the posting engine to the event bus. Duplicate and
// unmapped outcomes are expected under at-least-once delivery and are
// swallowed; every other error goes back to the bus so the event is retried.
type InboundHandler struct {
	engine *PostingEngine
	logger *zap.Logger
}

// NewInboundHandler creates a new InboundHandler
func NewInboundHandler(engine *PostingEngine, logger *zap.Logger) *InboundHandler {
	return &InboundHandler{engine: engine, logger: logger}
}

// EventTypes returns the inbound event types the engine posts
func (h *InboundHandler) EventTypes() []string {
	return append([]string(nil), posting.InboundEventTypes...)
}

// Handle processes one inbound event
func (h *InboundHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	evt, ok := event.(*posting.Event)
	if !ok {
		return shared.NewDomainErrorf(shared.CodeValidation, "unexpected event %T for %s", event, event.EventType())
	}

	outcome, err := h.engine.Process(ctx, evt)
	if err == nil {
		return nil
	}
	if shared.IsNonFatal(err) {
		fields := []zap.Field{
			zap.String("event_id", evt.EventID().String()),
			zap.String("event_type", evt.EventType()),
			zap.String("code", shared.ErrorCode(err)),
		}
		if outcome != nil {
			fields = append(fields, zap.Int("missing_mappings", len(outcome.MissingMappings)))
		}
		h.logger.Info("inbound event settled without posting", fields...)
		return nil
	}
	return err
}

var _ shared.EventHandler = (*InboundHandler)(nil)
