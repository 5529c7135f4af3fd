package router

import (
	"context"
	"fmt"
	"maps"

	"github.com/courtside/scorecast/auth"
	"github.com/courtside/scorecast/broker"
	"github.com/courtside/scorecast/events"
	"github.com/courtside/scorecast/logger"
	"github.com/courtside/scorecast/scheduler"
)

// ControlHandler authenticates game control commands and forwards them to
// the target game's controls channel. One handler serves start, pause,
// resume, and speed; the scheduler interprets the command by its type.
type ControlHandler struct {
	validator auth.Validator
	registry  *scheduler.Registry
	broker    broker.Broker
	emitter   Emitter
}

// NewControlHandler wires the control path.
func NewControlHandler(v auth.Validator, reg *scheduler.Registry, b broker.Broker, e Emitter) *ControlHandler {
	return &ControlHandler{validator: v, registry: reg, broker: b, emitter: e}
}

// Handle validates the token, checks the target game is running, strips the
// token, and publishes the remaining payload on the game's controls channel.
func (h *ControlHandler) Handle(ctx context.Context, sid string, data events.Message) error {
	token, _ := data[events.KeyToken].(string)
	if !h.validator.Validate(ctx, token) {
		logger.WarnContext(ctx, "Rejected control command", "sid", sid)
		return h.emitter.Emit(ctx, sid, events.EventGameError, events.ErrorPayload("Unauthorized"))
	}

	gameID, _ := events.GameIDOf(data)
	if !h.registry.Has(gameID) {
		logger.WarnContext(ctx, "Control command for inactive game",
			"sid", sid, "game_id", gameID)
		return h.emitter.Emit(ctx, sid, events.EventGameError, events.ErrorPayload("Game not found or not running"))
	}

	// The token authenticated the sender; it does not belong on the
	// controls channel.
	payload := maps.Clone(data)
	delete(payload, events.KeyToken)

	if _, err := h.broker.Publish(ctx, gameID, events.ChannelControls, payload); err != nil {
		return fmt.Errorf("failed to publish control for game %s: %w", gameID, err)
	}
	logger.DebugContext(ctx, "Control command published",
		"sid", sid, "game_id", gameID, "type", payload[events.KeyType])
	return nil
}
