package router

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"

	"github.com/courtside/scorecast/events"
	"github.com/courtside/scorecast/logger"
	"github.com/courtside/scorecast/relay"
	"github.com/courtside/scorecast/scheduler"
)

// JoinHandler admits a session into a game room. It verifies the game has a
// live scheduler, ensures the broker relay for the game is running, enters
// the room, and answers with the game metadata.
type JoinHandler struct {
	registry *scheduler.Registry
	relay    *relay.Manager
	rooms    Rooms
	emitter  Emitter
	// channels is the broker channel set bridged into the game room,
	// parsed from broker.relay_channels at startup.
	channels []events.Channel
}

// NewJoinHandler wires the join path.
func NewJoinHandler(reg *scheduler.Registry, rm *relay.Manager, rooms Rooms, e Emitter, channels []events.Channel) *JoinHandler {
	if len(channels) == 0 {
		channels = events.DefaultRelayChannels()
	}
	return &JoinHandler{registry: reg, relay: rm, rooms: rooms, emitter: e, channels: channels}
}

// Handle processes one join request.
func (h *JoinHandler) Handle(ctx context.Context, sid string, data events.Message) error {
	gameID, _ := events.GameIDOf(data)
	if gameID == "" {
		logger.WarnContext(ctx, "Join request missing game id", "sid", sid)
		return h.emitter.Emit(ctx, sid, events.EventGameError,
			events.ErrorPayload("Missing required 'game_id' field."))
	}

	sched, ok := h.registry.Get(gameID)
	if !ok {
		logger.WarnContext(ctx, "Join request for inactive game",
			"sid", sid, "game_id", gameID)
		return h.emitter.Emit(ctx, sid, events.EventGameError,
			events.ErrorPayload(fmt.Sprintf("Game '%s' is not currently active or does not exist.", gameID)))
	}

	// Idempotent per (game, channel-set); the first join starts the
	// bridge, later joins reuse it.
	if err := h.relay.StartListener(ctx, gameID, h.channels, gameID, scoreRelayProcessor(gameID)); err != nil {
		return fmt.Errorf("failed to start relay for join of game %s: %w", gameID, err)
	}

	if err := h.rooms.EnterRoom(ctx, sid, gameID); err != nil {
		logger.ErrorContext(ctx, "Failed to add session to game room",
			"sid", sid, "game_id", gameID, "error", err)
		return h.emitter.Emit(ctx, sid, events.EventGameError,
			events.ErrorPayload(fmt.Sprintf("Failed to enter game room '%s'.", gameID)))
	}
	logger.InfoContext(ctx, "Session entered game room", "sid", sid, "game_id", gameID)

	meta, err := sched.Metadata(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load game metadata",
			"sid", sid, "game_id", gameID, "error", err)
		return h.emitter.Emit(ctx, sid, events.EventGameError,
			events.ErrorPayload(fmt.Sprintf("Failed to enter game room '%s'.", gameID)))
	}

	payload := maps.Clone(meta)
	payload["message"] = "Successfully joined game " + gameID
	return h.emitter.Emit(ctx, sid, events.EventGameJoin, payload)
}

// scoreRelayProcessor translates broker messages into client emissions for
// one game. Messages without a recognized event type are discarded. Score
// updates are flattened so clients receive the score fields next to type and
// game_id; the broker envelope nests them under data, and the record itself
// arrives as raw JSON from the in-process broker or as a decoded object from
// the networked one.
func scoreRelayProcessor(gameID string) relay.Processor {
	return func(msg events.Message) (events.EventType, events.Message, bool) {
		t, ok := events.TypeOf(msg)
		if !ok {
			return "", nil, false
		}
		if t != events.EventGameScoreUpdate {
			return t, msg, true
		}

		payload := events.Message{}
		switch data := msg[events.KeyData].(type) {
		case nil:
		case map[string]any:
			for k, v := range data {
				payload[k] = v
			}
		case json.RawMessage:
			var fields map[string]any
			if err := json.Unmarshal(data, &fields); err == nil {
				for k, v := range fields {
					payload[k] = v
				}
			} else if json.Valid(data) {
				payload[events.KeyData] = data
			} else {
				logger.Warn("Discarding malformed score record", "game_id", gameID)
				return "", nil, false
			}
		default:
			payload[events.KeyData] = data
		}
		payload[events.KeyType] = t.String()
		payload[events.KeyGameID] = gameID
		return t, payload, true
	}
}
