// Package events defines the wire-level vocabulary of the scorecast runtime:
// the closed set of client-facing event types, the broker channel names, the
// schemaless message payload, and the client-visible MessageError. Every other
// package dispatches and routes off these definitions.
package events

// EventType identifies a wire event exchanged with clients.
type EventType string

const (
	// EventGameJoin is sent by clients to join a game room and echoed back
	// with the game metadata on success.
	EventGameJoin EventType = "game.join"
	// EventGameLeave notifies clients that they were removed from a game room.
	EventGameLeave EventType = "game.leave"

	// EventGameControlStart starts a game's scheduler loop.
	EventGameControlStart EventType = "game.control.start"
	// EventGameControlPause pauses score emission.
	EventGameControlPause EventType = "game.control.pause"
	// EventGameControlResume resumes score emission before the pause deadline.
	EventGameControlResume EventType = "game.control.resume"
	// EventGameControlSpeed changes the emission interval.
	EventGameControlSpeed EventType = "game.control.speed"

	// EventGameScoreUpdate carries one score record to clients.
	EventGameScoreUpdate EventType = "game.score.update"
	// EventGameError reports a client-visible failure.
	EventGameError EventType = "game.error"
)

// knownEventTypes is the closed set accepted off the wire.
var knownEventTypes = map[EventType]struct{}{
	EventGameJoin:          {},
	EventGameLeave:         {},
	EventGameControlStart:  {},
	EventGameControlPause:  {},
	EventGameControlResume: {},
	EventGameControlSpeed:  {},
	EventGameScoreUpdate:   {},
	EventGameError:         {},
}

// ParseEventType maps a wire string onto the event enumeration.
// Unknown strings report ok=false and must be rejected before dispatch.
func ParseEventType(s string) (EventType, bool) {
	t := EventType(s)
	_, ok := knownEventTypes[t]
	return t, ok
}

// IsControl reports whether t is one of the scheduler control events.
func (t EventType) IsControl() bool {
	switch t {
	case EventGameControlStart, EventGameControlPause, EventGameControlResume, EventGameControlSpeed:
		return true
	}
	return false
}

// String returns the wire spelling.
func (t EventType) String() string { return string(t) }

// Channel names a logical message stream under a game.
type Channel string

const (
	// ChannelScores carries scheduler score emissions to clients.
	ChannelScores Channel = "scores_update"
	// ChannelControls carries client control commands to the scheduler.
	ChannelControls Channel = "controls"
)

// ParseChannel maps a config or wire string onto a known channel.
func ParseChannel(s string) (Channel, bool) {
	switch c := Channel(s); c {
	case ChannelScores, ChannelControls:
		return c, true
	}
	return "", false
}

// DefaultRelayChannels is the channel set bridged into a game room when the
// configured relay channels are absent or invalid.
func DefaultRelayChannels() []Channel {
	return []Channel{ChannelScores, ChannelControls}
}

// String returns the channel identifier.
func (c Channel) String() string { return string(c) }
