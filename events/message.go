package events

// Message is the schemaless payload exchanged through the broker and on the
// wire. Score records travel inside it as opaque values; the runtime only
// inspects the keys named here.
type Message = map[string]any

// Well-known message keys.
const (
	// KeyType holds the wire event type.
	KeyType = "type"
	// KeyGameID addresses the game a message belongs to.
	KeyGameID = "game_id"
	// KeyData wraps the opaque score record in a score-update envelope.
	KeyData = "data"
	// KeyError carries the human-readable text of a game.error payload.
	KeyError = "error"
	// KeySpeed carries the numeric interval of a speed-control command.
	KeySpeed = "speed"
	// KeyToken carries the client auth token on control commands.
	KeyToken = "token"
	// KeyNamespace records the transport namespace a message arrived on.
	KeyNamespace = "namespace"
)

// NewScoreUpdate wraps one opaque score record in the envelope published on
// the scores channel.
func NewScoreUpdate(record any) Message {
	return Message{
		KeyType: string(EventGameScoreUpdate),
		KeyData: record,
	}
}

// ErrorPayload builds the payload of a game.error emission.
func ErrorPayload(text string) Message {
	return Message{KeyError: text}
}

// TypeOf extracts and parses the event type of a message. It tolerates both
// the raw wire string and an already-typed value, since in-process brokers
// deliver the original map while networked brokers round-trip through JSON.
func TypeOf(msg Message) (EventType, bool) {
	switch v := msg[KeyType].(type) {
	case string:
		return ParseEventType(v)
	case EventType:
		return ParseEventType(string(v))
	}
	return "", false
}

// GameIDOf extracts the game identifier of a message, if present.
func GameIDOf(msg Message) (string, bool) {
	id, ok := msg[KeyGameID].(string)
	return id, ok && id != ""
}
