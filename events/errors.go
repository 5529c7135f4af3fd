package events

// MessageError is a client-visible failure raised while validating or routing
// an inbound message. Its text travels back to the sender on a game.error
// event; anything not wrapped in a MessageError is reported to the client as
// an internal server error instead.
type MessageError struct {
	// Message is the short human-readable text sent to the client.
	Message string
}

// NewMessageError builds a MessageError with the given client-facing text.
func NewMessageError(text string) *MessageError {
	return &MessageError{Message: text}
}

// Error implements the error interface.
func (e *MessageError) Error() string { return e.Message }
