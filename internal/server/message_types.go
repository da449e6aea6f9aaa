package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
const (
	// Client to server messages
	MessageTypeSimulate MessageType = "simulate"
	MessageTypeCancel   MessageType = "cancel"

	// Server to client messages
	MessageTypeAccepted MessageType = "accepted"
	MessageTypeProgress MessageType = "progress"
	MessageTypeResult   MessageType = "result"
	MessageTypeError    MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
