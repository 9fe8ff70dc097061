package server

// MessageType represents a WebSocket message type with type safety
type MessageType string

// WebSocket message type constants
const (
	// Client to server messages
	MessageTypeCreateGame MessageType = "create_game"
	MessageTypeAction     MessageType = "action"

	// Server to client messages
	MessageTypeGameCreated MessageType = "game_created"
	MessageTypeHandUpdate  MessageType = "hand_update"
	MessageTypeGameResult  MessageType = "game_result"
	MessageTypeError       MessageType = "error"
)

// String returns the string representation of the message type
func (mt MessageType) String() string {
	return string(mt)
}
