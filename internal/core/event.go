package core

// EventKind is a notification delivered to an endpoint.
type EventKind int

const (
	// EventChatMessage carries a persisted chat message to group members.
	EventChatMessage EventKind = iota
	// EventError tells the submitting client its frame was rejected.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventChatMessage:
		return "chat_message"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered through endpoints and relays. It must stay JSON-encodable.
type Event struct {
	Kind  EventKind    `json:"kind"`
	Chat  *ChatPayload `json:"chat,omitempty"`
	Error *CoreError   `json:"error,omitempty"`
}

// ChatPayload holds the fields shared by both chat variants.
// Room chat fills Username; direct chat fills SenderUsername and ReceiverUsername.
type ChatPayload struct {
	Message          string `json:"message"`
	Username         string `json:"username,omitempty"`
	SenderUsername   string `json:"sender_username,omitempty"`
	ReceiverUsername string `json:"receiver_username,omitempty"`
}
