package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// OutboundTypeError tags error frames sent back to the submitting client.
const OutboundTypeError = "error"

// ErrMalformed is returned when a frame is not a JSON object of the expected shape.
var ErrMalformed = errors.New("malformed frame")

// FieldError reports a required field that was absent or null.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return e.Field + " is required"
}

// RoomChatFrame is an inbound room chat message.
// Pointer fields distinguish an absent key from an empty string.
type RoomChatFrame struct {
	Message  *string `json:"message"`
	Username *string `json:"username"`
	Room     *string `json:"room"`
}

// DirectChatFrame is an inbound direct chat message.
type DirectChatFrame struct {
	Message          *string `json:"message"`
	SenderUsername   *string `json:"senderUsername"`
	ReceiverUsername *string `json:"receiverUsername"`
	Room             *string `json:"room"`
}

// RoomChatOut is the room chat frame fanned out to group members.
type RoomChatOut struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

// DirectChatOut is the direct chat frame fanned out to group members.
type DirectChatOut struct {
	Message          string `json:"message"`
	SenderUsername   string `json:"senderUsername"`
	ReceiverUsername string `json:"receiverUsername"`
}

// ErrorFrame is the envelope for per-frame errors.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error *Error `json:"error"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// DecodeRoomChat parses and validates a room chat frame.
func DecodeRoomChat(data []byte) (RoomChatFrame, error) {
	var f RoomChatFrame
	obj, err := decodeObject(data)
	if err != nil {
		return f, err
	}
	return f, obj.require(
		field{"message", &f.Message},
		field{"username", &f.Username},
		field{"room", &f.Room},
	)
}

// DecodeDirectChat parses and validates a direct chat frame.
func DecodeDirectChat(data []byte) (DirectChatFrame, error) {
	var f DirectChatFrame
	obj, err := decodeObject(data)
	if err != nil {
		return f, err
	}
	return f, obj.require(
		field{"message", &f.Message},
		field{"senderUsername", &f.SenderUsername},
		field{"receiverUsername", &f.ReceiverUsername},
		field{"room", &f.Room},
	)
}

// object holds a frame's top-level members keyed by their exact names.
// Decoding straight into a struct would also accept "USERNAME" for "username".
type object map[string]json.RawMessage

func decodeObject(data []byte) (object, error) {
	var obj object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return obj, nil
}

type field struct {
	name string
	dst  **string
}

// require fills each field from its exact key. Absent or null is missing;
// any non-string value makes the frame malformed.
func (o object) require(fields ...field) error {
	for _, f := range fields {
		raw, ok := o[f.name]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return &FieldError{Field: f.name}
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformed, f.name, err)
		}
		*f.dst = &v
	}
	return nil
}
