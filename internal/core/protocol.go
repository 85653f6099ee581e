package core

import (
	"context"
	"errors"

	"github.com/rrapp/rentchat/internal/proto"
)

// MessageWriter is the persistence the chat core needs. Both calls are
// append-only and must complete before the message is broadcast.
type MessageWriter interface {
	CreateMessage(ctx context.Context, username, room, content string) error
	CreateDirectMessage(ctx context.Context, sender, receiver, room, content string) error
}

// Protocol is one chat variant: its namespace, inbound schema and outbound shape.
type Protocol interface {
	Namespace() Namespace
	// Decode validates an inbound frame. Errors are *proto.FieldError or wrap proto.ErrMalformed.
	Decode(data []byte) (Frame, error)
	// Outbound builds the value written to clients for a chat payload.
	Outbound(p *ChatPayload) any
}

// Frame is a validated inbound chat message.
type Frame interface {
	Persist(ctx context.Context, w MessageWriter) error
	Payload() *ChatPayload
}

// RoomProtocol is public room chat.
type RoomProtocol struct{}

func (RoomProtocol) Namespace() Namespace { return NamespaceRoom }

func (RoomProtocol) Decode(data []byte) (Frame, error) {
	f, err := proto.DecodeRoomChat(data)
	if err != nil {
		return nil, err
	}
	return roomFrame{message: *f.Message, username: *f.Username, room: *f.Room}, nil
}

func (RoomProtocol) Outbound(p *ChatPayload) any {
	return proto.RoomChatOut{Message: p.Message, Username: p.Username}
}

type roomFrame struct {
	message  string
	username string
	room     string
}

func (f roomFrame) Persist(ctx context.Context, w MessageWriter) error {
	return w.CreateMessage(ctx, f.username, f.room, f.message)
}

func (f roomFrame) Payload() *ChatPayload {
	return &ChatPayload{Message: f.message, Username: f.username}
}

// DirectProtocol is 1:1 chat.
type DirectProtocol struct{}

func (DirectProtocol) Namespace() Namespace { return NamespaceDirect }

func (DirectProtocol) Decode(data []byte) (Frame, error) {
	f, err := proto.DecodeDirectChat(data)
	if err != nil {
		return nil, err
	}
	return directFrame{
		message:  *f.Message,
		sender:   *f.SenderUsername,
		receiver: *f.ReceiverUsername,
		room:     *f.Room,
	}, nil
}

func (DirectProtocol) Outbound(p *ChatPayload) any {
	return proto.DirectChatOut{
		Message:          p.Message,
		SenderUsername:   p.SenderUsername,
		ReceiverUsername: p.ReceiverUsername,
	}
}

type directFrame struct {
	message  string
	sender   string
	receiver string
	room     string
}

func (f directFrame) Persist(ctx context.Context, w MessageWriter) error {
	return w.CreateDirectMessage(ctx, f.sender, f.receiver, f.room, f.message)
}

func (f directFrame) Payload() *ChatPayload {
	return &ChatPayload{Message: f.message, SenderUsername: f.sender, ReceiverUsername: f.receiver}
}

// decodeErrorMessage turns a decode error into text safe to show the client.
func decodeErrorMessage(err error) string {
	var fe *proto.FieldError
	if errors.As(err, &fe) {
		return fe.Error()
	}
	return "frame must be a JSON object with string fields"
}
