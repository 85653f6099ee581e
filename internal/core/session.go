package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rrapp/rentchat/internal/proto"
)

// State is a session lifecycle stage.
type State int

const (
	StateConnecting State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FrameWriter writes one encoded frame to the client connection.
type FrameWriter func(ctx context.Context, data []byte) error

type eventHandler func(ctx context.Context, ev Event, w FrameWriter) error

// SessionConfig tunes a session.
type SessionConfig struct {
	OutboundBuffer int
	PersistTimeout time.Duration
	MaxRoomLength  int
}

// Session is the per-connection state machine: Connecting -> Joined -> Closed.
// It owns its endpoint; the registry only references it while joined.
type Session struct {
	protocol Protocol
	registry *Registry
	store    MessageWriter
	endpoint *Endpoint
	cfg      SessionConfig
	handlers map[EventKind]eventHandler
	log      zerolog.Logger

	mu    sync.Mutex
	state State
	room  string
	key   GroupKey
}

// NewSession creates a session in the Connecting state.
func NewSession(protocol Protocol, registry *Registry, store MessageWriter, cfg SessionConfig, logger *zerolog.Logger) *Session {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	ep := NewEndpoint(cfg.OutboundBuffer)
	s := &Session{
		protocol: protocol,
		registry: registry,
		store:    store,
		endpoint: ep,
		cfg:      cfg,
		log: logger.With().
			Str("endpoint_id", ep.ID()).
			Str("namespace", protocol.Namespace().String()).
			Logger(),
	}
	s.handlers = map[EventKind]eventHandler{
		EventChatMessage: s.writeChat,
		EventError:       s.writeError,
	}
	return s
}

// ID returns the endpoint identifier.
func (s *Session) ID() string { return s.endpoint.ID() }

// Endpoint returns the session's endpoint.
func (s *Session) Endpoint() *Endpoint { return s.endpoint }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// GroupKey returns the joined group, or "" before Connect.
func (s *Session) GroupKey() GroupKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

// Connect validates room and joins its group.
func (s *Session) Connect(room string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateJoined:
		return ErrAlreadyConnected
	case StateClosed:
		return ErrSessionClosed
	}

	if err := ValidateRoom(s.protocol.Namespace(), room, s.cfg.MaxRoomLength); err != nil {
		return err
	}

	s.room = room
	s.key = NewGroupKey(s.protocol.Namespace(), room)
	s.registry.Join(s.key, s.endpoint)
	s.state = StateJoined
	s.log = s.log.With().Str("group", string(s.key)).Logger()
	s.log.Debug().Msg("session joined")
	return nil
}

// Receive handles one inbound frame: validate, persist, then broadcast.
// On failure the client is signalled through its own endpoint and the error is
// returned; the session stays joined.
func (s *Session) Receive(ctx context.Context, data []byte) *CoreError {
	s.mu.Lock()
	state, key := s.state, s.key
	s.mu.Unlock()

	if state != StateJoined {
		return s.reject(&CoreError{Code: ErrCodeNotJoined, Message: "session is not joined", Err: ErrNotJoined})
	}

	frame, err := s.protocol.Decode(data)
	if err != nil {
		s.log.Debug().Err(err).Msg("rejected inbound frame")
		return s.Reject(ErrCodeBadRequest, decodeErrorMessage(err))
	}

	persistCtx := ctx
	if s.cfg.PersistTimeout > 0 {
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(ctx, s.cfg.PersistTimeout)
		defer cancel()
	}
	if err := frame.Persist(persistCtx, s.store); err != nil {
		s.log.Error().Err(err).Msg("persist message")
		return s.reject(&CoreError{Code: ErrCodePersistFailed, Message: "message could not be saved", Err: err})
	}

	if err := s.registry.Broadcast(ctx, key, Event{Kind: EventChatMessage, Chat: frame.Payload()}); err != nil {
		s.log.Error().Err(err).Msg("broadcast message")
		return s.reject(&CoreError{Code: ErrCodeBroadcastFailed, Message: "message saved but could not be delivered", Err: err})
	}
	return nil
}

// Reject queues an error event for this session's own client.
func (s *Session) Reject(code, msg string) *CoreError {
	return s.reject(coreError(code, msg))
}

func (s *Session) reject(cerr *CoreError) *CoreError {
	s.endpoint.deliver(Event{Kind: EventError, Error: cerr})
	return cerr
}

// Dispatch encodes an outbound event and writes it with w. A write failure is
// treated as the connection going away: the session disconnects.
func (s *Session) Dispatch(ctx context.Context, ev Event, w FrameWriter) error {
	if s.State() != StateJoined {
		return ErrSessionClosed
	}

	handler, ok := s.handlers[ev.Kind]
	if !ok {
		s.log.Warn().Int("kind", int(ev.Kind)).Msg("no handler for event")
		return nil
	}
	if err := handler(ctx, ev, w); err != nil {
		s.Disconnect()
		return fmt.Errorf("write %s: %w", ev.Kind, err)
	}
	return nil
}

// Disconnect leaves the group and closes the endpoint. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	joined := s.state == StateJoined
	s.state = StateClosed
	key := s.key
	s.mu.Unlock()

	if joined {
		s.registry.Leave(key, s.endpoint)
	}
	s.endpoint.Close()
	s.log.Debug().Msg("session closed")
}

func (s *Session) writeChat(ctx context.Context, ev Event, w FrameWriter) error {
	if ev.Chat == nil {
		return nil
	}
	data, err := json.Marshal(s.protocol.Outbound(ev.Chat))
	if err != nil {
		return fmt.Errorf("encode chat frame: %w", err)
	}
	return w(ctx, data)
}

func (s *Session) writeError(ctx context.Context, ev Event, w FrameWriter) error {
	if ev.Error == nil {
		return nil
	}
	data, err := json.Marshal(proto.ErrorFrame{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: ev.Error.Code, Msg: ev.Error.Message},
	})
	if err != nil {
		return fmt.Errorf("encode error frame: %w", err)
	}
	return w(ctx, data)
}
