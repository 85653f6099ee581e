package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rrapp/rentchat/internal/config"
	"github.com/rrapp/rentchat/internal/core"
)

const writeTimeout = 10 * time.Second

var errEndpointClosed = errors.New("endpoint closed")

// WSHandler upgrades HTTP connections and runs one core.Session per socket.
type WSHandler struct {
	registry *core.Registry
	store    core.MessageWriter
	cfg      *config.Config
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(registry *core.Registry, st core.MessageWriter, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{registry: registry, store: st, cfg: cfg, log: logger}
}

// ServeRoom handles GET /ws/chat/{room_name}.
func (h *WSHandler) ServeRoom(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	h.serve(w, r, core.RoomProtocol{})
}

// ServeDirect handles GET /ws/dm/{room_name}.
func (h *WSHandler) ServeDirect(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	h.serve(w, r, core.DirectProtocol{})
}

func (h *WSHandler) serve(w stdhttp.ResponseWriter, r *stdhttp.Request, protocol core.Protocol) {
	room := r.PathValue("room_name")
	logger := h.log.With().Str("room", room).Str("remote", r.RemoteAddr).Logger()

	session := core.NewSession(protocol, h.registry, h.store, core.SessionConfig{
		OutboundBuffer: h.cfg.OutboundBuffer,
		PersistTimeout: h.cfg.PersistTimeout,
		MaxRoomLength:  h.cfg.MaxRoomLength,
	}, &logger)
	defer session.Disconnect()

	// Joined before the upgrade so that nothing broadcast after accept is missed.
	if err := session.Connect(room); err != nil {
		logger.Debug().Err(err).Msg("refused websocket connect")
		writeError(w, stdhttp.StatusBadRequest, err.Error())
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		logger.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(h.cfg.MaxMessageBytes)

	logger.Info().Str("endpoint_id", session.ID()).Str("group", string(session.GroupKey())).Msg("websocket connected")

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		return h.readLoop(ctx, conn, session, newRateLimiter(h.cfg.RateLimitPerMinute))
	})
	g.Go(func() error {
		return h.writeLoop(ctx, conn, session)
	})
	err = g.Wait()

	status, reason := closeStatus(err)
	if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
		logger.Warn().Err(err).Int("status", int(status)).Msg("ws connection closed with error")
	}
	conn.Close(status, reason)
	logger.Info().Str("endpoint_id", session.ID()).Msg("websocket disconnected")
}

func writeError(w stdhttp.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: msg})
}

func closeStatus(err error) (websocket.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, errEndpointClosed):
		return websocket.StatusTryAgainLater, "slow consumer"
	}
	if s := websocket.CloseStatus(err); s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway {
		return s, "closing"
	}
	return websocket.StatusInternalError, "internal error"
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, limiter *rateLimiter) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			session.Reject(core.ErrCodeBadRequest, "expected a text frame")
			continue
		}
		if !limiter.allow() {
			session.Reject(core.ErrCodeRateLimited, "too many messages")
			continue
		}
		session.Receive(ctx, data)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	ep := session.Endpoint()
	write := func(ctx context.Context, data []byte) error {
		ctx, cancel := context.WithTimeout(ctx, writeTimeout)
		defer cancel()
		return conn.Write(ctx, websocket.MessageText, data)
	}

	for {
		select {
		case ev := <-ep.Events():
			if err := session.Dispatch(ctx, ev, write); err != nil {
				return err
			}
		case <-ep.Done():
			return errEndpointClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
