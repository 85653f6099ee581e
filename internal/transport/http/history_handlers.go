package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rrapp/rentchat/internal/config"
	"github.com/rrapp/rentchat/internal/core"
	"github.com/rrapp/rentchat/internal/store"
)

// maxHistoryLimit caps the limit query parameter.
const maxHistoryLimit = 500

// HistoryHandlers serves persisted chat history.
type HistoryHandlers struct {
	store store.MessageStore
	cfg   *config.Config
	log   *zerolog.Logger
}

// NewHistoryHandlers creates a new history handlers instance.
func NewHistoryHandlers(st store.MessageStore, cfg *config.Config, logger *zerolog.Logger) *HistoryHandlers {
	return &HistoryHandlers{store: st, cfg: cfg, log: logger}
}

// MessageResponse represents a room chat message in API responses.
type MessageResponse struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Room      string `json:"room"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// DirectMessageResponse represents a direct message in API responses.
type DirectMessageResponse struct {
	ID               int64  `json:"id"`
	SenderUsername   string `json:"senderUsername"`
	ReceiverUsername string `json:"receiverUsername"`
	Room             string `json:"room"`
	Message          string `json:"message"`
	Timestamp        string `json:"timestamp"`
}

type pageParams struct {
	room     string
	limit    int
	beforeID *int64
}

// ListRoomMessages returns room history, oldest first.
// GET /api/rooms/:room_name/messages?limit=&before=
func (h *HistoryHandlers) ListRoomMessages(c *gin.Context) {
	page, ok := h.parsePage(c, core.NamespaceRoom)
	if !ok {
		return
	}

	messages, err := h.store.ListMessages(c.Request.Context(), page.room, page.limit, page.beforeID)
	if err != nil {
		h.log.Error().Err(err).Str("room", page.room).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, MessageResponse{
			ID:        msg.ID,
			Username:  msg.Username,
			Room:      msg.Room,
			Message:   msg.Content,
			Timestamp: msg.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	h.log.Debug().Str("room", page.room).Int("count", len(response)).Msg("messages listed")
	c.JSON(http.StatusOK, response)
}

// ListDirectMessages returns direct chat history, oldest first.
// GET /api/dm/:room_name/messages?limit=&before=
func (h *HistoryHandlers) ListDirectMessages(c *gin.Context) {
	page, ok := h.parsePage(c, core.NamespaceDirect)
	if !ok {
		return
	}

	messages, err := h.store.ListDirectMessages(c.Request.Context(), page.room, page.limit, page.beforeID)
	if err != nil {
		h.log.Error().Err(err).Str("room", page.room).Msg("failed to list direct messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]DirectMessageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, DirectMessageResponse{
			ID:               msg.ID,
			SenderUsername:   msg.Sender,
			ReceiverUsername: msg.Receiver,
			Room:             msg.Room,
			Message:          msg.Content,
			Timestamp:        msg.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	c.JSON(http.StatusOK, response)
}

func (h *HistoryHandlers) parsePage(c *gin.Context, ns core.Namespace) (pageParams, bool) {
	page := pageParams{room: c.Param("room_name"), limit: h.cfg.HistoryLimit}

	if err := core.ValidateRoom(ns, page.room, h.cfg.MaxRoomLength); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return page, false
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return page, false
		}
		page.limit = limit
	}
	if page.limit <= 0 {
		page.limit = 50
	}
	if page.limit > maxHistoryLimit {
		page.limit = maxHistoryLimit
	}

	if raw := c.Query("before"); raw != "" {
		before, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || before <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid before"})
			return page, false
		}
		page.beforeID = &before
	}

	return page, true
}
