package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/rrapp/rentchat/internal/config"
	"github.com/rrapp/rentchat/internal/core"
	"github.com/rrapp/rentchat/internal/store"
)

// NewServer builds an HTTP server with chat websocket, history and health routes.
func NewServer(registry *core.Registry, st store.MessageStore, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	history := NewHistoryHandlers(st, cfg, logger)
	api := router.Group("/api")
	{
		api.GET("/rooms/:room_name/messages", history.ListRoomMessages)
		api.GET("/dm/:room_name/messages", history.ListDirectMessages)
	}

	// Websocket routes bypass gin so the handshake can hijack the raw writer.
	ws := NewWSHandler(registry, st, cfg, logger)
	mux := stdhttp.NewServeMux()
	mux.HandleFunc("GET /ws/chat/{room_name}", ws.ServeRoom)
	mux.HandleFunc("GET /ws/dm/{room_name}", ws.ServeDirect)
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
