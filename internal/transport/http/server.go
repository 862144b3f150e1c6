package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/linkchat/linkchat-server/internal/chat"
	"github.com/linkchat/linkchat-server/internal/config"
)

// NewServer builds the HTTP server: REST room endpoints plus the
// websocket live feed.
func NewServer(svc *chat.Service, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	rooms := NewRoomHandlers(svc, logger)
	api := router.Group("/api")
	api.POST("/rooms", rooms.CreateRoom)
	api.GET("/rooms/:id", rooms.GetRoom)

	// The websocket upgrade hijacks the connection, which gin's response
	// writer does not support; /ws is served off a plain mux.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(svc, logger))
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
