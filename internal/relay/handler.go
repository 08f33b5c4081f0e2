package relay

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Ryan-DPC/vext-relay/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Handler owns the HTTP surface of the relay: the /ws upgrade route and the
// /health liveness route.
type Handler struct {
	upgrader websocket.Upgrader
	registry *Registry
	tokens   auth.TokenManager
}

func NewHandler(registry *Registry, tokens auth.TokenManager) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: time.Second * 5,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			EnableCompression: true,
		},
		registry: registry,
		tokens:   tokens,
	}
}

// Register attaches the relay routes to a gin engine.
func (h *Handler) Register(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/ws", h.HandleWS)
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleWS validates the bearer token from the query string, upgrades the
// connection and runs the session loop until the socket dies.
func (h *Handler) HandleWS(c *gin.Context) {
	token := c.Query("token")
	if err := h.tokens.Validate(token); err != nil {
		slog.Error("reject websocket upgrade", "error", err)
		c.String(http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("upgrade to WebSocket", "error", err)
		return
	}

	s := newSession(h.registry, conn)
	s.run()
}
