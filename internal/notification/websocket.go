package notification

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"stagebook/internal/domain"
	"stagebook/internal/pkg/response"
)

// TokenValidator resolves a bearer credential to an actor.
type TokenValidator interface {
	ValidateToken(token string) (domain.Actor, error)
}

// WSHandler streams booking events to the connected party.
type WSHandler struct {
	hub      *Hub
	tokens   TokenValidator
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, tokens TokenValidator, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:    hub,
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

// HandleWebSocket serves GET /ws/bookings?token=JWT. Browsers cannot set
// headers on websocket upgrades, so the query token is accepted.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	if token == "" {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Token is required")
		return
	}
	actor, err := h.tokens.ValidateToken(token)
	if err != nil {
		response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("level=warn msg=websocket_upgrade_failed user_id=%s err=%v", actor.ID, err)
		return
	}

	cl := h.hub.Register(actor.ID, conn)
	log.Printf("level=info msg=websocket_connected user_id=%s role=%s", actor.ID, actor.Role)
	defer func() {
		h.hub.Unregister(actor.ID, cl)
		log.Printf("level=info msg=websocket_disconnected user_id=%s", actor.ID)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go h.hub.writePump(cl)

	// observers only: inbound frames are drained to process control messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("level=warn msg=websocket_read_error user_id=%s err=%v", actor.ID, err)
			}
			return
		}
	}
}
