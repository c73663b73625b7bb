package realtime

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/auth"
	apperrors "github.com/spec-kit/task-service/pkg/util"
)

// Events exchanged over the channel.
const (
	EventTaskUpdate  = "taskUpdate"
	EventTaskUpdated = "taskUpdated"
	EventTaskDeleted = "taskDeleted"
)

const userIDKey = "ws_user_id"

// inboundFrame keeps the payload opaque; the broadcaster relays, it does not
// validate or persist.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Handler authenticates websocket handshakes and pumps frames through the hub.
type Handler struct {
	hub    *Hub
	tokens *auth.TokenManager
	logger *zap.Logger
}

// NewHandler constructs the handler.
func NewHandler(hub *Hub, tokens *auth.TokenManager, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, tokens: tokens, logger: logger}
}

// Upgrade gates the websocket handshake. The token travels in the `token`
// query parameter or a bearer header; invalid tokens refuse the connection
// before any channel membership exists.
func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := c.Query("token")
	if token == "" {
		if header := c.Get("Authorization"); header != "" {
			parts := strings.SplitN(header, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				token = parts[1]
			}
		}
	}
	if token == "" {
		return apperrors.NewUnauthorized("missing token")
	}

	claims, err := h.tokens.ParseToken(token)
	if err != nil {
		h.logger.Warn("realtime handshake rejected", zap.String("ip", c.IP()), zap.Error(err))
		return apperrors.NewUnauthorized("invalid token")
	}

	c.Locals(userIDKey, claims.UserID)
	return c.Next()
}

// session is the read/write surface of an admitted connection.
type session interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
}

// Serve runs the per-connection read loop.
func (h *Handler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals(userIDKey).(string)
		if userID == "" {
			_ = conn.Close()
			return
		}
		h.runSession(userID, conn)
	})
}

// runSession registers the connection and relays its frames until the read
// side fails. Only taskUpdate frames are relayed; anything else is dropped.
func (h *Handler) runSession(userID string, conn session) {
	connID := h.hub.Add(userID, conn)
	defer h.hub.Remove(connID)

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Event != EventTaskUpdate {
			continue
		}
		// The mutation is assumed durably applied via the task API;
		// relay to the emitter's own room only.
		h.hub.EmitToUser(userID, EventTaskUpdated, frame.Data)
	}
}
