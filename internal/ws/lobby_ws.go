package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"clinic-chat-service/internal/middleware"
	"clinic-chat-service/internal/observability"
)

// LobbyWebSocketHandler serves the authenticated-scope activity feed used by
// room-list views to know when to refetch.
type LobbyWebSocketHandler struct {
	hub       *Hub
	jwtSecret string
}

// NewLobbyWebSocketHandler constructs a LobbyWebSocketHandler.
func NewLobbyWebSocketHandler(hub *Hub, jwtSecret string) *LobbyWebSocketHandler {
	return &LobbyWebSocketHandler{hub: hub, jwtSecret: jwtSecret}
}

// Handle upgrades the connection and registers a lobby watcher.
func (h *LobbyWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("clinic-chat-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, role, err := middleware.ParseToken(h.jwtSecret, bearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		Role:        role,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	h.hub.AddLobbyClient(conn, info)

	observability.IncWSActive("lobby")
	observability.IncWSEvent("lobby", "ws_connect")
	publishConnEvent(ctx, "lobby", 0, info, "ws_connect", "")

	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveLobbyClient(conn)
			observability.DecWSActive("lobby")
			observability.IncWSEvent("lobby", "ws_disconnect")
			publishConnEvent(ctx, "lobby", 0, info, "ws_disconnect", closeReason)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("lobby", "ws_error")
					publishConnEvent(ctx, "lobby", 0, info, "ws_error", closeReason)
				}
				return
			}
		}
	}()
}

func publishConnEvent(ctx context.Context, kind string, resourceID int, info ConnInfo, event, reason string) {
	durationMS := int64(0)
	if event != "ws_connect" {
		durationMS = time.Since(info.ConnectedAt).Milliseconds()
	}
	_ = observability.PublishEvent(ctx, wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        kind,
				"resource_id": resourceID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": durationMS,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"role":      info.Role,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
