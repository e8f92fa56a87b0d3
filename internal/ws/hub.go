package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"clinic-chat-service/internal/models"
	"clinic-chat-service/internal/observability"
)

// Hub maintains active websocket subscribers: per-room message subscribers
// and lobby subscribers watching for activity in any room.
type Hub struct {
	rooms         map[int]map[*websocket.Conn]bool
	roomConnInfo  map[int]map[*websocket.Conn]ConnInfo
	lobby         map[*websocket.Conn]bool
	lobbyConnInfo map[*websocket.Conn]ConnInfo
	// writeMu serializes WriteMessage per connection; the gorilla API allows
	// at most one concurrent writer.
	writeMu map[*websocket.Conn]*sync.Mutex
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:         make(map[int]map[*websocket.Conn]bool),
		roomConnInfo:  make(map[int]map[*websocket.Conn]ConnInfo),
		lobby:         make(map[*websocket.Conn]bool),
		lobbyConnInfo: make(map[*websocket.Conn]ConnInfo),
		writeMu:       make(map[*websocket.Conn]*sync.Mutex),
	}
}

// AddRoomClient registers a websocket connection to a room. Only events
// inserted after registration are delivered; history is never replayed here.
func (h *Hub) AddRoomClient(roomID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[roomID][conn] = true
	if _, ok := h.roomConnInfo[roomID]; !ok {
		h.roomConnInfo[roomID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.roomConnInfo[roomID][conn] = info
	h.writeMu[conn] = &sync.Mutex{}
}

// RemoveRoomClient removes a room websocket connection.
func (h *Hub) RemoveRoomClient(roomID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[roomID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if infos, ok := h.roomConnInfo[roomID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.roomConnInfo, roomID)
		}
	}
	delete(h.writeMu, conn)
}

// AddLobbyClient registers a room-list watcher.
func (h *Hub) AddLobbyClient(conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lobby[conn] = true
	h.lobbyConnInfo[conn] = info
	h.writeMu[conn] = &sync.Mutex{}
}

// RemoveLobbyClient removes a room-list watcher.
func (h *Hub) RemoveLobbyClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lobby, conn)
	delete(h.lobbyConnInfo, conn)
	delete(h.writeMu, conn)
}

// BroadcastMessage delivers a newly inserted message to every subscriber of
// its room, then notifies lobby watchers so list views refetch.
func (h *Hub) BroadcastMessage(msg models.Message) {
	// Snapshot under the lock; iterating the live map would race with
	// membership changes.
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[msg.RoomID]))
	for conn := range h.rooms[msg.RoomID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	event := models.RoomEvent{Type: "message", Message: &msg}
	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := h.writeConn(conn, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveRoomClient(msg.RoomID, conn)
			h.publishWSError("room", msg.RoomID, conn, err)
		}
	}

	h.BroadcastRoomActivity(msg.RoomID, msg.CreatedAt)
}

// BroadcastRoomActivity tells lobby watchers that a room saw new activity.
// List views invalidate and refetch rather than patching incrementally.
func (h *Hub) BroadcastRoomActivity(roomID int, sentAt time.Time) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.lobby))
	for conn := range h.lobby {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	event := models.LobbyEvent{Type: "room_activity", RoomID: roomID, SentAt: sentAt}
	payload, _ := json.Marshal(event)
	for _, conn := range conns {
		if err := h.writeConn(conn, payload); err != nil {
			log.Printf("websocket write error: %v", err)
			conn.Close()
			h.RemoveLobbyClient(conn)
			h.publishWSError("lobby", 0, conn, err)
		}
	}
}

// writeConn writes one frame holding the connection's write mutex. A
// connection already removed from the hub is skipped.
func (h *Hub) writeConn(conn *websocket.Conn, payload []byte) error {
	h.mu.RLock()
	mu := h.writeMu[conn]
	h.mu.RUnlock()
	if mu == nil {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) publishWSError(kind string, resourceID int, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(kind, resourceID, conn)
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        kind,
			"resource_id": resourceID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"role":      info.Role,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey(kind), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent(kind, "ws_error")
}

func (h *Hub) getConnInfo(kind string, resourceID int, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if kind == "lobby" {
		info, exists := h.lobbyConnInfo[conn]
		return info, exists
	}
	if infos, ok := h.roomConnInfo[resourceID]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}

func wsRoutingKey(kind string) string {
	if kind == "lobby" {
		return "ws_events.lobby"
	}
	return "ws_events.rooms"
}
