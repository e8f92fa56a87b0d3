package ws

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"clinic-chat-service/internal/models"
)

// ConnInfo carries identity and tracing context for one websocket connection.
type ConnInfo struct {
	ConnID      string
	UserID      int
	Role        models.Role
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
