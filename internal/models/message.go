package models

import "time"

// Message is a persisted chat message. Immutable once stored; id and
// created_at are assigned by the database.
type Message struct {
	ID         int       `db:"id" json:"id"`
	RoomID     int       `db:"room_id" json:"room_id"`
	SenderID   int       `db:"sender_id" json:"sender_id"`
	SenderRole Role      `db:"sender_role" json:"sender_role"`
	Content    string    `db:"content" json:"content"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RoomEvent is broadcast to websocket subscribers of a single room.
type RoomEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
}

// LobbyEvent is broadcast to room-list watchers whenever any room sees a new
// message. Carries just enough for the client to decide to refetch the list.
type LobbyEvent struct {
	Type   string    `json:"type"`
	RoomID int       `json:"room_id"`
	SentAt time.Time `json:"sent_at"`
}
