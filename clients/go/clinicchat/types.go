// Package clinicchat is a Go client for the clinic chat service. It wraps the
// HTTP and websocket APIs and provides the view-side state machinery a chat
// UI needs: history pagination, live subscriptions, optimistic sends and
// unread tracking.
package clinicchat

import (
	"encoding/json"
	"time"
)

// Role identifies which side of a room a user is on.
type Role string

const (
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
)

// Opposite returns the other side of the conversation.
func (r Role) Opposite() Role {
	if r == RolePatient {
		return RoleAdmin
	}
	return RolePatient
}

// Message is the canonical client-side message shape. Every external read is
// normalized into this one type so call sites never branch on which fields a
// particular query happened to return.
type Message struct {
	ID         int
	RoomID     int
	SenderID   int
	SenderRole Role
	Content    string
	CreatedAt  time.Time
}

// RoomSummary is the canonical room-list entry.
type RoomSummary struct {
	RoomID        int
	Category      string
	PatientID     int
	PatientName   string
	CreatedAt     time.Time
	LastMessageAt *time.Time
	UnreadCount   int
}

// MessagePage is one slice of room history, newest first.
type MessagePage struct {
	Messages []Message
	HasMore  bool
}

// wireMessage is the service's JSON message shape. Optional fields differ
// between history reads and live events; normalizeMessage flattens all of
// them into the canonical Message.
type wireMessage struct {
	ID         int       `json:"id"`
	RoomID     int       `json:"room_id"`
	SenderID   int       `json:"sender_id"`
	SenderRole string    `json:"sender_role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func normalizeMessage(w wireMessage) Message {
	role := Role(w.SenderRole)
	if role != RolePatient && role != RoleAdmin {
		role = RolePatient
	}
	return Message{
		ID:         w.ID,
		RoomID:     w.RoomID,
		SenderID:   w.SenderID,
		SenderRole: role,
		Content:    w.Content,
		CreatedAt:  w.CreatedAt,
	}
}

type wireRoomSummary struct {
	RoomID        int        `json:"room_id"`
	Category      string     `json:"category"`
	PatientID     int        `json:"patient_id"`
	PatientName   string     `json:"patient_name"`
	CreatedAt     time.Time  `json:"created_at"`
	LastMessageAt *time.Time `json:"last_message_at"`
	UnreadCount   int        `json:"unread_count"`
}

func normalizeRoomSummary(w wireRoomSummary) RoomSummary {
	return RoomSummary{
		RoomID:        w.RoomID,
		Category:      w.Category,
		PatientID:     w.PatientID,
		PatientName:   w.PatientName,
		CreatedAt:     w.CreatedAt,
		LastMessageAt: w.LastMessageAt,
		UnreadCount:   w.UnreadCount,
	}
}

// wireEnvelope is the websocket event framing shared by room and lobby
// subscriptions.
type wireEnvelope struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
	RoomID  int             `json:"room_id"`
	SentAt  time.Time       `json:"sent_at"`
}

// RoomActivity signals that some room saw a new message. Room-list views
// respond by refetching the whole list.
type RoomActivity struct {
	RoomID int
	SentAt time.Time
}
