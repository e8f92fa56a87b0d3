package models

import "time"

// Role identifies which side of a room a user is on.
type Role string

const (
	RolePatient Role = "patient"
	RoleAdmin   Role = "admin"
)

// Valid reports whether the role is one of the two known roles.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleAdmin
}

// Opposite returns the other side of the conversation.
func (r Role) Opposite() Role {
	if r == RolePatient {
		return RoleAdmin
	}
	return RolePatient
}

// Room is a conversation between one patient and clinic staff.
type Room struct {
	ID          int       `db:"id" json:"id"`
	Category    string    `db:"category" json:"category"`
	PatientID   int       `db:"patient_id" json:"patient_id"`
	PatientName string    `db:"patient_name" json:"patient_name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// RoomSummary is the list-view projection of a room: latest activity plus
// the viewer's derived unread count.
type RoomSummary struct {
	RoomID        int        `db:"id" json:"room_id"`
	Category      string     `db:"category" json:"category"`
	PatientID     int        `db:"patient_id" json:"patient_id"`
	PatientName   string     `db:"patient_name" json:"patient_name"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	LastMessageAt *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	UnreadCount   int        `db:"unread_count" json:"unread_count"`
}

// ReadWatermark marks "read up to here" for one role in a room. At most one
// row exists per (room, role).
type ReadWatermark struct {
	RoomID     int       `db:"room_id" json:"room_id"`
	Role       Role      `db:"role" json:"role"`
	LastReadAt time.Time `db:"last_read_at" json:"last_read_at"`
}
