package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"clinic-chat-service/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomRepository abstracts room persistence.
type RoomRepository interface {
	CreateOrGetRoom(ctx context.Context, patientID int, patientName string, category string) (models.Room, error)
	GetRoom(ctx context.Context, roomID int) (models.Room, error)
	IsParticipant(ctx context.Context, roomID int, userID int, role models.Role) (bool, error)
	ListRoomSummaries(ctx context.Context, viewerRole models.Role, viewerID int, page int, pageSize int) ([]models.RoomSummary, error)
	SearchRooms(ctx context.Context, viewerRole models.Role, viewerID int, query string) ([]models.RoomSummary, error)
}

// RoomRepo is a sqlx implementation of RoomRepository.
type RoomRepo struct {
	db *sqlx.DB
}

// NewRoomRepo constructs a RoomRepo.
func NewRoomRepo(db *sqlx.DB) *RoomRepo {
	return &RoomRepo{db: db}
}

// CreateOrGetRoom returns the patient's room for a category, creating it on
// first contact.
func (r *RoomRepo) CreateOrGetRoom(ctx context.Context, patientID int, patientName string, category string) (models.Room, error) {
	var room models.Room
	query := `SELECT id, category, patient_id, patient_name, created_at FROM rooms WHERE patient_id=$1 AND category=$2`
	err := r.db.GetContext(ctx, &room, query, patientID, category)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, err
	}

	err = r.db.QueryRowxContext(ctx, `INSERT INTO rooms (category, patient_id, patient_name) VALUES ($1, $2, $3)
        RETURNING id, category, patient_id, patient_name, created_at`, category, patientID, patientName).
		Scan(&room.ID, &room.Category, &room.PatientID, &room.PatientName, &room.CreatedAt)
	return room, err
}

// GetRoom fetches a room by id.
func (r *RoomRepo) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	var room models.Room
	err := r.db.GetContext(ctx, &room, `SELECT id, category, patient_id, patient_name, created_at FROM rooms WHERE id=$1`, roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Room{}, ErrRoomNotFound
	}
	return room, err
}

// IsParticipant checks whether a user may view the room. Admins see every
// room; patients only their own.
func (r *RoomRepo) IsParticipant(ctx context.Context, roomID int, userID int, role models.Role) (bool, error) {
	if role == models.RoleAdmin {
		var exists bool
		err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM rooms WHERE id=$1)`, roomID)
		return exists, err
	}
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM rooms WHERE id=$1 AND patient_id=$2)`, roomID, userID)
	return exists, err
}

// summaryQuery annotates each room with its latest message time and the
// viewer's derived unread count. Unread counts only messages authored by the
// other role strictly after the viewer's watermark; rooms without a watermark
// report 0 unread (tracking not yet initialized reads the same as fully read).
const summaryQuery = `
    SELECT r.id, r.category, r.patient_id, r.patient_name, r.created_at,
        (SELECT MAX(m.created_at) FROM messages m WHERE m.room_id = r.id) AS last_message_at,
        (SELECT COUNT(*) FROM messages m
            WHERE m.room_id = r.id
            AND m.sender_role <> $1
            AND m.created_at > COALESCE(
                (SELECT w.last_read_at FROM read_watermarks w WHERE w.room_id = r.id AND w.role = $1),
                NOW())
        ) AS unread_count
    FROM rooms r`

// ListRoomSummaries returns rooms ordered by most recent activity.
func (r *RoomRepo) ListRoomSummaries(ctx context.Context, viewerRole models.Role, viewerID int, page int, pageSize int) ([]models.RoomSummary, error) {
	if page < 1 {
		page = 1
	}
	query := summaryQuery + `
        WHERE ($2 = 'admin' OR r.patient_id = $3)
        ORDER BY COALESCE((SELECT MAX(m.created_at) FROM messages m WHERE m.room_id = r.id), r.created_at) DESC
        LIMIT $4 OFFSET $5`

	summaries := []models.RoomSummary{}
	err := r.db.SelectContext(ctx, &summaries, query, string(viewerRole), string(viewerRole), viewerID, pageSize, (page-1)*pageSize)
	return summaries, err
}

// SearchRooms filters rooms by patient display name, unpaginated.
func (r *RoomRepo) SearchRooms(ctx context.Context, viewerRole models.Role, viewerID int, query string) ([]models.RoomSummary, error) {
	q := summaryQuery + `
        WHERE ($2 = 'admin' OR r.patient_id = $3)
        AND r.patient_name ILIKE '%' || $4 || '%'
        ORDER BY COALESCE((SELECT MAX(m.created_at) FROM messages m WHERE m.room_id = r.id), r.created_at) DESC`

	summaries := []models.RoomSummary{}
	err := r.db.SelectContext(ctx, &summaries, q, string(viewerRole), string(viewerRole), viewerID, query)
	return summaries, err
}
