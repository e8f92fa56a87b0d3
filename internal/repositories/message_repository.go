package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"clinic-chat-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// DefaultPageSize bounds one page of room history.
const DefaultPageSize = 20

// MessageRepository defines interactions for room messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, roomID int, senderID int, senderRole models.Role, content string) (models.Message, error)
	GetMessagePage(ctx context.Context, roomID int, before *time.Time, limit int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	LatestMessageTime(ctx context.Context, roomID int) (*time.Time, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores a message. The database assigns id and created_at, so
// timestamps are non-decreasing in insertion order per room.
func (r *MessageRepo) CreateMessage(ctx context.Context, roomID int, senderID int, senderRole models.Role, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (room_id, sender_id, sender_role, content) VALUES ($1, $2, $3, $4)
        RETURNING id, room_id, sender_id, sender_role, content, created_at`, roomID, senderID, string(senderRole), content).
		Scan(&msg.ID, &msg.RoomID, &msg.SenderID, &msg.SenderRole, &msg.Content, &msg.CreatedAt)
	return msg, err
}

// GetMessagePage returns up to limit messages strictly older than the cursor,
// newest first. A nil cursor returns the most recent page. A short page means
// no older messages remain.
func (r *MessageRepo) GetMessagePage(ctx context.Context, roomID int, before *time.Time, limit int) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}

	msgs := []models.Message{}
	if before == nil {
		err := r.db.SelectContext(ctx, &msgs, `SELECT id, room_id, sender_id, sender_role, content, created_at
            FROM messages WHERE room_id=$1
            ORDER BY created_at DESC, id DESC LIMIT $2`, roomID, limit)
		return msgs, err
	}

	err := r.db.SelectContext(ctx, &msgs, `SELECT id, room_id, sender_id, sender_role, content, created_at
        FROM messages WHERE room_id=$1 AND created_at < $2
        ORDER BY created_at DESC, id DESC LIMIT $3`, roomID, *before, limit)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT id, room_id, sender_id, sender_role, content, created_at FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// LatestMessageTime returns the newest message timestamp in a room, or nil
// when the room has no messages yet.
func (r *MessageRepo) LatestMessageTime(ctx context.Context, roomID int) (*time.Time, error) {
	var latest sql.NullTime
	err := r.db.GetContext(ctx, &latest, `SELECT MAX(created_at) FROM messages WHERE room_id=$1`, roomID)
	if err != nil {
		return nil, err
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}
