package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"clinic-chat-service/internal/models"
)

// WatermarkRepository tracks per-role read progress in rooms.
type WatermarkRepository interface {
	SetWatermark(ctx context.Context, roomID int, role models.Role, lastReadAt time.Time) error
	GetWatermark(ctx context.Context, roomID int, role models.Role) (*time.Time, error)
	CountUnread(ctx context.Context, roomID int, viewerRole models.Role, since time.Time) (int, error)
}

// WatermarkRepo is a sqlx implementation of WatermarkRepository.
type WatermarkRepo struct {
	db *sqlx.DB
}

// NewWatermarkRepo constructs a WatermarkRepo.
func NewWatermarkRepo(db *sqlx.DB) *WatermarkRepo {
	return &WatermarkRepo{db: db}
}

// SetWatermark upserts the read watermark for a role in a room.
func (r *WatermarkRepo) SetWatermark(ctx context.Context, roomID int, role models.Role, lastReadAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO read_watermarks (room_id, role, last_read_at) VALUES ($1, $2, $3)
        ON CONFLICT (room_id, role) DO UPDATE SET last_read_at = EXCLUDED.last_read_at`, roomID, string(role), lastReadAt)
	return err
}

// GetWatermark returns the role's watermark, or nil when never set.
func (r *WatermarkRepo) GetWatermark(ctx context.Context, roomID int, role models.Role) (*time.Time, error) {
	var lastReadAt time.Time
	err := r.db.GetContext(ctx, &lastReadAt, `SELECT last_read_at FROM read_watermarks WHERE room_id=$1 AND role=$2`, roomID, string(role))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lastReadAt, nil
}

// CountUnread counts messages authored by the opposite role strictly newer
// than since.
func (r *WatermarkRepo) CountUnread(ctx context.Context, roomID int, viewerRole models.Role, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM messages
        WHERE room_id=$1 AND sender_role=$2 AND created_at > $3`, roomID, string(viewerRole.Opposite()), since)
	return count, err
}
