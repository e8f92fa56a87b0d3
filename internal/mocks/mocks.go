package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"clinic-chat-service/internal/models"
)

type RoomRepositoryMock struct {
	mock.Mock
}

func (m *RoomRepositoryMock) CreateOrGetRoom(ctx context.Context, patientID int, patientName string, category string) (models.Room, error) {
	args := m.Called(ctx, patientID, patientName, category)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) GetRoom(ctx context.Context, roomID int) (models.Room, error) {
	args := m.Called(ctx, roomID)
	var room models.Room
	if val := args.Get(0); val != nil {
		room = val.(models.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepositoryMock) IsParticipant(ctx context.Context, roomID int, userID int, role models.Role) (bool, error) {
	args := m.Called(ctx, roomID, userID, role)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepositoryMock) ListRoomSummaries(ctx context.Context, viewerRole models.Role, viewerID int, page int, pageSize int) ([]models.RoomSummary, error) {
	args := m.Called(ctx, viewerRole, viewerID, page, pageSize)
	var list []models.RoomSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.RoomSummary)
	}
	return list, args.Error(1)
}

func (m *RoomRepositoryMock) SearchRooms(ctx context.Context, viewerRole models.Role, viewerID int, query string) ([]models.RoomSummary, error) {
	args := m.Called(ctx, viewerRole, viewerID, query)
	var list []models.RoomSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.RoomSummary)
	}
	return list, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, roomID int, senderID int, senderRole models.Role, content string) (models.Message, error) {
	args := m.Called(ctx, roomID, senderID, senderRole, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessagePage(ctx context.Context, roomID int, before *time.Time, limit int) ([]models.Message, error) {
	args := m.Called(ctx, roomID, before, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) LatestMessageTime(ctx context.Context, roomID int) (*time.Time, error) {
	args := m.Called(ctx, roomID)
	var latest *time.Time
	if val := args.Get(0); val != nil {
		latest = val.(*time.Time)
	}
	return latest, args.Error(1)
}

type WatermarkRepositoryMock struct {
	mock.Mock
}

func (m *WatermarkRepositoryMock) SetWatermark(ctx context.Context, roomID int, role models.Role, lastReadAt time.Time) error {
	args := m.Called(ctx, roomID, role, lastReadAt)
	return args.Error(0)
}

func (m *WatermarkRepositoryMock) GetWatermark(ctx context.Context, roomID int, role models.Role) (*time.Time, error) {
	args := m.Called(ctx, roomID, role)
	var watermark *time.Time
	if val := args.Get(0); val != nil {
		watermark = val.(*time.Time)
	}
	return watermark, args.Error(1)
}

func (m *WatermarkRepositoryMock) CountUnread(ctx context.Context, roomID int, viewerRole models.Role, since time.Time) (int, error) {
	args := m.Called(ctx, roomID, viewerRole, since)
	return args.Int(0), args.Error(1)
}
