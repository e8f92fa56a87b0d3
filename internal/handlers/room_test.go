package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"clinic-chat-service/internal/mocks"
	"clinic-chat-service/internal/models"
)

func setupRoomRouter(handler *RoomHandler, role models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Set("role", string(role))
		c.Next()
	})
	r.GET("/rooms", handler.ListRooms)
	r.GET("/rooms/search", handler.SearchRooms)
	r.POST("/rooms/start", handler.StartRoom)
	r.POST("/rooms/:room_id/read", handler.MarkRoomRead)
	r.GET("/rooms/:room_id/unread", handler.GetUnread)
	return r
}

func TestListRoomsSuccess(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil, nil, nil)
	router := setupRoomRouter(handler, models.RoleAdmin)

	roomRepo.On("ListRoomSummaries", mock.Anything, models.RoleAdmin, 1, 1, 10).
		Return([]models.RoomSummary{{RoomID: 3, PatientName: "Kim", UnreadCount: 2}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["rooms"], 1)

	roomRepo.AssertExpectations(t)
}

func TestListRoomsRepoError(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil, nil, nil)
	router := setupRoomRouter(handler, models.RoleAdmin)

	roomRepo.On("ListRoomSummaries", mock.Anything, models.RoleAdmin, 1, 1, 10).
		Return(([]models.RoomSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestSearchRoomsBypassesPagination(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil, nil, nil)
	router := setupRoomRouter(handler, models.RoleAdmin)

	roomRepo.On("SearchRooms", mock.Anything, models.RoleAdmin, 1, "kim").
		Return([]models.RoomSummary{{RoomID: 1}, {RoomID: 2}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/search?q=kim", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestSearchRoomsMissingQuery(t *testing.T) {
	handler := NewRoomHandler(new(mocks.RoomRepositoryMock), nil, nil, nil)
	router := setupRoomRouter(handler, models.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/rooms/search", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartRoomAsPatient(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil, nil, nil)
	router := setupRoomRouter(handler, models.RolePatient)

	roomRepo.On("CreateOrGetRoom", mock.Anything, 1, "Kim", "implant").
		Return(models.Room{ID: 10}, nil).Once()

	body := bytes.NewBufferString(`{"category":"implant","patient_name":"Kim"}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms/start", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	roomRepo.AssertExpectations(t)
}

func TestStartRoomRejectsAdmin(t *testing.T) {
	handler := NewRoomHandler(new(mocks.RoomRepositoryMock), nil, nil, nil)
	router := setupRoomRouter(handler, models.RoleAdmin)

	body := bytes.NewBufferString(`{"category":"implant","patient_name":"Kim"}`)
	req := httptest.NewRequest(http.MethodPost, "/rooms/start", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMarkRoomReadPinsWatermarkToLatestMessage(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	watermarkRepo := new(mocks.WatermarkRepositoryMock)
	handler := NewRoomHandler(roomRepo, messageRepo, watermarkRepo, nil)
	router := setupRoomRouter(handler, models.RoleAdmin)

	latest := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	roomRepo.On("IsParticipant", mock.Anything, 5, 1, models.RoleAdmin).Return(true, nil).Once()
	messageRepo.On("LatestMessageTime", mock.Anything, 5).Return(&latest, nil).Once()
	watermarkRepo.On("SetWatermark", mock.Anything, 5, models.RoleAdmin, latest).Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	roomRepo.AssertExpectations(t)
	messageRepo.AssertExpectations(t)
	watermarkRepo.AssertExpectations(t)
}

func TestMarkRoomReadEmptyRoomLeavesWatermarkUnset(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	messageRepo := new(mocks.MessageRepositoryMock)
	watermarkRepo := new(mocks.WatermarkRepositoryMock)
	handler := NewRoomHandler(roomRepo, messageRepo, watermarkRepo, nil)
	router := setupRoomRouter(handler, models.RoleAdmin)

	roomRepo.On("IsParticipant", mock.Anything, 5, 1, models.RoleAdmin).Return(true, nil).Once()
	messageRepo.On("LatestMessageTime", mock.Anything, 5).Return((*time.Time)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/rooms/5/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	watermarkRepo.AssertNotCalled(t, "SetWatermark", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetUnreadNoWatermarkReturnsZero(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	watermarkRepo := new(mocks.WatermarkRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil, watermarkRepo, nil)
	router := setupRoomRouter(handler, models.RolePatient)

	roomRepo.On("IsParticipant", mock.Anything, 9, 1, models.RolePatient).Return(true, nil).Once()
	watermarkRepo.On("GetWatermark", mock.Anything, 9, models.RolePatient).Return((*time.Time)(nil), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/9/unread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 0, resp["unread"])
	watermarkRepo.AssertNotCalled(t, "CountUnread", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetUnreadCountsFromWatermark(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	watermarkRepo := new(mocks.WatermarkRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil, watermarkRepo, nil)
	router := setupRoomRouter(handler, models.RoleAdmin)

	watermark := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	roomRepo.On("IsParticipant", mock.Anything, 9, 1, models.RoleAdmin).Return(true, nil).Once()
	watermarkRepo.On("GetWatermark", mock.Anything, 9, models.RoleAdmin).Return(&watermark, nil).Once()
	watermarkRepo.On("CountUnread", mock.Anything, 9, models.RoleAdmin, watermark).Return(3, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/9/unread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]int
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 3, resp["unread"])
	watermarkRepo.AssertExpectations(t)
}

func unreadCacheLookups(t *testing.T, outcome string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "clinicchat_unread_cache_lookups_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestGetUnreadDisabledCacheRecordsNoLookup(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	watermarkRepo := new(mocks.WatermarkRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil, watermarkRepo, nil)
	router := setupRoomRouter(handler, models.RolePatient)

	roomRepo.On("IsParticipant", mock.Anything, 9, 1, models.RolePatient).Return(true, nil).Once()
	watermarkRepo.On("GetWatermark", mock.Anything, 9, models.RolePatient).Return((*time.Time)(nil), nil).Once()

	missesBefore := unreadCacheLookups(t, "miss")
	hitsBefore := unreadCacheLookups(t, "hit")

	req := httptest.NewRequest(http.MethodGet, "/rooms/9/unread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, missesBefore, unreadCacheLookups(t, "miss"))
	assert.Equal(t, hitsBefore, unreadCacheLookups(t, "hit"))
}

func TestGetUnreadNotMember(t *testing.T) {
	roomRepo := new(mocks.RoomRepositoryMock)
	handler := NewRoomHandler(roomRepo, nil, new(mocks.WatermarkRepositoryMock), nil)
	router := setupRoomRouter(handler, models.RolePatient)

	roomRepo.On("IsParticipant", mock.Anything, 9, 1, models.RolePatient).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/rooms/9/unread", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
