package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"clinic-chat-service/internal/cache"
	"clinic-chat-service/internal/middleware"
	"clinic-chat-service/internal/models"
	"clinic-chat-service/internal/observability"
	"clinic-chat-service/internal/repositories"
)

const defaultRoomPageSize = 10

// RoomHandler manages room listing, search and read tracking.
type RoomHandler struct {
	roomRepo      repositories.RoomRepository
	messageRepo   repositories.MessageRepository
	watermarkRepo repositories.WatermarkRepository
	unreadCache   *cache.UnreadCache
}

// NewRoomHandler builds a RoomHandler.
func NewRoomHandler(roomRepo repositories.RoomRepository, messageRepo repositories.MessageRepository, watermarkRepo repositories.WatermarkRepository, unreadCache *cache.UnreadCache) *RoomHandler {
	return &RoomHandler{
		roomRepo:      roomRepo,
		messageRepo:   messageRepo,
		watermarkRepo: watermarkRepo,
		unreadCache:   unreadCache,
	}
}

// ListRooms returns a page of room summaries ordered by latest activity,
// annotated with the viewer's unread counts.
func (h *RoomHandler) ListRooms(c *gin.Context) {
	userID := c.GetInt("userID")
	role := middleware.ViewerRole(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultRoomPageSize)))
	if pageSize < 1 || pageSize > 100 {
		pageSize = defaultRoomPageSize
	}

	summaries, err := h.roomRepo.ListRoomSummaries(c.Request.Context(), role, userID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rooms"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": summaries, "page": page, "page_size": pageSize})
}

// SearchRooms filters rooms by patient display name. Search mode bypasses
// pagination and returns the flat filtered set.
func (h *RoomHandler) SearchRooms(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query"})
		return
	}

	userID := c.GetInt("userID")
	role := middleware.ViewerRole(c)

	summaries, err := h.roomRepo.SearchRooms(c.Request.Context(), role, userID, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search rooms"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": summaries})
}

// StartRoom creates or returns the patient's room for a category. Only a
// patient initiates contact.
func (h *RoomHandler) StartRoom(c *gin.Context) {
	role := middleware.ViewerRole(c)
	if role != models.RolePatient {
		c.JSON(http.StatusForbidden, gin.H{"error": "only patients start rooms"})
		return
	}

	var req struct {
		Category    string `json:"category" binding:"required"`
		PatientName string `json:"patient_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	room, err := h.roomRepo.CreateOrGetRoom(c.Request.Context(), userID, req.PatientName, req.Category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create room"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"room_id": room.ID})
}

// MarkRoomRead pins the viewer's watermark to the newest message currently in
// the room. The watermark is tied to content, not wall-clock time, so a
// message inserted after this call still counts as unread.
func (h *RoomHandler) MarkRoomRead(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	role := middleware.ViewerRole(c)

	member, err := h.roomRepo.IsParticipant(c.Request.Context(), roomID, userID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	latest, err := h.messageRepo.LatestMessageTime(c.Request.Context(), roomID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load latest message"})
		return
	}
	if latest == nil {
		// Nothing to read yet; leave the watermark unset.
		c.Status(http.StatusNoContent)
		return
	}

	if err := h.watermarkRepo.SetWatermark(c.Request.Context(), roomID, role, *latest); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update watermark"})
		return
	}

	h.unreadCache.Invalidate(c.Request.Context(), roomID)
	c.JSON(http.StatusOK, gin.H{"last_read_at": latest})
}

// GetUnread returns the viewer's derived unread count for a room.
func (h *RoomHandler) GetUnread(c *gin.Context) {
	roomID, ok := roomIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	role := middleware.ViewerRole(c)

	member, err := h.roomRepo.IsParticipant(c.Request.Context(), roomID, userID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a room member"})
		return
	}

	if count, hit := h.unreadCache.Get(c.Request.Context(), roomID, role); hit {
		observability.IncUnreadCacheLookup("hit")
		c.JSON(http.StatusOK, gin.H{"unread": count})
		return
	}
	if h.unreadCache != nil {
		observability.IncUnreadCacheLookup("miss")
	}

	watermark, err := h.watermarkRepo.GetWatermark(c.Request.Context(), roomID, role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load watermark"})
		return
	}
	if watermark == nil {
		// A room with no watermark reads as fully read. Known quirk: this
		// conflates "never opened" with "caught up".
		c.JSON(http.StatusOK, gin.H{"unread": 0})
		return
	}

	count, err := h.watermarkRepo.CountUnread(c.Request.Context(), roomID, role, *watermark)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread"})
		return
	}

	h.unreadCache.Set(c.Request.Context(), roomID, role, count)
	c.JSON(http.StatusOK, gin.H{"unread": count})
}
