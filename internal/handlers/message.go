package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"clinic-chat-service/internal/cache"
	"clinic-chat-service/internal/middleware"
	"clinic-chat-service/internal/observability"
	"clinic-chat-service/internal/repositories"
	"clinic-chat-service/internal/telemetry"
	"clinic-chat-service/internal/ws"
)

// MessageHandler serves message history pages and message submission.
type MessageHandler struct {
	roomRepo    repositories.RoomRepository
	messageRepo repositories.MessageRepository
	unreadCache *cache.UnreadCache
	hub         *ws.Hub
	audit       *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(roomRepo repositories.RoomRepository, messageRepo repositories.MessageRepository, unreadCache *cache.UnreadCache, hub *ws.Hub, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		unreadCache: unreadCache,
		hub:         hub,
		audit:       audit,
	}
}

// GetMessagePage returns one page of room history, newest first, strictly
// older than the optional before cursor. A page shorter than page size means
// no older messages remain.
func (h *MessageHandler) GetMessagePage(c *gin.Context) {
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

	var before *time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before cursor"})
			return
		}
		before = &parsed
	}

	msgs, err := h.messageRepo.GetMessagePage(c.Request.Context(), roomID, before, repositories.DefaultPageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
		"has_more": len(msgs) == repositories.DefaultPageSize,
	})
}

// PostMessage stores a message and broadcasts it to room subscribers and
// lobby watchers.
func (h *MessageHandler) PostMessage(c *gin.Context) {
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

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.messageRepo.CreateMessage(c.Request.Context(), roomID, userID, role, req.Content)
	if err != nil {
		h.audit.Emit(c.Request.Context(), "ERROR", "message store failed", requestIDFromContext(c), userIDFromContext(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	observability.IncMessageStored()
	h.unreadCache.Invalidate(c.Request.Context(), roomID)
	h.hub.BroadcastMessage(msg)

	c.JSON(http.StatusCreated, msg)
}
