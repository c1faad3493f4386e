package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-service/internal/chat"
	"social-service/internal/middleware"
	"social-service/internal/models"
)

// ChatHandler manages private chat endpoints.
type ChatHandler struct {
	chat    *chat.Service
	auditor Auditor
	logger  *zap.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chatService *chat.Service, auditor Auditor, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{chat: chatService, auditor: auditor, logger: logger}
}

// ListChats returns the caller's rooms with their last message and counterpart presence.
func (h *ChatHandler) ListChats(c *gin.Context) {
	userID := c.GetInt(middleware.UserIDKey)

	rooms, err := h.chat.ListChats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "failed to load chats")
		return
	}
	if rooms == nil {
		rooms = []chat.RoomView{}
	}
	c.JSON(http.StatusOK, gin.H{"chats": rooms})
}

// StartChat creates or returns the room between the caller and friend_id.
func (h *ChatHandler) StartChat(c *gin.Context) {
	var req struct {
		FriendID int `json:"friend_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt(middleware.UserIDKey)
	room, err := h.chat.StartChat(c.Request.Context(), userID, req.FriendID)
	if err != nil {
		respondError(c, h.logger, err, "could not create chat")
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat_id": room.ID})
}

// GetChatMessages returns a page of history. Soft-deleted messages are included and flagged.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}

	userID := c.GetInt(middleware.UserIDKey)
	msgs, err := h.chat.Messages(c.Request.Context(), userID, chatID, queryInt(c, "before_id"), queryInt(c, "limit"))
	if err != nil {
		respondError(c, h.logger, err, "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostChatMessage sends a message through the same pipeline as the chat socket.
func (h *ChatHandler) PostChatMessage(c *gin.Context) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return
	}

	var req struct {
		Content string             `json:"content" binding:"required"`
		Type    models.MessageType `json:"message_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt(middleware.UserIDKey)
	msg, err := h.chat.SendMessage(c.Request.Context(), userID, chatID, req.Content, req.Type)
	if err != nil {
		respondError(c, h.logger, err, "failed to store message")
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// EditMessage replaces the content of the caller's own text message.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	chatID, messageID, ok := parseIDs(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt(middleware.UserIDKey)
	msg, err := h.chat.EditMessage(c.Request.Context(), userID, chatID, messageID, req.Content)
	if err != nil {
		respondError(c, h.logger, err, "could not edit message")
		return
	}
	audit(c, h.auditor, "message edited: "+strconv.Itoa(messageID))
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage soft-deletes the caller's own message.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	chatID, messageID, ok := parseIDs(c)
	if !ok {
		return
	}

	userID := c.GetInt(middleware.UserIDKey)
	if _, err := h.chat.DeleteMessage(c.Request.Context(), userID, chatID, messageID); err != nil {
		respondError(c, h.logger, err, "could not delete message")
		return
	}
	audit(c, h.auditor, "message deleted: "+strconv.Itoa(messageID))
	c.Status(http.StatusNoContent)
}

// MarkRead marks a received message read and notifies its sender once.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	messageID, ok := pathID(c, "message_id")
	if !ok {
		return
	}

	userID := c.GetInt(middleware.UserIDKey)
	msg, changed, err := h.chat.MarkRead(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, h.logger, err, "could not mark message read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "changed": changed})
}

func parseIDs(c *gin.Context) (int, int, bool) {
	chatID, ok := pathID(c, "chat_id")
	if !ok {
		return 0, 0, false
	}
	msgID, ok := pathID(c, "message_id")
	if !ok {
		return 0, 0, false
	}
	return chatID, msgID, true
}
