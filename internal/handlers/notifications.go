package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"social-service/internal/middleware"
	"social-service/internal/models"
	"social-service/internal/repositories"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// Notifier persists and fans out notifications.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) (models.Notification, error)
}

// NotificationHandler lists notifications and accepts admin broadcasts and device tokens.
type NotificationHandler struct {
	notifications repositories.NotificationRepository
	notifier      Notifier
	isAdmin       func(accountID int) bool
	auditor       Auditor
	logger        *zap.Logger
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(notifications repositories.NotificationRepository, notifier Notifier, isAdmin func(int) bool, auditor Auditor, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if isAdmin == nil {
		isAdmin = func(int) bool { return false }
	}
	return &NotificationHandler{
		notifications: notifications,
		notifier:      notifier,
		isAdmin:       isAdmin,
		auditor:       auditor,
		logger:        logger,
	}
}

// List returns the caller's notifications together with global ones, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetInt(middleware.UserIDKey)
	offset, limit := queryInt(c, "offset"), queryInt(c, "limit")
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	list, err := h.notifications.ListForAccount(c.Request.Context(), userID, offset, limit)
	if err != nil {
		respondError(c, h.logger, err, "failed to load notifications")
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkRead flags one of the caller's notifications read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID, ok := pathID(c, "notification_id")
	if !ok {
		return
	}
	userID := c.GetInt(middleware.UserIDKey)

	if err := h.notifications.MarkNotificationRead(c.Request.Context(), notificationID, userID); err != nil {
		respondError(c, h.logger, err, "failed to mark notification read")
		return
	}
	c.Status(http.StatusNoContent)
}

// Broadcast sends a system notification to one account or, without recipient_id, to all.
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	userID := c.GetInt(middleware.UserIDKey)
	if !h.isAdmin(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}

	var req struct {
		RecipientID *int           `json:"recipient_id"`
		Type        string         `json:"type"`
		Title       string         `json:"title" binding:"required"`
		Body        string         `json:"body"`
		Payload     types.JSONText `json:"payload"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	kind := models.NotificationType(strings.TrimSpace(req.Type))
	if kind == "" {
		kind = models.NotificationSystem
	}

	created, err := h.notifier.Notify(c.Request.Context(), models.Notification{
		RecipientID: req.RecipientID,
		ActorID:     userID,
		Type:        kind,
		Title:       req.Title,
		Body:        req.Body,
		Payload:     req.Payload,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to send notification")
		return
	}
	audit(c, h.auditor, "notification broadcast: "+strconv.Itoa(created.ID))
	c.JSON(http.StatusCreated, created)
}

// RegisterDevice stores a push token for the caller.
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Platform string `json:"platform"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt(middleware.UserIDKey)
	token := models.DeviceToken{AccountID: userID, Token: strings.TrimSpace(req.Token), Platform: req.Platform}
	if err := h.notifications.RegisterDeviceToken(c.Request.Context(), token); err != nil {
		respondError(c, h.logger, err, "failed to register device")
		return
	}
	c.Status(http.StatusNoContent)
}
