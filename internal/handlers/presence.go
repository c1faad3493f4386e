package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-service/internal/repositories"
)

// PresenceHandler exposes stored presence.
type PresenceHandler struct {
	presence repositories.PresenceRepository
	logger   *zap.Logger
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(presence repositories.PresenceRepository, logger *zap.Logger) *PresenceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PresenceHandler{presence: presence, logger: logger}
}

// GetPresence returns whether :account_id is online and when it was last seen.
func (h *PresenceHandler) GetPresence(c *gin.Context) {
	accountID, ok := pathID(c, "account_id")
	if !ok {
		return
	}
	presence, err := h.presence.GetPresence(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, h.logger, err, "failed to load presence")
		return
	}
	c.JSON(http.StatusOK, presence)
}
