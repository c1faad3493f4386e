package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-service/internal/chat"
	"social-service/internal/feed"
	"social-service/internal/models"
	"social-service/internal/repositories"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{chat.ErrInvalidMessage, http.StatusBadRequest},
	{chat.ErrInvalidEdit, http.StatusBadRequest},
	{feed.ErrFollowSelf, http.StatusBadRequest},
	{repositories.ErrChatWithSelf, http.StatusBadRequest},
	{models.ErrEmptyContent, http.StatusBadRequest},
	{models.ErrNotEditable, http.StatusBadRequest},
	{chat.ErrForbidden, http.StatusForbidden},
	{models.ErrNotSender, http.StatusForbidden},
	{models.ErrNotReceiver, http.StatusForbidden},
	{repositories.ErrAccountNotFound, http.StatusNotFound},
	{repositories.ErrChatNotFound, http.StatusNotFound},
	{repositories.ErrMessageNotFound, http.StatusNotFound},
	{repositories.ErrPostNotFound, http.StatusNotFound},
	{repositories.ErrNotificationNotFound, http.StatusNotFound},
	{feed.ErrUnknownViewer, http.StatusNotFound},
}

// respondError maps domain errors to status codes. Anything unknown is logged and hidden
// behind a 500 with the given message.
func respondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	for _, known := range errorStatuses {
		if errors.Is(err, known.err) {
			c.JSON(known.status, gin.H{"error": err.Error()})
			return
		}
	}
	if logger != nil {
		logger.Error(fallback, zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
}

func pathID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + strings.ReplaceAll(name, "_", " ")})
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string) int {
	value, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return value
}
