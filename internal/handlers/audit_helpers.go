package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"social-service/internal/middleware"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userIDFromContext(c *gin.Context) *int {
	userID, ok := middleware.UserID(c)
	if !ok || userID == 0 {
		return nil
	}
	return &userID
}

// audit records a state change made by the caller. A nil emitter disables auditing.
func audit(c *gin.Context, emitter Auditor, text string) {
	if emitter == nil {
		return
	}
	emitter.Emit(c.Request.Context(), "INFO", text, requestIDFromContext(c), userIDFromContext(c))
}
