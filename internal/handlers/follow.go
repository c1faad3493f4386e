package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-service/internal/feed"
	"social-service/internal/middleware"
)

// FollowHandler manages follow edges.
type FollowHandler struct {
	graph   *feed.Graph
	auditor Auditor
	logger  *zap.Logger
}

// NewFollowHandler builds a FollowHandler.
func NewFollowHandler(graph *feed.Graph, auditor Auditor, logger *zap.Logger) *FollowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FollowHandler{graph: graph, auditor: auditor, logger: logger}
}

// Follow makes the caller follow :account_id. Repeating it is a no-op.
func (h *FollowHandler) Follow(c *gin.Context) {
	targetID, ok := pathID(c, "account_id")
	if !ok {
		return
	}
	userID := c.GetInt(middleware.UserIDKey)

	created, err := h.graph.Follow(c.Request.Context(), userID, targetID)
	if err != nil {
		respondError(c, h.logger, err, "failed to follow")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
		audit(c, h.auditor, "follow created: "+strconv.Itoa(targetID))
	}
	c.JSON(status, gin.H{"follower_id": userID, "following_id": targetID, "created": created})
}

// Unfollow removes the caller's edge to :account_id.
func (h *FollowHandler) Unfollow(c *gin.Context) {
	targetID, ok := pathID(c, "account_id")
	if !ok {
		return
	}
	userID := c.GetInt(middleware.UserIDKey)

	if err := h.graph.Unfollow(c.Request.Context(), userID, targetID); err != nil {
		respondError(c, h.logger, err, "failed to unfollow")
		return
	}
	audit(c, h.auditor, "follow removed: "+strconv.Itoa(targetID))
	c.Status(http.StatusNoContent)
}

// ListFollowing returns the ids :account_id follows.
func (h *FollowHandler) ListFollowing(c *gin.Context) {
	accountID, ok := pathID(c, "account_id")
	if !ok {
		return
	}
	offset, limit := queryInt(c, "offset"), queryInt(c, "limit")
	ids, err := h.graph.Following(c.Request.Context(), accountID, offset, limit)
	if err != nil {
		respondError(c, h.logger, err, "failed to load following")
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": accountID, "following": nonNil(ids)})
}

// ListFollowers returns the ids following :account_id.
func (h *FollowHandler) ListFollowers(c *gin.Context) {
	accountID, ok := pathID(c, "account_id")
	if !ok {
		return
	}
	offset, limit := queryInt(c, "offset"), queryInt(c, "limit")
	ids, err := h.graph.Followers(c.Request.Context(), accountID, offset, limit)
	if err != nil {
		respondError(c, h.logger, err, "failed to load followers")
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": accountID, "followers": nonNil(ids)})
}

func nonNil(ids []int) []int {
	if ids == nil {
		return []int{}
	}
	return ids
}
