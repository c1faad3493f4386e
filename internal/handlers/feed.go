package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"social-service/internal/feed"
	"social-service/internal/middleware"
)

// FeedHandler serves the ranked feed.
type FeedHandler struct {
	feed    *feed.Service
	auditor Auditor
	logger  *zap.Logger
}

// NewFeedHandler builds a FeedHandler.
func NewFeedHandler(feedService *feed.Service, auditor Auditor, logger *zap.Logger) *FeedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedHandler{feed: feedService, auditor: auditor, logger: logger}
}

// GetFeed returns one page of the feed. Anonymous callers get the chronological feed.
func (h *FeedHandler) GetFeed(c *gin.Context) {
	var viewerID *int
	if userID, ok := middleware.UserID(c); ok {
		viewerID = &userID
	}

	page := h.feed.PageFor(queryInt(c, "page"), queryInt(c, "page_size"), c.Query("device"))
	result, err := h.feed.Feed(c.Request.Context(), viewerID, page)
	if err != nil {
		respondError(c, h.logger, err, "failed to load feed")
		return
	}

	debugTiers, _ := strconv.ParseBool(c.Query("debug_tiers"))
	c.JSON(http.StatusOK, gin.H{
		"items":     result.ToItems(debugTiers && viewerID != nil),
		"page":      result.Page,
		"page_size": result.PageSize,
		"has_more":  result.HasMore,
	})
}

// HidePost removes a post from the caller's feed.
func (h *FeedHandler) HidePost(c *gin.Context) {
	postID, ok := pathID(c, "post_id")
	if !ok {
		return
	}
	userID := c.GetInt(middleware.UserIDKey)

	if err := h.feed.HidePost(c.Request.Context(), userID, postID); err != nil {
		respondError(c, h.logger, err, "failed to hide post")
		return
	}
	audit(c, h.auditor, "post hidden: "+strconv.Itoa(postID))
	c.Status(http.StatusNoContent)
}
