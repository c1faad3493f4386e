package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"social-service/internal/handlers"
	"social-service/internal/middleware"
	"social-service/internal/observability"
	"social-service/internal/ws"
)

var (
	errMissingTokenValidator = errors.New("token validator dependency required")
	errMissingHandlers       = errors.New("http handler dependencies required")
)

// Dependencies wires the HTTP surface.
type Dependencies struct {
	ServiceName    string
	AllowedOrigins []string
	Tokens         middleware.TokenValidator
	Feed           *handlers.FeedHandler
	Follows        *handlers.FollowHandler
	Chats          *handlers.ChatHandler
	Notifications  *handlers.NotificationHandler
	Presence       *handlers.PresenceHandler
	Sockets        *ws.Handler
	Auditor        handlers.Auditor
	EnableDebug    bool
	Ready          func() bool
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin engine serving the REST and websocket routes.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Tokens == nil {
		return nil, errMissingTokenValidator
	}
	if deps.Feed == nil || deps.Follows == nil || deps.Chats == nil || deps.Notifications == nil || deps.Presence == nil || deps.Sockets == nil {
		return nil, errMissingHandlers
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", observability.RequestIDHeader, "X-Device-Id"},
		MaxAge:       12 * time.Hour,
	}))
	router.Use(otelgin.Middleware(deps.ServiceName))
	router.Use(observability.RequestIDMiddleware())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		if deps.Ready != nil && !deps.Ready() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.AuthMiddleware(deps.Tokens)
	optionalAuth := middleware.OptionalAuth(deps.Tokens)

	// Socket routes must not pass through gzip; only the feed is compressed.
	router.GET("/feed", gzip.Gzip(gzip.DefaultCompression), optionalAuth, deps.Feed.GetFeed)

	protected := router.Group("/")
	protected.Use(auth)
	protected.POST("/posts/:post_id/hide", deps.Feed.HidePost)

	protected.POST("/follows/:account_id", deps.Follows.Follow)
	protected.DELETE("/follows/:account_id", deps.Follows.Unfollow)
	protected.GET("/accounts/:account_id/following", deps.Follows.ListFollowing)
	protected.GET("/accounts/:account_id/followers", deps.Follows.ListFollowers)

	protected.GET("/chats", deps.Chats.ListChats)
	protected.POST("/chats/start", deps.Chats.StartChat)
	protected.GET("/chats/:chat_id/messages", deps.Chats.GetChatMessages)
	protected.POST("/chats/:chat_id/messages", deps.Chats.PostChatMessage)
	protected.PATCH("/chats/:chat_id/messages/:message_id", deps.Chats.EditMessage)
	protected.DELETE("/chats/:chat_id/messages/:message_id", deps.Chats.DeleteMessage)
	protected.POST("/messages/:message_id/read", deps.Chats.MarkRead)

	protected.GET("/notifications", deps.Notifications.List)
	protected.POST("/notifications/:notification_id/read", deps.Notifications.MarkRead)
	protected.POST("/notifications/broadcast", deps.Notifications.Broadcast)
	protected.POST("/devices", deps.Notifications.RegisterDevice)

	protected.GET("/presence/:account_id", deps.Presence.GetPresence)

	protected.GET("/ws/chat/:user_id", deps.Sockets.ServeChat)
	protected.GET("/ws/notifications/:user_id", deps.Sockets.ServeNotifications)

	handlers.RegisterDebugRoutes(router, deps.Auditor, deps.EnableDebug)

	logger.Debug("http routes registered", zap.Int("routes", len(router.Routes())))
	return router, nil
}
