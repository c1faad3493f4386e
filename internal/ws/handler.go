package ws

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"social-service/internal/chat"
	"social-service/internal/middleware"
	"social-service/internal/models"
	"social-service/internal/observability"
	"social-service/internal/repositories"
)

const cleanupTimeout = 5 * time.Second

// EventHandler executes decoded chat frames on behalf of a connected account.
type EventHandler interface {
	HandleEvent(ctx context.Context, userID int, event models.InboundEvent) error
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Hub      *Hub
	Presence *PresenceRegistry
	Accounts repositories.AccountRepository
	Chat     EventHandler
	Settings Settings
	Logger   *zap.Logger
}

// Handler upgrades the per-account chat and notification channels.
type Handler struct {
	hub      *Hub
	presence *PresenceRegistry
	accounts repositories.AccountRepository
	chat     EventHandler
	settings Settings
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:      cfg.Hub,
		presence: cfg.Presence,
		accounts: cfg.Accounts,
		chat:     cfg.Chat,
		settings: cfg.Settings.withDefaults(),
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ServeChat handles GET /ws/chat/:user_id. Inbound frames are chat events.
func (h *Handler) ServeChat(c *gin.Context) {
	h.serve(c, models.ChannelChat)
}

// ServeNotifications handles GET /ws/notifications/:user_id. Inbound frames are ignored.
func (h *Handler) ServeNotifications(c *gin.Context) {
	h.serve(c, models.ChannelNotifications)
}

func (h *Handler) serve(c *gin.Context, channel models.Channel) {
	ctx, span := otel.Tracer("social-service/ws").Start(c.Request.Context(), "ws.handshake",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("ws.channel", string(channel))),
	)
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	pathUserID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil || pathUserID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
		return
	}
	span.SetAttributes(attribute.Int("user.id", userID))
	if userID != pathUserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "token does not match user"})
		return
	}
	if _, err := h.accounts.GetAccount(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
			return
		}
		h.logger.Error("resolve websocket account failed", zap.Int("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	info := newConnInfo(c.Request, userID, span.SpanContext().TraceID().String())
	client := newClient(conn, info, channel, h.settings, h.logger)
	groups := []string{models.UserGroup(userID, channel)}
	if channel == models.ChannelNotifications {
		groups = append(groups, models.GlobalNotificationGroup)
	}

	// The request context ends with the handler; connection work runs on its own.
	connCtx := context.WithoutCancel(ctx)
	for _, group := range groups {
		h.hub.Join(group, client)
	}
	h.presence.Connect(connCtx, userID)
	observability.IncWSActive(string(channel))
	publishWSEvent(connCtx, channel, "ws_connect", info, "")

	go client.writePump()
	go func() {
		reason := client.readPump(func(payload []byte) {
			if channel == models.ChannelChat {
				h.dispatch(connCtx, client, payload)
			}
		})
		client.Close()

		cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		for _, group := range groups {
			h.hub.Leave(group, client)
		}
		h.presence.Disconnect(cleanupCtx, userID)
		observability.DecWSActive(string(channel))
		if reason != "" {
			publishWSEvent(cleanupCtx, channel, "ws_error", info, reason)
		}
		publishWSEvent(cleanupCtx, channel, "ws_disconnect", info, reason)
	}()
}

// dispatch decodes one chat frame and runs it. Malformed and unknown frames are dropped;
// invalid or refused ones are answered with an error frame on this connection.
func (h *Handler) dispatch(ctx context.Context, client *Client, payload []byte) {
	event, err := models.DecodeInbound(payload)
	if err != nil {
		if errors.Is(err, models.ErrInvalidEvent) {
			client.reject(inboundType(payload), err)
			return
		}
		client.logger.Debug("dropping inbound frame", zap.Error(err))
		return
	}

	if err := h.chat.HandleEvent(ctx, client.UserID(), event); err != nil {
		if reason, ok := clientError(err); ok {
			client.reject(event.InboundType(), reason)
			return
		}
		client.logger.Error("chat event failed", zap.String("event", string(event.InboundType())), zap.Error(err))
		client.reject(event.InboundType(), errInternal)
	}
}

var errInternal = errors.New("internal error")

// clientError reports whether err is caused by the sender and safe to echo back.
func clientError(err error) (error, bool) {
	for _, known := range []error{
		chat.ErrForbidden,
		chat.ErrInvalidMessage,
		chat.ErrInvalidEdit,
		repositories.ErrChatNotFound,
		repositories.ErrMessageNotFound,
		models.ErrNotReceiver,
		models.ErrNotSender,
		models.ErrNotEditable,
		models.ErrEmptyContent,
	} {
		if errors.Is(err, known) {
			return err, true
		}
	}
	return nil, false
}

func inboundType(payload []byte) models.InboundType {
	ev, err := models.PeekInboundType(payload)
	if err != nil {
		return ""
	}
	return ev
}
