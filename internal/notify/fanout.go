package notify

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"social-service/internal/models"
	"social-service/internal/observability"
	"social-service/internal/repositories"
)

// Router delivers outbound events to a routing group.
type Router interface {
	SendToGroup(ctx context.Context, group string, event models.OutboundEvent) error
}

// PushResult counts per-device push outcomes.
type PushResult struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// Pusher delivers a notification to an account's registered devices.
type Pusher interface {
	Push(ctx context.Context, accountID int, title, body string, data map[string]string) (PushResult, error)
}

// LocalPresence answers from this instance's connections without a store round trip.
type LocalPresence interface {
	IsOnline(accountID int) bool
}

// Fanout persists notifications and delivers them over the notification channel and push.
type Fanout struct {
	notifications repositories.NotificationRepository
	presence      repositories.PresenceRepository
	router        Router
	pusher        Pusher
	local         LocalPresence
	logger        *zap.Logger
}

// NewFanout constructs a Fanout. A nil pusher disables push delivery.
func NewFanout(notifications repositories.NotificationRepository, presence repositories.PresenceRepository, router Router, pusher Pusher, logger *zap.Logger) *Fanout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fanout{
		notifications: notifications,
		presence:      presence,
		router:        router,
		pusher:        pusher,
		logger:        logger,
	}
}

// UseLocalPresence lets push skip the presence lookup for accounts connected to this instance.
func (f *Fanout) UseLocalPresence(local LocalPresence) {
	f.local = local
}

// Notify stores n, sends it to the recipient's notification connections (or to everyone for
// a global notification) and pushes it to the recipient's devices when they are offline.
// Delivery and push failures are logged, never returned.
func (f *Fanout) Notify(ctx context.Context, n models.Notification) (models.Notification, error) {
	created, err := f.notifications.CreateNotification(ctx, n)
	if err != nil {
		return models.Notification{}, err
	}
	observability.IncNotification(string(created.Type))

	var event models.OutboundEvent = models.SystemNotification{Notification: created}
	if created.Type == models.NotificationMessage {
		event = models.ChatNotification{Notification: created}
	}

	group := models.GlobalNotificationGroup
	if !created.IsGlobal() {
		group = models.UserGroup(*created.RecipientID, models.ChannelNotifications)
	}
	if err := f.router.SendToGroup(ctx, group, event); err != nil {
		f.logger.Warn("notification delivery failed", zap.Int("notification_id", created.ID), zap.String("group", group), zap.Error(err))
	}

	if !created.IsGlobal() {
		f.push(ctx, created)
	}
	return created, nil
}

func (f *Fanout) push(ctx context.Context, n models.Notification) {
	if f.pusher == nil {
		return
	}
	recipientID := *n.RecipientID
	if f.local != nil && f.local.IsOnline(recipientID) {
		return
	}

	presence, err := f.presence.GetPresence(ctx, recipientID)
	if err != nil {
		f.logger.Warn("presence lookup failed, pushing anyway", zap.Int("user_id", recipientID), zap.Error(err))
	} else if presence.IsOnline {
		return
	}

	data := map[string]string{
		"notification_id": strconv.Itoa(n.ID),
		"type":            string(n.Type),
		"actor_id":        strconv.Itoa(n.ActorID),
	}
	if len(n.Payload) > 0 {
		data["payload"] = n.Payload.String()
	}

	result, err := f.pusher.Push(ctx, recipientID, n.Title, n.Body, data)
	observability.AddPushResults(result.Success, result.Failure)
	if err != nil {
		f.logger.Warn("push failed", zap.Int("user_id", recipientID), zap.Int("notification_id", n.ID), zap.Error(err))
		return
	}
	if result.Failure > 0 {
		f.logger.Info("push partially failed", zap.Int("user_id", recipientID),
			zap.Int("success", result.Success), zap.Int("failure", result.Failure))
	}
}
