package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// NotificationType names the domain event behind a notification.
type NotificationType string

const (
	NotificationMessage NotificationType = "message"
	NotificationFollow  NotificationType = "follow"
	NotificationLike    NotificationType = "like"
	NotificationOrder   NotificationType = "order"
	NotificationSystem  NotificationType = "system"
)

// Notification is a user-facing notification. A nil RecipientID is a global broadcast
// visible to every account.
type Notification struct {
	ID          int              `db:"id" json:"id"`
	RecipientID *int             `db:"recipient_id" json:"recipient_id"`
	ActorID     int              `db:"actor_id" json:"actor_id"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Body        string           `db:"body" json:"body"`
	Payload     types.JSONText   `db:"payload" json:"payload,omitempty"`
	Read        bool             `db:"read" json:"read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// IsGlobal reports whether the notification targets every account.
func (n Notification) IsGlobal() bool {
	return n.RecipientID == nil
}

// DeviceToken is a push registration of one device.
type DeviceToken struct {
	AccountID int    `db:"account_id" json:"account_id"`
	Token     string `db:"token" json:"token"`
	Platform  string `db:"platform" json:"platform"`
}
