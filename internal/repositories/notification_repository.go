package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"social-service/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepository persists notifications and the device tokens used to push them.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	ListForAccount(ctx context.Context, accountID, offset, limit int) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, notificationID, accountID int) error
	DeviceTokens(ctx context.Context, accountID int) ([]models.DeviceToken, error)
	RegisterDeviceToken(ctx context.Context, token models.DeviceToken) error
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = `id, recipient_id, actor_id, type, title, body, payload, read, created_at`

// CreateNotification stores a notification. A nil recipient stores a global broadcast.
func (r *NotificationRepo) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	var created models.Notification
	var payload interface{}
	if len(n.Payload) > 0 {
		payload = n.Payload
	}
	err := r.db.GetContext(ctx, &created, `INSERT INTO notifications (recipient_id, actor_id, type, title, body, payload)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+notificationColumns,
		n.RecipientID, n.ActorID, n.Type, n.Title, n.Body, payload)
	return created, err
}

// ListForAccount returns the account's own notifications together with global ones, newest first.
// The read flag of a global notification is the account's own read mark.
func (r *NotificationRepo) ListForAccount(ctx context.Context, accountID, offset, limit int) ([]models.Notification, error) {
	result := []models.Notification{}
	err := r.db.SelectContext(ctx, &result, `SELECT n.id, n.recipient_id, n.actor_id, n.type, n.title, n.body, n.payload,
            CASE WHEN n.recipient_id IS NULL
                THEN EXISTS (SELECT 1 FROM notification_reads nr WHERE nr.notification_id = n.id AND nr.account_id = $1)
                ELSE n.read
            END AS read,
            n.created_at
        FROM notifications n
        WHERE n.recipient_id=$1 OR n.recipient_id IS NULL
        ORDER BY n.created_at DESC, n.id DESC OFFSET $2 LIMIT $3`, accountID, offset, limit)
	return result, err
}

// MarkNotificationRead marks one of the account's own notifications, or a global one for this
// account only, as read. Marking twice is not an error.
func (r *NotificationRepo) MarkNotificationRead(ctx context.Context, notificationID, accountID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id=$1 AND recipient_id=$2`, notificationID, accountID)
	if err != nil {
		return err
	}
	if count, err := res.RowsAffected(); err != nil || count > 0 {
		return err
	}

	res, err = r.db.ExecContext(ctx, `INSERT INTO notification_reads (notification_id, account_id)
        SELECT id, $2 FROM notifications WHERE id=$1 AND recipient_id IS NULL
        ON CONFLICT (notification_id, account_id) DO UPDATE SET read_at = NOW()`, notificationID, accountID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// DeviceTokens lists the push registrations of an account.
func (r *NotificationRepo) DeviceTokens(ctx context.Context, accountID int) ([]models.DeviceToken, error) {
	var tokens []models.DeviceToken
	err := r.db.SelectContext(ctx, &tokens, `SELECT account_id, token, platform FROM device_tokens WHERE account_id=$1`, accountID)
	return tokens, err
}

// RegisterDeviceToken stores or refreshes a device registration.
func (r *NotificationRepo) RegisterDeviceToken(ctx context.Context, token models.DeviceToken) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO device_tokens (account_id, token, platform) VALUES ($1, $2, $3)
        ON CONFLICT (account_id, token) DO UPDATE SET platform = EXCLUDED.platform`, token.AccountID, token.Token, token.Platform)
	return err
}
