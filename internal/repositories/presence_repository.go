package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"social-service/internal/models"
)

// PresenceRepository persists online state and typing flags.
type PresenceRepository interface {
	SetOnline(ctx context.Context, accountID int) error
	SetOffline(ctx context.Context, accountID int, lastSeen time.Time) error
	GetPresence(ctx context.Context, accountID int) (models.Presence, error)
	ListPresence(ctx context.Context, accountIDs []int) ([]models.Presence, error)
	SetTyping(ctx context.Context, chatID, accountID int, isTyping bool, at time.Time) error
}

// PresenceRepo is a sqlx implementation of PresenceRepository.
type PresenceRepo struct {
	db *sqlx.DB
}

// NewPresenceRepo constructs a PresenceRepo.
func NewPresenceRepo(db *sqlx.DB) *PresenceRepo {
	return &PresenceRepo{db: db}
}

// SetOnline upserts the presence row as online. last_seen keeps its previous value.
func (r *PresenceRepo) SetOnline(ctx context.Context, accountID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_presence (account_id, is_online) VALUES ($1, TRUE)
        ON CONFLICT (account_id) DO UPDATE SET is_online = TRUE`, accountID)
	return err
}

// SetOffline upserts the presence row as offline and stamps last_seen.
func (r *PresenceRepo) SetOffline(ctx context.Context, accountID int, lastSeen time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO user_presence (account_id, is_online, last_seen) VALUES ($1, FALSE, $2)
        ON CONFLICT (account_id) DO UPDATE SET is_online = FALSE, last_seen = EXCLUDED.last_seen`, accountID, lastSeen)
	return err
}

// GetPresence returns the stored state. Accounts that never connected are reported offline.
func (r *PresenceRepo) GetPresence(ctx context.Context, accountID int) (models.Presence, error) {
	var p models.Presence
	err := r.db.GetContext(ctx, &p, `SELECT account_id, is_online, last_seen FROM user_presence WHERE account_id=$1`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Presence{AccountID: accountID}, nil
	}
	return p, err
}

// ListPresence returns the stored rows for the given accounts. Missing accounts are omitted.
func (r *PresenceRepo) ListPresence(ctx context.Context, accountIDs []int) ([]models.Presence, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	var rows []models.Presence
	err := r.db.SelectContext(ctx, &rows, `SELECT account_id, is_online, last_seen FROM user_presence WHERE account_id = ANY($1)`, pq.Array(accountIDs))
	return rows, err
}

// SetTyping upserts the typing flag of an account in a room.
func (r *PresenceRepo) SetTyping(ctx context.Context, chatID, accountID int, isTyping bool, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO typing_status (chatroom_id, account_id, is_typing, updated_at) VALUES ($1, $2, $3, $4)
        ON CONFLICT (chatroom_id, account_id) DO UPDATE SET is_typing = EXCLUDED.is_typing, updated_at = EXCLUDED.updated_at`,
		chatID, accountID, isTyping, at)
	return err
}
