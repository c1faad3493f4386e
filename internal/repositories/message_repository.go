package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"social-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for chat messages. Writes that change what the room's
// last message is update the room cache in the same transaction.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	ListMessages(ctx context.Context, chatID int, beforeID int, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, messageID int, readerID int, at time.Time) (bool, error)
	UpdateContent(ctx context.Context, messageID int, content string, editedAt time.Time) error
	SoftDelete(ctx context.Context, messageID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, chatroom_id, sender_id, receiver_id, content, type, is_read, read_at, is_deleted, is_edited, edited_at, created_at`

// CreateMessage stores a message and refreshes the room's last-message cache atomically.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (created models.Message, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = tx.GetContext(ctx, &created, `INSERT INTO messages (chatroom_id, sender_id, receiver_id, content, type)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		msg.ChatRoomID, msg.SenderID, msg.ReceiverID, msg.Content, msg.Type); err != nil {
		return models.Message{}, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE chat_rooms SET last_message_at=$2, last_message_preview=$3 WHERE id=$1`,
		created.ChatRoomID, created.CreatedAt, created.Preview()); err != nil {
		return models.Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return created, nil
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// ListMessages returns room history in chronological order, soft-deleted rows included.
// A positive beforeID pages backwards from that message.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID int, beforeID int, limit int) ([]models.Message, error) {
	msgs := []models.Message{}
	query := `SELECT ` + messageColumns + ` FROM (
        SELECT ` + messageColumns + ` FROM messages
        WHERE chatroom_id=$1 AND ($2 <= 0 OR id < $2)
        ORDER BY created_at DESC, id DESC
        LIMIT $3
        ) page ORDER BY created_at ASC, id ASC`
	err := r.db.SelectContext(ctx, &msgs, query, chatID, beforeID, limit)
	return msgs, err
}

// MarkRead flips an unread message to read. It reports false when the message was already
// read, so a concurrent second reader never produces a second transition.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID int, readerID int, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET is_read = TRUE, read_at=$3
        WHERE id=$1 AND receiver_id=$2 AND is_read = FALSE`, messageID, readerID, at)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateContent stores an edit and refreshes the room preview when the message is the latest.
func (r *MessageRepo) UpdateContent(ctx context.Context, messageID int, content string, editedAt time.Time) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chatID int
	if err = tx.GetContext(ctx, &chatID, `UPDATE messages SET content=$2, is_edited = TRUE, edited_at=$3
        WHERE id=$1 AND is_deleted = FALSE RETURNING chatroom_id`, messageID, content, editedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrMessageNotFound
		}
		return err
	}
	if err = refreshRoomCache(ctx, tx, chatID); err != nil {
		return err
	}
	return tx.Commit()
}

// SoftDelete flags the message deleted and recomputes the room's last-message cache from
// the newest remaining message.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chatID int
	if err = tx.GetContext(ctx, &chatID, `UPDATE messages SET is_deleted = TRUE WHERE id=$1 RETURNING chatroom_id`, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrMessageNotFound
		}
		return err
	}
	if err = refreshRoomCache(ctx, tx, chatID); err != nil {
		return err
	}
	return tx.Commit()
}

func refreshRoomCache(ctx context.Context, tx *sqlx.Tx, chatID int) error {
	var latest models.Message
	err := tx.GetContext(ctx, &latest, `SELECT `+messageColumns+` FROM messages
        WHERE chatroom_id=$1 AND is_deleted = FALSE
        ORDER BY created_at DESC, id DESC LIMIT 1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = tx.ExecContext(ctx, `UPDATE chat_rooms SET last_message_at = NULL, last_message_preview = '' WHERE id=$1`, chatID)
		return err
	}
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE chat_rooms SET last_message_at=$2, last_message_preview=$3 WHERE id=$1`,
		chatID, latest.CreatedAt, latest.Preview())
	return err
}
