package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"social-service/internal/models"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrChatWithSelf = errors.New("cannot create chat with self")
)

// ChatRepository abstracts chat room persistence.
type ChatRepository interface {
	CreateOrGetChat(ctx context.Context, userID int, friendID int) (models.ChatRoom, error)
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
	GetChat(ctx context.Context, chatID int) (models.ChatRoom, error)
	ListChats(ctx context.Context, userID int) ([]models.ChatSummary, error)
	CounterpartIDs(ctx context.Context, userID int) ([]int, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

const chatColumns = `id, user1_id, user2_id, last_message_at, last_message_preview, created_at`

// CreateOrGetChat returns the room of the pair, creating it on first contact. Concurrent
// callers converge on the same row through the unique pair constraint.
func (r *ChatRepo) CreateOrGetChat(ctx context.Context, userID int, friendID int) (models.ChatRoom, error) {
	if userID == friendID {
		return models.ChatRoom{}, ErrChatWithSelf
	}
	user1, user2 := models.OrderedPair(userID, friendID)

	if _, err := r.db.ExecContext(ctx, `INSERT INTO chat_rooms (user1_id, user2_id) VALUES ($1, $2)
        ON CONFLICT (user1_id, user2_id) DO NOTHING`, user1, user2); err != nil {
		return models.ChatRoom{}, err
	}

	var chat models.ChatRoom
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chat_rooms WHERE user1_id=$1 AND user2_id=$2`, user1, user2)
	return chat, err
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_rooms WHERE id=$1 AND (user1_id=$2 OR user2_id=$2))`, chatID, userID)
	return exists, err
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.ChatRoom, error) {
	var chat models.ChatRoom
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chat_rooms WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatRoom{}, ErrChatNotFound
	}
	return chat, err
}

// ListChats returns the user's rooms, most recently active first.
func (r *ChatRepo) ListChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	query := `SELECT id,
        CASE WHEN user1_id=$1 THEN user2_id ELSE user1_id END AS friend_id,
        last_message_at, last_message_preview, created_at
        FROM chat_rooms
        WHERE user1_id=$1 OR user2_id=$1
        ORDER BY COALESCE(last_message_at, created_at) DESC, id DESC`
	result := []models.ChatSummary{}
	err := r.db.SelectContext(ctx, &result, query, userID)
	return result, err
}

// CounterpartIDs returns every account sharing at least one room with userID.
func (r *ChatRepo) CounterpartIDs(ctx context.Context, userID int) ([]int, error) {
	var ids []int
	err := r.db.SelectContext(ctx, &ids, `SELECT DISTINCT CASE WHEN user1_id=$1 THEN user2_id ELSE user1_id END
        FROM chat_rooms WHERE user1_id=$1 OR user2_id=$1`, userID)
	return ids, err
}
