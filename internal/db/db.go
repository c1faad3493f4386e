package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Connect initializes the database connection and runs migrations.
func Connect(ctx context.Context, dsn string, logger *zap.Logger) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	if logger != nil {
		logger.Info("database migrations applied", zap.Int("statements", len(migrations)))
	}

	return db, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
            id SERIAL PRIMARY KEY,
            display_name TEXT NOT NULL,
            city TEXT,
            state TEXT,
            is_banned BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS follows (
            follower_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            following_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(follower_id, following_id),
            CHECK (follower_id <> following_id)
        );`,
	`CREATE INDEX IF NOT EXISTS idx_follows_following ON follows(following_id);`,
	`CREATE TABLE IF NOT EXISTS posts (
            id SERIAL PRIMARY KEY,
            author_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            title TEXT NOT NULL DEFAULT '',
            content TEXT NOT NULL DEFAULT '',
            visibility TEXT NOT NULL DEFAULT 'public',
            is_flagged BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at DESC, id DESC);`,
	`CREATE TABLE IF NOT EXISTS post_likes (
            post_id INT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
            account_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            PRIMARY KEY(post_id, account_id)
        );`,
	`CREATE TABLE IF NOT EXISTS post_comments (
            id SERIAL PRIMARY KEY,
            post_id INT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
            author_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            content TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS hidden_posts (
            account_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            post_id INT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(account_id, post_id)
        );`,
	`CREATE TABLE IF NOT EXISTS chat_rooms (
            id SERIAL PRIMARY KEY,
            user1_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            user2_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            last_message_at TIMESTAMPTZ,
            last_message_preview TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(user1_id, user2_id),
            CHECK (user1_id < user2_id)
        );`,
	`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            chatroom_id INT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            receiver_id INT NOT NULL,
            content TEXT NOT NULL,
            type TEXT NOT NULL DEFAULT 'text',
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            read_at TIMESTAMPTZ,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            is_edited BOOLEAN NOT NULL DEFAULT FALSE,
            edited_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(chatroom_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS user_presence (
            account_id INT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
            is_online BOOLEAN NOT NULL DEFAULT FALSE,
            last_seen TIMESTAMPTZ
        );`,
	`CREATE TABLE IF NOT EXISTS typing_status (
            chatroom_id INT NOT NULL REFERENCES chat_rooms(id) ON DELETE CASCADE,
            account_id INT NOT NULL,
            is_typing BOOLEAN NOT NULL DEFAULT FALSE,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(chatroom_id, account_id)
        );`,
	`CREATE TABLE IF NOT EXISTS notifications (
            id SERIAL PRIMARY KEY,
            recipient_id INT REFERENCES accounts(id) ON DELETE CASCADE,
            actor_id INT NOT NULL,
            type TEXT NOT NULL,
            title TEXT NOT NULL DEFAULT '',
            body TEXT NOT NULL DEFAULT '',
            payload JSONB,
            read BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at DESC);`,
	`CREATE TABLE IF NOT EXISTS notification_reads (
            notification_id INT NOT NULL REFERENCES notifications(id) ON DELETE CASCADE,
            account_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            read_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY(notification_id, account_id)
        );`,
	`CREATE TABLE IF NOT EXISTS device_tokens (
            account_id INT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
            token TEXT NOT NULL,
            platform TEXT NOT NULL DEFAULT '',
            PRIMARY KEY(account_id, token)
        );`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
