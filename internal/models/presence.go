package models

import "time"

// Presence is an account's online state. LastSeen is only stamped on going offline.
type Presence struct {
	AccountID int        `db:"account_id" json:"account_id"`
	IsOnline  bool       `db:"is_online" json:"is_online"`
	LastSeen  *time.Time `db:"last_seen" json:"last_seen,omitempty"`
}

// Typing is the ephemeral typing flag of one account in one room.
type Typing struct {
	ChatRoomID int       `db:"chatroom_id" json:"chatroom_id"`
	AccountID  int       `db:"account_id" json:"account_id"`
	IsTyping   bool      `db:"is_typing" json:"is_typing"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
