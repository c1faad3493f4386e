package models

import "time"

// ChatRoom is the unique one-to-one room between two accounts. User1ID is always the lower id.
type ChatRoom struct {
	ID                 int        `db:"id" json:"id"`
	User1ID            int        `db:"user1_id" json:"user1_id"`
	User2ID            int        `db:"user2_id" json:"user2_id"`
	LastMessageAt      *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	LastMessagePreview string     `db:"last_message_preview" json:"last_message_preview"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}

// HasParticipant reports whether the account is one of the two room members.
func (c ChatRoom) HasParticipant(userID int) bool {
	return c.User1ID == userID || c.User2ID == userID
}

// Other returns the counterpart of userID, or false when userID is not in the room.
func (c ChatRoom) Other(userID int) (int, bool) {
	switch userID {
	case c.User1ID:
		return c.User2ID, true
	case c.User2ID:
		return c.User1ID, true
	default:
		return 0, false
	}
}

// OrderedPair returns the two ids in storage order.
func OrderedPair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

// ChatSummary provides API-friendly view of a chat for a user.
type ChatSummary struct {
	ChatID             int        `db:"id" json:"chat_id"`
	FriendID           int        `db:"friend_id" json:"friend_id"`
	LastMessageAt      *time.Time `db:"last_message_at" json:"last_message_at,omitempty"`
	LastMessagePreview string     `db:"last_message_preview" json:"last_message_preview"`
	Created            time.Time  `db:"created_at" json:"created_at"`
}
