package models

import (
	"errors"
	"time"
)

// MessageType is the content kind of a chat message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
)

// PreviewLength bounds the denormalized last-message preview stored on a room.
const PreviewLength = 100

var (
	ErrNotSender    = errors.New("only the sender may change this message")
	ErrNotReceiver  = errors.New("only the receiver may mark this message read")
	ErrNotEditable  = errors.New("message cannot be edited")
	ErrEmptyContent = errors.New("message content is empty")
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	}
	return false
}

// Message represents a chat message.
type Message struct {
	ID         int         `db:"id" json:"id"`
	ChatRoomID int         `db:"chatroom_id" json:"chatroom_id"`
	SenderID   int         `db:"sender_id" json:"sender_id"`
	ReceiverID int         `db:"receiver_id" json:"receiver_id"`
	Content    string      `db:"content" json:"content"`
	Type       MessageType `db:"type" json:"type"`
	IsRead     bool        `db:"is_read" json:"is_read"`
	ReadAt     *time.Time  `db:"read_at" json:"read_at,omitempty"`
	IsDeleted  bool        `db:"is_deleted" json:"is_deleted"`
	IsEdited   bool        `db:"is_edited" json:"is_edited"`
	EditedAt   *time.Time  `db:"edited_at" json:"edited_at,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// MarkRead flips the message to read on behalf of readerID. It returns true only on the
// unread -> read transition; a read message is never set back to unread.
func (m *Message) MarkRead(readerID int, at time.Time) (bool, error) {
	if m.ReceiverID != readerID {
		return false, ErrNotReceiver
	}
	if m.IsRead {
		return false, nil
	}
	m.IsRead = true
	m.ReadAt = &at
	return true, nil
}

// Edit replaces the content of a live text message sent by editorID.
func (m *Message) Edit(editorID int, content string, at time.Time) error {
	if m.SenderID != editorID {
		return ErrNotSender
	}
	if m.Type != MessageTypeText || m.IsDeleted {
		return ErrNotEditable
	}
	if content == "" {
		return ErrEmptyContent
	}
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &at
	return nil
}

// SoftDelete flags the message as removed. The row is retained.
func (m *Message) SoftDelete(userID int) error {
	if m.SenderID != userID {
		return ErrNotSender
	}
	m.IsDeleted = true
	return nil
}

// Preview is the truncated content stored as the room's last-message cache.
func (m Message) Preview() string {
	runes := []rune(m.Content)
	if len(runes) > PreviewLength {
		return string(runes[:PreviewLength])
	}
	return m.Content
}
