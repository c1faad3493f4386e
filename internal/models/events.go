package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InboundType discriminates frames sent by clients over the chat channel.
type InboundType string

const (
	InboundSendMessage  InboundType = "send_message"
	InboundTypingStatus InboundType = "typing_status"
	InboundMarkAsRead   InboundType = "mark_as_read"
)

// OutboundType discriminates frames pushed to clients.
type OutboundType string

const (
	OutboundNewMessage         OutboundType = "new_message"
	OutboundMessageSent        OutboundType = "message_sent"
	OutboundTypingStatus       OutboundType = "typing_status"
	OutboundMessageRead        OutboundType = "message_read"
	OutboundUserOnlineStatus   OutboundType = "user_online_status"
	OutboundChatNotification   OutboundType = "chat_notification"
	OutboundSystemNotification OutboundType = "system_notification"
	OutboundError              OutboundType = "error"
)

var (
	ErrMalformedFrame   = errors.New("malformed frame")
	ErrUnknownEventType = errors.New("unknown event type")
	ErrInvalidEvent     = errors.New("invalid event")
)

// InboundEvent is one of SendMessageEvent, TypingStatusEvent or MarkAsReadEvent.
type InboundEvent interface {
	InboundType() InboundType
}

type SendMessageEvent struct {
	ChatRoomID  int         `json:"chatroom"`
	Content     string      `json:"content"`
	MessageType MessageType `json:"message_type,omitempty"`
}

type TypingStatusEvent struct {
	ChatRoomID int  `json:"chatroom_id"`
	IsTyping   bool `json:"is_typing"`
}

type MarkAsReadEvent struct {
	MessageID int `json:"message_id"`
}

func (SendMessageEvent) InboundType() InboundType  { return InboundSendMessage }
func (TypingStatusEvent) InboundType() InboundType { return InboundTypingStatus }
func (MarkAsReadEvent) InboundType() InboundType   { return InboundMarkAsRead }

// PeekInboundType reads only the type discriminator of a client frame.
func PeekInboundType(data []byte) (InboundType, error) {
	var head struct {
		Type InboundType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return head.Type, nil
}

// DecodeInbound parses and validates a client frame. The returned error wraps
// ErrMalformedFrame, ErrUnknownEventType or ErrInvalidEvent.
func DecodeInbound(data []byte) (InboundEvent, error) {
	eventType, err := PeekInboundType(data)
	if err != nil {
		return nil, err
	}

	switch eventType {
	case InboundSendMessage:
		var ev SendMessageEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		ev.Content = strings.TrimSpace(ev.Content)
		if ev.ChatRoomID <= 0 {
			return nil, fmt.Errorf("%w: chatroom is required", ErrInvalidEvent)
		}
		if ev.Content == "" {
			return nil, fmt.Errorf("%w: content is required", ErrInvalidEvent)
		}
		if ev.MessageType == "" {
			ev.MessageType = MessageTypeText
		}
		if !ev.MessageType.Valid() {
			return nil, fmt.Errorf("%w: unsupported message_type %q", ErrInvalidEvent, ev.MessageType)
		}
		return ev, nil
	case InboundTypingStatus:
		var ev TypingStatusEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if ev.ChatRoomID <= 0 {
			return nil, fmt.Errorf("%w: chatroom_id is required", ErrInvalidEvent)
		}
		return ev, nil
	case InboundMarkAsRead:
		var ev MarkAsReadEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if ev.MessageID <= 0 {
			return nil, fmt.Errorf("%w: message_id is required", ErrInvalidEvent)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, eventType)
	}
}

// OutboundEvent is a frame delivered to connected clients.
type OutboundEvent interface {
	OutboundType() OutboundType
}

type NewMessage struct {
	Message Message `json:"message"`
}

type MessageSent struct {
	Message Message `json:"message"`
}

type TypingStatusUpdate struct {
	ChatRoomID int  `json:"chatroom_id"`
	UserID     int  `json:"user_id"`
	IsTyping   bool `json:"is_typing"`
}

type MessageRead struct {
	MessageID  int       `json:"message_id"`
	ChatRoomID int       `json:"chatroom_id"`
	ReaderID   int       `json:"reader_id"`
	ReadAt     time.Time `json:"read_at"`
}

type UserOnlineStatus struct {
	UserID   int        `json:"user_id"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

type ChatNotification struct {
	Notification Notification `json:"notification"`
}

type SystemNotification struct {
	Notification Notification `json:"notification"`
}

// ErrorEvent acknowledges a rejected inbound frame to its sender only.
type ErrorEvent struct {
	Event  InboundType `json:"event,omitempty"`
	Reason string      `json:"error"`
}

func (NewMessage) OutboundType() OutboundType         { return OutboundNewMessage }
func (MessageSent) OutboundType() OutboundType        { return OutboundMessageSent }
func (TypingStatusUpdate) OutboundType() OutboundType { return OutboundTypingStatus }
func (MessageRead) OutboundType() OutboundType        { return OutboundMessageRead }
func (UserOnlineStatus) OutboundType() OutboundType   { return OutboundUserOnlineStatus }
func (ChatNotification) OutboundType() OutboundType   { return OutboundChatNotification }
func (SystemNotification) OutboundType() OutboundType { return OutboundSystemNotification }
func (ErrorEvent) OutboundType() OutboundType         { return OutboundError }

// EncodeOutbound renders an event as a flat {"type": ..., ...fields} frame.
func EncodeOutbound(event OutboundEvent) ([]byte, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"] = json.RawMessage(strconv.Quote(string(event.OutboundType())))
	return json.Marshal(fields)
}

// Channel is one of the two per-account connection kinds.
type Channel string

const (
	ChannelChat          Channel = "chat"
	ChannelNotifications Channel = "notifications"
)

// GlobalNotificationGroup receives notifications without a recipient.
const GlobalNotificationGroup = "notifications:all"

// UserGroup is the routing group of every connection an account holds on a channel.
func UserGroup(userID int, channel Channel) string {
	return "user:" + strconv.Itoa(userID) + ":" + string(channel)
}
