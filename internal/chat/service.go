package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"social-service/internal/models"
	"social-service/internal/repositories"
)

var (
	ErrForbidden      = errors.New("not a participant of this chat")
	ErrInvalidMessage = errors.New("invalid message")
	ErrInvalidEdit    = errors.New("message cannot be edited")
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Router delivers outbound events to a routing group.
type Router interface {
	SendToGroup(ctx context.Context, group string, event models.OutboundEvent) error
}

// Notifier persists and fans out notifications.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) (models.Notification, error)
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Chats    repositories.ChatRepository
	Messages repositories.MessageRepository
	Presence repositories.PresenceRepository
	Accounts repositories.AccountRepository
	Router   Router
	Notifier Notifier
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service implements chat operations for both the websocket and HTTP surfaces.
type Service struct {
	chats    repositories.ChatRepository
	messages repositories.MessageRepository
	presence repositories.PresenceRepository
	accounts repositories.AccountRepository
	router   Router
	notifier Notifier
	clock    func() time.Time
	logger   *zap.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	s := &Service{
		chats:    cfg.Chats,
		messages: cfg.Messages,
		presence: cfg.Presence,
		accounts: cfg.Accounts,
		router:   cfg.Router,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// HandleEvent dispatches a decoded inbound frame from userID.
func (s *Service) HandleEvent(ctx context.Context, userID int, event models.InboundEvent) error {
	switch ev := event.(type) {
	case models.SendMessageEvent:
		_, err := s.SendMessage(ctx, userID, ev.ChatRoomID, ev.Content, ev.MessageType)
		return err
	case models.TypingStatusEvent:
		return s.SetTyping(ctx, userID, ev.ChatRoomID, ev.IsTyping)
	case models.MarkAsReadEvent:
		_, _, err := s.MarkRead(ctx, userID, ev.MessageID)
		return err
	default:
		return fmt.Errorf("%w: %T", models.ErrUnknownEventType, event)
	}
}

// room loads the chat and checks that userID is one of its two participants.
func (s *Service) room(ctx context.Context, userID, chatID int) (models.ChatRoom, error) {
	room, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.ChatRoom{}, err
	}
	if !room.HasParticipant(userID) {
		return models.ChatRoom{}, ErrForbidden
	}
	return room, nil
}

// SendMessage persists a message from a participant, delivers new_message to the other
// participant and message_sent to the sender, then notifies the receiver. Nothing is
// persisted or delivered when the sender is not a participant.
func (s *Service) SendMessage(ctx context.Context, senderID, chatID int, content string, msgType models.MessageType) (models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, fmt.Errorf("%w: content is required", ErrInvalidMessage)
	}
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	if !msgType.Valid() {
		return models.Message{}, fmt.Errorf("%w: unsupported type %q", ErrInvalidMessage, msgType)
	}

	room, err := s.room(ctx, senderID, chatID)
	if err != nil {
		return models.Message{}, err
	}
	receiverID, _ := room.Other(senderID)

	msg, err := s.messages.CreateMessage(ctx, models.Message{
		ChatRoomID: room.ID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Type:       msgType,
	})
	if err != nil {
		return models.Message{}, err
	}

	s.deliver(ctx, receiverID, models.NewMessage{Message: msg})
	s.deliver(ctx, senderID, models.MessageSent{Message: msg})
	s.notifyMessage(ctx, msg)
	return msg, nil
}

// SetTyping records the typing flag and forwards it to the other participant only.
func (s *Service) SetTyping(ctx context.Context, userID, chatID int, isTyping bool) error {
	room, err := s.room(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if err := s.presence.SetTyping(ctx, room.ID, userID, isTyping, s.clock().UTC()); err != nil {
		return err
	}
	otherID, _ := room.Other(userID)
	s.deliver(ctx, otherID, models.TypingStatusUpdate{ChatRoomID: room.ID, UserID: userID, IsTyping: isTyping})
	return nil
}

// MarkRead marks a message read on behalf of its receiver. The sender is told only when
// the message actually transitions from unread to read.
func (s *Service) MarkRead(ctx context.Context, readerID, messageID int) (models.Message, bool, error) {
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, false, err
	}

	at := s.clock().UTC()
	transitioned, err := msg.MarkRead(readerID, at)
	if err != nil {
		return models.Message{}, false, ErrForbidden
	}
	if !transitioned {
		return msg, false, nil
	}

	stored, err := s.messages.MarkRead(ctx, msg.ID, readerID, at)
	if err != nil {
		return models.Message{}, false, err
	}
	if !stored {
		// another connection of the receiver won the transition
		return msg, false, nil
	}

	s.deliver(ctx, msg.SenderID, models.MessageRead{MessageID: msg.ID, ChatRoomID: msg.ChatRoomID, ReaderID: readerID, ReadAt: at})
	return msg, true, nil
}

// EditMessage replaces the content of the sender's live text message.
func (s *Service) EditMessage(ctx context.Context, userID, chatID, messageID int, content string) (models.Message, error) {
	msg, err := s.roomMessage(ctx, userID, chatID, messageID)
	if err != nil {
		return models.Message{}, err
	}

	at := s.clock().UTC()
	if err := msg.Edit(userID, strings.TrimSpace(content), at); err != nil {
		switch {
		case errors.Is(err, models.ErrNotSender):
			return models.Message{}, ErrForbidden
		case errors.Is(err, models.ErrEmptyContent):
			return models.Message{}, fmt.Errorf("%w: content is required", ErrInvalidMessage)
		default:
			return models.Message{}, ErrInvalidEdit
		}
	}
	if err := s.messages.UpdateContent(ctx, msg.ID, msg.Content, at); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// DeleteMessage soft deletes the sender's message. The row stays in the history.
func (s *Service) DeleteMessage(ctx context.Context, userID, chatID, messageID int) (models.Message, error) {
	msg, err := s.roomMessage(ctx, userID, chatID, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if err := msg.SoftDelete(userID); err != nil {
		return models.Message{}, ErrForbidden
	}
	if err := s.messages.SoftDelete(ctx, msg.ID); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

func (s *Service) roomMessage(ctx context.Context, userID, chatID, messageID int) (models.Message, error) {
	if _, err := s.room(ctx, userID, chatID); err != nil {
		return models.Message{}, err
	}
	msg, err := s.messages.GetMessage(ctx, messageID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.ChatRoomID != chatID {
		return models.Message{}, repositories.ErrMessageNotFound
	}
	return msg, nil
}

// StartChat finds or creates the room between userID and friendID.
func (s *Service) StartChat(ctx context.Context, userID, friendID int) (models.ChatRoom, error) {
	if userID == friendID {
		return models.ChatRoom{}, repositories.ErrChatWithSelf
	}
	if _, err := s.accounts.GetAccount(ctx, friendID); err != nil {
		return models.ChatRoom{}, err
	}
	return s.chats.CreateOrGetChat(ctx, userID, friendID)
}

// RoomView is a chat list entry with the counterpart's presence.
type RoomView struct {
	models.ChatSummary
	FriendOnline   bool       `json:"friend_online"`
	FriendLastSeen *time.Time `json:"friend_last_seen,omitempty"`
}

// ListChats returns the user's rooms with cached last message and counterpart presence.
func (s *Service) ListChats(ctx context.Context, userID int) ([]RoomView, error) {
	chats, err := s.chats.ListChats(ctx, userID)
	if err != nil {
		return nil, err
	}
	friendIDs := make([]int, len(chats))
	for i, c := range chats {
		friendIDs[i] = c.FriendID
	}
	presence, err := s.presence.ListPresence(ctx, friendIDs)
	if err != nil {
		return nil, err
	}
	byAccount := make(map[int]models.Presence, len(presence))
	for _, p := range presence {
		byAccount[p.AccountID] = p
	}

	views := make([]RoomView, len(chats))
	for i, c := range chats {
		p := byAccount[c.FriendID]
		views[i] = RoomView{ChatSummary: c, FriendOnline: p.IsOnline, FriendLastSeen: p.LastSeen}
	}
	return views, nil
}

// Messages returns a page of room history for a participant.
func (s *Service) Messages(ctx context.Context, userID, chatID, beforeID, limit int) ([]models.Message, error) {
	if _, err := s.room(ctx, userID, chatID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.messages.ListMessages(ctx, chatID, beforeID, limit)
}

func (s *Service) deliver(ctx context.Context, userID int, event models.OutboundEvent) {
	if s.router == nil {
		return
	}
	if err := s.router.SendToGroup(ctx, models.UserGroup(userID, models.ChannelChat), event); err != nil {
		s.logger.Warn("chat event delivery failed",
			zap.Int("user_id", userID), zap.String("type", string(event.OutboundType())), zap.Error(err))
	}
}

func (s *Service) notifyMessage(ctx context.Context, msg models.Message) {
	if s.notifier == nil {
		return
	}
	payload, err := json.Marshal(map[string]int{"chatroom_id": msg.ChatRoomID, "message_id": msg.ID, "sender_id": msg.SenderID})
	if err != nil {
		return
	}
	recipient := msg.ReceiverID
	if _, err := s.notifier.Notify(ctx, models.Notification{
		RecipientID: &recipient,
		ActorID:     msg.SenderID,
		Type:        models.NotificationMessage,
		Title:       "New message",
		Body:        msg.Preview(),
		Payload:     types.JSONText(payload),
	}); err != nil {
		s.logger.Warn("message notification failed", zap.Int("message_id", msg.ID), zap.Error(err))
	}
}
