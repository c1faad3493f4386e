package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-service/internal/mocks"
	"social-service/internal/models"
	"social-service/internal/repositories"
)

type sentEvent struct {
	group string
	event models.OutboundEvent
}

type recordingRouter struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (r *recordingRouter) SendToGroup(_ context.Context, group string, event models.OutboundEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentEvent{group: group, event: event})
	return nil
}

func (r *recordingRouter) to(userID int) []models.OutboundEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var events []models.OutboundEvent
	for _, s := range r.sent {
		if s.group == models.UserGroup(userID, models.ChannelChat) {
			events = append(events, s.event)
		}
	}
	return events
}

type recordingNotifier struct {
	notified []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification models.Notification) (models.Notification, error) {
	n.notified = append(n.notified, notification)
	return notification, nil
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	presence *mocks.PresenceRepositoryMock
	accounts *mocks.AccountRepositoryMock
	router   *recordingRouter
	notifier *recordingNotifier
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		chats:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		presence: new(mocks.PresenceRepositoryMock),
		accounts: new(mocks.AccountRepositoryMock),
		router:   &recordingRouter{},
		notifier: &recordingNotifier{},
	}
	f.svc = NewService(ServiceConfig{
		Chats:    f.chats,
		Messages: f.messages,
		Presence: f.presence,
		Accounts: f.accounts,
		Router:   f.router,
		Notifier: f.notifier,
		Clock:    func() time.Time { return fixedNow },
	})
	return f
}

var roomAB = models.ChatRoom{ID: 5, User1ID: 1, User2ID: 2}

func TestSendMessageRoundTrip(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	stored := models.Message{ID: 40, ChatRoomID: 5, SenderID: 1, ReceiverID: 2, Content: "hi", Type: models.MessageTypeText, CreatedAt: fixedNow}

	f.chats.On("GetChat", ctx, 5).Return(roomAB, nil)
	f.messages.On("CreateMessage", ctx, models.Message{ChatRoomID: 5, SenderID: 1, ReceiverID: 2, Content: "hi", Type: models.MessageTypeText}).Return(stored, nil)

	err := f.svc.HandleEvent(ctx, 1, models.SendMessageEvent{ChatRoomID: 5, Content: " hi "})
	require.NoError(t, err)

	assert.Equal(t, []models.OutboundEvent{models.NewMessage{Message: stored}}, f.router.to(2))
	assert.Equal(t, []models.OutboundEvent{models.MessageSent{Message: stored}}, f.router.to(1))
	require.Len(t, f.notifier.notified, 1)
	assert.Equal(t, models.NotificationMessage, f.notifier.notified[0].Type)
	assert.Equal(t, 2, *f.notifier.notified[0].RecipientID)
	f.messages.AssertExpectations(t)
}

func TestSendMessageFromOutsiderPersistsAndDeliversNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.chats.On("GetChat", ctx, 5).Return(roomAB, nil)

	err := f.svc.HandleEvent(ctx, 3, models.SendMessageEvent{ChatRoomID: 5, Content: "intrusion"})

	assert.ErrorIs(t, err, ErrForbidden)
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
	assert.Empty(t, f.router.sent)
	assert.Empty(t, f.notifier.notified)
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	f := newFixture()
	_, err := f.svc.SendMessage(context.Background(), 1, 5, "   ", models.MessageTypeText)
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.Empty(t, f.router.sent)
}

func TestSendMessageUnknownRoom(t *testing.T) {
	f := newFixture()
	f.chats.On("GetChat", mock.Anything, 99).Return(nil, repositories.ErrChatNotFound)

	_, err := f.svc.SendMessage(context.Background(), 1, 99, "hi", "")
	assert.ErrorIs(t, err, repositories.ErrChatNotFound)
}

func TestTypingGoesToCounterpartOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.chats.On("GetChat", ctx, 5).Return(roomAB, nil)
	f.presence.On("SetTyping", ctx, 5, 2, true, fixedNow).Return(nil)

	require.NoError(t, f.svc.HandleEvent(ctx, 2, models.TypingStatusEvent{ChatRoomID: 5, IsTyping: true}))

	assert.Equal(t, []models.OutboundEvent{models.TypingStatusUpdate{ChatRoomID: 5, UserID: 2, IsTyping: true}}, f.router.to(1))
	assert.Empty(t, f.router.to(2))
}

func TestTypingFromOutsiderIsRejected(t *testing.T) {
	f := newFixture()
	f.chats.On("GetChat", mock.Anything, 5).Return(roomAB, nil)

	err := f.svc.SetTyping(context.Background(), 7, 5, true)
	assert.ErrorIs(t, err, ErrForbidden)
	f.presence.AssertNotCalled(t, "SetTyping", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkReadNotifiesSenderOnTransitionOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	unread := models.Message{ID: 40, ChatRoomID: 5, SenderID: 1, ReceiverID: 2, Content: "hi"}

	f.messages.On("GetMessage", ctx, 40).Return(unread, nil).Once()
	f.messages.On("MarkRead", ctx, 40, 2, fixedNow).Return(true, nil).Once()

	_, transitioned, err := f.svc.MarkRead(ctx, 2, 40)
	require.NoError(t, err)
	assert.True(t, transitioned)
	assert.Equal(t, []models.OutboundEvent{models.MessageRead{MessageID: 40, ChatRoomID: 5, ReaderID: 2, ReadAt: fixedNow}}, f.router.to(1))

	read := unread
	read.IsRead = true
	read.ReadAt = &fixedNow
	f.messages.On("GetMessage", ctx, 40).Return(read, nil).Once()

	msg, transitioned, err := f.svc.MarkRead(ctx, 2, 40)
	require.NoError(t, err)
	assert.False(t, transitioned)
	assert.True(t, msg.IsRead)
	assert.Len(t, f.router.to(1), 1)
	f.messages.AssertNumberOfCalls(t, "MarkRead", 1)
}

func TestMarkReadBySenderIsForbidden(t *testing.T) {
	f := newFixture()
	f.messages.On("GetMessage", mock.Anything, 40).Return(models.Message{ID: 40, ChatRoomID: 5, SenderID: 1, ReceiverID: 2}, nil)

	_, _, err := f.svc.MarkRead(context.Background(), 1, 40)
	assert.ErrorIs(t, err, ErrForbidden)
	f.messages.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteMessageKeepsRow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	msg := models.Message{ID: 40, ChatRoomID: 5, SenderID: 1, ReceiverID: 2, Content: "oops", Type: models.MessageTypeText}
	f.chats.On("GetChat", ctx, 5).Return(roomAB, nil)
	f.messages.On("GetMessage", ctx, 40).Return(msg, nil)
	f.messages.On("SoftDelete", ctx, 40).Return(nil)

	deleted, err := f.svc.DeleteMessage(ctx, 1, 5, 40)
	require.NoError(t, err)
	assert.True(t, deleted.IsDeleted)
	assert.Equal(t, "oops", deleted.Content)
}

func TestDeleteMessageByReceiverIsForbidden(t *testing.T) {
	f := newFixture()
	f.chats.On("GetChat", mock.Anything, 5).Return(roomAB, nil)
	f.messages.On("GetMessage", mock.Anything, 40).Return(models.Message{ID: 40, ChatRoomID: 5, SenderID: 1, ReceiverID: 2}, nil)

	_, err := f.svc.DeleteMessage(context.Background(), 2, 5, 40)
	assert.ErrorIs(t, err, ErrForbidden)
	f.messages.AssertNotCalled(t, "SoftDelete", mock.Anything, mock.Anything)
}

func TestEditMessageRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.chats.On("GetChat", ctx, 5).Return(roomAB, nil)
	f.messages.On("GetMessage", ctx, 40).Return(models.Message{ID: 40, ChatRoomID: 5, SenderID: 1, ReceiverID: 2, Content: "helo", Type: models.MessageTypeText}, nil)
	f.messages.On("GetMessage", ctx, 41).Return(models.Message{ID: 41, ChatRoomID: 5, SenderID: 1, ReceiverID: 2, Content: "pic.png", Type: models.MessageTypeImage}, nil)
	f.messages.On("UpdateContent", ctx, 40, "hello", fixedNow).Return(nil)

	edited, err := f.svc.EditMessage(ctx, 1, 5, 40, "hello")
	require.NoError(t, err)
	assert.True(t, edited.IsEdited)
	assert.Equal(t, "hello", edited.Content)

	_, err = f.svc.EditMessage(ctx, 1, 5, 41, "caption")
	assert.ErrorIs(t, err, ErrInvalidEdit)

	_, err = f.svc.EditMessage(ctx, 2, 5, 40, "hijack")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestEditMessageFromAnotherRoomIsNotFound(t *testing.T) {
	f := newFixture()
	f.chats.On("GetChat", mock.Anything, 5).Return(roomAB, nil)
	f.messages.On("GetMessage", mock.Anything, 40).Return(models.Message{ID: 40, ChatRoomID: 6, SenderID: 1}, nil)

	_, err := f.svc.EditMessage(context.Background(), 1, 5, 40, "x")
	assert.ErrorIs(t, err, repositories.ErrMessageNotFound)
}

func TestListChatsAttachesPresence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	seen := fixedNow.Add(-time.Hour)
	f.chats.On("ListChats", ctx, 1).Return([]models.ChatSummary{{ChatID: 5, FriendID: 2}, {ChatID: 6, FriendID: 3}}, nil)
	f.presence.On("ListPresence", ctx, []int{2, 3}).Return([]models.Presence{{AccountID: 2, IsOnline: true}, {AccountID: 3, LastSeen: &seen}}, nil)

	views, err := f.svc.ListChats(ctx, 1)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.True(t, views[0].FriendOnline)
	assert.False(t, views[1].FriendOnline)
	assert.Equal(t, &seen, views[1].FriendLastSeen)
}

func TestStartChatRequiresExistingFriend(t *testing.T) {
	f := newFixture()
	f.accounts.On("GetAccount", mock.Anything, 8).Return(nil, repositories.ErrAccountNotFound)

	_, err := f.svc.StartChat(context.Background(), 1, 8)
	assert.ErrorIs(t, err, repositories.ErrAccountNotFound)

	_, err = f.svc.StartChat(context.Background(), 1, 1)
	assert.ErrorIs(t, err, repositories.ErrChatWithSelf)
}
