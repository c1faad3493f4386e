package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"social-service/internal/models"
	"social-service/internal/rabbitmq"
	"social-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) CreateOrGetChat(ctx context.Context, userID int, friendID int) (models.ChatRoom, error) {
	args := m.Called(ctx, userID, friendID)
	var chat models.ChatRoom
	if val := args.Get(0); val != nil {
		chat = val.(models.ChatRoom)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.ChatRoom, error) {
	args := m.Called(ctx, chatID)
	var chat models.ChatRoom
	if val := args.Get(0); val != nil {
		chat = val.(models.ChatRoom)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) ListChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

func (m *ChatRepositoryMock) CounterpartIDs(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var created models.Message
	if val := args.Get(0); val != nil {
		created = val.(models.Message)
	}
	return created, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, chatID int, beforeID int, limit int) ([]models.Message, error) {
	args := m.Called(ctx, chatID, beforeID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, messageID int, readerID int, at time.Time) (bool, error) {
	args := m.Called(ctx, messageID, readerID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MessageRepositoryMock) UpdateContent(ctx context.Context, messageID int, content string, editedAt time.Time) error {
	args := m.Called(ctx, messageID, content, editedAt)
	return args.Error(0)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type AccountRepositoryMock struct {
	mock.Mock
}

func (m *AccountRepositoryMock) GetAccount(ctx context.Context, accountID int) (models.Account, error) {
	args := m.Called(ctx, accountID)
	var account models.Account
	if val := args.Get(0); val != nil {
		account = val.(models.Account)
	}
	return account, args.Error(1)
}

func (m *AccountRepositoryMock) NearbyAccountIDs(ctx context.Context, city, state string) ([]int, error) {
	args := m.Called(ctx, city, state)
	return intSlice(args.Get(0)), args.Error(1)
}

type FollowRepositoryMock struct {
	mock.Mock
}

func (m *FollowRepositoryMock) Follow(ctx context.Context, followerID, followingID int) (bool, error) {
	args := m.Called(ctx, followerID, followingID)
	return args.Bool(0), args.Error(1)
}

func (m *FollowRepositoryMock) Unfollow(ctx context.Context, followerID, followingID int) error {
	args := m.Called(ctx, followerID, followingID)
	return args.Error(0)
}

func (m *FollowRepositoryMock) FollowingIDs(ctx context.Context, accountID int) ([]int, error) {
	args := m.Called(ctx, accountID)
	return intSlice(args.Get(0)), args.Error(1)
}

func (m *FollowRepositoryMock) FollowerIDs(ctx context.Context, accountID int) ([]int, error) {
	args := m.Called(ctx, accountID)
	return intSlice(args.Get(0)), args.Error(1)
}

func (m *FollowRepositoryMock) FollowersOf(ctx context.Context, accountIDs []int) ([]int, error) {
	args := m.Called(ctx, accountIDs)
	return intSlice(args.Get(0)), args.Error(1)
}

func (m *FollowRepositoryMock) FollowingsOf(ctx context.Context, accountIDs []int) ([]int, error) {
	args := m.Called(ctx, accountIDs)
	return intSlice(args.Get(0)), args.Error(1)
}

func (m *FollowRepositoryMock) ListFollowing(ctx context.Context, accountID, offset, limit int) ([]int, error) {
	args := m.Called(ctx, accountID, offset, limit)
	return intSlice(args.Get(0)), args.Error(1)
}

func (m *FollowRepositoryMock) ListFollowers(ctx context.Context, accountID, offset, limit int) ([]int, error) {
	args := m.Called(ctx, accountID, offset, limit)
	return intSlice(args.Get(0)), args.Error(1)
}

type PostRepositoryMock struct {
	mock.Mock
}

func (m *PostRepositoryMock) ListFeedPage(ctx context.Context, query repositories.FeedQuery) ([]repositories.TieredPost, error) {
	args := m.Called(ctx, query)
	var posts []repositories.TieredPost
	if val := args.Get(0); val != nil {
		posts = val.([]repositories.TieredPost)
	}
	return posts, args.Error(1)
}

func (m *PostRepositoryMock) GetPost(ctx context.Context, postID int) (models.Post, error) {
	args := m.Called(ctx, postID)
	var post models.Post
	if val := args.Get(0); val != nil {
		post = val.(models.Post)
	}
	return post, args.Error(1)
}

func (m *PostRepositoryMock) HidePost(ctx context.Context, accountID, postID int) error {
	args := m.Called(ctx, accountID, postID)
	return args.Error(0)
}

type PresenceRepositoryMock struct {
	mock.Mock
}

func (m *PresenceRepositoryMock) SetOnline(ctx context.Context, accountID int) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

func (m *PresenceRepositoryMock) SetOffline(ctx context.Context, accountID int, lastSeen time.Time) error {
	args := m.Called(ctx, accountID, lastSeen)
	return args.Error(0)
}

func (m *PresenceRepositoryMock) GetPresence(ctx context.Context, accountID int) (models.Presence, error) {
	args := m.Called(ctx, accountID)
	var p models.Presence
	if val := args.Get(0); val != nil {
		p = val.(models.Presence)
	}
	return p, args.Error(1)
}

func (m *PresenceRepositoryMock) ListPresence(ctx context.Context, accountIDs []int) ([]models.Presence, error) {
	args := m.Called(ctx, accountIDs)
	var rows []models.Presence
	if val := args.Get(0); val != nil {
		rows = val.([]models.Presence)
	}
	return rows, args.Error(1)
}

func (m *PresenceRepositoryMock) SetTyping(ctx context.Context, chatID, accountID int, isTyping bool, at time.Time) error {
	args := m.Called(ctx, chatID, accountID, isTyping, at)
	return args.Error(0)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) CreateNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	args := m.Called(ctx, n)
	var created models.Notification
	if val := args.Get(0); val != nil {
		created = val.(models.Notification)
	}
	return created, args.Error(1)
}

func (m *NotificationRepositoryMock) ListForAccount(ctx context.Context, accountID, offset, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, accountID, offset, limit)
	var list []models.Notification
	if val := args.Get(0); val != nil {
		list = val.([]models.Notification)
	}
	return list, args.Error(1)
}

func (m *NotificationRepositoryMock) MarkNotificationRead(ctx context.Context, notificationID, accountID int) error {
	args := m.Called(ctx, notificationID, accountID)
	return args.Error(0)
}

func (m *NotificationRepositoryMock) DeviceTokens(ctx context.Context, accountID int) ([]models.DeviceToken, error) {
	args := m.Called(ctx, accountID)
	var tokens []models.DeviceToken
	if val := args.Get(0); val != nil {
		tokens = val.([]models.DeviceToken)
	}
	return tokens, args.Error(1)
}

func (m *NotificationRepositoryMock) RegisterDeviceToken(ctx context.Context, token models.DeviceToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// PublisherMock records published push jobs and events.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *PublisherMock) PublishWithHeaders(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	args := m.Called(ctx, routingKey, event, headers)
	return args.Error(0)
}

func (m *PublisherMock) Close() error {
	return nil
}

func intSlice(val interface{}) []int {
	if val == nil {
		return nil
	}
	return val.([]int)
}

var (
	_ repositories.ChatRepository         = (*ChatRepositoryMock)(nil)
	_ repositories.MessageRepository      = (*MessageRepositoryMock)(nil)
	_ repositories.AccountRepository      = (*AccountRepositoryMock)(nil)
	_ repositories.FollowRepository       = (*FollowRepositoryMock)(nil)
	_ repositories.PostRepository         = (*PostRepositoryMock)(nil)
	_ repositories.PresenceRepository     = (*PresenceRepositoryMock)(nil)
	_ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
	_ rabbitmq.Publisher                  = (*PublisherMock)(nil)
)
