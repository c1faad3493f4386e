package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"social-service/internal/chat"
	"social-service/internal/middleware"
	"social-service/internal/mocks"
	"social-service/internal/models"
	"social-service/internal/repositories"
)

type tokenTable map[string]int

func (t tokenTable) ValidateToken(token string) (int, error) {
	if id, ok := t[token]; ok {
		return id, nil
	}
	return 0, errors.New("unknown token")
}

type wsFixture struct {
	server   *httptest.Server
	hub      *Hub
	chats    *mocks.ChatRepositoryMock
	messages *mocks.MessageRepositoryMock
	presence *mocks.PresenceRepositoryMock
	accounts *mocks.AccountRepositoryMock
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &wsFixture{
		hub:      NewHub(nil),
		chats:    new(mocks.ChatRepositoryMock),
		messages: new(mocks.MessageRepositoryMock),
		presence: new(mocks.PresenceRepositoryMock),
		accounts: new(mocks.AccountRepositoryMock),
	}
	f.presence.On("SetOnline", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.presence.On("SetOffline", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.chats.On("CounterpartIDs", mock.Anything, 1).Return([]int{2}, nil).Maybe()
	f.chats.On("CounterpartIDs", mock.Anything, 2).Return([]int{1}, nil).Maybe()
	f.accounts.On("GetAccount", mock.Anything, 1).Return(models.Account{ID: 1}, nil).Maybe()
	f.accounts.On("GetAccount", mock.Anything, 2).Return(models.Account{ID: 2}, nil).Maybe()
	f.accounts.On("GetAccount", mock.Anything, 3).Return(nil, repositories.ErrAccountNotFound).Maybe()

	service := chat.NewService(chat.ServiceConfig{
		Chats:    f.chats,
		Messages: f.messages,
		Presence: f.presence,
		Accounts: f.accounts,
		Router:   f.hub,
	})
	handler := NewHandler(HandlerConfig{
		Hub:      f.hub,
		Presence: NewPresenceRegistry(f.presence, f.chats, f.hub, nil),
		Accounts: f.accounts,
		Chat:     service,
	})

	router := gin.New()
	auth := middleware.AuthMiddleware(tokenTable{"tok-1": 1, "tok-2": 2, "tok-3": 3})
	router.GET("/ws/chat/:user_id", auth, handler.ServeChat)
	router.GET("/ws/notifications/:user_id", auth, handler.ServeNotifications)

	f.server = httptest.NewServer(router)
	t.Cleanup(f.server.Close)
	return f
}

func (f *wsFixture) dial(t *testing.T, path, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + path
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func (f *wsFixture) connect(t *testing.T, userID int, channel models.Channel, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := f.dial(t, "/ws/"+string(channel)+"/"+strconv.Itoa(userID), token)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool {
		return f.hub.groupSize(models.UserGroup(userID, channel)) > 0
	}, 2*time.Second, 10*time.Millisecond)
	return conn
}

// readFrame returns the first frame of the wanted type, skipping others.
func readFrame(t *testing.T, conn *websocket.Conn, wanted models.OutboundType) map[string]any {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", wanted)
		var frame map[string]any
		require.NoError(t, json.Unmarshal(payload, &frame))
		if frame["type"] == string(wanted) {
			return frame
		}
	}
}

func TestChatSocketRoundTrip(t *testing.T) {
	f := newWSFixture(t)
	room := models.ChatRoom{ID: 5, User1ID: 1, User2ID: 2}
	f.chats.On("GetChat", mock.Anything, 5).Return(room, nil)
	f.messages.On("CreateMessage", mock.Anything, mock.MatchedBy(func(m models.Message) bool {
		return m.ChatRoomID == 5 && m.SenderID == 1 && m.ReceiverID == 2 && m.Content == "hi"
	})).Return(models.Message{ID: 77, ChatRoomID: 5, SenderID: 1, ReceiverID: 2, Content: "hi", Type: models.MessageTypeText}, nil)

	receiver := f.connect(t, 2, models.ChannelChat, "tok-2")
	sender := f.connect(t, 1, models.ChannelChat, "tok-1")

	online := readFrame(t, receiver, models.OutboundUserOnlineStatus)
	assert.EqualValues(t, 1, online["user_id"])
	assert.Equal(t, true, online["is_online"])

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte(`{"type":"send_message","chatroom":5,"content":"hi"}`)))

	incoming := readFrame(t, receiver, models.OutboundNewMessage)
	assert.EqualValues(t, 77, incoming["message"].(map[string]any)["id"])
	sent := readFrame(t, sender, models.OutboundMessageSent)
	assert.Equal(t, "hi", sent["message"].(map[string]any)["content"])
}

func TestChatSocketRejectsOutsiderSend(t *testing.T) {
	f := newWSFixture(t)
	f.chats.On("GetChat", mock.Anything, 9).Return(models.ChatRoom{ID: 9, User1ID: 2, User2ID: 4}, nil)

	conn := f.connect(t, 1, models.ChannelChat, "tok-1")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"send_message","chatroom":9,"content":"hi"}`)))

	frame := readFrame(t, conn, models.OutboundError)
	assert.Equal(t, string(models.InboundSendMessage), frame["event"])
	assert.Equal(t, chat.ErrForbidden.Error(), frame["error"])
	f.messages.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}

func TestChatSocketAnswersInvalidFrameAndSurvivesGarbage(t *testing.T) {
	f := newWSFixture(t)
	conn := f.connect(t, 1, models.ChannelChat, "tok-1")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"mark_as_read"}`)))

	frame := readFrame(t, conn, models.OutboundError)
	assert.Equal(t, string(models.InboundMarkAsRead), frame["event"])
}

func TestNotificationSocketJoinsGlobalGroup(t *testing.T) {
	f := newWSFixture(t)
	conn := f.connect(t, 2, models.ChannelNotifications, "tok-2")
	require.Eventually(t, func() bool {
		return f.hub.groupSize(models.GlobalNotificationGroup) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.hub.SendToGroup(context.Background(), models.GlobalNotificationGroup,
		models.SystemNotification{Notification: models.Notification{ID: 1, Type: models.NotificationSystem, Title: "hello"}}))
	frame := readFrame(t, conn, models.OutboundSystemNotification)
	assert.Equal(t, "hello", frame["notification"].(map[string]any)["title"])

	conn.Close()
	require.Eventually(t, func() bool {
		return f.hub.groupSize(models.GlobalNotificationGroup) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandshakeRejections(t *testing.T) {
	f := newWSFixture(t)

	cases := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "missing token", path: "/ws/chat/1", status: http.StatusUnauthorized},
		{name: "bad token", path: "/ws/chat/1", token: "nope", status: http.StatusUnauthorized},
		{name: "other user", path: "/ws/chat/2", token: "tok-1", status: http.StatusForbidden},
		{name: "bad id", path: "/ws/notifications/abc", token: "tok-1", status: http.StatusBadRequest},
		{name: "unknown account", path: "/ws/chat/3", token: "tok-3", status: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn, resp, err := f.dial(t, tc.path, tc.token)
			if conn != nil {
				conn.Close()
			}
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestHandshakeRecordsServerSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	f := newWSFixture(t)
	conn := f.connect(t, 1, models.ChannelChat, "tok-1")
	conn.Close()

	var handshake sdktrace.ReadOnlySpan
	require.Eventually(t, func() bool {
		for _, span := range recorder.Ended() {
			if span.Name() == "ws.handshake" {
				handshake = span
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, trace.SpanKindServer, handshake.SpanKind())
	assert.Contains(t, handshake.Attributes(), attribute.String("ws.channel", "chat"))
	assert.Contains(t, handshake.Attributes(), attribute.Int("user.id", 1))
}
