package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInboundSendMessage(t *testing.T) {
	ev, err := DecodeInbound([]byte(`{"type":"send_message","chatroom":4,"content":"  hi "}`))
	require.NoError(t, err)

	send, ok := ev.(SendMessageEvent)
	require.True(t, ok)
	assert.Equal(t, 4, send.ChatRoomID)
	assert.Equal(t, "hi", send.Content)
	assert.Equal(t, MessageTypeText, send.MessageType)
}

func TestDecodeInboundRejectsEmptyContent(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"type":"send_message","chatroom":4,"content":"   "}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidEvent))
}

func TestDecodeInboundMissingIDs(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"type":"typing_status","is_typing":true}`))
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = DecodeInbound([]byte(`{"type":"mark_as_read"}`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestDecodeInboundUnknownAndMalformed(t *testing.T) {
	_, err := DecodeInbound([]byte(`{"type":"dance"}`))
	assert.ErrorIs(t, err, ErrUnknownEventType)

	_, err = DecodeInbound([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = DecodeInbound([]byte(`{"type":"mark_as_read","message_id":"seven"}`))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestEncodeOutboundAddsDiscriminator(t *testing.T) {
	frame, err := EncodeOutbound(TypingStatusUpdate{ChatRoomID: 3, UserID: 9, IsTyping: true})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(frame, &decoded))
	assert.Equal(t, "typing_status", decoded["type"])
	assert.Equal(t, float64(3), decoded["chatroom_id"])
	assert.Equal(t, true, decoded["is_typing"])
}

func TestUserGroupKeys(t *testing.T) {
	assert.Equal(t, "user:12:chat", UserGroup(12, ChannelChat))
	assert.Equal(t, "user:12:notifications", UserGroup(12, ChannelNotifications))
}
