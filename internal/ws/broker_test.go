package ws

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/models"
)

func TestRedisBrokerDeliversThroughSubscription(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	hub := NewHub(nil)
	broker := NewRedisBroker(client, hub, nil)
	hub.UseBroker(broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- broker.Run(ctx, ready) }()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatalf("broker subscription not ready")
	}

	member := testClient(8, models.ChannelNotifications, 4)
	hub.Join(models.GlobalNotificationGroup, member)

	err := hub.SendToGroup(ctx, models.GlobalNotificationGroup,
		models.SystemNotification{Notification: models.Notification{ID: 3, Type: models.NotificationSystem, Title: "hello"}})
	require.NoError(t, err)

	select {
	case payload := <-member.send:
		assert.Contains(t, string(payload), `"type":"system_notification"`)
		assert.Contains(t, string(payload), `"title":"hello"`)
	case <-time.After(2 * time.Second):
		t.Fatalf("expected broker delivery")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("broker did not stop")
	}
}
