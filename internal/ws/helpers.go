package ws

import (
	"context"
	"time"

	"social-service/internal/models"
	"social-service/internal/observability"
)

func wsRoutingKey(channel models.Channel) string {
	if channel == models.ChannelNotifications {
		return "ws_events.notifications"
	}
	return "ws_events.chats"
}

// publishWSEvent counts a connection lifecycle event and publishes it on the event exchange.
func publishWSEvent(ctx context.Context, channel models.Channel, event string, info ConnInfo, reason string) {
	observability.IncWSEvent(string(channel), event)

	var durationMS int64
	if event != "ws_connect" {
		durationMS = time.Since(info.ConnectedAt).Milliseconds()
	}
	_ = observability.PublishEvent(ctx, wsRoutingKey(channel), observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"kind":        string(channel),
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": durationMS,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id":   info.UserID,
				"device_id": info.DeviceID,
				"ip":        info.IP,
			},
		},
	}, observability.BuildHeaders(info.RequestID, info.TraceID))
}
