package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	routingKey string
	event      any
}

func (p *capturePublisher) Publish(_ context.Context, routingKey string, event any) error {
	p.routingKey = routingKey
	p.event = event
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func TestAuditEmitterBuildsEnvelope(t *testing.T) {
	publisher := &capturePublisher{}
	emitter := NewAuditEmitter(publisher, "audit.log", "social-service", "test", nil)
	userID := 42

	emitter.Emit(context.Background(), "INFO", "follow created", "req-1", &userID)

	assert.Equal(t, "audit.log", publisher.routingKey)
	envelope, ok := publisher.event.(AuditEnvelope)
	require.True(t, ok)
	assert.Equal(t, "audit_log", envelope.EventType)
	assert.Equal(t, "social-service", envelope.Service)
	assert.Equal(t, "req-1", envelope.RequestID)
	require.NotNil(t, envelope.UserID)
	assert.Equal(t, "42", *envelope.UserID)
	assert.Equal(t, AuditPayload{Level: "INFO", Text: "follow created"}, envelope.Payload)
}

func TestAuditEmitterNilIsNoop(t *testing.T) {
	var emitter *AuditEmitter
	emitter.Emit(context.Background(), "INFO", "ignored", "", nil)
}
