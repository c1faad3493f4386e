package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"social-service/internal/rabbitmq"
	"social-service/internal/repositories"
)

// PushRoutingKey is the queue binding consumed by the FCM delivery worker.
const PushRoutingKey = "push.fcm"

// PushJob is one device delivery handed to the push worker.
type PushJob struct {
	AccountID  int               `json:"account_id"`
	Token      string            `json:"token"`
	Platform   string            `json:"platform"`
	Title      string            `json:"title"`
	Body       string            `json:"body"`
	Data       map[string]string `json:"data,omitempty"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// AMQPPusher enqueues one push job per registered device token.
type AMQPPusher struct {
	tokens    repositories.NotificationRepository
	publisher rabbitmq.Publisher
	logger    *zap.Logger
}

// NewAMQPPusher constructs an AMQPPusher.
func NewAMQPPusher(tokens repositories.NotificationRepository, publisher rabbitmq.Publisher, logger *zap.Logger) *AMQPPusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPPusher{tokens: tokens, publisher: publisher, logger: logger}
}

// Push publishes a job per device and reports how many were accepted by the broker. Without a
// broker nothing is enqueued and the result is empty.
func (p *AMQPPusher) Push(ctx context.Context, accountID int, title, body string, data map[string]string) (PushResult, error) {
	if rabbitmq.PublisherMode(p.publisher) == "noop" {
		p.logger.Debug("push skipped, no broker", zap.Int("user_id", accountID))
		return PushResult{}, nil
	}
	tokens, err := p.tokens.DeviceTokens(ctx, accountID)
	if err != nil {
		return PushResult{}, err
	}

	var result PushResult
	now := time.Now().UTC()
	for _, token := range tokens {
		job := PushJob{
			AccountID:  accountID,
			Token:      token.Token,
			Platform:   token.Platform,
			Title:      title,
			Body:       body,
			Data:       data,
			EnqueuedAt: now,
		}
		if err := p.publisher.Publish(ctx, PushRoutingKey, job); err != nil {
			result.Failure++
			p.logger.Debug("push job publish failed", zap.Int("user_id", accountID), zap.Error(err))
			continue
		}
		result.Success++
	}
	return result, nil
}
