package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aimd54/callcenter-gamification/internal/service/gamification"
)

// Broadcaster publishes messages on pub/sub channels.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// Publisher forwards notifications to Redis pub/sub so other instances and services can react.
// Every notification goes to "<prefix>:notifications" and to "<prefix>:operator:<id>".
type Publisher struct {
	broadcaster Broadcaster
	prefix      string
}

// NewPublisher creates a pub/sub publisher.
func NewPublisher(b Broadcaster, prefix string) *Publisher {
	if prefix == "" {
		prefix = "gamification"
	}
	return &Publisher{broadcaster: b, prefix: prefix}
}

// Channel returns the channel that carries every notification.
func (p *Publisher) Channel() string {
	return p.prefix + ":notifications"
}

// OperatorChannel returns the channel that carries one operator's notifications.
func (p *Publisher) OperatorChannel(operatorID uint) string {
	return fmt.Sprintf("%s:operator:%d", p.prefix, operatorID)
}

// Notify implements gamification.Notifier.
func (p *Publisher) Notify(ctx context.Context, n gamification.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := p.broadcaster.Publish(ctx, p.Channel(), data); err != nil {
		return err
	}
	return p.broadcaster.Publish(ctx, p.OperatorChannel(n.OperatorID), data)
}
