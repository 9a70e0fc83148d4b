package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"portfolio-backend/internal/shared/telemetry"
)

// DefaultChangeChannel carries change signals between API instances.
const DefaultChangeChannel = "analysis_results:changed"

type changeMessage struct {
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

// RedisNotifier relays change signals through Redis Pub/Sub so every instance's
// subscribers hear about writes handled elsewhere. Local delivery goes through Hub.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
	local   *Hub
}

// NewRedisNotifier wraps client. Call Run to start forwarding remote signals.
func NewRedisNotifier(client redis.UniversalClient, local *Hub) *RedisNotifier {
	if local == nil {
		local = NewHub()
	}
	return &RedisNotifier{client: client, channel: DefaultChangeChannel, local: local}
}

// Publish sends the signal through Redis. If Redis is unreachable, local subscribers are
// still notified and the error is returned.
func (n *RedisNotifier) Publish(ctx context.Context, userID string) error {
	data, err := json.Marshal(changeMessage{UserID: userID, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		_ = n.local.Publish(ctx, userID)
		return fmt.Errorf("publish results change: %w", err)
	}
	return nil
}

func (n *RedisNotifier) Subscribe(userID string) (<-chan struct{}, func()) {
	return n.local.Subscribe(userID)
}

// Run forwards Redis messages to the local Hub until ctx is cancelled.
func (n *RedisNotifier) Run(ctx context.Context) error {
	pubsub := n.client.Subscribe(ctx, n.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", n.channel, err)
	}
	telemetry.Info("results.notifier_subscribed", map[string]any{"channel": n.channel})

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis channel %s closed", n.channel)
			}
			var change changeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil || change.UserID == "" {
				telemetry.Warn("results.notifier_bad_message", map[string]any{"payload": msg.Payload})
				continue
			}
			_ = n.local.Publish(ctx, change.UserID)
		}
	}
}

var _ Notifier = (*RedisNotifier)(nil)
