package results

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestHubCoalescesSignals(t *testing.T) {
	hub := NewHub()
	ch, release := hub.Subscribe("u1")
	defer release()

	for i := 0; i < 5; i++ {
		assert.NoError(t, hub.Publish(context.Background(), "u1"))
	}
	assert.Len(t, ch, 1)
}

func TestHubReleaseRemovesSubscriber(t *testing.T) {
	hub := NewHub()
	_, release := hub.Subscribe("u1")
	_, release2 := hub.Subscribe("u1")
	assert.Equal(t, 2, hub.Subscribers("u1"))

	release()
	release()
	assert.Equal(t, 1, hub.Subscribers("u1"))
	release2()
	assert.Equal(t, 0, hub.Subscribers("u1"))
}

func TestRedisNotifierFallsBackToLocalHub(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	n := NewRedisNotifier(client, nil)
	ch, release := n.Subscribe("u1")
	defer release()

	err := n.Publish(context.Background(), "u1")
	assert.Error(t, err)
	assert.Len(t, ch, 1)
}
