package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// DefaultQueue is the Redis list jobs are pushed to.
const DefaultQueue = "chat:notifications"

// RedisNotifier pushes JSON jobs onto a Redis list (LPUSH). Delivery workers
// pop from the other end.
type RedisNotifier struct {
	Client redis.Cmdable
	Queue  string
	// Timeout bounds each enqueue; zero means two seconds.
	Timeout time.Duration
}

// NewRedisNotifier returns a notifier pushing to queue on client.
func NewRedisNotifier(client redis.Cmdable, queue string) *RedisNotifier {
	if queue == "" {
		queue = DefaultQueue
	}
	return &RedisNotifier{Client: client, Queue: queue, Timeout: defaultEnqueueTimeout}
}

func (n *RedisNotifier) NotifyNewMessage(ctx context.Context, room *domain.Room, msg *domain.Message, recipients []uint) error {
	if len(recipients) == 0 {
		return nil
	}
	return n.push(ctx, NewMessageJob(room, msg, recipients))
}

func (n *RedisNotifier) NotifyStaffNewSupportRoom(ctx context.Context, room *domain.Room) error {
	return n.push(ctx, NewSupportRoomJob(room))
}

func (n *RedisNotifier) push(ctx context.Context, j Job) error {
	payload, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = defaultEnqueueTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := n.Client.LPush(ctx, n.Queue, payload).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %s notification: %w", j.Kind, err)
	}
	return nil
}
