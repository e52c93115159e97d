// Package progressbus is the optional Redis-backed fan-out of progress and
// project-identity events across editor windows sharing one backend
// session. It is purely additive: a single window's correctness never
// depends on it, and with no Redis address configured every method is a
// no-op.
package progressbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config configures the optional Redis connection. An empty Addr disables
// the bus entirely.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Event is one fanned-out progress or identity change, mirroring the
// orchestrator's own event payloads for another window to replay locally.
type Event struct {
	Kind      string      `json:"kind"`
	ProjectID string      `json:"projectId"`
	Payload   interface{} `json:"payload"`
}

// Bus publishes and subscribes to Event values over a single Redis channel
// per project. A Bus built from a disabled Config behaves as a working
// no-op: Publish returns nil immediately, Subscribe returns a closed
// channel.
type Bus struct {
	redis     *redis.Client
	keyPrefix string
}

// New builds a Bus. If cfg.Addr is empty, the returned Bus is disabled and
// every call is a no-op — Redis is never dialed.
func New(cfg Config) (*Bus, error) {
	if cfg.Addr == "" {
		return &Bus{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Bus{redis: client, keyPrefix: cfg.KeyPrefix}, nil
}

// Enabled reports whether this Bus actually fans out over Redis.
func (b *Bus) Enabled() bool {
	return b.redis != nil
}

func (b *Bus) channel(projectID string) string {
	return b.keyPrefix + "progress:" + projectID
}

// Publish fans an event out to other windows watching projectID. A no-op,
// disabled Bus always returns nil without touching the network.
func (b *Bus) Publish(ctx context.Context, projectID string, event Event) error {
	if !b.Enabled() {
		return nil
	}

	event.ProjectID = projectID
	encoded, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	return b.redis.Publish(ctx, b.channel(projectID), encoded).Err()
}

// Subscribe returns a channel of events published for projectID. The
// returned channel is closed when ctx is canceled. A disabled Bus returns
// an already-closed channel — callers can range over it unconditionally.
func (b *Bus) Subscribe(ctx context.Context, projectID string) <-chan Event {
	out := make(chan Event)
	if !b.Enabled() {
		close(out)
		return out
	}

	sub := b.redis.Subscribe(ctx, b.channel(projectID))
	msgs := sub.Channel()

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

// Close releases the underlying Redis connection, if any.
func (b *Bus) Close() error {
	if !b.Enabled() {
		return nil
	}
	return b.redis.Close()
}
