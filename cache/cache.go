package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// listCap bounds the per-room event list kept in Redis.
const listCap = 1000

// Publisher mirrors room log events into Redis for external consumers
// (live dashboards, moderation tooling). All publishing is best-effort;
// a failed publish is logged and dropped, never surfaced to gameplay.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher connects to Redis. If redisURL is empty, NewPublisher
// returns (nil, nil) and publishing becomes a no-op.
func NewPublisher(ctx context.Context, redisURL string) (*Publisher, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	slog.Info("connected to Redis", "tag", "cache")
	return &Publisher{rdb: rdb}, nil
}

// Close releases the Redis connection.
func (p *Publisher) Close() {
	if p != nil && p.rdb != nil {
		_ = p.rdb.Close()
	}
}

// PublishRoomEvent appends the event to the room's event list and fans it
// out on the room's pub/sub channel.
func (p *Publisher) PublishRoomEvent(ctx context.Context, roomCode string, event any) {
	if p == nil || p.rdb == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("marshaling room event", "tag", "cache", "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	key := "room:events:" + roomCode
	pipe := p.rdb.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -listCap, -1)
	pipe.Publish(ctx, "room:channel:"+roomCode, data)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("publishing room event", "tag", "cache", "room", roomCode, "err", err)
	}
}
