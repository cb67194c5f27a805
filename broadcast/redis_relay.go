package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// envelope is the wire form of a room message on the Redis channel.
type envelope struct {
	Room    string          `json:"room"`
	Message json.RawMessage `json:"message"`
}

// ConnectRedis parses a redis:// URL and checks the server answers.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

type redisPublishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher sends room messages through a Redis channel so that every
// instance running a RedisRelay delivers them to its own clients.
type RedisPublisher struct {
	client  redisPublishClient
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, room string, msg Message) error {
	data, err := encodeEnvelope(room, msg)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, data).Err()
}

func encodeEnvelope(room string, msg Message) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}
	return json.Marshal(envelope{Room: room, Message: body})
}

// RedisRelay subscribes to the channel and hands every message to the local
// hub.
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	logger  *slog.Logger
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, hub: hub, logger: logger}
}

// Run blocks until ctx is done or the subscription closes.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.logger.Info("redis relay subscribed", slog.String("channel", r.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(m.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil || env.Room == "" {
		r.logger.Warn("discarding malformed relay message", slog.Int("bytes", len(payload)))
		return
	}
	r.hub.deliver(env.Room, env.Message)
}
