// Package redisbus relays lobby-wide broadcasts between matchbroker instances
// through Redis publish/subscribe.
//
// Rooms live on the instance whose clients joined them, so only global
// events such as room-list-changed cross instances. Every message carries the
// publishing instance id and each instance drops its own messages when they
// come back from Redis.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wricardo/matchbroker/lobby/broker"
)

// DefaultChannel is the Redis channel used when none is configured.
const DefaultChannel = "matchbroker:lobby"

type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// Message is the envelope published on the Redis channel.
type Message struct {
	Origin string       `json:"origin"`
	Event  broker.Event `json:"event"`
}

type Bus struct {
	rdb     *redis.Client
	channel string
	origin  string
	log     *zap.Logger
}

// New connects to Redis and verifies connectivity.
func New(ctx context.Context, opts Options, log *zap.Logger) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", opts.Addr, err)
	}
	return NewWithClient(rdb, opts.Channel, log), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *redis.Client, channel string, log *zap.Logger) *Bus {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		rdb:     rdb,
		channel: channel,
		origin:  uuid.NewString(),
		log:     log,
	}
}

// Origin returns the id stamped on messages from this instance.
func (b *Bus) Origin() string { return b.origin }

// Publish sends ev to every other instance.
func (b *Bus) Publish(ctx context.Context, ev broker.Event) error {
	raw, err := b.encode(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe invokes fn for every event published by other instances until
// ctx is done.
func (b *Bus) Subscribe(ctx context.Context, fn func(broker.Event)) {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ev, remote, err := b.decode([]byte(msg.Payload))
			if err != nil {
				b.log.Warn("dropping malformed bus message", zap.Error(err))
				continue
			}
			if remote {
				fn(ev)
			}
		}
	}
}

// Close shuts down the redis connection.
func (b *Bus) Close() error { return b.rdb.Close() }

func (b *Bus) encode(ev broker.Event) ([]byte, error) {
	raw, err := json.Marshal(Message{Origin: b.origin, Event: ev})
	if err != nil {
		return nil, fmt.Errorf("failed to encode bus message: %w", err)
	}
	return raw, nil
}

// decode reports whether the message came from another instance.
func (b *Bus) decode(raw []byte) (broker.Event, bool, error) {
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return broker.Event{}, false, err
	}
	if m.Event.Type == "" {
		return broker.Event{}, false, fmt.Errorf("bus message without event type")
	}
	return m.Event, m.Origin != b.origin, nil
}
