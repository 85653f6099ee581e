// Package redisrelay fans broadcasts out across processes through Redis pub/sub.
package redisrelay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rrapp/rentchat/internal/core"
)

// DefaultPrefix namespaces relay channels on a shared Redis.
const DefaultPrefix = "rentchat:"

// Relay publishes each broadcast to a per-group channel. Every process runs
// one subscriber that hands received events to its local registry, so a
// process sees its own broadcasts only after they round-trip through Redis.
type Relay struct {
	client   *redis.Client
	registry *core.Registry
	prefix   string
	log      zerolog.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

// New creates a relay for registry. Call registry.UseRelay and Run to activate it.
func New(client *redis.Client, registry *core.Registry, prefix string, logger *zerolog.Logger) *Relay {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "redis_relay").Logger()
	}
	return &Relay{client: client, registry: registry, prefix: prefix, log: l, ready: make(chan struct{})}
}

// Channel returns the pub/sub channel used for key.
func (r *Relay) Channel(key core.GroupKey) string {
	return r.prefix + string(key)
}

// Publish sends ev to every subscribed process.
func (r *Relay) Publish(ctx context.Context, key core.GroupKey, ev core.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.Channel(key), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", key, err)
	}
	return nil
}

// Run subscribes to all relay channels and delivers incoming events locally
// until ctx is cancelled. Messages are delivered in the order Redis sends them.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, r.prefix+"*")
	defer pubsub.Close()

	// Wait for the subscription so publishes right after Run are not missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	r.log.Info().Str("pattern", r.prefix+"*").Msg("relay subscribed")
	r.readyOnce.Do(func() { close(r.ready) })

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("relay subscription closed")
			}
			r.handle(msg)
		}
	}
}

// Ready is closed once Run has an active subscription.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

func (r *Relay) handle(msg *redis.Message) {
	key := core.GroupKey(strings.TrimPrefix(msg.Channel, r.prefix))

	var ev core.Event
	if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
		r.log.Warn().Err(err).Str("channel", msg.Channel).Msg("drop undecodable relay message")
		return
	}

	n := r.registry.Deliver(key, ev)
	r.log.Debug().Str("group", string(key)).Int("delivered", n).Msg("relayed event")
}
