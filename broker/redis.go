package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/courtside/scorecast/events"
	"github.com/courtside/scorecast/logger"
	prom "github.com/courtside/scorecast/metrics/prometheus"
)

// channelName returns the underlying pub/sub channel for one game channel.
func channelName(gameID string, channel events.Channel) string {
	return "game:" + gameID + ":" + string(channel)
}

// broadcastName returns the wildcard-form channel used by Broadcast.
func broadcastName(channel events.Channel) string {
	return "game:*:" + string(channel)
}

// RedisBroker is a Broker backed by redis pub/sub, for deployments where
// schedulers and client-facing servers run in separate processes.
//
// Each game channel maps to the redis channel game:<game_id>:<channel> and
// payloads travel as JSON. Shutdown publishes a sentinel envelope on every
// channel with live local subscribers so their streams terminate instead of
// blocking on a dead connection. The broker does not own the client; the
// caller closes it after Shutdown.
type RedisBroker struct {
	client *redis.Client

	mu     sync.Mutex
	closed bool
	// tracked counts live local subscribers per underlying channel name so
	// Shutdown knows where sentinels must go.
	tracked map[string]int
	subs    map[*Subscription]struct{}
}

// NewRedisBroker creates a broker on top of an already-connected client.
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{
		client:  client,
		tracked: make(map[string]int),
		subs:    make(map[*Subscription]struct{}),
	}
}

// Publish delivers msg on the game channel and returns the number of
// connections redis reports as receivers.
func (b *RedisBroker) Publish(ctx context.Context, gameID string, channel events.Channel, msg events.Message) (int, error) {
	if b.isClosed() {
		logger.WarnContext(ctx, "Publish ignored, broker is shut down",
			"game_id", gameID,
			"channel", channel)
		return 0, nil
	}
	n, err := b.publish(ctx, channelName(gameID, channel), msg)
	if err != nil {
		return 0, fmt.Errorf("failed to publish to game %s: %w", gameID, err)
	}
	prom.RecordDelivery(string(channel), n, 0)
	return n, nil
}

// Broadcast publishes msg on the wildcard-form channel name. Only
// subscribers wired to that exact name receive it, so the returned count is
// best-effort.
func (b *RedisBroker) Broadcast(ctx context.Context, channel events.Channel, msg events.Message) (int, error) {
	if b.isClosed() {
		logger.WarnContext(ctx, "Broadcast ignored, broker is shut down",
			"channel", channel)
		return 0, nil
	}
	n, err := b.publish(ctx, broadcastName(channel), msg)
	if err != nil {
		return 0, fmt.Errorf("failed to broadcast on channel %s: %w", channel, err)
	}
	prom.RecordDelivery(string(channel), n, 0)
	return n, nil
}

func (b *RedisBroker) publish(ctx context.Context, name string, msg events.Message) (int, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to encode message: %w", err)
	}
	n, err := b.client.Publish(ctx, name, payload).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Subscribe opens one redis subscription covering the game's channels and
// returns the stream draining it.
func (b *RedisBroker) Subscribe(ctx context.Context, gameID string, channels []events.Channel) (*Subscription, error) {
	if len(channels) == 0 {
		return closedSubscription(), nil
	}
	if b.isClosed() {
		return closedSubscription(), nil
	}

	names := make([]string, len(channels))
	for i, ch := range channels {
		names[i] = channelName(gameID, ch)
	}

	pubsub := b.client.Subscribe(ctx, names...)
	// Force the SUBSCRIBE round-trip so connection failures surface here
	// rather than as a silently empty stream.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to game %s: %w", gameID, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	s := newSubscription(cancel)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		_ = pubsub.Close()
		return closedSubscription(), nil
	}
	for _, name := range names {
		b.tracked[name]++
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go b.pump(streamCtx, pubsub, names, s)

	logger.DebugContext(ctx, "Subscriber registered",
		"game_id", gameID,
		"channels", len(names))
	return s, nil
}

// pump forwards decoded payloads to the stream until the context is
// cancelled, the connection drops, or a sentinel envelope arrives.
func (b *RedisBroker) pump(ctx context.Context, pubsub *redis.PubSub, names []string, s *Subscription) {
	defer func() {
		_ = pubsub.Close()
		b.release(names, s)
		s.finish()
	}()

	in := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			var msg events.Message
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				logger.WarnContext(ctx, "Discarding malformed broker payload",
					"channel", m.Channel,
					"error", err)
				continue
			}
			if IsSentinel(msg) {
				return
			}
			select {
			case s.out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

// release drops the subscriber's claim on its channel names.
func (b *RedisBroker) release(names []string, s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, name := range names {
		if n := b.tracked[name]; n <= 1 {
			delete(b.tracked, name)
		} else {
			b.tracked[name] = n - 1
		}
	}
	delete(b.subs, s)
}

func (b *RedisBroker) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Shutdown publishes the sentinel envelope on every channel with live local
// subscribers, then waits for their streams to terminate or ctx to expire.
func (b *RedisBroker) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	names := make([]string, 0, len(b.tracked))
	for name := range b.tracked {
		names = append(names, name)
	}
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	payload, err := json.Marshal(Sentinel())
	if err != nil {
		return fmt.Errorf("failed to encode shutdown sentinel: %w", err)
	}
	for _, name := range names {
		if err := b.client.Publish(ctx, name, payload).Err(); err != nil {
			logger.WarnContext(ctx, "Failed to publish shutdown sentinel",
				"channel", name,
				"error", err)
		}
	}

	for _, s := range subs {
		select {
		case <-s.done:
		case <-ctx.Done():
			logger.WarnContext(ctx, "Broker shutdown interrupted before all subscribers drained",
				"remaining", len(subs))
			return ctx.Err()
		}
	}

	logger.InfoContext(ctx, "Redis broker shut down",
		"channels", len(names),
		"subscribers", len(subs))
	return nil
}
