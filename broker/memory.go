package broker

import (
	"context"
	"sync"

	"github.com/courtside/scorecast/events"
	"github.com/courtside/scorecast/logger"
	prom "github.com/courtside/scorecast/metrics/prometheus"
)

// subscriber is one registered queue inside the memory broker.
type subscriber struct {
	gameID   string
	channels []events.Channel
	queue    chan events.Message
	stop     chan struct{} // closed by Shutdown to wake the pump
	stream   *Subscription
}

// MemoryBroker is an in-process Broker backed by buffered channels.
//
// The subscriber registry is a nested map gameID -> channel -> queue set.
// Publish snapshots the queue set under a read lock and fans out without
// holding it, so a slow consumer never blocks registration or other
// publishers.
type MemoryBroker struct {
	mu       sync.RWMutex
	games    map[string]map[events.Channel]map[*subscriber]struct{}
	closed   bool
	queueCap int
}

// MemoryOption configures a MemoryBroker.
type MemoryOption func(*MemoryBroker)

// WithQueueCapacity overrides the per-subscriber queue capacity.
func WithQueueCapacity(n int) MemoryOption {
	return func(b *MemoryBroker) {
		if n > 0 {
			b.queueCap = n
		}
	}
}

// NewMemoryBroker creates an in-process broker.
func NewMemoryBroker(opts ...MemoryOption) *MemoryBroker {
	b := &MemoryBroker{
		games:    make(map[string]map[events.Channel]map[*subscriber]struct{}),
		queueCap: DefaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers msg to every current subscriber of (gameID, channel).
func (b *MemoryBroker) Publish(ctx context.Context, gameID string, channel events.Channel, msg events.Message) (int, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		logger.WarnContext(ctx, "Publish ignored, broker is shut down",
			"game_id", gameID,
			"channel", channel)
		return 0, nil
	}
	targets := make([]*subscriber, 0, len(b.games[gameID][channel]))
	for sub := range b.games[gameID][channel] {
		targets = append(targets, sub)
	}
	b.mu.RUnlock()

	return b.deliver(ctx, gameID, channel, msg, targets), nil
}

// Broadcast delivers msg to every subscriber of channel across all games.
func (b *MemoryBroker) Broadcast(ctx context.Context, channel events.Channel, msg events.Message) (int, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		logger.WarnContext(ctx, "Broadcast ignored, broker is shut down",
			"channel", channel)
		return 0, nil
	}
	targets := make(map[string][]*subscriber)
	for gameID, chans := range b.games {
		for sub := range chans[channel] {
			targets[gameID] = append(targets[gameID], sub)
		}
	}
	b.mu.RUnlock()

	total := 0
	for gameID, subs := range targets {
		total += b.deliver(ctx, gameID, channel, msg, subs)
	}
	return total, nil
}

// deliver posts msg to each target without blocking. Full queues drop the
// message so one stalled subscriber cannot hold up the stream.
func (b *MemoryBroker) deliver(ctx context.Context, gameID string, channel events.Channel, msg events.Message, targets []*subscriber) int {
	delivered, dropped := 0, 0
	for _, sub := range targets {
		select {
		case sub.queue <- msg:
			delivered++
		default:
			dropped++
			logger.WarnContext(ctx, "Subscriber queue full, dropping message",
				"game_id", gameID,
				"channel", channel)
		}
	}
	prom.RecordDelivery(string(channel), delivered, dropped)
	return delivered
}

// Subscribe registers one fresh queue on each requested channel and returns
// the stream draining it.
func (b *MemoryBroker) Subscribe(ctx context.Context, gameID string, channels []events.Channel) (*Subscription, error) {
	if len(channels) == 0 {
		return closedSubscription(), nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	sub := &subscriber{
		gameID:   gameID,
		channels: append([]events.Channel(nil), channels...),
		queue:    make(chan events.Message, b.queueCap),
		stop:     make(chan struct{}),
	}
	sub.stream = newSubscription(cancel)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cancel()
		return closedSubscription(), nil
	}
	for _, ch := range sub.channels {
		chans, ok := b.games[gameID]
		if !ok {
			chans = make(map[events.Channel]map[*subscriber]struct{})
			b.games[gameID] = chans
		}
		set, ok := chans[ch]
		if !ok {
			set = make(map[*subscriber]struct{})
			chans[ch] = set
		}
		set[sub] = struct{}{}
	}
	b.mu.Unlock()

	go b.pump(streamCtx, sub)

	logger.DebugContext(ctx, "Subscriber registered",
		"game_id", gameID,
		"channels", len(sub.channels))
	return sub.stream, nil
}

// pump moves messages from the subscriber queue to the stream until the
// context is cancelled, the broker shuts down, or a sentinel arrives.
func (b *MemoryBroker) pump(ctx context.Context, sub *subscriber) {
	defer func() {
		b.release(sub)
		sub.stream.finish()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.stop:
			return
		case msg := <-sub.queue:
			// Re-check shutdown before forwarding so a queued payload
			// is not handed out after the broker has been drained.
			select {
			case <-sub.stop:
				return
			default:
			}
			if IsSentinel(msg) {
				return
			}
			select {
			case sub.stream.out <- msg:
			case <-ctx.Done():
				return
			case <-sub.stop:
				return
			}
		}
	}
}

// release removes sub's queue from every channel it joined and prunes empty
// channel and game entries.
func (b *MemoryBroker) release(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	chans, ok := b.games[sub.gameID]
	if !ok {
		return
	}
	for _, ch := range sub.channels {
		set, ok := chans[ch]
		if !ok {
			continue
		}
		delete(set, sub)
		if len(set) == 0 {
			delete(chans, ch)
		}
	}
	if len(chans) == 0 {
		delete(b.games, sub.gameID)
	}
}

// Shutdown rejects further publishes, wakes every outstanding subscriber,
// and waits for their streams to terminate or ctx to expire.
func (b *MemoryBroker) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	seen := make(map[*subscriber]struct{})
	for _, chans := range b.games {
		for _, set := range chans {
			for sub := range set {
				seen[sub] = struct{}{}
			}
		}
	}
	b.games = make(map[string]map[events.Channel]map[*subscriber]struct{})
	b.mu.Unlock()

	for sub := range seen {
		close(sub.stop)
	}
	for sub := range seen {
		select {
		case <-sub.stream.done:
		case <-ctx.Done():
			logger.WarnContext(ctx, "Broker shutdown interrupted before all subscribers drained",
				"remaining", len(seen))
			return ctx.Err()
		}
	}

	logger.InfoContext(ctx, "Memory broker shut down", "subscribers", len(seen))
	return nil
}
