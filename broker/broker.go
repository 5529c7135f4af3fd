// Package broker fans game events out from schedulers to their subscribers.
//
// A broker routes messages keyed by (game id, channel). The memory variant
// serves single-process deployments and tests; the redis variant layers the
// same contract over redis pub/sub so several server processes can share one
// stream. Delivery is at-most-once: a subscriber whose queue is full loses
// the message rather than stalling the publisher.
package broker

import (
	"context"

	"github.com/courtside/scorecast/events"
)

// DefaultQueueCapacity bounds each subscriber queue. Publishes that find a
// queue full are dropped, not blocked on.
const DefaultQueueCapacity = 100

// sentinelKey marks an in-band end-of-stream envelope.
const sentinelKey = "__sentinel__"

// Broker routes messages between game schedulers and their subscribers.
type Broker interface {
	// Publish delivers msg to every current subscriber of (gameID, channel)
	// and returns the number of queues it reached. A shut-down broker
	// returns 0.
	Publish(ctx context.Context, gameID string, channel events.Channel, msg events.Message) (int, error)

	// Subscribe opens a message stream for gameID covering the given
	// channels. The stream ends when the subscription is closed, ctx is
	// cancelled, or the broker shuts down. An empty channel set yields a
	// stream that terminates immediately.
	Subscribe(ctx context.Context, gameID string, channels []events.Channel) (*Subscription, error)

	// Broadcast delivers msg to every subscriber of channel across all
	// games and returns the number of queues it reached.
	Broadcast(ctx context.Context, channel events.Channel, msg events.Message) (int, error)

	// Shutdown is idempotent. It rejects further publishes, wakes every
	// outstanding subscription, and waits for them to wind down or ctx to
	// expire.
	Shutdown(ctx context.Context) error
}

// Sentinel returns the end-of-stream envelope. It is published on shutdown
// so remote subscribers terminate instead of blocking on a dead stream.
func Sentinel() events.Message {
	return events.Message{sentinelKey: true}
}

// IsSentinel reports whether msg is the end-of-stream envelope.
func IsSentinel(msg events.Message) bool {
	_, ok := msg[sentinelKey]
	return ok
}
