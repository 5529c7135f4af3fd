package broker

import (
	"context"
	"sync"

	"github.com/courtside/scorecast/events"
)

// Subscription is one live message stream opened by Broker.Subscribe.
//
// Messages arrive on Out in publish order and Out is closed when the stream
// ends. Whichever way the stream ends, the subscriber's broker resources are
// released before Done is closed.
type Subscription struct {
	out    chan events.Message
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newSubscription(cancel context.CancelFunc) *Subscription {
	return &Subscription{
		out:    make(chan events.Message),
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// closedSubscription returns a subscription whose stream has already ended.
func closedSubscription() *Subscription {
	s := newSubscription(func() {})
	close(s.out)
	close(s.done)
	return s
}

// Out returns the message stream. It is closed once the stream ends.
func (s *Subscription) Out() <-chan events.Message {
	return s.out
}

// Done is closed once the stream has terminated and its broker resources
// are released.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close ends the stream and releases the subscriber's queue. It blocks until
// the stream has fully terminated and is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

// finish marks the stream terminated. Called exactly once by the owning pump
// after broker resources are released.
func (s *Subscription) finish() {
	close(s.out)
	close(s.done)
}
