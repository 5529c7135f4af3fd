// Package relay bridges broker subscriptions into client rooms. A Manager
// owns at most one listener per (game, channel-set) key no matter how many
// clients request the same bridge; each listener reads broker messages,
// passes them through a caller-supplied Processor, and emits the result to
// the game's room.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/courtside/scorecast/broker"
	"github.com/courtside/scorecast/events"
	"github.com/courtside/scorecast/logger"
	prom "github.com/courtside/scorecast/metrics/prometheus"
)

// Processor normalizes a broker message into a client emission. Returning
// ok=false discards the message silently.
type Processor func(msg events.Message) (events.EventType, events.Message, bool)

// Emitter pushes a wire event to every session in a room. The transport hub
// satisfies it.
type Emitter interface {
	EmitTo(ctx context.Context, room string, event events.EventType, payload events.Message) error
}

// Key names a relay listener. The channel set is sorted so the same
// (game, channels) request always maps to the same listener regardless of
// channel order.
func Key(gameID string, channels []events.Channel) string {
	names := make([]string, len(channels))
	for i, c := range channels {
		names[i] = string(c)
	}
	sort.Strings(names)
	return gameID + ":" + strings.Join(names, "+")
}

// listener is one running broker-to-room bridge.
type listener struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager tracks the running relay listeners.
type Manager struct {
	broker  broker.Broker
	emitter Emitter

	mu        sync.Mutex
	listeners map[string]*listener
}

// NewManager returns a Manager that subscribes through b and emits through e.
func NewManager(b broker.Broker, e Emitter) *Manager {
	return &Manager{
		broker:    b,
		emitter:   e,
		listeners: make(map[string]*listener),
	}
}

// StartListener ensures a listener exists for (gameID, channels). The
// existence check, the broker subscribe, and the task registration happen
// under one lock so concurrent starts for the same key create exactly one
// listener. The listener outlives the starting request; it ends on StopAll,
// broker shutdown, or subscription close, and deregisters itself whatever
// the exit reason.
func (m *Manager) StartListener(ctx context.Context, gameID string, channels []events.Channel, room string, proc Processor) error {
	if len(channels) == 0 {
		return errors.New("relay requires at least one channel")
	}
	if proc == nil {
		return errors.New("relay requires a processor")
	}
	key := Key(gameID, channels)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.listeners[key]; ok {
		logger.DebugContext(ctx, "Reusing existing relay listener", "key", key)
		return nil
	}

	// The listener's lifetime belongs to the manager, not to the request
	// that happened to arrive first.
	runCtx, cancel := context.WithCancel(context.Background())
	sub, err := m.broker.Subscribe(runCtx, gameID, channels)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start relay for game %s: %w", gameID, err)
	}

	l := &listener{cancel: cancel, done: make(chan struct{})}
	m.listeners[key] = l
	go m.run(runCtx, l, sub, key, room, proc)

	logger.InfoContext(ctx, "Relay listener started", "key", key, "room", room)
	return nil
}

// run pumps one subscription into the room until the stream ends or the
// listener is cancelled.
func (m *Manager) run(ctx context.Context, l *listener, sub *broker.Subscription, key, room string, proc Processor) {
	prom.RecordRelayStart()
	defer func() {
		sub.Close()
		m.remove(key, l)
		prom.RecordRelayStop()
		close(l.done)
		logger.Debug("Relay listener removed", "key", key)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Out():
			if !ok {
				logger.Debug("Relay subscription ended", "key", key)
				return
			}
			event, payload, keep := proc(msg)
			if !keep {
				continue
			}
			if err := m.emitter.EmitTo(ctx, room, event, payload); err != nil {
				logger.Warn("Relay emission failed",
					"key", key, "room", room, "error", err)
			}
		}
	}
}

// remove deregisters l, unless the key was already re-registered by a newer
// listener.
func (m *Manager) remove(key string, l *listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listeners[key] == l {
		delete(m.listeners, key)
	}
}

// StopAll cancels every listener, waits for all of them to finish, and
// clears the registry. Callers may start new listeners afterwards.
func (m *Manager) StopAll() {
	m.mu.Lock()
	stopped := make([]*listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		stopped = append(stopped, l)
	}
	m.listeners = make(map[string]*listener)
	m.mu.Unlock()

	if len(stopped) == 0 {
		return
	}
	for _, l := range stopped {
		l.cancel()
	}
	for _, l := range stopped {
		<-l.done
	}
	logger.Info("All relay listeners stopped", "count", len(stopped))
}

// Len reports the number of running listeners.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// Has reports whether a listener is registered under key.
func (m *Manager) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.listeners[key]
	return ok
}
