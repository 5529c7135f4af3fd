package router

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/scorecast/auth"
	"github.com/courtside/scorecast/broker"
	"github.com/courtside/scorecast/events"
	"github.com/courtside/scorecast/feed"
	"github.com/courtside/scorecast/scheduler"
)

const waitTimeout = 2 * time.Second

// stubFeeder serves a fixed header and always has a record ready. Handler
// tests never start the scheduler, so its run loop parks at the pause gate.
type stubFeeder struct {
	details    feed.Details
	detailsErr error
}

func (f *stubFeeder) Details(context.Context) (feed.Details, error) {
	if f.detailsErr != nil {
		return feed.Details{}, f.detailsErr
	}
	return f.details, nil
}

func (f *stubFeeder) Next(ctx context.Context) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return json.RawMessage(`{"point": 1}`), nil
}

func (f *stubFeeder) Cleanup() error { return nil }

type sessionEmit struct {
	sid     string
	event   events.EventType
	payload events.Message
}

type roomEntry struct{ sid, room string }

// sessionHub records session emissions and room entries. It satisfies the
// Emitter and Rooms contracts of this package and the relay's room emitter.
type sessionHub struct {
	mu       sync.Mutex
	emits    []sessionEmit
	entered  []roomEntry
	enterErr error
}

func (h *sessionHub) Emit(_ context.Context, sid string, event events.EventType, payload events.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emits = append(h.emits, sessionEmit{sid: sid, event: event, payload: payload})
	return nil
}

func (h *sessionHub) EmitTo(_ context.Context, room string, event events.EventType, payload events.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emits = append(h.emits, sessionEmit{sid: room, event: event, payload: payload})
	return nil
}

func (h *sessionHub) EnterRoom(_ context.Context, sid, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.enterErr != nil {
		return h.enterErr
	}
	h.entered = append(h.entered, roomEntry{sid: sid, room: room})
	return nil
}

func (h *sessionHub) emissions() []sessionEmit {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]sessionEmit, len(h.emits))
	copy(out, h.emits)
	return out
}

func (h *sessionHub) rooms() []roomEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]roomEntry, len(h.entered))
	copy(out, h.entered)
	return out
}

// newActiveGame builds a registry with one live scheduler for gameID on a
// fresh memory broker.
func newActiveGame(t *testing.T, gameID string) (*scheduler.Registry, *broker.MemoryBroker) {
	t.Helper()
	b := broker.NewMemoryBroker()
	factory := func(_ context.Context, id string) (feed.Feeder, error) {
		return &stubFeeder{details: feed.Details{
			GameID: id,
			Teams:  json.RawMessage(`["home", "away"]`),
		}}, nil
	}
	reg := scheduler.NewRegistry(b, factory)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = reg.Shutdown(ctx)
		_ = b.Shutdown(ctx)
	})

	if gameID != "" {
		_, _, _, err := reg.CreateOrGet(context.Background(), gameID)
		require.NoError(t, err)
	}
	return reg, b
}

func controlPayload(token string) events.Message {
	return events.Message{
		events.KeyType:      "game.control.pause",
		events.KeyGameID:    "g1",
		events.KeyToken:     token,
		events.KeyNamespace: "/game",
	}
}

func TestControlHandlerUnauthorized(t *testing.T) {
	reg, b := newActiveGame(t, "g1")
	hub := &sessionHub{}
	h := NewControlHandler(auth.NewStaticValidator("fan-token"), reg, b, hub)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "g1", []events.Channel{events.ChannelControls})
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, h.Handle(ctx, "sid-1", controlPayload("wrong-token")))

	emits := hub.emissions()
	require.Len(t, emits, 1)
	assert.Equal(t, events.EventGameError, emits[0].event)
	assert.Equal(t, "Unauthorized", emits[0].payload[events.KeyError])

	select {
	case msg := <-sub.Out():
		t.Fatalf("unexpected control publish: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestControlHandlerMissingToken(t *testing.T) {
	reg, b := newActiveGame(t, "g1")
	hub := &sessionHub{}
	h := NewControlHandler(auth.NewStaticValidator("fan-token"), reg, b, hub)

	body := controlPayload("")
	delete(body, events.KeyToken)
	require.NoError(t, h.Handle(context.Background(), "sid-1", body))

	emits := hub.emissions()
	require.Len(t, emits, 1)
	assert.Equal(t, "Unauthorized", emits[0].payload[events.KeyError])
}

func TestControlHandlerUnknownGame(t *testing.T) {
	reg, b := newActiveGame(t, "g1")
	hub := &sessionHub{}
	h := NewControlHandler(auth.NewStaticValidator("fan-token"), reg, b, hub)

	body := controlPayload("fan-token")
	body[events.KeyGameID] = "ghost"
	require.NoError(t, h.Handle(context.Background(), "sid-1", body))

	emits := hub.emissions()
	require.Len(t, emits, 1)
	assert.Equal(t, events.EventGameError, emits[0].event)
	assert.Equal(t, "Game not found or not running", emits[0].payload[events.KeyError])
}

func TestControlHandlerPublishesWithoutToken(t *testing.T) {
	reg, b := newActiveGame(t, "g1")
	hub := &sessionHub{}
	h := NewControlHandler(auth.NewStaticValidator("fan-token"), reg, b, hub)
	ctx := context.Background()

	sub, err := b.Subscribe(ctx, "g1", []events.Channel{events.ChannelControls})
	require.NoError(t, err)
	defer sub.Close()

	body := controlPayload("fan-token")
	require.NoError(t, h.Handle(ctx, "sid-1", body))
	assert.Empty(t, hub.emissions())

	select {
	case msg := <-sub.Out():
		assert.Equal(t, "game.control.pause", msg[events.KeyType])
		assert.Equal(t, "g1", msg[events.KeyGameID])
		assert.Equal(t, "/game", msg[events.KeyNamespace])
		_, hasToken := msg[events.KeyToken]
		assert.False(t, hasToken, "token must not reach the controls channel")
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for control publish")
	}

	// Stripping works on a copy.
	assert.Equal(t, "fan-token", body[events.KeyToken])
}
