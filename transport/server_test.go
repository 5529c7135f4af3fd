package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/scorecast/config"
	"github.com/courtside/scorecast/events"
)

const waitTimeout = 2 * time.Second

type dispatchCall struct {
	namespace string
	sid       string
	body      any
}

type stubDispatcher struct {
	mu    sync.Mutex
	calls []dispatchCall
	err   error
}

func (d *stubDispatcher) Dispatch(ctx context.Context, namespace, sid string, body any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, dispatchCall{namespace: namespace, sid: sid, body: body})
	return d.err
}

func (d *stubDispatcher) captured() []dispatchCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.calls)
}

type wsFixture struct {
	hub        *Hub
	dispatcher *stubDispatcher
	url        string
}

func newWSFixture(t *testing.T, opts ...func(*config.Config)) *wsFixture {
	t.Helper()

	cfg := config.Default()
	for _, opt := range opts {
		opt(cfg)
	}

	hub := NewHub()
	dispatcher := &stubDispatcher{}
	ts := httptest.NewServer(NewServer(cfg, hub, dispatcher))
	t.Cleanup(func() {
		hub.Shutdown(context.Background())
		ts.Close()
	})

	return &wsFixture{
		hub:        hub,
		dispatcher: dispatcher,
		url:        "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
	}
}

func (f *wsFixture) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(f.url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// dialAndWait connects a client and reports the session id the hub assigned
// to it.
func (f *wsFixture) dialAndWait(t *testing.T) (*websocket.Conn, string) {
	t.Helper()

	before := f.hub.SessionIDs()
	conn := f.dial(t, nil)

	var sid string
	require.Eventually(t, func() bool {
		for _, id := range f.hub.SessionIDs() {
			if !slices.Contains(before, id) {
				sid = id
				return true
			}
		}
		return false
	}, waitTimeout, 5*time.Millisecond)
	return conn, sid
}

func writeFrame(t *testing.T, conn *websocket.Conn, msg events.Message) {
	t.Helper()

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(waitTimeout)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readFrame(t *testing.T, conn *websocket.Conn) events.Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitTimeout)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg events.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// requireNoFrame asserts that nothing arrives within a short window. The
// read deadline poisons the connection, so this must be the last read on it.
func requireNoFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(75*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
}

func TestServerSessionLifecycle(t *testing.T) {
	f := newWSFixture(t)

	conn, _ := f.dialAndWait(t)
	require.Equal(t, 1, f.hub.Len())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return f.hub.Len() == 0 }, waitTimeout, 5*time.Millisecond)
}

func TestServerDispatchesInboundFrames(t *testing.T) {
	f := newWSFixture(t)
	conn, sid := f.dialAndWait(t)

	writeFrame(t, conn, events.Message{
		events.KeyType:   events.EventGameJoin.String(),
		events.KeyGameID: "g1",
	})

	require.Eventually(t, func() bool { return len(f.dispatcher.captured()) == 1 }, waitTimeout, 5*time.Millisecond)

	call := f.dispatcher.captured()[0]
	assert.Equal(t, "/ws", call.namespace)
	assert.Equal(t, sid, call.sid)

	body, ok := call.body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, events.EventGameJoin.String(), body[events.KeyType])
	assert.Equal(t, "g1", body[events.KeyGameID])
}

func TestServerPassesNonObjectFramesThrough(t *testing.T) {
	f := newWSFixture(t)
	conn, _ := f.dialAndWait(t)

	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(waitTimeout)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("definitely not json")))

	require.Eventually(t, func() bool { return len(f.dispatcher.captured()) == 1 }, waitTimeout, 5*time.Millisecond)
	assert.Equal(t, "definitely not json", f.dispatcher.captured()[0].body)
}

func TestServerMessageErrorBecomesGameError(t *testing.T) {
	f := newWSFixture(t)
	f.dispatcher.err = events.NewMessageError("Invalid data schema.")

	conn, _ := f.dialAndWait(t)
	writeFrame(t, conn, events.Message{events.KeyType: "game.control.start"})

	msg := readFrame(t, conn)
	assert.Equal(t, events.EventGameError.String(), msg[events.KeyType])
	assert.Equal(t, "Invalid data schema.", msg[events.KeyError])
}

func TestServerMasksInternalErrors(t *testing.T) {
	f := newWSFixture(t)
	f.dispatcher.err = errors.New("connection pool exhausted")

	conn, _ := f.dialAndWait(t)
	writeFrame(t, conn, events.Message{events.KeyType: "game.control.start"})

	msg := readFrame(t, conn)
	assert.Equal(t, events.EventGameError.String(), msg[events.KeyType])
	assert.Equal(t, "Internal server error", msg[events.KeyError])
}

func TestServerRateLimit(t *testing.T) {
	f := newWSFixture(t, func(cfg *config.Config) {
		cfg.Server.MessageRateLimit = 0.001
		cfg.Server.MessageRateBurst = 1
	})
	conn, _ := f.dialAndWait(t)

	writeFrame(t, conn, events.Message{events.KeyType: "game.join", events.KeyGameID: "g1"})
	writeFrame(t, conn, events.Message{events.KeyType: "game.join", events.KeyGameID: "g1"})

	msg := readFrame(t, conn)
	assert.Equal(t, events.EventGameError.String(), msg[events.KeyType])
	assert.Equal(t, "Rate limit exceeded", msg[events.KeyError])

	// Only the first frame made it past the limiter.
	assert.Len(t, f.dispatcher.captured(), 1)
}

func TestServerOriginCheck(t *testing.T) {
	f := newWSFixture(t, func(cfg *config.Config) {
		cfg.Server.AllowedOrigins = []string{"https://courtside.example"}
	})

	t.Run("allowed origin", func(t *testing.T) {
		conn := f.dial(t, http.Header{"Origin": []string{"https://courtside.example"}})
		require.NoError(t, conn.Close())
	})

	t.Run("blocked origin", func(t *testing.T) {
		conn, resp, err := websocket.DefaultDialer.Dial(f.url, http.Header{
			"Origin": []string{"https://elsewhere.example"},
		})
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Nil(t, conn)
	})

	t.Run("no origin header", func(t *testing.T) {
		conn := f.dial(t, nil)
		require.NoError(t, conn.Close())
	})
}

func TestFrameEncoding(t *testing.T) {
	payload := events.ErrorPayload("boom")
	data, err := frame(events.EventGameError, payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "game.error", "error": "boom"}`, string(data))

	// The caller's payload is not mutated.
	_, tagged := payload[events.KeyType]
	assert.False(t, tagged)
}

func TestFrameEncodingNilPayload(t *testing.T) {
	data, err := frame(events.EventGameLeave, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "game.leave"}`, string(data))
}

func TestFrameEncodingRejectsUnmarshalable(t *testing.T) {
	_, err := frame(events.EventGameScoreUpdate, events.Message{"bad": make(chan int)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode")
}

func TestSessionEnqueueDisconnectsSlowConsumer(t *testing.T) {
	sess := &Session{id: "s1", send: make(chan []byte, 1), done: make(chan struct{})}

	require.True(t, sess.enqueue([]byte("a")))
	require.False(t, sess.enqueue([]byte("b")))

	select {
	case <-sess.done:
	default:
		t.Fatal("expected a full queue to close the session")
	}

	require.False(t, sess.enqueue([]byte("c")))
}

func TestSessionCloseIdempotent(t *testing.T) {
	sess := &Session{id: "s1", send: make(chan []byte, 1), done: make(chan struct{})}
	sess.close()
	sess.close()
}
