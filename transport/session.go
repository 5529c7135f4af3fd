package transport

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/courtside/scorecast/logger"
)

const (
	// writeWait bounds each outbound frame write.
	writeWait = 10 * time.Second
	// pongWait is how long a session may stay silent before the read side
	// gives up on it.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize caps inbound frames; control and join payloads are
	// small.
	maxMessageSize = 4 * 1024
	// sendQueueSize buffers outbound frames per session.
	sendQueueSize = 256
)

// Session is one connected client. Writes are serialized through the send
// queue and a single write pump; the hub never touches the connection
// directly.
type Session struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	closeOnce sync.Once
	done      chan struct{}
}

func newSession(conn *websocket.Conn, limit rate.Limit, burst int) *Session {
	return &Session{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, sendQueueSize),
		limiter: rate.NewLimiter(limit, burst),
		done:    make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// close signals the write pump to send a close frame and stop. The
// connection itself is closed by the write pump; the read loop unblocks on
// that.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// enqueue hands a frame to the write pump without blocking. A session whose
// queue is full is disconnected rather than allowed to stall its producers.
func (s *Session) enqueue(data []byte) bool {
	select {
	case s.send <- data:
		return true
	case <-s.done:
		return false
	default:
		logger.Warn("Send queue full, disconnecting slow session", "sid", s.id)
		s.close()
		return false
	}
}

// writePump owns all writes on the connection: queued frames, pings, and
// the final close frame.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("Session write failed", "sid", s.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("Session ping failed", "sid", s.id, "error", err)
				return
			}
		case <-s.done:
			// Flush whatever is already queued, then say goodbye. Room
			// closure notices raced against shutdown land here.
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			for {
				select {
				case data := <-s.send:
					if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
						return
					}
				default:
					_ = s.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}
