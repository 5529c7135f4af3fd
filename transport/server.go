package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/courtside/scorecast/config"
	"github.com/courtside/scorecast/events"
	"github.com/courtside/scorecast/logger"
)

// Dispatcher routes one inbound message body to its event handler.
// *router.Dispatcher satisfies this.
type Dispatcher interface {
	Dispatch(ctx context.Context, namespace, sid string, body any) error
}

// Server upgrades HTTP requests to websocket sessions and runs their read
// loops. It is an http.Handler; the listener itself is owned by the caller.
type Server struct {
	hub        *Hub
	dispatcher Dispatcher
	upgrader   websocket.Upgrader
	rateLimit  rate.Limit
	rateBurst  int
}

// NewServer wires a websocket server onto a hub and a dispatcher.
func NewServer(cfg *config.Config, hub *Hub, dispatcher Dispatcher) *Server {
	limit := rate.Inf
	if cfg.Server.MessageRateLimit > 0 {
		limit = rate.Limit(cfg.Server.MessageRateLimit)
	}
	burst := cfg.Server.MessageRateBurst
	if burst <= 0 {
		burst = 1
	}

	return &Server{
		hub:        hub,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
		},
		rateLimit: limit,
		rateBurst: burst,
	}
}

// originChecker allows every origin when the list is empty, otherwise only
// the configured ones. Requests without an Origin header are not browsers
// and pass.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.ToLower(origin)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

// Hub returns the session hub.
func (s *Server) Hub() *Hub { return s.hub }

// ServeHTTP upgrades the request and blocks on the session's read loop
// until the client disconnects or the session is closed.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sess := newSession(conn, s.rateLimit, s.rateBurst)
	s.hub.Register(sess)
	defer s.hub.Unregister(sess.id)

	go sess.writePump()

	ctx := logger.WithSessionID(context.Background(), sess.id)
	ctx = logger.WithNamespace(ctx, r.URL.Path)
	logger.InfoContext(ctx, "Client connected", "remote", r.RemoteAddr)

	s.readLoop(ctx, sess, r.URL.Path)

	logger.InfoContext(ctx, "Client disconnected")
}

// readLoop consumes inbound frames and feeds them to the dispatcher.
// Messages are processed in arrival order for a given session.
func (s *Server) readLoop(ctx context.Context, sess *Session, namespace string) {
	sess.conn.SetReadLimit(maxMessageSize)
	_ = sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.DebugContext(ctx, "Session read failed", "error", err)
			}
			return
		}

		if !sess.limiter.Allow() {
			logger.WarnContext(ctx, "Rate limit exceeded")
			s.emitError(ctx, sess.id, "Rate limit exceeded")
			continue
		}

		// A frame that is not a JSON object is handed through as-is so the
		// dispatcher can reject it with its usual message.
		var body any
		if err := json.Unmarshal(data, &body); err != nil {
			body = string(data)
		}

		if err := s.dispatcher.Dispatch(ctx, namespace, sess.id, body); err != nil {
			var msgErr *events.MessageError
			if errors.As(err, &msgErr) {
				logger.WarnContext(ctx, "Message rejected", "error", msgErr.Message)
				s.emitError(ctx, sess.id, msgErr.Message)
			} else {
				logger.ErrorContext(ctx, "Message handling failed", "error", err)
				s.emitError(ctx, sess.id, "Internal server error")
			}
		}
	}
}

func (s *Server) emitError(ctx context.Context, sid, text string) {
	if err := s.hub.Emit(ctx, sid, events.EventGameError, events.ErrorPayload(text)); err != nil {
		logger.DebugContext(ctx, "Failed to emit error to session", "error", err)
	}
}
