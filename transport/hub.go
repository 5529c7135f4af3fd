// Package transport exposes the websocket surface of the service: a hub of
// connected sessions grouped into per-game rooms, and an HTTP handler that
// upgrades connections and feeds inbound frames to the message dispatcher.
//
// Outbound frames are the event payload with the event name under "type",
// so a score update arrives as a single flat JSON object.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/courtside/scorecast/events"
	"github.com/courtside/scorecast/logger"
	prom "github.com/courtside/scorecast/metrics/prometheus"
)

// Hub tracks connected sessions and their room membership. It is the
// delivery side of the service: the relay and the event handlers emit
// through it, the read loops register and unregister through it.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]map[string]*Session
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
	}
}

// frame serializes an outbound event. The event name travels inside the
// payload under "type"; the payload is cloned so callers keep ownership.
func frame(event events.EventType, payload events.Message) ([]byte, error) {
	msg := maps.Clone(payload)
	if msg == nil {
		msg = events.Message{}
	}
	msg[events.KeyType] = event.String()

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", event, err)
	}
	return data, nil
}

// Register adds a session to the hub.
func (h *Hub) Register(sess *Session) {
	h.mu.Lock()
	h.sessions[sess.id] = sess
	h.mu.Unlock()

	prom.RecordSessionConnect()
	logger.Debug("Session registered", "sid", sess.id)
}

// Unregister removes a session and its room memberships. Rooms left empty
// are pruned.
func (h *Hub) Unregister(sid string) {
	h.mu.Lock()
	sess, ok := h.sessions[sid]
	if ok {
		delete(h.sessions, sid)
		for room, members := range h.rooms {
			delete(members, sid)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	sess.close()
	prom.RecordSessionDisconnect()
	logger.Debug("Session unregistered", "sid", sid)
}

// Emit delivers an event to a single session.
func (h *Hub) Emit(ctx context.Context, sid string, event events.EventType, payload events.Message) error {
	data, err := frame(event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	sess, ok := h.sessions[sid]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown session %q", sid)
	}

	if sess.enqueue(data) {
		prom.RecordFrameEmitted(event.String())
	}
	return nil
}

// EmitTo delivers an event to every member of a room. A member that cannot
// keep up is disconnected; the remaining members are unaffected.
func (h *Hub) EmitTo(ctx context.Context, room string, event events.EventType, payload events.Message) error {
	data, err := frame(event, payload)
	if err != nil {
		return err
	}

	h.mu.RLock()
	members := make([]*Session, 0, len(h.rooms[room]))
	for _, sess := range h.rooms[room] {
		members = append(members, sess)
	}
	h.mu.RUnlock()

	for _, sess := range members {
		if sess.enqueue(data) {
			prom.RecordFrameEmitted(event.String())
		}
	}
	return nil
}

// EnterRoom adds a session to a room, creating the room on first entry.
func (h *Hub) EnterRoom(ctx context.Context, sid, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.sessions[sid]
	if !ok {
		return fmt.Errorf("unknown session %q", sid)
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Session)
		h.rooms[room] = members
	}
	members[sid] = sess

	logger.DebugContext(ctx, "Session entered room", "sid", sid, "room", room)
	return nil
}

// LeaveRoom removes a session from a room. Unknown sessions and rooms are
// ignored.
func (h *Hub) LeaveRoom(ctx context.Context, sid, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, sid)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// CloseRoom tells every member the game is over and dissolves the room.
// Members stay connected and may join another game.
func (h *Hub) CloseRoom(ctx context.Context, room string) {
	_ = h.EmitTo(ctx, room, events.EventGameLeave, events.Message{events.KeyGameID: room})

	h.mu.Lock()
	members := len(h.rooms[room])
	delete(h.rooms, room)
	h.mu.Unlock()

	logger.InfoContext(ctx, "Room closed", "room", room, "members", members)
}

// Rooms lists the rooms a session is currently in.
func (h *Hub) Rooms(sid string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var rooms []string
	for room, members := range h.rooms {
		if _, ok := members[sid]; ok {
			rooms = append(rooms, room)
		}
	}
	sort.Strings(rooms)
	return rooms
}

// Participants lists the session ids in a room.
func (h *Hub) Participants(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sids := make([]string, 0, len(h.rooms[room]))
	for sid := range h.rooms[room] {
		sids = append(sids, sid)
	}
	sort.Strings(sids)
	return sids
}

// Len reports the number of connected sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// SessionIDs lists all connected session ids.
func (h *Hub) SessionIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sids := make([]string, 0, len(h.sessions))
	for sid := range h.sessions {
		sids = append(sids, sid)
	}
	sort.Strings(sids)
	return sids
}

// Shutdown disconnects every session. Used on service shutdown after the
// schedulers and relays have stopped.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, sess := range h.sessions {
		sessions = append(sessions, sess)
	}
	h.sessions = make(map[string]*Session)
	h.rooms = make(map[string]map[string]*Session)
	h.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
		prom.RecordSessionDisconnect()
	}
	logger.InfoContext(ctx, "Hub shut down", "sessions", len(sessions))
}
