// Package router validates and routes inbound client messages. A Router maps
// event types to handlers with optional JSON schemas; the Dispatcher walks an
// inbound payload through type parsing, route lookup, and schema validation
// before invoking the handler. Validation failures surface as
// events.MessageError so the transport can answer the sender; anything else
// is an internal failure.
package router

import (
	"context"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/courtside/scorecast/events"
	"github.com/courtside/scorecast/logger"
)

// Handler processes one validated inbound message.
type Handler interface {
	Handle(ctx context.Context, sid string, data events.Message) error
}

// Emitter pushes a wire event to one connected session. The transport hub
// satisfies it.
type Emitter interface {
	Emit(ctx context.Context, sid string, event events.EventType, payload events.Message) error
}

// Rooms admits sessions into game rooms. The transport hub satisfies it.
type Rooms interface {
	EnterRoom(ctx context.Context, sid, room string) error
}

// Route pairs a handler with its optional schema.
type Route struct {
	Handler Handler
	// Schema validates the raw payload before the handler runs. Nil skips
	// validation.
	Schema *gojsonschema.Schema
}

// Router maps event types to routes.
type Router struct {
	mu     sync.RWMutex
	routes map[events.EventType]Route
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[events.EventType]Route)}
}

// Register installs a route for t, overwriting any existing one with a
// warning.
func (r *Router) Register(t events.EventType, h Handler, schema *gojsonschema.Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.routes[t]; exists {
		logger.Warn("Overwriting route", "event_type", t.String())
	}
	r.routes[t] = Route{Handler: h, Schema: schema}
}

// Definition returns the route for t.
func (r *Router) Definition(t events.EventType) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.routes[t]
	return route, ok
}

// Len reports the number of registered routes.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.routes)
}

// LoadRoutes registers the standard game routes: the four control commands
// and the join request.
func LoadRoutes(r *Router, control, join Handler) {
	r.Register(events.EventGameControlStart, control, controlSchema)
	r.Register(events.EventGameControlPause, control, controlSchema)
	r.Register(events.EventGameControlResume, control, controlSchema)
	r.Register(events.EventGameControlSpeed, control, speedControlSchema)
	r.Register(events.EventGameJoin, join, joinSchema)
}
