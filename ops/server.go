// Package ops exposes the operator surface of the service: an HTTP API for
// scheduler lifecycle, a health endpoint with the build version, and the
// mount point for the websocket transport.
package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/courtside/scorecast/logger"
	"github.com/courtside/scorecast/scheduler"
	"github.com/courtside/scorecast/version"
)

const defaultReadHeaderTimeout = 10 * time.Second

// Server serves the ops API and, when configured, the websocket endpoint on
// the same listener.
type Server struct {
	addr     string
	registry *scheduler.Registry
	ws       http.Handler

	httpSrvMu sync.Mutex
	httpSrv   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithWebSocket mounts a websocket handler at /ws.
func WithWebSocket(h http.Handler) Option {
	return func(s *Server) { s.ws = h }
}

// NewServer returns an ops server over the scheduler registry.
func NewServer(addr string, reg *scheduler.Registry, opts ...Option) *Server {
	s := &Server{addr: addr, registry: reg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the composed HTTP handler. The API routes are wrapped
// with otelhttp; the websocket endpoint is mounted outside the wrapper so
// connection lifetimes do not become spans.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/games/{game_id}/scheduler", s.handleCreateScheduler)
	api.HandleFunc("DELETE /v1/games/{game_id}/scheduler", s.handleDeleteScheduler)
	api.HandleFunc("GET /v1/games", s.handleListGames)
	api.HandleFunc("GET /healthz", s.handleHealthz)
	wrapped := otelhttp.NewHandler(api, "ops-api")

	root := http.NewServeMux()
	root.Handle("/v1/", wrapped)
	root.Handle("/healthz", wrapped)
	if s.ws != nil {
		root.Handle("/ws", s.ws)
	}
	return root
}

// ListenAndServe starts the HTTP server on the configured address.
// Only the header read is bounded: the listener carries long-lived
// websocket connections.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	s.httpSrvMu.Lock()
	s.httpSrv = srv
	s.httpSrvMu.Unlock()

	return srv.ListenAndServe()
}

// Shutdown drains the HTTP server. Websocket sessions must be closed first
// or the drain waits on their read loops.
func (s *Server) Shutdown(ctx context.Context) error {
	s.httpSrvMu.Lock()
	srv := s.httpSrv
	s.httpSrvMu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

type schedulerResponse struct {
	GameID    string          `json:"game_id"`
	GameState scheduler.State `json:"game_state"`
	Created   bool            `json:"created"`
}

type gameSummary struct {
	GameID    string          `json:"game_id"`
	GameState scheduler.State `json:"game_state"`
}

type listGamesResponse struct {
	Games []gameSummary `json:"games"`
}

func (s *Server) handleCreateScheduler(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("game_id")

	sched, _, created, err := s.registry.CreateOrGet(r.Context(), gameID)
	if err != nil {
		logger.WarnContext(r.Context(), "Scheduler creation failed",
			"game_id", gameID,
			"error", err)
		writeError(w, http.StatusNotFound, "game not found")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, schedulerResponse{
		GameID:    gameID,
		GameState: sched.State(),
		Created:   created,
	})
}

func (s *Server) handleDeleteScheduler(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("game_id")

	if !s.registry.Has(gameID) {
		writeError(w, http.StatusNotFound, "scheduler not found")
		return
	}
	if err := s.registry.Cleanup(r.Context(), gameID); err != nil {
		logger.ErrorContext(r.Context(), "Scheduler cleanup failed",
			"game_id", gameID,
			"error", err)
		writeError(w, http.StatusInternalServerError, "cleanup failed")
		return
	}

	logger.InfoContext(r.Context(), "Scheduler deleted", "game_id", gameID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	ids := s.registry.GameIDs()
	sort.Strings(ids)

	games := make([]gameSummary, 0, len(ids))
	for _, id := range ids {
		sched, ok := s.registry.Get(id)
		if !ok {
			continue
		}
		games = append(games, gameSummary{GameID: id, GameState: sched.State()})
	}
	writeJSON(w, http.StatusOK, listGamesResponse{Games: games})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.GetVersion(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
