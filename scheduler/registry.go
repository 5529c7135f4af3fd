package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/courtside/scorecast/broker"
	"github.com/courtside/scorecast/feed"
	"github.com/courtside/scorecast/logger"
)

// cleanupJoinTimeout bounds how long Cleanup waits for a cancelled
// scheduler task to wind down.
const cleanupJoinTimeout = 2 * time.Second

// Task tracks the goroutine driving one scheduler's Run loop.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error // written once before done is closed
}

// Done is closed when the task's Run loop has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the Run loop's result. It is nil until Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Cancel asks the task's Run loop to stop.
func (t *Task) Cancel() { t.cancel() }

// RemoveHook is called after a game's entry leaves the registry, whether
// the scheduler finished on its own or was cleaned up.
type RemoveHook func(gameID string)

type entry struct {
	scheduler *Scheduler
	task      *Task
}

// Registry owns the process-wide map from game id to its running scheduler.
// One instance is constructed at bootstrap and passed to every collaborator.
type Registry struct {
	broker    broker.Broker
	feeders   feed.Factory
	schedOpts []Option
	hook      RemoveHook

	mu      sync.Mutex
	entries map[string]*entry
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRemoveHook installs a hook invoked after an entry is removed.
func WithRemoveHook(h RemoveHook) RegistryOption {
	return func(r *Registry) {
		r.hook = h
	}
}

// WithSchedulerOptions sets the options applied to every scheduler the
// registry constructs.
func WithSchedulerOptions(opts ...Option) RegistryOption {
	return func(r *Registry) {
		r.schedOpts = opts
	}
}

// NewRegistry creates an empty registry building feeders through the given
// factory.
func NewRegistry(b broker.Broker, feeders feed.Factory, opts ...RegistryOption) *Registry {
	r := &Registry{
		broker:  b,
		feeders: feeders,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the scheduler for gameID, if registered.
func (r *Registry) Get(gameID string) (*Scheduler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[gameID]
	if !ok {
		return nil, false
	}
	return e.scheduler, true
}

// Has reports whether a scheduler is registered for gameID.
func (r *Registry) Has(gameID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[gameID]
	return ok
}

// Len returns the number of registered games.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// GameIDs returns the ids of all registered games.
func (r *Registry) GameIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// CreateOrGet returns the scheduler and task for gameID, constructing and
// launching them if absent. The bool reports whether this call did the
// construction. Concurrent calls for the same game see exactly one
// construction; the critical section is the only code that inserts into
// the map.
func (r *Registry) CreateOrGet(ctx context.Context, gameID string) (*Scheduler, *Task, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[gameID]; ok {
		return e.scheduler, e.task, false, nil
	}

	feeder, err := r.feeders(ctx, gameID)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to build feeder for game %s: %w", gameID, err)
	}

	sched := New(gameID, r.broker, feeder, r.schedOpts...)

	// The run context is independent of the creating request; the
	// scheduler lives until its feeder is exhausted or it is cleaned up.
	runCtx, cancel := context.WithCancel(context.Background())
	task := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		task.err = sched.Run(runCtx)
		close(task.done)
	}()
	go r.watch(gameID, task)

	r.entries[gameID] = &entry{scheduler: sched, task: task}
	logger.InfoContext(ctx, "Scheduler created", "game_id", gameID)
	return sched, task, true, nil
}

// watch removes the entry once its task completes, whatever the exit
// reason, so a later request can rebuild the game.
func (r *Registry) watch(gameID string, task *Task) {
	<-task.done

	if err := task.Err(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Scheduler task failed",
			"game_id", gameID,
			"error", err)
	}

	r.mu.Lock()
	e, ok := r.entries[gameID]
	removed := ok && e.task == task
	if removed {
		delete(r.entries, gameID)
	}
	r.mu.Unlock()

	if removed {
		logger.Debug("Scheduler entry removed", "game_id", gameID)
		if r.hook != nil {
			r.hook(gameID)
		}
	}
}

// Cleanup removes gameID's entry, cancels a still-live task, and joins it
// with a bounded wait. A missing entry warns but is not an error.
func (r *Registry) Cleanup(ctx context.Context, gameID string) error {
	r.mu.Lock()
	e, ok := r.entries[gameID]
	if ok {
		delete(r.entries, gameID)
	}
	r.mu.Unlock()

	if !ok {
		logger.WarnContext(ctx, "Cleanup requested for unknown game", "game_id", gameID)
		return nil
	}

	e.task.Cancel()
	select {
	case <-e.task.Done():
	case <-time.After(cleanupJoinTimeout):
		logger.WarnContext(ctx, "Scheduler did not stop within the cleanup window",
			"game_id", gameID,
			"timeout", cleanupJoinTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	logger.InfoContext(ctx, "Scheduler cleaned up", "game_id", gameID)
	if r.hook != nil {
		r.hook(gameID)
	}
	return nil
}

// Shutdown cleans up every registered game concurrently and logs any
// residue after the join barrier.
func (r *Registry) Shutdown(ctx context.Context) error {
	ids := r.GameIDs()

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			return r.Cleanup(gctx, id)
		})
	}
	err := g.Wait()

	if residue := r.Len(); residue > 0 {
		logger.WarnContext(ctx, "Schedulers remained after shutdown", "count", residue)
	}
	logger.InfoContext(ctx, "Scheduler registry shut down", "games", len(ids))
	return err
}
