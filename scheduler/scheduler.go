// Package scheduler paces recorded game streams into the broker and owns the
// per-process registry of running games.
//
// Each game gets one Scheduler: a loop that pulls records from a feeder,
// publishes them on the game's scores channel, and sleeps the configured
// interval between emissions. A parallel consumer applies control commands
// (start, pause, resume, speed) arriving on the controls channel. Pause and
// speed changes interrupt the in-flight sleep so they take effect
// immediately; a pause left unattended past the configured deadline flips
// the game into autoplay rather than stranding its viewers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/courtside/scorecast/broker"
	"github.com/courtside/scorecast/events"
	"github.com/courtside/scorecast/feed"
	"github.com/courtside/scorecast/logger"
	prom "github.com/courtside/scorecast/metrics/prometheus"
)

// State names a scheduler lifecycle phase. The string values are the wire
// spellings reported in game metadata.
type State string

const (
	// StateNotStarted is the initial phase; the loop blocks at the pause
	// gate until a start command arrives.
	StateNotStarted State = "not_started"
	// StateOngoing is normal paced emission.
	StateOngoing State = "ongoing"
	// StatePaused is emission suspended by an operator, with the deadline
	// timer armed.
	StatePaused State = "paused"
	// StateAutoplay is emission resumed automatically after a pause
	// exceeded its deadline.
	StateAutoplay State = "autoplay"
)

func (s State) String() string { return string(s) }

const (
	defaultInterval     = time.Second
	defaultPauseTimeout = 60 * time.Second
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the initial delay between score emissions.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithPauseTimeout sets how long a game may stay paused before it resumes on
// its own. Zero or negative disables the deadline.
func WithPauseTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		s.pauseTimeout = d
	}
}

// Scheduler replays one game's recorded scores into the broker.
type Scheduler struct {
	gameID string
	broker broker.Broker
	feeder feed.Feeder

	gate *gate

	mu           sync.Mutex
	state        State
	interval     time.Duration
	pauseTimeout time.Duration
	pauseTimer   *time.Timer
	wake         context.CancelFunc // cancels the in-flight emission sleep
}

// New creates a scheduler for gameID. It does not start the loop; call Run.
func New(gameID string, b broker.Broker, f feed.Feeder, opts ...Option) *Scheduler {
	s := &Scheduler{
		gameID:       gameID,
		broker:       b,
		feeder:       f,
		gate:         newGate(),
		state:        StateNotStarted,
		interval:     defaultInterval,
		pauseTimeout: defaultPauseTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GameID returns the game this scheduler replays.
func (s *Scheduler) GameID() string { return s.gameID }

// State returns the current lifecycle phase.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interval returns the current delay between emissions.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Metadata combines the lifecycle phase with the feeder's game details.
func (s *Scheduler) Metadata(ctx context.Context) (events.Message, error) {
	details, err := s.feeder.Details(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load game details for %s: %w", s.gameID, err)
	}
	return events.Message{
		"game_state":     string(s.State()),
		events.KeyGameID: details.GameID,
		"teams":          details.Teams,
	}, nil
}

// Run drives the emission loop until the feeder is exhausted, ctx is
// cancelled, or an error occurs. Whichever way it exits, the control
// consumer is stopped and awaited and the feeder is cleaned up.
func (s *Scheduler) Run(ctx context.Context) (err error) {
	started := time.Now()
	prom.RecordSchedulerStart()
	defer func() {
		status := prom.StatusSuccess
		if err != nil && !errors.Is(err, context.Canceled) {
			status = prom.StatusError
		}
		prom.RecordSchedulerEnd(status, time.Since(started).Seconds())
	}()

	controlCtx, stopControls := context.WithCancel(ctx)
	controlsDone := make(chan struct{})
	go func() {
		defer close(controlsDone)
		s.consumeControls(controlCtx)
	}()

	defer func() {
		stopControls()
		<-controlsDone
		s.stopPauseTimer()
		if cerr := s.feeder.Cleanup(); cerr != nil {
			logger.WarnContext(ctx, "Feeder cleanup failed",
				"game_id", s.gameID,
				"error", cerr)
		}
		logger.InfoContext(ctx, "Scheduler finished", "game_id", s.gameID)
	}()

	for {
		record, err := s.feeder.Next(ctx)
		if errors.Is(err, feed.ErrExhausted) {
			return nil
		}
		if err != nil {
			logger.ErrorContext(ctx, "Run loop error",
				"game_id", s.gameID,
				"error", err)
			return fmt.Errorf("failed to read next score for game %s: %w", s.gameID, err)
		}

		if err := s.gate.Wait(ctx); err != nil {
			return err
		}

		if _, err := s.broker.Publish(ctx, s.gameID, events.ChannelScores, events.NewScoreUpdate(record)); err != nil {
			logger.ErrorContext(ctx, "Score publish failed",
				"game_id", s.gameID,
				"error", err)
			return fmt.Errorf("failed to publish score for game %s: %w", s.gameID, err)
		}
		prom.RecordScoreUpdates(1)

		if err := s.sleep(ctx); err != nil {
			return err
		}
	}
}

// Start begins (or restarts) paced emission.
func (s *Scheduler) Start() {
	logger.Info("Starting scheduler", "game_id", s.gameID)
	s.mu.Lock()
	s.state = StateOngoing
	s.mu.Unlock()
	s.gate.Set()
	prom.RecordControlEvent("start")
}

// Pause suspends emission and arms the pause deadline. The in-flight sleep
// is interrupted so the loop blocks at the gate right away.
func (s *Scheduler) Pause() {
	logger.Info("Pausing scheduler", "game_id", s.gameID)
	s.gate.Clear()
	s.mu.Lock()
	s.state = StatePaused
	s.armPauseTimerLocked()
	wake := s.wake
	s.mu.Unlock()
	if wake != nil {
		wake()
	}
	prom.RecordControlEvent("pause")
}

// Resume lifts a pause before its deadline fires.
func (s *Scheduler) Resume() {
	logger.Info("Resuming scheduler", "game_id", s.gameID)
	s.mu.Lock()
	s.state = StateOngoing
	s.stopPauseTimerLocked()
	s.mu.Unlock()
	s.gate.Set()
	prom.RecordControlEvent("resume")
}

// AdjustSpeed sets the delay between emissions to secs seconds and
// interrupts the in-flight sleep so it applies immediately. Non-positive
// values are ignored.
func (s *Scheduler) AdjustSpeed(secs float64) {
	if secs <= 0 {
		logger.Warn("Ignored invalid speed",
			"game_id", s.gameID,
			"speed", secs)
		return
	}
	logger.Info("Adjusting speed",
		"game_id", s.gameID,
		"speed", secs)
	s.mu.Lock()
	s.interval = time.Duration(secs * float64(time.Second))
	wake := s.wake
	s.mu.Unlock()
	if wake != nil {
		wake()
	}
	prom.RecordControlEvent("speed")
}

// autoplay fires when a pause outlives its deadline: the game resumes on its
// own so viewers are not stranded by an absent operator.
func (s *Scheduler) autoplay() {
	s.mu.Lock()
	if s.state != StatePaused {
		s.mu.Unlock()
		return
	}
	logger.Warn("Game paused past deadline, resuming automatically",
		"game_id", s.gameID,
		"timeout", s.pauseTimeout)
	s.state = StateAutoplay
	s.pauseTimer = nil
	wake := s.wake
	s.mu.Unlock()

	s.gate.Set()
	if wake != nil {
		wake()
	}
	prom.RecordControlEvent("autoplay")
}

func (s *Scheduler) armPauseTimerLocked() {
	if s.pauseTimeout <= 0 {
		return
	}
	s.stopPauseTimerLocked()
	s.pauseTimer = time.AfterFunc(s.pauseTimeout, s.autoplay)
}

func (s *Scheduler) stopPauseTimerLocked() {
	if s.pauseTimer != nil {
		s.pauseTimer.Stop()
		s.pauseTimer = nil
	}
}

func (s *Scheduler) stopPauseTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopPauseTimerLocked()
}

// sleep waits the current interval between emissions. Pause and speed
// changes interrupt it; interruption is a normal wake, not an error. Only
// cancellation of ctx itself aborts.
func (s *Scheduler) sleep(ctx context.Context) error {
	sleepCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.wake = cancel
	d := s.interval
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.wake = nil
		s.mu.Unlock()
		cancel()
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-sleepCtx.Done():
		// ctx.Err is nil when only the sleep was interrupted.
		return ctx.Err()
	}
}

// consumeControls applies control commands from the game's controls channel
// until the subscription ends or ctx is cancelled.
func (s *Scheduler) consumeControls(ctx context.Context) {
	logger.DebugContext(ctx, "Subscribing to controls", "game_id", s.gameID)

	sub, err := s.broker.Subscribe(ctx, s.gameID, []events.Channel{events.ChannelControls})
	if err != nil {
		logger.ErrorContext(ctx, "Control subscription failed",
			"game_id", s.gameID,
			"error", err)
		return
	}
	defer func() {
		sub.Close()
		logger.InfoContext(ctx, "Scheduler unsubscribed from controls", "game_id", s.gameID)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Out():
			if !ok {
				return
			}
			s.handleControl(msg)
		}
	}
}

// handleControl dispatches one control message to its operation.
func (s *Scheduler) handleControl(msg events.Message) {
	logger.Debug("Received control message",
		"game_id", s.gameID,
		"message", msg)

	t, ok := events.TypeOf(msg)
	if !ok {
		logger.Warn("Unknown control type",
			"game_id", s.gameID,
			"type", msg[events.KeyType])
		return
	}

	switch t {
	case events.EventGameControlStart:
		s.Start()
	case events.EventGameControlPause:
		s.Pause()
	case events.EventGameControlResume:
		s.Resume()
	case events.EventGameControlSpeed:
		switch v := msg[events.KeySpeed].(type) {
		case float64:
			s.AdjustSpeed(v)
		case int:
			s.AdjustSpeed(float64(v))
		default:
			logger.Warn("Ignored invalid speed value",
				"game_id", s.gameID,
				"speed", v)
		}
	default:
		logger.Warn("Unknown control type",
			"game_id", s.gameID,
			"type", t)
	}
}
