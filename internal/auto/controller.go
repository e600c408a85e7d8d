// Package auto implements bounded, interruptible chaining of follow-up
// turns driven by each turn's suggested queries.
package auto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inquest/internal/models"
	"inquest/internal/stream"
)

// ErrChainActive rejects a second chain for a session that already has one.
var ErrChainActive = errors.New("an investigation is already running for this session")

// Fixed user-visible vocabulary; internal errors never reach the stream.
const (
	msgChainBusy    = "an investigation is already running for this session"
	msgChainStopped = "investigation stopped"
)

// Runner executes one turn of the pipeline.
type Runner interface {
	RunTurn(ctx context.Context, sessionID, query string, emit stream.EmitFunc) (*models.QueryResult, string, error)
}

// Clock abstracts the settle delay so chaining is testable without
// wall-clock waits.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// State is a session's chaining status snapshot.
type State struct {
	Enabled bool `json:"enabled"`
	Counter int  `json:"counter"`
	Max     int  `json:"max"`
}

type chain struct {
	cancel  context.CancelFunc
	counter int
	max     int
}

// Controller owns at most one active chain per session.
type Controller struct {
	runner Runner
	clock  Clock
	max    int
	settle time.Duration
	log    *slog.Logger

	mu     sync.Mutex
	chains map[string]*chain
}

func NewController(runner Runner, max int, settle time.Duration, clock Clock, log *slog.Logger) *Controller {
	if max <= 0 {
		max = 20
	}
	if settle <= 0 {
		settle = 2 * time.Second
	}
	if clock == nil {
		clock = realClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		runner: runner,
		clock:  clock,
		max:    max,
		settle: settle,
		log:    log,
		chains: make(map[string]*chain),
	}
}

// Run executes the initial turn and then chains into suggested follow-ups:
// it continues exactly while the chain is enabled, the last turn produced
// suggestions, and fewer than max follow-ups have run. The first suggestion
// is always the one followed. Run blocks until the chain stops; Stop from
// another goroutine interrupts both the settle wait and the in-flight turn.
// maxOverride of zero uses the configured default.
func (c *Controller) Run(ctx context.Context, sessionID, query string, maxOverride int, emit stream.EmitFunc) error {
	max := c.max
	if maxOverride > 0 && maxOverride < max {
		max = maxOverride
	}

	chainCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := &chain{cancel: cancel, max: max}

	if sessionID != "" {
		if err := c.register(sessionID, ch); err != nil {
			_ = emit(stream.Error(msgChainBusy))
			return err
		}
		defer c.unregister(sessionID)
	}

	result, realID, err := c.runner.RunTurn(chainCtx, sessionID, query, emit)
	if err != nil {
		return c.finish(ctx, emit, err)
	}

	// The first turn may have created the session; the chain registers
	// under the real id so Stop can find it.
	if sessionID == "" {
		if err := c.register(realID, ch); err != nil {
			_ = emit(stream.Error(msgChainBusy))
			return err
		}
		defer c.unregister(realID)
		sessionID = realID
	}

	for len(result.SuggestedQueries) > 0 && c.counter(sessionID) < max {
		select {
		case <-c.clock.After(c.settle):
		case <-chainCtx.Done():
			return c.finish(ctx, emit, chainCtx.Err())
		}

		next := result.SuggestedQueries[0]
		n := c.increment(sessionID)
		// The chain-progress status rides inside the next turn's event
		// envelope, right behind its start frame.
		chainEmit := func(ev stream.Event) error {
			if err := emit(ev); err != nil {
				return err
			}
			if ev.Type == stream.EventStart {
				return emit(stream.Status(fmt.Sprintf("Auto-investigating %d/%d: %s", n, max, next)))
			}
			return nil
		}

		result, _, err = c.runner.RunTurn(chainCtx, sessionID, next, chainEmit)
		if err != nil {
			return c.finish(ctx, emit, err)
		}
	}

	c.log.Info("auto-investigation finished", "session", sessionID, "turns", c.counter(sessionID))
	return nil
}

// finish closes out an interrupted chain. A Stop cancels the chain context
// while the client's connection stays up; that client still gets a terminal
// error event with the fixed stop message. A client that disconnected gets
/// nothing: its parent context is already dead.
func (c *Controller) finish(parent context.Context, emit stream.EmitFunc, err error) error {
	if errors.Is(err, context.Canceled) && parent.Err() == nil {
		_ = emit(stream.Error(msgChainStopped))
	}
	return err
}

/// Stop interrupts the session's chain: the scheduled follow-up is cancelled
// and the in-flight turn's context aborts. Returns false when no chain is
// active.
func (c *Controller) Stop(sessionID string) bool {
	c.mu.Lock()
	ch, ok := c.chains[sessionID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch.cancel()
	return true
}

// State reports the session's chain status. Sessions without an active
// chain report a zero counter: the counter resets whenever chaining stops.
func (c *Controller) State(sessionID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.chains[sessionID]; ok {
		return State{Enabled: true, Counter: ch.counter, Max: ch.max}
	}
	return State{Enabled: false, Counter: 0, Max: c.max}
}

func (c *Controller) register(sessionID string, ch *chain) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.chains[sessionID]; ok {
		return ErrChainActive
	}
	c.chains[sessionID] = ch
	return nil
}

func (c *Controller) unregister(sessionID string) {
	c.mu.Lock()
	delete(c.chains, sessionID)
	c.mu.Unlock()
}

func (c *Controller) counter(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.chains[sessionID]; ok {
		return ch.counter
	}
	return 0
}

func (c *Controller) increment(sessionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch, ok := c.chains[sessionID]; ok {
		ch.counter++
		return ch.counter
	}
	return 0
}
