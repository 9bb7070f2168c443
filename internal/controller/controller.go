package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sudodev/sudodev-cli/internal/domain"
	"github.com/sudodev/sudodev-cli/internal/poller"
	"github.com/sudodev/sudodev-cli/internal/session"
)

// Validation failures are reported synchronously from Submit and never
// reach the state machine.
var (
	ErrEmptyInstanceID = errors.New("instance identifier must not be empty")
	ErrRunInProgress   = errors.New("a run is already in progress")
)

// RunClient is the remote API surface the controller drives
type RunClient interface {
	StartRun(ctx context.Context, req domain.RunRequest) (domain.RunHandle, error)
	GetStatus(ctx context.Context, runID string) (domain.RunObservation, error)
}

// Options tune the controller's timing behavior
type Options struct {
	PollInterval time.Duration // cadence of status polls
	SettleDelay  time.Duration // pause between terminal status and terminal phase
}

// DefaultOptions returns the reference timing
func DefaultOptions() Options {
	return Options{
		PollInterval: 1500 * time.Millisecond,
		SettleDelay:  time.Second,
	}
}

// TransitionCallback is invoked after each phase change
type TransitionCallback func(phase domain.Phase)

// Controller owns the single run session and drives its lifecycle:
// Idle -> Submitting -> Active -> Settling -> Resolved/Failed, with
// Reset returning to Idle from any phase. It is the sole mutator of
// the session store; presentation layers consume Snapshot only.
type Controller struct {
	client RunClient
	opts   Options

	mu          sync.Mutex
	phase       domain.Phase
	store       *session.Store
	generation  int // bumped on every Submit and Reset; stale async results are discarded
	cancel      context.CancelFunc
	settleTimer *time.Timer
	failure     string
	done        chan struct{}

	onTransition TransitionCallback
}

// New creates an idle Controller
func New(client RunClient, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultOptions().SettleDelay
	}
	return &Controller{
		client: client,
		opts:   opts,
		phase:  domain.PhaseIdle,
		store:  session.NewStore(),
	}
}

// SetTransitionCallback registers a callback fired on phase changes.
// Must be set before the first Submit.
func (c *Controller) SetTransitionCallback(cb TransitionCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTransition = cb
}

// Submit starts a new run. The transition to Submitting happens
// synchronously, before any network result is known; the StartRun call
// itself runs in the background.
func (c *Controller) Submit(req domain.RunRequest) error {
	if strings.TrimSpace(req.InstanceID) == "" {
		return ErrEmptyInstanceID
	}

	c.mu.Lock()
	if c.phase != domain.PhaseIdle {
		c.mu.Unlock()
		return ErrRunInProgress
	}

	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.failure = ""
	c.store.SetRequest(req)
	cb := c.setPhaseLocked(domain.PhaseSubmitting)
	c.mu.Unlock()
	cb()

	go c.start(ctx, gen, req)
	return nil
}

// start performs the remote submission and, on success, launches the
// status poller for the returned handle.
func (c *Controller) start(ctx context.Context, gen int, req domain.RunRequest) {
	handle, err := c.client.StartRun(ctx, req)

	c.mu.Lock()
	if gen != c.generation {
		// A reset or newer submission happened while the call was in
		// flight; its result must not touch the current session.
		c.mu.Unlock()
		return
	}

	if err != nil {
		c.failure = err.Error()
		cb := c.finishLocked(domain.PhaseFailed)
		c.mu.Unlock()
		cb()
		return
	}

	c.store.SetHandle(handle)
	cb := c.setPhaseLocked(domain.PhaseActive)
	c.mu.Unlock()
	cb()

	p := poller.New(c.client, c.opts.PollInterval)
	go p.Run(ctx, handle.RunID, func(obs domain.RunObservation) {
		c.observe(gen, handle.RunID, obs)
	})
}

// observe applies one poll result to the session and advances the
// state machine. Results tagged with a stale generation or a foreign
// runID are discarded.
func (c *Controller) observe(gen int, runID string, obs domain.RunObservation) {
	c.mu.Lock()
	if gen != c.generation || c.phase != domain.PhaseActive {
		c.mu.Unlock()
		return
	}
	sess := c.store.Session()
	if sess.Handle == nil || sess.Handle.RunID != runID {
		c.mu.Unlock()
		return
	}

	c.store.ApplyObservation(obs)

	switch {
	case obs.ErrorIndicator:
		// Error paths surface immediately, skipping Settling.
		if obs.ErrorMessage != "" {
			c.failure = obs.ErrorMessage
		} else if obs.Message != "" {
			c.failure = obs.Message
		} else {
			c.failure = "run failed"
		}
		cb := c.finishLocked(domain.PhaseFailed)
		c.mu.Unlock()
		cb()

	case obs.Status.Terminal():
		cb := c.setPhaseLocked(domain.PhaseSettling)
		status := obs.Status
		c.settleTimer = time.AfterFunc(c.opts.SettleDelay, func() {
			c.settle(gen, status)
		})
		c.mu.Unlock()
		cb()

	default:
		c.mu.Unlock()
	}
}

// settle completes the Settling phase after the fixed delay
func (c *Controller) settle(gen int, status domain.RunStatus) {
	c.mu.Lock()
	if gen != c.generation || c.phase != domain.PhaseSettling {
		c.mu.Unlock()
		return
	}

	terminal := domain.PhaseFailed
	if status == domain.StatusCompleted {
		terminal = domain.PhaseResolved
	} else {
		obs := c.store.Session().Observation
		if obs != nil && obs.Message != "" {
			c.failure = obs.Message
		} else {
			c.failure = "run failed"
		}
	}
	cb := c.finishLocked(terminal)
	c.mu.Unlock()
	cb()
}

// Reset discards the session and returns to Idle from any phase. Any
// in-flight poll or scheduled tick is cancelled; late results from the
// old run are dropped by the generation guard.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.settleTimer != nil {
		c.settleTimer.Stop()
		c.settleTimer = nil
	}
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.failure = ""
	c.store.Reset()
	cb := c.setPhaseLocked(domain.PhaseIdle)
	c.mu.Unlock()
	cb()
}

// finishLocked moves to a terminal phase and releases waiters
func (c *Controller) finishLocked(p domain.Phase) func() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	return c.setPhaseLocked(p)
}

// setPhaseLocked updates the phase and returns the callback to invoke
// once the lock is released.
func (c *Controller) setPhaseLocked(p domain.Phase) func() {
	c.phase = p
	if c.onTransition == nil {
		return func() {}
	}
	cb := c.onTransition
	return func() { cb(p) }
}

// AwaitTerminal blocks until the current run reaches a terminal phase,
// the controller is reset, or ctx is cancelled.
func (c *Controller) AwaitTerminal(ctx context.Context) (domain.Phase, error) {
	c.mu.Lock()
	done := c.done
	phase := c.phase
	c.mu.Unlock()

	if done == nil || phase.Terminal() {
		return phase, nil
	}

	select {
	case <-ctx.Done():
		return phase, ctx.Err()
	case <-done:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase, nil
}
