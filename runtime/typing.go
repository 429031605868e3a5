package runtime

import (
	"bot-bridge/domain"
	"slices"
	"time"
)

// DefaultTypingTimeout is the delay after which an unrenewed typing signal expires.
const DefaultTypingTimeout = 3 * time.Second

// Timer is the part of *time.Timer the typing controller needs.
type Timer interface {
	Stop() bool
}

// Scheduler arms a callback after a delay. Tests inject a manual scheduler.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemScheduler schedules on the wall clock.
var SystemScheduler Scheduler = clockScheduler{}

type typingState struct {
	userKey    string
	generation uint64
	expiresAt  time.Time
	timer      Timer
}

// TypingController holds the Idle/Typing state of each connection.
//
// Every armed expiry carries the generation it was armed for. Renewal and
// cancellation bump the generation so a stale callback is ignored by Expire
// even when the scheduler already ran it. Not safe for concurrent use; the
// hub owns it and timer callbacks are routed back through the hub loop.
type TypingController struct {
	timeout    time.Duration
	scheduler  Scheduler
	now        func() time.Time
	states     map[domain.ConnectionID]*typingState
	generation uint64
	// onExpire is invoked from the scheduler goroutine with the token of the
	// expired timer. It must not touch the controller directly.
	onExpire func(conn domain.ConnectionID, generation uint64)
}

func NewTypingController(timeout time.Duration, scheduler Scheduler,
	onExpire func(conn domain.ConnectionID, generation uint64)) *TypingController {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	if scheduler == nil {
		scheduler = SystemScheduler
	}
	return &TypingController{
		timeout:   timeout,
		scheduler: scheduler,
		now:       time.Now,
		states:    make(map[domain.ConnectionID]*typingState),
		onExpire:  onExpire,
	}
}

// Start moves the connection to Typing or renews its expiry. started is true
// only on the Idle -> Typing transition.
func (c *TypingController) Start(conn domain.ConnectionID, userKey string) (started bool) {
	state, ok := c.states[conn]
	if ok && state.userKey != userKey {
		// key changed under the same connection: treat as a fresh state
		c.cancel(state)
		delete(c.states, conn)
		ok = false
	}
	if !ok {
		state = &typingState{userKey: userKey}
		c.states[conn] = state
	} else {
		c.cancel(state)
	}
	c.arm(conn, state)
	return !ok
}

// Expire handles a fired timer. It reports the state that went Idle, or false
// when the token is stale.
func (c *TypingController) Expire(conn domain.ConnectionID, generation uint64) (string, bool) {
	state, ok := c.states[conn]
	if !ok || state.generation != generation {
		return "", false
	}
	delete(c.states, conn)
	return state.userKey, true
}

// Stop cancels the typing state of one connection. It reports the key that
// went Idle, or false if the connection was already Idle.
func (c *TypingController) Stop(conn domain.ConnectionID) (string, bool) {
	state, ok := c.states[conn]
	if !ok {
		return "", false
	}
	c.cancel(state)
	delete(c.states, conn)
	return state.userKey, true
}

// StopUser cancels every typing state owned by userKey and returns the
// connections that went Idle.
func (c *TypingController) StopUser(userKey string) []domain.ConnectionID {
	var stopped []domain.ConnectionID
	for conn, state := range c.states {
		if state.userKey != userKey {
			continue
		}
		c.cancel(state)
		delete(c.states, conn)
		stopped = append(stopped, conn)
	}
	slices.Sort(stopped)
	return stopped
}

// Key returns the user key the connection is typing as, false when Idle.
func (c *TypingController) Key(conn domain.ConnectionID) (string, bool) {
	state, ok := c.states[conn]
	if !ok {
		return "", false
	}
	return state.userKey, true
}

func (c *TypingController) Len() int { return len(c.states) }

// StopAll cancels every pending timer without reporting transitions. Used on shutdown.
func (c *TypingController) StopAll() {
	for conn, state := range c.states {
		c.cancel(state)
		delete(c.states, conn)
	}
}

func (c *TypingController) arm(conn domain.ConnectionID, state *typingState) {
	c.generation++
	generation := c.generation
	state.generation = generation
	state.expiresAt = c.now().Add(c.timeout)
	state.timer = c.scheduler.AfterFunc(c.timeout, func() {
		if c.onExpire != nil {
			c.onExpire(conn, generation)
		}
	})
}

func (c *TypingController) cancel(state *typingState) {
	if state.timer != nil {
		state.timer.Stop()
		state.timer = nil
	}
	// invalidate a callback already in flight
	state.generation = 0
}
