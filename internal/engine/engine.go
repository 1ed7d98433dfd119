// Package engine implements the serialized action engine: a single worker
// goroutine that owns all session state and processes submitted actions
// strictly in FIFO order.
package engine

import (
	"context"
	"fmt"
	"time"

	"moxxy-bridge/internal/browser"
)

// Timeouts are the inner per-operation bounds and settle delays. They are a
// struct (not constants) so tests can shrink them.
type Timeouts struct {
	Navigate       time.Duration
	NavigateSettle time.Duration
	Click          time.Duration
	ClickSettle    time.Duration
	Fill           time.Duration
	FallbackClick  time.Duration
	History        time.Duration
	HistorySettle  time.Duration
	Scroll         time.Duration
	ScrollSettle   time.Duration
	WaitDefault    time.Duration
	WaitCap        time.Duration
}

// DefaultTimeouts returns the bounds the bridge ships with.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigate:       30 * time.Second,
		NavigateSettle: time.Second,
		Click:          5 * time.Second,
		ClickSettle:    500 * time.Millisecond,
		Fill:           5 * time.Second,
		FallbackClick:  3 * time.Second,
		History:        15 * time.Second,
		HistorySettle:  500 * time.Millisecond,
		Scroll:         5 * time.Second,
		ScrollSettle:   300 * time.Millisecond,
		WaitDefault:    time.Second,
		WaitCap:        30 * time.Second,
	}
}

// Response is the result shape returned to callers for every action.
type Response struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

type workItem struct {
	action string
	args   []string
	reply  chan Response
}

// cleanupAction is the internal work item used to serialize session
// teardown behind in-flight actions. It is not part of the public table, so
// request validation never lets it through.
const cleanupAction = "__cleanup"

// Engine owns the Session and executes one action at a time. Handler threads
// never touch session state directly; they submit work and await the reply.
type Engine struct {
	session  *browser.Session
	timeouts Timeouts
	queue    chan workItem

	// now and screenshotDir exist for tests; zero values mean production
	// behavior.
	now           func() time.Time
	screenshotDir string
}

func New(session *browser.Session, timeouts Timeouts) *Engine {
	return &Engine{
		session:  session,
		timeouts: timeouts,
		queue:    make(chan workItem, 16),
		now:      time.Now,
	}
}

// Run processes submitted actions until ctx is cancelled. It must be the
// only goroutine that executes actions.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-e.queue:
			item.reply <- e.execute(ctx, item.action, item.args)
		}
	}
}

// Submit queues one action and waits for its result. ctx bounds only the
// caller's wait: when it expires the engine-side work keeps running and its
// state mutations remain visible to subsequent requests. Nothing cancels
// the underlying automation call; interrupting a navigation or click
// mid-flight could leave the browser in an undefined intermediate state.
func (e *Engine) Submit(ctx context.Context, action string, args []string) (Response, error) {
	item := workItem{action: action, args: args, reply: make(chan Response, 1)}
	select {
	case e.queue <- item:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case resp := <-item.reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// Cleanup tears the session down on the engine goroutine, serialized behind
// any in-flight action. Best-effort: gives up silently when ctx expires.
func (e *Engine) Cleanup(ctx context.Context) {
	_, _ = e.Submit(ctx, cleanupAction, nil)
}

// LastActivity exposes the session activity timestamp for the idle watchdog.
func (e *Engine) LastActivity() time.Time {
	return e.session.LastActivity()
}

func (e *Engine) execute(ctx context.Context, action string, args []string) (resp Response) {
	// Every action attempt counts as activity, success or failure.
	e.session.Touch(e.now())

	defer func() {
		if r := recover(); r != nil {
			resp = Response{Success: false, Error: fmt.Sprintf("Internal error in %s: %v", action, r)}
		}
	}()

	if action == cleanupAction {
		e.session.Cleanup()
		return Response{Success: true}
	}

	if err := Validate(action, args); err != nil {
		return Response{Success: false, Error: err.Error()}
	}

	result, err := actionTable[action].run(e, ctx, args)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	return Response{Success: true, Result: result}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
