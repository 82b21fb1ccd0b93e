// Package engine implements the flowstate store: the state cell, event
// broadcast, and the serialized transition orchestration, including
// auto-entry chaining and error recovery.
package engine

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/petrijr/flowstate/internal/mailbox"
	"github.com/petrijr/flowstate/pkg/api"
)

// storeSeq numbers stores process-wide, for journal records and logs.
var storeSeq atomic.Int64

// Config describes how to construct a store. Only used inside the module;
// external callers use the flowstate builder.
type Config[S api.State, A api.Action, E api.Event] struct {
	Initial    S
	OnEnter    api.EnterFunc[S, E]
	OnDispatch api.DispatchFunc[S, A, E]
	OnExit     api.ExitFunc[S, E]
	OnError    api.ErrorFunc[S, E]
	Middleware []api.Middleware[S, A, E]

	// Ctx bounds the store's lifetime; defaults to context.Background().
	Ctx context.Context
}

// task is one unit of serialized processing: a dispatched action, or an
// enter pass when hasAction is false.
type task[A api.Action] struct {
	action    A
	hasAction bool
}

type subscriber[T any] struct {
	id int64
	fn func(T)
}

type store[S api.State, A api.Action, E api.Event] struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	onEnter    api.EnterFunc[S, E]
	onDispatch api.DispatchFunc[S, A, E]
	onExit     api.ExitFunc[S, E]
	onError    api.ErrorFunc[S, E]
	middleware []api.Middleware[S, A, E]

	tasks *mailbox.Mailbox[task[A]]
	done  chan struct{}

	// mu guards the state cell and lifecycle flags. It is held only for
	// field access, never across a callback.
	mu      sync.RWMutex
	state   S
	started bool
	closed  bool
	fatal   error

	// pubMu serializes deliveries to subscribers, including the replay a
	// new state subscriber gets. Holding it across the callback loop is
	// what guarantees each subscriber sees replay-then-updates in exact
	// publish order.
	pubMu     sync.Mutex
	stateSubs []subscriber[S]
	eventSubs []subscriber[E]
	subSeq    int64
}

// New constructs a store and starts its worker goroutine. The store is
// idle until Start is called or the first action is dispatched.
func New[S api.State, A api.Action, E api.Event](cfg Config[S, A, E]) api.Store[S, A, E] {
	parent := cfg.Ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	s := &store[S, A, E]{
		id:         fmt.Sprintf("store-%d", storeSeq.Add(1)),
		ctx:        ctx,
		cancel:     cancel,
		onEnter:    cfg.OnEnter,
		onDispatch: cfg.OnDispatch,
		onExit:     cfg.OnExit,
		onError:    cfg.OnError,
		middleware: cfg.Middleware,
		tasks:      mailbox.New[task[A]](),
		done:       make(chan struct{}),
		state:      cfg.Initial,
	}

	if s.onEnter == nil {
		s.onEnter = func(ctx context.Context, st S, emit api.EmitFunc[E]) (S, error) {
			return st, nil
		}
	}
	if s.onDispatch == nil {
		s.onDispatch = func(ctx context.Context, st S, a A, emit api.EmitFunc[E]) (S, error) {
			return st, nil
		}
	}
	if s.onExit == nil {
		s.onExit = func(ctx context.Context, st S, emit api.EmitFunc[E]) error {
			return nil
		}
	}

	go s.run()
	return s
}

func (s *store[S, A, E]) ID() string { return s.id }

func (s *store[S, A, E]) State() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *store[S, A, E]) Dispatch(a A) {
	// Dropped silently once the store is closed or halted.
	_ = s.tasks.Put(task[A]{action: a, hasAction: true})
}

func (s *store[S, A, E]) Start() {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	_ = s.tasks.Put(task[A]{})
}

func (s *store[S, A, E]) SubscribeState(fn func(S)) (cancel func()) {
	s.pubMu.Lock()
	s.subSeq++
	id := s.subSeq
	s.stateSubs = append(s.stateSubs, subscriber[S]{id: id, fn: fn})
	current := s.State()
	// Replay the latest value before releasing pubMu, so the subscriber
	// cannot observe a later publish first.
	fn(current)
	s.pubMu.Unlock()

	return func() {
		s.pubMu.Lock()
		defer s.pubMu.Unlock()
		for i, sub := range s.stateSubs {
			if sub.id == id {
				s.stateSubs = append(s.stateSubs[:i], s.stateSubs[i+1:]...)
				return
			}
		}
	}
}

func (s *store[S, A, E]) SubscribeEvents(fn func(E)) (cancel func()) {
	s.pubMu.Lock()
	s.subSeq++
	id := s.subSeq
	s.eventSubs = append(s.eventSubs, subscriber[E]{id: id, fn: fn})
	s.pubMu.Unlock()

	return func() {
		s.pubMu.Lock()
		defer s.pubMu.Unlock()
		for i, sub := range s.eventSubs {
			if sub.id == id {
				s.eventSubs = append(s.eventSubs[:i], s.eventSubs[i+1:]...)
				return
			}
		}
	}
}

func (s *store[S, A, E]) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.tasks.Close()
}

func (s *store[S, A, E]) Done() <-chan struct{} { return s.done }

func (s *store[S, A, E]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fatal
}

// run is the single consumer loop: one task at a time, each processed to
// full completion including its entire auto-entry chain.
func (s *store[S, A, E]) run() {
	defer close(s.done)
	for {
		t, err := s.tasks.Get(s.ctx)
		if err != nil {
			return
		}
		if err := s.process(s.ctx, t); err != nil {
			s.fail(err)
			return
		}
	}
}

// fail halts the store after an unrecoverable transition failure. A store
// that was closed or whose context was cancelled first is not marked
// fatal; its worker just stops, since disposal is not a fault.
func (s *store[S, A, E]) fail(err error) {
	s.mu.Lock()
	if !s.closed && s.ctx.Err() == nil && s.fatal == nil {
		s.fatal = err
	}
	s.mu.Unlock()

	s.cancel()
	s.tasks.Close()
}

// process runs one pass of the transition pipeline: the dispatch pipeline
// when an action is present, the enter pipeline otherwise, then exit /
// publish / enter settlement. Recursion from settle re-enters process with
// no action, which keeps the whole auto-entry chain inside one pass.
func (s *store[S, A, E]) process(ctx context.Context, t task[A]) error {
	cur := s.State()

	var (
		next S
		err  error
	)
	if t.hasAction {
		for _, mw := range s.middleware {
			mw.BeforeDispatch(ctx, cur, t.action)
		}
		next, err = s.onDispatch(ctx, cur, t.action, s.emit)
		if err == nil {
			for _, mw := range s.middleware {
				mw.AfterDispatch(ctx, cur, t.action, next)
			}
		}
	} else {
		for _, mw := range s.middleware {
			mw.BeforeEnter(ctx, cur)
		}
		next, err = s.onEnter(ctx, cur, s.emit)
		if err == nil {
			for _, mw := range s.middleware {
				mw.AfterEnter(ctx, cur, next)
			}
		}
	}
	if err != nil {
		// A transition interrupted by disposal is abandoned, not recovered:
		// the error hook must never run against a cancelled store.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		next, err = s.recoverState(ctx, cur, err)
		if err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return s.settle(ctx, cur, next)
}

// settle applies the exit / change / enter discipline for a pass result:
// exit-of-old strictly before publish-of-new, publish strictly before
// enter-of-new, and a recursive enter pass whenever the variant changed.
func (s *store[S, A, E]) settle(ctx context.Context, cur, next S) error {
	if cur.Variant() != next.Variant() {
		for _, mw := range s.middleware {
			mw.BeforeExit(ctx, cur)
		}
		if err := s.onExit(ctx, cur, s.emit); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rec, rerr := s.recoverState(ctx, cur, err)
			if rerr != nil {
				return rerr
			}
			// The exit hook already ran (and failed); the recovery state
			// replaces the pass result without re-running it.
			next = rec
		} else {
			for _, mw := range s.middleware {
				mw.AfterExit(ctx, cur)
			}
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if !statesEqual(cur, next) {
		for _, mw := range s.middleware {
			mw.BeforeChange(ctx, cur, next)
		}
		s.publish(next)
		for _, mw := range s.middleware {
			mw.AfterChange(ctx, cur, next)
		}
	}

	if cur.Variant() != next.Variant() {
		return s.process(ctx, task[A]{})
	}
	return nil
}

// recoverState routes a failed transition to the error hook. Without one,
// or when the hook itself fails, the failure is fatal for this store.
func (s *store[S, A, E]) recoverState(ctx context.Context, cur S, cause error) (S, error) {
	var zero S
	if s.onError == nil {
		return zero, fmt.Errorf("transition failed with no error handler: %w", cause)
	}

	for _, mw := range s.middleware {
		mw.BeforeRecover(ctx, cur, cause)
	}
	next, err := s.onError(ctx, cur, cause, s.emit)
	if err != nil {
		return zero, fmt.Errorf("error handler failed: %w (original cause: %v)", err, cause)
	}
	for _, mw := range s.middleware {
		mw.AfterRecover(ctx, cur, cause, next)
	}
	return next, nil
}

// emit is the callback handed to transition functions. It runs the emit
// middleware hooks and delivers to all current event subscribers
// synchronously, inside the emitting stage.
func (s *store[S, A, E]) emit(e E) {
	ctx := s.ctx
	for _, mw := range s.middleware {
		mw.BeforeEmit(ctx, e)
	}

	s.pubMu.Lock()
	subs := make([]subscriber[E], len(s.eventSubs))
	copy(subs, s.eventSubs)
	for _, sub := range subs {
		sub.fn(e)
	}
	s.pubMu.Unlock()

	for _, mw := range s.middleware {
		mw.AfterEmit(ctx, e)
	}
}

// publish atomically installs next as the current state and notifies all
// state subscribers in subscription order.
func (s *store[S, A, E]) publish(next S) {
	s.pubMu.Lock()
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	subs := make([]subscriber[S], len(s.stateSubs))
	copy(subs, s.stateSubs)
	for _, sub := range subs {
		sub.fn(next)
	}
	s.pubMu.Unlock()
}

// statesEqual decides whether a state-change notification fires. Variant
// identity is a separate question answered by Variant().
func statesEqual[S api.State](a, b S) bool {
	if eq, ok := any(a).(api.Equaler[S]); ok {
		return eq.Equal(b)
	}
	return reflect.DeepEqual(a, b)
}
