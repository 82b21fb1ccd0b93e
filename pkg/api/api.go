package api

import (
	"context"
)

// State is a value held by a store. States form a closed set of variants;
// Variant returns the discriminant the engine uses to tell variants apart.
// Two states of the same variant with different field values are the same
// variant for transition purposes.
//
// State values must be immutable: transition functions return a new value
// rather than mutating the current one.
type State interface {
	Variant() string
}

// Action is an external or internal stimulus dispatched into a store.
// Actions form a closed set of variants and are consumed exactly once
// per Dispatch call.
type Action interface {
	Variant() string
}

// Event is a one-shot signal emitted during a transition (a toast message,
// a navigation trigger). Events are not retained as state: a subscriber
// that is not listening when an event fires never sees it.
type Event interface {
	Variant() string
}

// Equaler lets a state type override the engine's default change test
// (reflect.DeepEqual). The engine uses value equality only to decide
// whether a state-change notification fires; variant identity is always
// decided by Variant().
type Equaler[S any] interface {
	Equal(other S) bool
}

// EmitFunc is the narrow capability handed to transition functions for
// publishing events. Emitting runs synchronously: the event reaches all
// current subscribers (and the emit middleware hooks) before the call
// returns.
type EmitFunc[E Event] func(e E)

// EnterFunc computes the state that follows entering a new variant.
// It runs with no originating action. Returning a state of the same
// variant terminates the auto-entry chain; the default is identity.
type EnterFunc[S State, E Event] func(ctx context.Context, s S, emit EmitFunc[E]) (S, error)

// DispatchFunc computes the state that follows dispatching an action
// against the current state.
type DispatchFunc[S State, A Action, E Event] func(ctx context.Context, s S, a A, emit EmitFunc[E]) (S, error)

// ExitFunc is a side-effecting hook run when leaving a state variant,
// before the next state is published. Its only output is an error.
type ExitFunc[S State, E Event] func(ctx context.Context, s S, emit EmitFunc[E]) error

// ErrorFunc computes a recovery state when a transition function fails.
// The recovery state flows through the normal exit/change/enter pipeline
// like any other transition result. A store built without an ErrorFunc
// treats every transition failure as fatal.
type ErrorFunc[S State, E Event] func(ctx context.Context, s S, cause error, emit EmitFunc[E]) (S, error)

// Store is a single mutable cell of state driven by dispatched actions.
//
// All transition processing for one store is strictly serialized: at most
// one pass (including its entire auto-entry chain) runs at a time, and
// passes queued behind a slow transition wait their turn. That
// backpressure is intentional.
type Store[S State, A Action, E Event] interface {
	// ID returns the process-unique identifier of this store, used in
	// journal records and log lines.
	ID() string

	// State returns the latest fully-published state. It never blocks and
	// never observes a partially-applied transition.
	State() S

	// Dispatch queues an action for processing and returns immediately.
	// Errors inside processing never escape to the caller; they are routed
	// to the store's ErrorFunc or halt the store (see Err). Dispatching on
	// a closed store is a silent no-op.
	Dispatch(a A)

	// Start triggers the initial enter pass. It is idempotent: calls after
	// the first do nothing. A store that is never started still serves
	// Dispatch normally.
	Start()

	// SubscribeState registers fn to be invoked for every published state,
	// replaying the latest value immediately. Invocations for a given
	// subscriber are serialized and arrive in publish order. The returned
	// function cancels the subscription.
	//
	// fn must not call SubscribeState, SubscribeEvents, or a cancel
	// function from within the callback.
	SubscribeState(fn func(S)) (cancel func())

	// SubscribeEvents registers fn to be invoked for every subsequently
	// emitted event. There is no replay: events emitted before subscribing
	// are gone. The returned function cancels the subscription.
	SubscribeEvents(fn func(E)) (cancel func())

	// Close cancels the store's execution context. In-flight work is
	// abandoned at its next suspension point and never publishes partial
	// state. Close does not wait for the worker to exit; use Done for that.
	Close()

	// Done is closed when the store's worker has stopped, either via Close
	// or a fatal error. No state or event notification is ever delivered
	// after Done is closed.
	Done() <-chan struct{}

	// Err reports why the store halted. It returns nil while the store is
	// running and after a clean Close; after a fatal transition failure it
	// returns the cause.
	Err() error
}
