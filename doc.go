// Package flowstate provides a lightweight, embeddable unidirectional
// state-management store for Go.
//
// Flowstate is designed for applications that need a single source of
// truth for a screen, session, or device: one current state value, driven
// by dispatched actions, with one-shot events for signals that are not
// state (toasts, navigation triggers). It runs fully in-process, has no
// operational overhead, and integrates cleanly into existing codebases.
//
// # Core Concepts
//
// The flowstate programming model is intentionally small:
//
//  1. Store
//  2. States, Actions, and Events
//  3. Transition functions
//  4. Middleware
//  5. StoreBuilder
//
// # Store
//
// A Store owns exactly one current state value, an event broadcast
// channel, and a strictly serialized transition pipeline. Callers read
// state synchronously, subscribe to state changes and events, and submit
// actions with fire-and-forget Dispatch. At most one transition pass runs
// at a time per store; passes queued behind a slow transition wait their
// turn, which gives rapid dispatchers natural backpressure.
//
// # States, Actions, and Events
//
// Each category is a closed set of variants: a sealed interface with one
// concrete type per case, each reporting its discriminant via Variant().
// The engine compares discriminants, not values, to decide whether a
// transition changed variant — and uses value equality separately to
// decide whether a state-change notification fires.
//
// # Transition functions
//
// A store carries up to four transition functions: on-dispatch
// (state x action -> state), on-enter (state -> state, run whenever a new
// variant is entered), on-exit (side effects when leaving a variant), and
// on-error (failure -> recovery state). When a pass produces a different
// variant, the engine runs exit for the old variant, publishes the new
// state, then recursively runs enter for it — the auto-entry chain — until
// a pass returns its input variant. The default on-enter is identity, the
// base case.
//
// # Middleware
//
// Middleware observes every pipeline stage with before/after hooks, in
// declaration order, for instrumentation only. Stock middleware covers
// structured logging (slog), counters, and an append-only journal with
// in-memory, SQLite, and Redis sinks.
//
// # StoreBuilder
//
// Stores are configured at construction through a fluent builder:
//
//	store := flowstate.New[AppState, AppAction, AppEvent](Welcome{}).
//	    OnEnter(enter).
//	    OnDispatch(reduce).
//	    Use(flowstate.NewLoggingMiddleware[AppState, AppAction, AppEvent](nil)).
//	    Build()
//	store.Start()
//
// For examples, see the /examples directory or the project README.
package flowstate
