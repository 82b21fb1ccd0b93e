// Package api contains the core building blocks used by the flowstate
// store engine. It provides the contract types for states, actions, and
// events, the transition function slots, the middleware interface, and the
// public Store contract.
//
// Most users interact with the higher-level flowstate package, which
// re-exports selected types and helpers from this package. The api package
// is intended for advanced use cases, custom middleware, or contributors
// extending the engine itself.
//
// # Concepts
//
// The api package centers around a small set of concepts:
//
//   - States, actions, and events (closed variant sets)
//   - Transition functions (enter, dispatch, exit, error)
//   - The Store contract
//   - Middleware
//
// # States, Actions, and Events
//
// States, actions, and events are modeled as closed sets of variants: a
// sealed interface per category, with one concrete type per variant. Each
// value reports its variant through Variant(); the engine compares those
// discriminants, never structural equality, to decide whether a transition
// left one variant for another. Value equality is a separate question and
// only controls whether a state-change notification fires.
//
// # Transition Functions
//
// A store carries up to four transition functions. The dispatch function
// maps (state, action) to the next state. The enter function runs whenever
// a new variant is entered, with no originating action, and may itself
// produce yet another variant, chaining further enter passes until it
// returns its input variant. The exit function runs when a variant is left,
// before the new state is published. The error function maps a failed
// transition to a recovery state.
//
// All four receive a context and an emit callback for publishing one-shot
// events, and all four may block; while one is blocked the store processes
// nothing else.
//
// # Middleware
//
// Middleware observes the pipeline with before/after hooks around every
// stage. It cannot veto or alter a transition. Stock implementations cover
// structured logging (LoggingMiddleware), counters (Metrics), and audit
// records (JournalMiddleware); NoopMiddleware is the embeddable default.
package api
