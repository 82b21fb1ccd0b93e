package flowstate

import (
	"context"

	"github.com/petrijr/flowstate/internal/engine"
	"github.com/petrijr/flowstate/pkg/api"
)

// StoreBuilder provides a fluent API for configuring stores:
//
//	store := flowstate.New[AppState, AppAction, AppEvent](Welcome{}).
//	    OnEnter(enterState).
//	    OnDispatch(reduce).
//	    OnError(recoverState).
//	    Use(metrics, flowstate.NewLoggingMiddleware[AppState, AppAction, AppEvent](nil)).
//	    Build()
//
//	store.Start()
//	store.Dispatch(Click{ID: 1})
type StoreBuilder[S State, A Action, E Event] struct {
	cfg engine.Config[S, A, E]
}

// New creates a store builder with the given initial state.
func New[S State, A Action, E Event](initial S) *StoreBuilder[S, A, E] {
	return &StoreBuilder[S, A, E]{
		cfg: engine.Config[S, A, E]{Initial: initial},
	}
}

// OnEnter sets the enter transition function, run whenever a new state
// variant is entered. The default is identity, which terminates the
// auto-entry chain immediately.
func (b *StoreBuilder[S, A, E]) OnEnter(fn EnterFunc[S, E]) *StoreBuilder[S, A, E] {
	if fn == nil {
		panic("flowstate: OnEnter called with nil function")
	}
	b.cfg.OnEnter = fn
	return b
}

// OnDispatch sets the dispatch transition function, run for every
// dispatched action. The default ignores the action and returns the
// current state.
func (b *StoreBuilder[S, A, E]) OnDispatch(fn DispatchFunc[S, A, E]) *StoreBuilder[S, A, E] {
	if fn == nil {
		panic("flowstate: OnDispatch called with nil function")
	}
	b.cfg.OnDispatch = fn
	return b
}

// OnExit sets the exit hook, run when a state variant is left, before the
// next state is published.
func (b *StoreBuilder[S, A, E]) OnExit(fn ExitFunc[S, E]) *StoreBuilder[S, A, E] {
	if fn == nil {
		panic("flowstate: OnExit called with nil function")
	}
	b.cfg.OnExit = fn
	return b
}

// OnError sets the recovery function for failed transitions. Without one,
// any transition error halts the store.
func (b *StoreBuilder[S, A, E]) OnError(fn ErrorFunc[S, E]) *StoreBuilder[S, A, E] {
	if fn == nil {
		panic("flowstate: OnError called with nil function")
	}
	b.cfg.OnError = fn
	return b
}

// Use appends middleware to the store's chain. Hooks fire in the order
// middleware was added.
func (b *StoreBuilder[S, A, E]) Use(mws ...Middleware[S, A, E]) *StoreBuilder[S, A, E] {
	for _, m := range mws {
		if m != nil {
			b.cfg.Middleware = append(b.cfg.Middleware, m)
		}
	}
	return b
}

// Context binds the store's lifetime to ctx: cancelling it disposes the
// store. Defaults to context.Background().
func (b *StoreBuilder[S, A, E]) Context(ctx context.Context) *StoreBuilder[S, A, E] {
	b.cfg.Ctx = ctx
	return b
}

// Build constructs the store and starts its worker. The store is idle
// until Start is called or the first action is dispatched.
func (b *StoreBuilder[S, A, E]) Build() Store[S, A, E] {
	// Copy the middleware slice so callers can reuse the builder without
	// aliasing the built store's chain.
	cfg := b.cfg
	cfg.Middleware = append([]api.Middleware[S, A, E](nil), b.cfg.Middleware...)
	return engine.New(cfg)
}
