package api

import "context"

// Middleware observes a store's transition pipeline. One hook pair exists
// per lifecycle point; "before" hooks run ahead of the wrapped operation
// and "after" hooks follow it, for every configured middleware in
// declaration order. Middleware is pure instrumentation: hooks cannot veto
// or alter a transition.
//
// Implementations should be fast and non-blocking; the pipeline is
// serialized, so a slow hook delays every queued dispatch. A hook that
// needs to fail must do so defensively — the engine does not guard
// against panicking middleware.
type Middleware[S State, A Action, E Event] interface {
	// BeforeDispatch / AfterDispatch bracket the dispatch transition
	// function. AfterDispatch receives the produced next state and only
	// runs when the transition succeeded.
	BeforeDispatch(ctx context.Context, s S, a A)
	AfterDispatch(ctx context.Context, s S, a A, next S)

	// BeforeEmit / AfterEmit bracket each event emission, nested inside
	// the hooks of the stage whose transition function emitted it.
	BeforeEmit(ctx context.Context, e E)
	AfterEmit(ctx context.Context, e E)

	// BeforeEnter / AfterEnter bracket the enter transition function of an
	// auto-entry pass. AfterEnter receives the produced next state.
	BeforeEnter(ctx context.Context, s S)
	AfterEnter(ctx context.Context, s S, next S)

	// BeforeExit / AfterExit bracket the exit hook for the state being
	// left. They fire only when the pass produced a different variant, and
	// always before the new state is published.
	BeforeExit(ctx context.Context, s S)
	AfterExit(ctx context.Context, s S)

	// BeforeChange / AfterChange bracket the publish of a new state value.
	// They fire only when the new state is not value-equal to the old one,
	// so not every dispatch produces a change notification.
	BeforeChange(ctx context.Context, old, next S)
	AfterChange(ctx context.Context, old, next S)

	// BeforeRecover / AfterRecover bracket the ErrorFunc when a transition
	// failed. AfterRecover receives the recovery state.
	BeforeRecover(ctx context.Context, s S, cause error)
	AfterRecover(ctx context.Context, s S, cause error, next S)
}

// NoopMiddleware is a Middleware with every hook a no-op. Embed it to
// implement only the hooks you care about.
type NoopMiddleware[S State, A Action, E Event] struct{}

func (NoopMiddleware[S, A, E]) BeforeDispatch(ctx context.Context, s S, a A)         {}
func (NoopMiddleware[S, A, E]) AfterDispatch(ctx context.Context, s S, a A, next S)  {}
func (NoopMiddleware[S, A, E]) BeforeEmit(ctx context.Context, e E)                  {}
func (NoopMiddleware[S, A, E]) AfterEmit(ctx context.Context, e E)                   {}
func (NoopMiddleware[S, A, E]) BeforeEnter(ctx context.Context, s S)                 {}
func (NoopMiddleware[S, A, E]) AfterEnter(ctx context.Context, s S, next S)          {}
func (NoopMiddleware[S, A, E]) BeforeExit(ctx context.Context, s S)                  {}
func (NoopMiddleware[S, A, E]) AfterExit(ctx context.Context, s S)                   {}
func (NoopMiddleware[S, A, E]) BeforeChange(ctx context.Context, old, next S)        {}
func (NoopMiddleware[S, A, E]) AfterChange(ctx context.Context, old, next S)         {}
func (NoopMiddleware[S, A, E]) BeforeRecover(ctx context.Context, s S, cause error)  {}
func (NoopMiddleware[S, A, E]) AfterRecover(ctx context.Context, s S, cause error, next S) {
}

// CompositeMiddleware fans out every hook to multiple middleware in order.
type CompositeMiddleware[S State, A Action, E Event] struct {
	middleware []Middleware[S, A, E]
}

// NewCompositeMiddleware creates a Middleware that forwards every hook to
// each non-nil middleware in mws, preserving declaration order.
func NewCompositeMiddleware[S State, A Action, E Event](mws ...Middleware[S, A, E]) Middleware[S, A, E] {
	filtered := make([]Middleware[S, A, E], 0, len(mws))
	for _, m := range mws {
		if m != nil {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) == 0 {
		return NoopMiddleware[S, A, E]{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeMiddleware[S, A, E]{middleware: filtered}
}

func (c *CompositeMiddleware[S, A, E]) BeforeDispatch(ctx context.Context, s S, a A) {
	for _, m := range c.middleware {
		m.BeforeDispatch(ctx, s, a)
	}
}

func (c *CompositeMiddleware[S, A, E]) AfterDispatch(ctx context.Context, s S, a A, next S) {
	for _, m := range c.middleware {
		m.AfterDispatch(ctx, s, a, next)
	}
}

func (c *CompositeMiddleware[S, A, E]) BeforeEmit(ctx context.Context, e E) {
	for _, m := range c.middleware {
		m.BeforeEmit(ctx, e)
	}
}

func (c *CompositeMiddleware[S, A, E]) AfterEmit(ctx context.Context, e E) {
	for _, m := range c.middleware {
		m.AfterEmit(ctx, e)
	}
}

func (c *CompositeMiddleware[S, A, E]) BeforeEnter(ctx context.Context, s S) {
	for _, m := range c.middleware {
		m.BeforeEnter(ctx, s)
	}
}

func (c *CompositeMiddleware[S, A, E]) AfterEnter(ctx context.Context, s S, next S) {
	for _, m := range c.middleware {
		m.AfterEnter(ctx, s, next)
	}
}

func (c *CompositeMiddleware[S, A, E]) BeforeExit(ctx context.Context, s S) {
	for _, m := range c.middleware {
		m.BeforeExit(ctx, s)
	}
}

func (c *CompositeMiddleware[S, A, E]) AfterExit(ctx context.Context, s S) {
	for _, m := range c.middleware {
		m.AfterExit(ctx, s)
	}
}

func (c *CompositeMiddleware[S, A, E]) BeforeChange(ctx context.Context, old, next S) {
	for _, m := range c.middleware {
		m.BeforeChange(ctx, old, next)
	}
}

func (c *CompositeMiddleware[S, A, E]) AfterChange(ctx context.Context, old, next S) {
	for _, m := range c.middleware {
		m.AfterChange(ctx, old, next)
	}
}

func (c *CompositeMiddleware[S, A, E]) BeforeRecover(ctx context.Context, s S, cause error) {
	for _, m := range c.middleware {
		m.BeforeRecover(ctx, s, cause)
	}
}

func (c *CompositeMiddleware[S, A, E]) AfterRecover(ctx context.Context, s S, cause error, next S) {
	for _, m := range c.middleware {
		m.AfterRecover(ctx, s, cause, next)
	}
}
