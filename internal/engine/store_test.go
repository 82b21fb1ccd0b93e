package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/petrijr/flowstate/pkg/api"
)

//
// Test domain: a session that boots through welcome -> loading -> stable
// and counts clicks once stable.
//

type sessionState interface {
	api.State
	sessionState()
}

type welcome struct{}

func (welcome) Variant() string { return "welcome" }
func (welcome) sessionState()   {}

type loading struct{}

func (loading) Variant() string { return "loading" }
func (loading) sessionState()   {}

type stable struct {
	Items   []string
	Counter int
}

func (stable) Variant() string { return "stable" }
func (stable) sessionState()   {}

type failed struct {
	Reason string
}

func (failed) Variant() string { return "failed" }
func (failed) sessionState()   {}

type sessionAction interface {
	api.Action
	sessionAction()
}

type click struct {
	ID int
}

func (click) Variant() string { return "click" }
func (click) sessionAction()  {}

type appendItem struct {
	Item string
}

func (appendItem) Variant() string { return "append_item" }
func (appendItem) sessionAction()  {}

type boom struct{}

func (boom) Variant() string { return "boom" }
func (boom) sessionAction()  {}

type noop struct{}

func (noop) Variant() string { return "noop" }
func (noop) sessionAction()  {}

type sessionEvent interface {
	api.Event
	sessionEvent()
}

type showToast struct {
	Message string
}

func (showToast) Variant() string { return "show_toast" }
func (showToast) sessionEvent()   {}

//
// Transition functions shared across tests.
//

// bootEnter advances welcome -> loading -> stable with an optional
// simulated delay, and is identity everywhere else.
func bootEnter(delay time.Duration) api.EnterFunc[sessionState, sessionEvent] {
	return func(ctx context.Context, s sessionState, emit api.EmitFunc[sessionEvent]) (sessionState, error) {
		if delay > 0 {
			select {
			case <-ctx.Done():
				return s, ctx.Err()
			case <-time.After(delay):
			}
		}
		switch s.(type) {
		case welcome:
			return loading{}, nil
		case loading:
			return stable{Items: []string{}}, nil
		default:
			return s, nil
		}
	}
}

// sessionDispatch handles click (increment + toast), appendItem, boom
// (always fails), and noop (returns the state unchanged).
func sessionDispatch(ctx context.Context, s sessionState, a sessionAction, emit api.EmitFunc[sessionEvent]) (sessionState, error) {
	switch act := a.(type) {
	case click:
		st, ok := s.(stable)
		if !ok {
			return s, nil
		}
		emit(showToast{Message: fmt.Sprintf("clicked %d", act.ID)})
		st.Counter++
		return st, nil
	case appendItem:
		st, ok := s.(stable)
		if !ok {
			return s, nil
		}
		items := make([]string, len(st.Items), len(st.Items)+1)
		copy(items, st.Items)
		st.Items = append(items, act.Item)
		return st, nil
	case boom:
		return s, errors.New("transition exploded")
	default:
		return s, nil
	}
}

//
// Helpers.
//

// capture collects callback deliveries for later assertions.
type capture[T any] struct {
	mu     sync.Mutex
	values []T
}

func (c *capture[T]) add(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
}

func (c *capture[T]) snapshot() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.values))
	copy(out, c.values)
	return out
}

func (c *capture[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// callLog records middleware hook invocations in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.calls)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// recorder is a middleware that logs every hook as "<name>:<hook>".
type recorder struct {
	name string
	log  *callLog
}

func (r recorder) BeforeDispatch(ctx context.Context, s sessionState, a sessionAction) {
	r.log.add(r.name + ":beforeDispatch")
}

func (r recorder) AfterDispatch(ctx context.Context, s sessionState, a sessionAction, next sessionState) {
	r.log.add(r.name + ":afterDispatch")
}

func (r recorder) BeforeEmit(ctx context.Context, e sessionEvent) {
	r.log.add(r.name + ":beforeEmit")
}

func (r recorder) AfterEmit(ctx context.Context, e sessionEvent) {
	r.log.add(r.name + ":afterEmit")
}

func (r recorder) BeforeEnter(ctx context.Context, s sessionState) {
	r.log.add(r.name + ":beforeEnter")
}

func (r recorder) AfterEnter(ctx context.Context, s sessionState, next sessionState) {
	r.log.add(r.name + ":afterEnter")
}

func (r recorder) BeforeExit(ctx context.Context, s sessionState) {
	r.log.add(r.name + ":beforeExit")
}

func (r recorder) AfterExit(ctx context.Context, s sessionState) {
	r.log.add(r.name + ":afterExit")
}

func (r recorder) BeforeChange(ctx context.Context, old, next sessionState) {
	r.log.add(r.name + ":beforeChange")
}

func (r recorder) AfterChange(ctx context.Context, old, next sessionState) {
	r.log.add(r.name + ":afterChange")
}

func (r recorder) BeforeRecover(ctx context.Context, s sessionState, cause error) {
	r.log.add(r.name + ":beforeRecover")
}

func (r recorder) AfterRecover(ctx context.Context, s sessionState, cause error, next sessionState) {
	r.log.add(r.name + ":afterRecover")
}

var _ api.Middleware[sessionState, sessionAction, sessionEvent] = recorder{}

func waitForVariant(t *testing.T, s api.Store[sessionState, sessionAction, sessionEvent], variant string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.State().Variant() == variant
	}, 5*time.Second, time.Millisecond, "store never reached variant %q", variant)
}

//
// Tests.
//

// TestConcreteScenario runs the canonical boot-then-click session:
// expected state sequence welcome, loading, stable(0), stable(1) and
// exactly one toast event.
func TestConcreteScenario(t *testing.T) {
	t.Parallel()

	store := New(Config[sessionState, sessionAction, sessionEvent]{
		Initial:    welcome{},
		OnEnter:    bootEnter(2 * time.Millisecond),
		OnDispatch: sessionDispatch,
	})
	defer store.Close()

	var states capture[sessionState]
	var events capture[sessionEvent]
	store.SubscribeState(states.add)
	store.SubscribeEvents(events.add)

	store.Start()
	waitForVariant(t, store, "stable")

	store.Dispatch(click{ID: 1})
	require.Eventually(t, func() bool {
		return states.len() == 4 && events.len() == 1
	}, 5*time.Second, time.Millisecond)

	require.Equal(t, []sessionState{
		welcome{},
		loading{},
		stable{Items: []string{}},
		stable{Items: []string{}, Counter: 1},
	}, states.snapshot())

	require.Equal(t, []sessionEvent{
		showToast{Message: "clicked 1"},
	}, events.snapshot())
}

// TestAutoEntryTermination verifies that the enter chain converges at the
// fixed point: three enter passes (welcome, loading, stable), two
// published states, and nothing further once stable is reached.
func TestAutoEntryTermination(t *testing.T) {
	t.Parallel()

	metrics := &api.Metrics[sessionState, sessionAction, sessionEvent]{}

	store := New(Config[sessionState, sessionAction, sessionEvent]{
		Initial:    welcome{},
		OnEnter:    bootEnter(0),
		Middleware: []api.Middleware[sessionState, sessionAction, sessionEvent]{metrics},
	})
	defer store.Close()

	store.Start()
	waitForVariant(t, store, "stable")

	// Give a runaway chain time to show itself before counting.
	time.Sleep(20 * time.Millisecond)

	snap := metrics.Snapshot()
	require.Equal(t, int64(3), snap.EnterPasses, "expected welcome, loading, and stable enter passes")
	require.Equal(t, int64(2), snap.StateChanges, "expected loading and stable publishes")
	require.Equal(t, int64(2), snap.Exits, "expected welcome and loading exits")
	require.Equal(t, int64(0), snap.Dispatches)
}

// TestVariantVersusValueIdentity checks the two-axis comparison: value
// equality gates the change notification, variant identity gates
// exit/enter processing.
func TestVariantVersusValueIdentity(t *testing.T) {
	t.Parallel()

	t.Run("same variant, equal value", func(t *testing.T) {
		t.Parallel()

		metrics := &api.Metrics[sessionState, sessionAction, sessionEvent]{}
		store := New(Config[sessionState, sessionAction, sessionEvent]{
			Initial:    stable{Items: []string{}},
			OnDispatch: sessionDispatch,
			Middleware: []api.Middleware[sessionState, sessionAction, sessionEvent]{metrics},
		})
		defer store.Close()

		var states capture[sessionState]
		store.SubscribeState(states.add)

		store.Dispatch(noop{})
		require.Eventually(t, func() bool {
			return metrics.Snapshot().Dispatches == 1
		}, 5*time.Second, time.Millisecond)

		snap := metrics.Snapshot()
		require.Equal(t, int64(0), snap.StateChanges, "value-equal result must not notify")
		require.Equal(t, int64(0), snap.Exits)
		require.Equal(t, int64(0), snap.EnterPasses)
		require.Equal(t, 1, states.len(), "only the subscription replay")
	})

	t.Run("same variant, different value", func(t *testing.T) {
		t.Parallel()

		metrics := &api.Metrics[sessionState, sessionAction, sessionEvent]{}
		store := New(Config[sessionState, sessionAction, sessionEvent]{
			Initial:    stable{Items: []string{}},
			OnDispatch: sessionDispatch,
			Middleware: []api.Middleware[sessionState, sessionAction, sessionEvent]{metrics},
		})
		defer store.Close()

		store.Dispatch(appendItem{Item: "a"})
		require.Eventually(t, func() bool {
			return metrics.Snapshot().StateChanges == 1
		}, 5*time.Second, time.Millisecond)

		snap := metrics.Snapshot()
		require.Equal(t, int64(0), snap.Exits, "same variant must not exit")
		require.Equal(t, int64(0), snap.EnterPasses, "same variant must not re-enter")
	})

	t.Run("different variant", func(t *testing.T) {
		t.Parallel()

		log := &callLog{}
		toFailed := func(ctx context.Context, s sessionState, a sessionAction, emit api.EmitFunc[sessionEvent]) (sessionState, error) {
			return failed{Reason: "requested"}, nil
		}
		store := New(Config[sessionState, sessionAction, sessionEvent]{
			Initial:    stable{Items: []string{}},
			OnDispatch: toFailed,
			Middleware: []api.Middleware[sessionState, sessionAction, sessionEvent]{recorder{name: "A", log: log}},
		})
		defer store.Close()

		store.Dispatch(noop{})
		require.Eventually(t, func() bool {
			return log.len() == 8
		}, 5*time.Second, time.Millisecond)

		require.Equal(t, []string{
			"A:beforeDispatch",
			"A:afterDispatch",
			"A:beforeExit",
			"A:afterExit",
			"A:beforeChange",
			"A:afterChange",
			"A:beforeEnter",
			"A:afterEnter",
		}, log.snapshot(), "exit-of-old precedes publish, publish precedes enter-of-new")
	})
}

// TestSerialization dispatches concurrently and asserts the published
// sequence is identical to some one-at-a-time processing order: every
// notification extends its predecessor by exactly one item.
func TestSerialization(t *testing.T) {
	t.Parallel()

	const (
		goroutines = 8
		perSender  = 25
	)

	store := New(Config[sessionState, sessionAction, sessionEvent]{
		Initial:    stable{Items: []string{}},
		OnDispatch: sessionDispatch,
	})
	defer store.Close()

	var states capture[sessionState]
	store.SubscribeState(states.add)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				store.Dispatch(appendItem{Item: strconv.Itoa(g*perSender + i)})
			}
		}(g)
	}
	wg.Wait()

	total := goroutines * perSender
	require.Eventually(t, func() bool {
		return states.len() == total+1
	}, 10*time.Second, time.Millisecond)

	seq := states.snapshot()
	require.Len(t, seq, total+1, "replay plus one notification per dispatch")
	prev := seq[0].(stable).Items
	for _, s := range seq[1:] {
		items := s.(stable).Items
		require.Len(t, items, len(prev)+1, "pipeline stages interleaved")
		require.Equal(t, prev, items[:len(prev)], "published state does not extend its predecessor")
		prev = items
	}
}

// TestDispatchFIFO checks that queued dispatches run in arrival order even
// when the first transition is slow.
func TestDispatchFIFO(t *testing.T) {
	t.Parallel()

	slowDispatch := func(ctx context.Context, s sessionState, a sessionAction, emit api.EmitFunc[sessionEvent]) (sessionState, error) {
		time.Sleep(5 * time.Millisecond)
		return sessionDispatch(ctx, s, a, emit)
	}

	store := New(Config[sessionState, sessionAction, sessionEvent]{
		Initial:    stable{Items: []string{}},
		OnDispatch: slowDispatch,
	})
	defer store.Close()

	want := make([]string, 0, 5)
	for i := 1; i <= 5; i++ {
		item := strconv.Itoa(i)
		want = append(want, item)
		store.Dispatch(appendItem{Item: item})
	}

	require.Eventually(t, func() bool {
		return len(store.State().(stable).Items) == len(want)
	}, 5*time.Second, time.Millisecond)
	require.Equal(t, want, store.State().(stable).Items)
}

// TestEventAtMostOnce verifies that events emitted with no subscribers are
// not retained for later subscribers.
func TestEventAtMostOnce(t *testing.T) {
	t.Parallel()

	store := New(Config[sessionState, sessionAction, sessionEvent]{
		Initial:    stable{Items: []string{}},
		OnDispatch: sessionDispatch,
	})
	defer store.Close()

	// First click fires its toast into the void.
	store.Dispatch(click{ID: 1})
	require.Eventually(t, func() bool {
		st, ok := store.State().(stable)
		return ok && st.Counter == 1
	}, 5*time.Second, time.Millisecond)

	var events capture[sessionEvent]
	cancel := store.SubscribeEvents(events.add)
	defer cancel()

	require.Equal(t, 0, events.len(), "missed event must not be replayed")

	store.Dispatch(click{ID: 2})
	require.Eventually(t, func() bool {
		return events.len() == 1
	}, 5*time.Second, time.Millisecond)
	require.Equal(t, []sessionEvent{showToast{Message: "clicked 2"}}, events.snapshot())
}

// TestMiddlewareOrdering verifies declaration order is preserved for both
// before and after hooks of every stage, and that emit hooks nest inside
// the dispatch stage.
func TestMiddlewareOrdering(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	store := New(Config[sessionState, sessionAction, sessionEvent]{
		Initial:    stable{Items: []string{}},
		OnDispatch: sessionDispatch,
		Middleware: []api.Middleware[sessionState, sessionAction, sessionEvent]{
			recorder{name: "A", log: log},
			recorder{name: "B", log: log},
		},
	})
	defer store.Close()

	store.Dispatch(click{ID: 7})
	require.Eventually(t, func() bool {
		return log.len() == 12
	}, 5*time.Second, time.Millisecond)

	require.Equal(t, []string{
		"A:beforeDispatch", "B:beforeDispatch",
		"A:beforeEmit", "B:beforeEmit",
		"A:afterEmit", "B:afterEmit",
		"A:afterDispatch", "B:afterDispatch",
		"A:beforeChange", "B:beforeChange",
		"A:afterChange", "B:afterChange",
	}, log.snapshot())
}

// TestErrorRecovery verifies that a failing transition routed through the
// error hook publishes the recovery state through the normal pipeline.
func TestErrorRecovery(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	toFailed := func(ctx context.Context, s sessionState, cause error, emit api.EmitFunc[sessionEvent]) (sessionState, error) {
		return failed{Reason: cause.Error()}, nil
	}

	store := New(Config[sessionState, sessionAction, sessionEvent]{
		Initial:    stable{Items: []string{}},
		OnDispatch: sessionDispatch,
		OnError:    toFailed,
		Middleware: []api.Middleware[sessionState, sessionAction, sessionEvent]{recorder{name: "A", log: log}},
	})
	defer store.Close()

	var states capture[sessionState]
	store.SubscribeState(states.add)

	store.Dispatch(boom{})
	require.Eventually(t, func() bool {
		return log.len() == 9
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, store.Err(), "recovered failure must not halt the store")
	require.Equal(t, []sessionState{
		stable{Items: []string{}},
		failed{Reason: "transition exploded"},
	}, states.snapshot(), "subscribers must never see a half-completed transition")

	require.Equal(t, []string{
		"A:beforeDispatch",
		"A:beforeRecover",
		"A:afterRecover",
		"A:beforeExit",
		"A:afterExit",
		"A:beforeChange",
		"A:afterChange",
		"A:beforeEnter",
		"A:afterEnter",
	}, log.snapshot(), "recovery state flows through exit, change, and enter")
}

// TestFatalHalt verifies that without an error hook a failing transition
// kills the store observably and permanently.
func TestFatalHalt(t *testing.T) {
	t.Parallel()

	store := New(Config[sessionState, sessionAction, sessionEvent]{
		Initial:    stable{Items: []string{}},
		OnDispatch: sessionDispatch,
	})

	var states capture[sessionState]
	store.SubscribeState(states.add)

	store.Dispatch(boom{})

	select {
	case <-store.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("store did not halt after unrecovered failure")
	}

	require.Error(t, store.Err())
	require.Contains(t, store.Err().Error(), "transition exploded")

	// Halted stores drop everything.
	store.Dispatch(appendItem{Item: "late"})
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, stable{Items: []string{}}, store.State())
	require.Equal(t, 1, states.len(), "no notifications after halt")
}

// TestCloseSemantics verifies the documented dispose behavior: Done
// closes, Err stays nil, and later Dispatch/Start calls are no-ops.
func TestCloseSemantics(t *testing.T) {
	t.Parallel()

	store := New(Config[sessionState, sessionAction, sessionEvent]{
		Initial:    stable{Items: []string{}},
		OnDispatch: sessionDispatch,
	})

	store.Close()
	select {
	case <-store.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("store did not stop after Close")
	}

	require.NoError(t, store.Err(), "clean close is not a failure")

	store.Dispatch(appendItem{Item: "late"})
	store.Start()
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, stable{Items: []string{}}, store.State())
}

// TestStartIdempotent verifies repeated Start calls trigger exactly one
// boot chain.
func TestStartIdempotent(t *testing.T) {
	t.Parallel()

	metrics := &api.Metrics[sessionState, sessionAction, sessionEvent]{}
	store := New(Config[sessionState, sessionAction, sessionEvent]{
		Initial:    welcome{},
		OnEnter:    bootEnter(0),
		Middleware: []api.Middleware[sessionState, sessionAction, sessionEvent]{metrics},
	})
	defer store.Close()

	store.Start()
	store.Start()
	waitForVariant(t, store, "stable")
	store.Start()

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int64(3), metrics.Snapshot().EnterPasses, "boot chain must run once")
}

// TestSubscribeStateReplayAndCancel verifies replay-on-subscribe and that
// a cancelled subscription receives nothing further.
func TestSubscribeStateReplayAndCancel(t *testing.T) {
	t.Parallel()

	store := New(Config[sessionState, sessionAction, sessionEvent]{
		Initial:    stable{Items: []string{}},
		OnDispatch: sessionDispatch,
	})
	defer store.Close()

	var states capture[sessionState]
	cancel := store.SubscribeState(states.add)
	require.Equal(t, 1, states.len(), "latest value replays immediately")

	cancel()
	store.Dispatch(appendItem{Item: "a"})
	require.Eventually(t, func() bool {
		return len(store.State().(stable).Items) == 1
	}, 5*time.Second, time.Millisecond)
	require.Equal(t, 1, states.len(), "cancelled subscriber must not be notified")
}

// TestExitFailureRecovery verifies that a failing exit hook is routed to
// the error hook and the recovery state replaces the pass result.
func TestExitFailureRecovery(t *testing.T) {
	t.Parallel()

	exitErr := errors.New("exit exploded")
	store := New(Config[sessionState, sessionAction, sessionEvent]{
		Initial: welcome{},
		OnEnter: bootEnter(0),
		OnExit: func(ctx context.Context, s sessionState, emit api.EmitFunc[sessionEvent]) error {
			if _, ok := s.(welcome); ok {
				return exitErr
			}
			return nil
		},
		OnError: func(ctx context.Context, s sessionState, cause error, emit api.EmitFunc[sessionEvent]) (sessionState, error) {
			return failed{Reason: cause.Error()}, nil
		},
	})
	defer store.Close()

	store.Start()
	waitForVariant(t, store, "failed")
	require.NoError(t, store.Err())
	require.Equal(t, failed{Reason: "exit exploded"}, store.State())
}

// fuzzyStable overrides the change test to compare item counts only.
type fuzzyStable struct {
	Items []string
}

func (fuzzyStable) Variant() string { return "fuzzy_stable" }
func (fuzzyStable) sessionState()   {}

func (f fuzzyStable) Equal(other sessionState) bool {
	o, ok := other.(fuzzyStable)
	return ok && len(f.Items) == len(o.Items)
}

func TestStatesEqual(t *testing.T) {
	t.Parallel()

	require.True(t, statesEqual[sessionState](stable{Items: []string{"a"}}, stable{Items: []string{"a"}}))
	require.False(t, statesEqual[sessionState](stable{}, stable{Counter: 1}))
	require.False(t, statesEqual[sessionState](welcome{}, loading{}))

	// An Equaler implementation wins over reflect.DeepEqual.
	require.True(t, statesEqual[sessionState](fuzzyStable{Items: nil}, fuzzyStable{Items: []string{}}))
}

func TestStoreIDsAreUnique(t *testing.T) {
	t.Parallel()

	a := New(Config[sessionState, sessionAction, sessionEvent]{Initial: welcome{}})
	b := New(Config[sessionState, sessionAction, sessionEvent]{Initial: welcome{}})
	defer a.Close()
	defer b.Close()

	require.NotEmpty(t, a.ID())
	require.NotEqual(t, a.ID(), b.ID())
}
