package api

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// LoggingMiddleware writes structured logs using log/slog.
type LoggingMiddleware[S State, A Action, E Event] struct {
	Logger *slog.Logger
}

// NewLoggingMiddleware creates a Middleware that logs pipeline activity
// using the provided slog.Logger. If logger is nil, slog.Default() is used.
// Per-stage "before" hooks log at Debug; transition outcomes log at Info;
// recoveries log at Warn.
func NewLoggingMiddleware[S State, A Action, E Event](logger *slog.Logger) Middleware[S, A, E] {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingMiddleware[S, A, E]{Logger: logger}
}

func (l *LoggingMiddleware[S, A, E]) BeforeDispatch(ctx context.Context, s S, a A) {
	l.Logger.DebugContext(ctx, "dispatch_start",
		slog.String("state", s.Variant()),
		slog.String("action", a.Variant()),
	)
}

func (l *LoggingMiddleware[S, A, E]) AfterDispatch(ctx context.Context, s S, a A, next S) {
	l.Logger.InfoContext(ctx, "dispatch_done",
		slog.String("state", s.Variant()),
		slog.String("action", a.Variant()),
		slog.String("next", next.Variant()),
	)
}

func (l *LoggingMiddleware[S, A, E]) BeforeEmit(ctx context.Context, e E) {
	l.Logger.DebugContext(ctx, "emit_start", slog.String("event", e.Variant()))
}

func (l *LoggingMiddleware[S, A, E]) AfterEmit(ctx context.Context, e E) {
	l.Logger.InfoContext(ctx, "event_emitted", slog.String("event", e.Variant()))
}

func (l *LoggingMiddleware[S, A, E]) BeforeEnter(ctx context.Context, s S) {
	l.Logger.DebugContext(ctx, "enter_start", slog.String("state", s.Variant()))
}

func (l *LoggingMiddleware[S, A, E]) AfterEnter(ctx context.Context, s S, next S) {
	l.Logger.InfoContext(ctx, "enter_done",
		slog.String("state", s.Variant()),
		slog.String("next", next.Variant()),
	)
}

func (l *LoggingMiddleware[S, A, E]) BeforeExit(ctx context.Context, s S) {
	l.Logger.DebugContext(ctx, "exit_start", slog.String("state", s.Variant()))
}

func (l *LoggingMiddleware[S, A, E]) AfterExit(ctx context.Context, s S) {
	l.Logger.InfoContext(ctx, "exit_done", slog.String("state", s.Variant()))
}

func (l *LoggingMiddleware[S, A, E]) BeforeChange(ctx context.Context, old, next S) {
	l.Logger.DebugContext(ctx, "change_start",
		slog.String("old", old.Variant()),
		slog.String("next", next.Variant()),
	)
}

func (l *LoggingMiddleware[S, A, E]) AfterChange(ctx context.Context, old, next S) {
	l.Logger.InfoContext(ctx, "state_changed",
		slog.String("old", old.Variant()),
		slog.String("next", next.Variant()),
	)
}

func (l *LoggingMiddleware[S, A, E]) BeforeRecover(ctx context.Context, s S, cause error) {
	l.Logger.WarnContext(ctx, "recover_start",
		slog.String("state", s.Variant()),
		slog.Any("cause", cause),
	)
}

func (l *LoggingMiddleware[S, A, E]) AfterRecover(ctx context.Context, s S, cause error, next S) {
	l.Logger.WarnContext(ctx, "recovered",
		slog.String("state", s.Variant()),
		slog.Any("cause", cause),
		slog.String("next", next.Variant()),
	)
}

// Metrics collects simple counters for store activity. It implements
// Middleware and can be combined with other middleware via
// NewCompositeMiddleware.
type Metrics[S State, A Action, E Event] struct {
	NoopMiddleware[S, A, E]

	dispatches    atomic.Int64
	enterPasses   atomic.Int64
	exits         atomic.Int64
	stateChanges  atomic.Int64
	eventsEmitted atomic.Int64
	recoveries    atomic.Int64
}

// MetricsSnapshot is an immutable snapshot of Metrics.
type MetricsSnapshot struct {
	Dispatches    int64
	EnterPasses   int64
	Exits         int64
	StateChanges  int64
	EventsEmitted int64
	Recoveries    int64
}

func (m *Metrics[S, A, E]) AfterDispatch(ctx context.Context, s S, a A, next S) {
	m.dispatches.Add(1)
}

func (m *Metrics[S, A, E]) AfterEnter(ctx context.Context, s S, next S) {
	m.enterPasses.Add(1)
}

func (m *Metrics[S, A, E]) AfterExit(ctx context.Context, s S) {
	m.exits.Add(1)
}

func (m *Metrics[S, A, E]) AfterChange(ctx context.Context, old, next S) {
	m.stateChanges.Add(1)
}

func (m *Metrics[S, A, E]) AfterEmit(ctx context.Context, e E) {
	m.eventsEmitted.Add(1)
}

func (m *Metrics[S, A, E]) AfterRecover(ctx context.Context, s S, cause error, next S) {
	m.recoveries.Add(1)
}

// Snapshot returns a snapshot of the current counters.
func (m *Metrics[S, A, E]) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Dispatches:    m.dispatches.Load(),
		EnterPasses:   m.enterPasses.Load(),
		Exits:         m.exits.Load(),
		StateChanges:  m.stateChanges.Load(),
		EventsEmitted: m.eventsEmitted.Load(),
		Recoveries:    m.recoveries.Load(),
	}
}
