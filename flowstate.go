package flowstate

import (
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/flowstate/internal/journal"
	"github.com/petrijr/flowstate/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	State  = api.State
	Action = api.Action
	Event  = api.Event

	Record        = api.Record
	RecordType    = api.RecordType
	RecordSink    = api.RecordSink
	RecordJournal = api.RecordJournal

	MetricsSnapshot = api.MetricsSnapshot
)

type (
	Store[S State, A Action, E Event]      = api.Store[S, A, E]
	Middleware[S State, A Action, E Event] = api.Middleware[S, A, E]

	NoopMiddleware[S State, A Action, E Event]    = api.NoopMiddleware[S, A, E]
	LoggingMiddleware[S State, A Action, E Event] = api.LoggingMiddleware[S, A, E]
	JournalMiddleware[S State, A Action, E Event] = api.JournalMiddleware[S, A, E]
	Metrics[S State, A Action, E Event]           = api.Metrics[S, A, E]

	EmitFunc[E Event]                        = api.EmitFunc[E]
	EnterFunc[S State, E Event]              = api.EnterFunc[S, E]
	DispatchFunc[S State, A Action, E Event] = api.DispatchFunc[S, A, E]
	ExitFunc[S State, E Event]               = api.ExitFunc[S, E]
	ErrorFunc[S State, E Event]              = api.ErrorFunc[S, E]
)

// Re-export record types for journal consumers.

const (
	RecordActionDispatched = api.RecordActionDispatched
	RecordStateEntered     = api.RecordStateEntered
	RecordStateExited      = api.RecordStateExited
	RecordStateChanged     = api.RecordStateChanged
	RecordEventEmitted     = api.RecordEventEmitted
	RecordErrorRecovered   = api.RecordErrorRecovered
)

// Middleware constructors
// These wrap pkg/api so call sites read flowstate.NewLoggingMiddleware.

// NewLoggingMiddleware returns a Middleware that logs pipeline activity
// with log/slog. A nil logger falls back to slog.Default().
func NewLoggingMiddleware[S State, A Action, E Event](logger *slog.Logger) Middleware[S, A, E] {
	return api.NewLoggingMiddleware[S, A, E](logger)
}

// NewCompositeMiddleware returns a Middleware that forwards every hook to
// each non-nil middleware in mws, preserving declaration order.
func NewCompositeMiddleware[S State, A Action, E Event](mws ...Middleware[S, A, E]) Middleware[S, A, E] {
	return api.NewCompositeMiddleware(mws...)
}

// NewJournalMiddleware returns a Middleware that appends a Record to sink
// for every completed pipeline stage of the store identified by storeID.
func NewJournalMiddleware[S State, A Action, E Event](sink RecordSink, storeID string) Middleware[S, A, E] {
	return api.NewJournalMiddleware[S, A, E](sink, storeID)
}

// Journal constructors
// These wrap the internal/journal package so external callers never need
// to import internal packages.

// NewMemoryJournal returns a RecordJournal held entirely in memory.
// Best for tests and short-lived tooling.
func NewMemoryJournal() RecordJournal {
	return journal.NewMemory()
}

// NewSQLiteJournal returns a RecordJournal that persists records in a
// SQLite database, creating its schema if needed.
func NewSQLiteJournal(db *sql.DB) (RecordJournal, error) {
	return journal.NewSQLite(db)
}

// NewRedisJournal returns a RecordJournal that appends records to a
// per-store Redis list and publishes each one on a pub/sub channel for
// live tailing. prefix is optional but recommended (e.g. "flowstate:").
func NewRedisJournal(client *redis.Client, prefix string) RecordJournal {
	return journal.NewRedis(client, prefix)
}
