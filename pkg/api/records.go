package api

import (
	"context"
	"time"
)

// RecordType identifies a store pipeline record.
type RecordType string

const (
	RecordActionDispatched RecordType = "action.dispatched"
	RecordStateEntered     RecordType = "state.entered"
	RecordStateExited      RecordType = "state.exited"
	RecordStateChanged     RecordType = "state.changed"
	RecordEventEmitted     RecordType = "event.emitted"
	RecordErrorRecovered   RecordType = "error.recovered"
)

// Record is a minimal append-only audit entry for store activity. It is
// intentionally small and stable; time-travel tooling and dashboards can
// be layered on top of a record stream.
type Record struct {
	StoreID string     `json:"store_id"`
	At      time.Time  `json:"at"`
	Type    RecordType `json:"type"`

	// Variant of the state produced by the recorded stage.
	Variant string `json:"variant,omitempty"`

	// Action and Event identify the variant of the dispatched action or
	// emitted event, when the record concerns one.
	Action string `json:"action,omitempty"`
	Event  string `json:"event,omitempty"`

	// Small, human-oriented details (e.g. the variant being left, an error
	// string). Keep this low-volume: do NOT dump state payloads here.
	Detail string `json:"detail,omitempty"`
}

// RecordSink receives pipeline records. Implementations must be safe for
// concurrent use; the engine serializes appends for a single store, but
// one sink may serve many stores.
type RecordSink interface {
	Append(ctx context.Context, r Record) error
}

// RecordJournal is a RecordSink that can also be read back.
type RecordJournal interface {
	RecordSink
	List(ctx context.Context, storeID string) ([]Record, error)
}

// NoopSink discards all records.
type NoopSink struct{}

func (NoopSink) Append(ctx context.Context, r Record) error { return nil }

// JournalMiddleware records every pipeline stage to a RecordSink.
type JournalMiddleware[S State, A Action, E Event] struct {
	NoopMiddleware[S, A, E]

	sink    RecordSink
	storeID string
	now     func() time.Time
}

// NewJournalMiddleware creates a Middleware that appends a Record to sink
// for every completed pipeline stage of the store identified by storeID.
// Appends are best-effort: a failing sink must not stall the pipeline, so
// append errors are dropped.
func NewJournalMiddleware[S State, A Action, E Event](sink RecordSink, storeID string) *JournalMiddleware[S, A, E] {
	if sink == nil {
		sink = NoopSink{}
	}
	return &JournalMiddleware[S, A, E]{
		sink:    sink,
		storeID: storeID,
		now:     time.Now,
	}
}

func (j *JournalMiddleware[S, A, E]) append(ctx context.Context, r Record) {
	r.StoreID = j.storeID
	r.At = j.now()
	_ = j.sink.Append(ctx, r)
}

func (j *JournalMiddleware[S, A, E]) AfterDispatch(ctx context.Context, s S, a A, next S) {
	j.append(ctx, Record{
		Type:    RecordActionDispatched,
		Variant: next.Variant(),
		Action:  a.Variant(),
		Detail:  "from " + s.Variant(),
	})
}

func (j *JournalMiddleware[S, A, E]) AfterEnter(ctx context.Context, s S, next S) {
	j.append(ctx, Record{
		Type:    RecordStateEntered,
		Variant: next.Variant(),
		Detail:  "from " + s.Variant(),
	})
}

func (j *JournalMiddleware[S, A, E]) AfterExit(ctx context.Context, s S) {
	j.append(ctx, Record{
		Type:    RecordStateExited,
		Variant: s.Variant(),
	})
}

func (j *JournalMiddleware[S, A, E]) AfterChange(ctx context.Context, old, next S) {
	j.append(ctx, Record{
		Type:    RecordStateChanged,
		Variant: next.Variant(),
		Detail:  "from " + old.Variant(),
	})
}

func (j *JournalMiddleware[S, A, E]) AfterEmit(ctx context.Context, e E) {
	j.append(ctx, Record{
		Type:  RecordEventEmitted,
		Event: e.Variant(),
	})
}

func (j *JournalMiddleware[S, A, E]) AfterRecover(ctx context.Context, s S, cause error, next S) {
	j.append(ctx, Record{
		Type:    RecordErrorRecovered,
		Variant: next.Variant(),
		Detail:  cause.Error(),
	})
}
