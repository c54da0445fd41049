// Package operation defines the contracts user code implements to take part
// in a flow: functions and filters applied per record, aggregators and
// buffers applied per group, and value/group assertions.
package operation

import (
	"context"

	"github.com/specialistvlad/gridflow/internal/tuple"
)

// Operation is the common part of every operation.
type Operation interface {
	// Name identifies the operation in logs and plan dumps.
	Name() string
	// Declared returns the fields of the values the operation emits. Filters
	// and assertions emit nothing and return nil.
	Declared() tuple.Fields
}

// Collector receives the tuples an operation emits.
type Collector interface {
	Collect(t tuple.Tuple) error
}

// CollectorFunc adapts a function into a Collector.
type CollectorFunc func(t tuple.Tuple) error

// Collect calls f(t).
func (f CollectorFunc) Collect(t tuple.Tuple) error {
	return f(t)
}

// Function emits zero or more result tuples for every argument entry.
type Function interface {
	Operation
	Operate(ctx context.Context, args tuple.Entry, out Collector) error
}

// Filter decides whether a record is removed from the stream.
type Filter interface {
	Operation
	Remove(ctx context.Context, args tuple.Entry) (bool, error)
}

// ValueAssertion fails the record when Check returns an error.
type ValueAssertion interface {
	Operation
	Check(ctx context.Context, args tuple.Entry) error
}

// Aggregator folds every value of a group into a single result tuple. State
// is owned by the caller and threaded through the calls.
type Aggregator interface {
	Operation
	Start(ctx context.Context, key tuple.Entry) (any, error)
	Aggregate(ctx context.Context, state any, args tuple.Entry) (any, error)
	Complete(ctx context.Context, state any) (tuple.Tuple, error)
}

// Values iterates the entries of one group.
type Values interface {
	Next() bool
	Entry() tuple.Entry
	Err() error
}

// Buffer sees the whole group at once and may emit any number of tuples.
type Buffer interface {
	Operation
	Operate(ctx context.Context, key tuple.Entry, values Values, out Collector) error
}

// GroupAssertion validates a group as a whole.
type GroupAssertion interface {
	Operation
	Start(ctx context.Context, key tuple.Entry) (any, error)
	Aggregate(ctx context.Context, state any, args tuple.Entry) (any, error)
	Complete(ctx context.Context, state any) error
}
