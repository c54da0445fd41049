// Package stream executes the graph of one physical node. Build turns every
// element into a stage, Execute binds the stages and pushes the records of
// every source through them.
package stream

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/metrics"
	"github.com/specialistvlad/gridflow/internal/tap"
)

// ErrUnsupportedElement is returned by Build for elements no stage exists
// for, such as pipe markers left in a node graph.
var ErrUnsupportedElement = errors.New("unsupported element")

// StageError is a failure raised by one stage while processing records.
type StageError struct {
	Element element.Element
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Element, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Handles are the opened connectors of a node. The caller owns them: the
// runtime flushes sinks but never closes a handle.
type Handles struct {
	Sources map[element.Element]tap.Reader
	Sinks   map[element.Element]tap.Writer
	// Traps receive the records that failed an operation, by branch name.
	Traps map[string]tap.Writer
}

// Lifecycle names a step of Execute.
type Lifecycle int

const (
	LifecycleBind Lifecycle = iota
	LifecycleInitialize
	LifecyclePrepare
	LifecycleRun
	LifecycleCleanup
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleBind:
		return "bind"
	case LifecycleInitialize:
		return "initialize"
	case LifecyclePrepare:
		return "prepare"
	case LifecycleRun:
		return "run"
	default:
		return "cleanup"
	}
}

// Observer sees every lifecycle transition of every stage.
type Observer func(Lifecycle, Stage)

// Options configures Build.
type Options struct {
	// SpillThreshold bounds the values a grouping bucket keeps in memory.
	SpillThreshold int
	// SpillDir holds spill segments; empty selects the OS temp directory.
	SpillDir string
	Counters metrics.Counters
	Observer Observer
}

// Wrap records how a stage hands records downstream. It is decided once the
// stages are linked.
type Wrap uint8

const (
	// WrapFork broadcasts every record to several successors.
	WrapFork Wrap = 1 << iota
	// WrapOrdinal tags records with the branch ordinal of a multi-input successor.
	WrapOrdinal
	// WrapWindowOpen opens a group window for the reducers that follow.
	WrapWindowOpen
)

// WrapNone hands records to a single successor.
const WrapNone Wrap = 0

func (w Wrap) Has(f Wrap) bool { return w&f != 0 }

func (w Wrap) String() string {
	if w == WrapNone {
		return "none"
	}
	var s string
	for _, f := range []struct {
		w    Wrap
		name string
	}{{WrapFork, "fork"}, {WrapOrdinal, "ordinal"}, {WrapWindowOpen, "window-open"}} {
		if w.Has(f.w) {
			if s != "" {
				s += "|"
			}
			s += f.name
		}
	}
	return s
}
