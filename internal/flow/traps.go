package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/tap"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

// trapWriters opens every trap connector once per run and shares the writer
// between the nodes that trap into it.
type trapWriters struct {
	mu      sync.Mutex
	writers map[*element.Tap]*lockedWriter
}

func newTrapWriters() *trapWriters {
	return &trapWriters{writers: make(map[*element.Tap]*lockedWriter)}
}

func (t *trapWriters) writer(ctx context.Context, trap *element.Tap) (tap.Writer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.writers[trap]; ok {
		return w, nil
	}
	w, err := trap.Tap().OpenWrite(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening trap %s: %w", trap, err)
	}
	lw := &lockedWriter{w: w}
	t.writers[trap] = lw
	return lw, nil
}

func (t *trapWriters) close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []error
	for trap, w := range t.writers {
		if err := w.w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing trap %s: %w", trap, err))
		}
	}
	t.writers = make(map[*element.Tap]*lockedWriter)
	return errors.Join(errs...)
}

// lockedWriter serializes access to a shared writer. Close is a no-op: the
// owner closes the underlying writer at the end of the run.
type lockedWriter struct {
	mu sync.Mutex
	w  tap.Writer
}

func (l *lockedWriter) Write(ctx context.Context, t tuple.Tuple) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(ctx, t)
}

func (l *lockedWriter) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Flush()
}

func (l *lockedWriter) Close() error { return nil }
