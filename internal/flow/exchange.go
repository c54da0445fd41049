package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/spill"
	"github.com/specialistvlad/gridflow/internal/tap"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

// Exchange moves the records of boundaries and checkpoints from the nodes
// writing them to the nodes reading them. Every connector holds one spill
// list. Writers of a connector always finish before any reader opens, which
// the node and step dependencies guarantee.
type Exchange struct {
	mu    sync.Mutex
	opts  spill.Options
	lists map[element.Element]*exchanged
}

type exchanged struct {
	mu   sync.Mutex
	list *spill.List
}

// NewExchange returns an empty exchange whose lists spill with opts.
func NewExchange(opts spill.Options) *Exchange {
	return &Exchange{opts: opts, lists: make(map[element.Element]*exchanged)}
}

// Writer appends to the records held for e. Several nodes may write the same
// connector.
func (x *Exchange) Writer(e element.Element) (tap.Writer, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	ex, ok := x.lists[e]
	if !ok {
		ex = &exchanged{list: spill.New(x.opts)}
		x.lists[e] = ex
	}
	return &exchangeWriter{ex: ex}, nil
}

// Reader returns the records written for e.
func (x *Exchange) Reader(e element.Element) (tap.Reader, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	ex, ok := x.lists[e]
	if !ok {
		return nil, fmt.Errorf("no records exchanged for %s", e)
	}
	return &exchangeReader{it: ex.list.Iterator()}, nil
}

// Len returns the number of records held for e.
func (x *Exchange) Len(e element.Element) int {
	x.mu.Lock()
	defer x.mu.Unlock()
	if ex, ok := x.lists[e]; ok {
		ex.mu.Lock()
		defer ex.mu.Unlock()
		return ex.list.Len()
	}
	return 0
}

// Close releases every list and its spill segments.
func (x *Exchange) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	var errs []error
	for e, ex := range x.lists {
		if err := ex.list.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e, err))
		}
	}
	x.lists = make(map[element.Element]*exchanged)
	return errors.Join(errs...)
}

type exchangeWriter struct {
	ex *exchanged
}

func (w *exchangeWriter) Write(_ context.Context, t tuple.Tuple) error {
	w.ex.mu.Lock()
	defer w.ex.mu.Unlock()
	return w.ex.list.Add(t.Copy())
}

func (w *exchangeWriter) Flush() error { return nil }
func (w *exchangeWriter) Close() error { return nil }

type exchangeReader struct {
	it tuple.Iterator
}

func (r *exchangeReader) Read(context.Context) (tuple.Tuple, error) {
	if r.it.Next() {
		return r.it.Tuple(), nil
	}
	if err := r.it.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (r *exchangeReader) Close() error { return r.it.Close() }
