// Package inmemorystore keeps the execution state of one flow run in
// process memory. It implements nodestore.Store.
package inmemorystore

import (
	"context"
	"sync"

	"github.com/specialistvlad/gridflow/internal/node"
	"github.com/specialistvlad/gridflow/internal/nodeid"
	"github.com/specialistvlad/gridflow/internal/nodestore"
)

// record is everything known about one step or node.
type record struct {
	status node.Status
	output any
	err    error
}

// Store is an in-memory implementation of nodestore.Store.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record
}

// New creates a new, empty in-memory state store.
func New() nodestore.Store {
	return &Store{records: make(map[string]*record)}
}

func (s *Store) update(id nodeid.Address, fn func(*record)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := id.String()
	r, ok := s.records[key]
	if !ok {
		r = &record{status: node.StatusPending}
		s.records[key] = r
	}
	fn(r)
}

func (s *Store) lookup(id nodeid.Address) (record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id.String()]
	if !ok {
		return record{status: node.StatusPending}, false
	}
	return *r, true
}

// SetStatus updates the execution status of a unit.
func (s *Store) SetStatus(_ context.Context, id nodeid.Address, status node.Status) error {
	s.update(id, func(r *record) { r.status = status })
	return nil
}

// GetStatus returns StatusPending for units never recorded.
func (s *Store) GetStatus(_ context.Context, id nodeid.Address) (node.Status, error) {
	r, _ := s.lookup(id)
	return r.status, nil
}

// SetOutput records the output of a unit.
func (s *Store) SetOutput(_ context.Context, id nodeid.Address, output any) error {
	s.update(id, func(r *record) { r.output = output })
	return nil
}

// GetOutput retrieves the recorded output of a unit.
func (s *Store) GetOutput(_ context.Context, id nodeid.Address) (any, error) {
	r, _ := s.lookup(id)
	return r.output, nil
}

// SetError records the failure of a unit.
func (s *Store) SetError(_ context.Context, id nodeid.Address, nodeErr error) error {
	s.update(id, func(r *record) { r.err = nodeErr })
	return nil
}

// GetError retrieves the recorded failure of a unit.
func (s *Store) GetError(_ context.Context, id nodeid.Address) (error, error) {
	r, _ := s.lookup(id)
	return r.err, nil
}

// Statuses returns a snapshot of the status of every recorded unit.
func (s *Store) Statuses(_ context.Context) (map[string]node.Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]node.Status, len(s.records))
	for k, r := range s.records {
		out[k] = r.status
	}
	return out, nil
}
