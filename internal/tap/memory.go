package tap

import (
	"context"
	"io"
	"sync"

	"github.com/specialistvlad/gridflow/internal/tuple"
)

// Memory keeps records in a slice. Writers append to it; readers see a
// snapshot of the records present when they were opened.
type Memory struct {
	id     string
	fields tuple.Fields

	mu      sync.Mutex
	records []tuple.Tuple
}

// NewMemory returns an empty in-memory connector.
func NewMemory(id string, fields tuple.Fields, records ...tuple.Tuple) *Memory {
	return &Memory{id: id, fields: fields, records: records}
}

func (m *Memory) Identifier() string         { return "memory:" + m.id }
func (m *Memory) SourceFields() tuple.Fields { return m.fields }
func (m *Memory) SinkFields() tuple.Fields   { return nil }

// Records returns a copy of the stored records.
func (m *Memory) Records() []tuple.Tuple {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tuple.Tuple(nil), m.records...)
}

func (m *Memory) OpenRead(ctx context.Context) (Reader, error) {
	return &memoryReader{records: m.Records()}, nil
}

func (m *Memory) OpenWrite(ctx context.Context) (Writer, error) {
	return &memoryWriter{m: m}, nil
}

type memoryReader struct {
	records []tuple.Tuple
	pos     int
}

func (r *memoryReader) Read(ctx context.Context) (tuple.Tuple, error) {
	if r.pos >= len(r.records) {
		return nil, io.EOF
	}
	t := r.records[r.pos]
	r.pos++
	return t, nil
}

func (r *memoryReader) Close() error { return nil }

type memoryWriter struct {
	m       *Memory
	pending []tuple.Tuple
}

func (w *memoryWriter) Write(ctx context.Context, t tuple.Tuple) error {
	w.pending = append(w.pending, t.Copy())
	return nil
}

func (w *memoryWriter) Flush() error {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	w.m.records = append(w.m.records, w.pending...)
	w.pending = nil
	return nil
}

func (w *memoryWriter) Close() error { return w.Flush() }
