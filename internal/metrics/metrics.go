// Package metrics is the counters side channel of the runtime. Stages report
// record counts, spills and trapped failures through Counters; the values
// are kept in memory for tests and exported to prometheus by the app.
package metrics

import (
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter groups.
const (
	GroupStage = "stage"
	GroupSpill = "spill"
	GroupTrap  = "trap"
	GroupFlow  = "flow"
)

// Counter names.
const (
	RecordsRead    = "records_read"
	RecordsWritten = "records_written"
	RecordsTrapped = "records_trapped"
	Spills         = "spills"
	SpilledRecords = "spilled_records"
	SpillMillis    = "spill_millis"
	StepsCompleted = "steps_completed"
	StepsFailed    = "steps_failed"
	NodesCompleted = "nodes_completed"
)

// Counters receives counter increments. Implementations are safe for
// concurrent use.
type Counters interface {
	Increment(group, name string, delta int64)
}

type nop struct{}

func (nop) Increment(string, string, int64) {}

// Nop returns counters that drop every increment.
func Nop() Counters { return nop{} }

// Key names one counter.
type Key struct {
	Group string
	Name  string
}

// Memory keeps counters in a map.
type Memory struct {
	mu     sync.Mutex
	counts map[Key]int64
}

// NewMemory returns empty in-memory counters.
func NewMemory() *Memory {
	return &Memory{counts: make(map[Key]int64)}
}

func (m *Memory) Increment(group, name string, delta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[Key{group, name}] += delta
}

// Get returns the current value of one counter.
func (m *Memory) Get(group, name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[Key{group, name}]
}

// Keys returns every counter key, sorted.
func (m *Memory) Keys() []Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]Key, 0, len(m.counts))
	for k := range m.counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Group != keys[j].Group {
			return keys[i].Group < keys[j].Group
		}
		return keys[i].Name < keys[j].Name
	})
	return keys
}

// Prometheus exports counters as one labelled counter vector on a private
// registry.
type Prometheus struct {
	registry *prometheus.Registry
	counters *prometheus.CounterVec
}

// NewPrometheus registers the gridflow_counter_total vector together with
// the go and process collectors.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridflow",
			Name:      "counter_total",
			Help:      "Runtime counters by group and name.",
		},
		[]string{"group", "name"},
	)
	reg.MustRegister(
		counters,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Prometheus{registry: reg, counters: counters}
}

func (p *Prometheus) Increment(group, name string, delta int64) {
	if delta <= 0 {
		return
	}
	p.counters.WithLabelValues(group, name).Add(float64(delta))
}

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

type tee []Counters

func (t tee) Increment(group, name string, delta int64) {
	for _, c := range t {
		c.Increment(group, name, delta)
	}
}

// Tee fans increments out to every non-nil counters value.
func Tee(counters ...Counters) Counters {
	var out tee
	for _, c := range counters {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}
