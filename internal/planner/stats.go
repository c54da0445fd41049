package planner

import (
	"time"

	"github.com/specialistvlad/gridflow/internal/physical"
)

// PhaseStats aggregates every execution of one phase.
type PhaseStats struct {
	Phase      string        `json:"phase"`
	Executions int           `json:"executions"`
	Results    int           `json:"results"`
	Duration   time.Duration `json:"duration"`
}

// Stats summarizes one planning run.
type Stats struct {
	Flow      string        `json:"flow"`
	Registry  string        `json:"registry"`
	Phases    []*PhaseStats `json:"phases"`
	Steps     int           `json:"steps"`
	Nodes     int           `json:"nodes"`
	Pipelines int           `json:"pipelines"`
	Duration  time.Duration `json:"duration"`
}

func newStats(flow, registry string) *Stats {
	s := &Stats{Flow: flow, Registry: registry}
	for _, p := range Phases() {
		s.Phases = append(s.Phases, &PhaseStats{Phase: p.String()})
	}
	return s
}

func (s *Stats) phase(p Phase, results int, d time.Duration) {
	ps := s.Phases[p]
	ps.Executions++
	ps.Results += results
	ps.Duration += d
}

func (s *Stats) finish(sg *physical.StepGraph, d time.Duration) {
	s.Steps = len(sg.Steps)
	s.Nodes = len(sg.Nodes())
	s.Pipelines = len(sg.Pipelines())
	s.Duration = d
}
