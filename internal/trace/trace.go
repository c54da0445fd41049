// Package trace writes planner artifacts to disk: one DOT file per graph
// rewrite, the final step graph and the planner statistics.
package trace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/physical"
)

// Options selects the directories artifacts are written to. An empty path
// disables that artifact.
type Options struct {
	TransformPath string
	StepPath      string
	StatsPath     string
}

// Enabled reports whether any artifact is written.
func (o Options) Enabled() bool {
	return o.TransformPath != "" || o.StepPath != "" || o.StatsPath != ""
}

// Writer implements the planner tracer over the local filesystem.
type Writer struct {
	opts  Options
	runID uuid.UUID

	mu   sync.Mutex
	dirs map[string]bool
}

// New returns a writer stamping every stats document with a fresh run ID.
func New(opts Options) *Writer {
	return &Writer{opts: opts, runID: uuid.New(), dirs: make(map[string]bool)}
}

// RunID identifies the planning run in the stats document.
func (w *Writer) RunID() uuid.UUID { return w.runID }

// Transform writes <phase-ordinal>-<phase-name>-<rule-ordinal>-<name>.dot.
func (w *Writer) Transform(phaseOrdinal int, phase string, ruleOrdinal int, name string, g *element.Graph) error {
	if w.opts.TransformPath == "" {
		return nil
	}
	file := fmt.Sprintf("%02d-%s-%02d-%s.dot", phaseOrdinal, phase, ruleOrdinal, fileSafe(name))
	return w.write(w.opts.TransformPath, file, func(f *os.File) error {
		return WriteGraph(f, name, g)
	})
}

// Steps writes <flow>-steps.dot.
func (w *Writer) Steps(flow string, sg *physical.StepGraph) error {
	if w.opts.StepPath == "" {
		return nil
	}
	return w.write(w.opts.StepPath, fileSafe(flow)+"-steps.dot", func(f *os.File) error {
		return WriteSteps(f, sg)
	})
}

type statsDocument struct {
	RunID     string    `json:"run_id"`
	Flow      string    `json:"flow"`
	WrittenAt time.Time `json:"written_at"`
	Stats     any       `json:"stats"`
}

// Stats writes <flow>-stats.json.
func (w *Writer) Stats(flow string, stats any) error {
	if w.opts.StatsPath == "" {
		return nil
	}
	doc := statsDocument{RunID: w.runID.String(), Flow: flow, WrittenAt: time.Now().UTC(), Stats: stats}
	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding stats: %w", err)
	}
	return w.write(w.opts.StatsPath, fileSafe(flow)+"-stats.json", func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}

func (w *Writer) write(dir, name string, fill func(*os.File) error) error {
	if err := w.ensureDir(dir); err != nil {
		return err
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("writing trace file %s: %w", path, err)
	}
	return f.Close()
}

func (w *Writer) ensureDir(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dirs[dir] {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating trace directory %s: %w", dir, err)
	}
	w.dirs[dir] = true
	return nil
}

var pathReplacer = strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_", "[", "", "]", "")

func fileSafe(s string) string {
	return pathReplacer.Replace(s)
}
