package app

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/specialistvlad/gridflow/internal/config"
)

// syncBuffer collects log lines written from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// newTestApp builds an app logging at debug level into the returned buffer.
// Set GRIDFLOW_TEST_LOGS=true to dump the log of every test.
func newTestApp(t *testing.T, cfg *Config, loader config.Loader) (*App, *syncBuffer) {
	t.Helper()

	logs := &syncBuffer{}
	cfg.LogLevel = "debug"
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 2
	}
	a := NewApp(logs, cfg, loader)
	t.Cleanup(func() {
		if os.Getenv("GRIDFLOW_TEST_LOGS") == "true" {
			t.Logf("logs of %s:\n%s", t.Name(), logs.String())
		}
	})
	return a, logs
}
