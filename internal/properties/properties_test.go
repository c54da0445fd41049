package properties

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	p := New()
	assert.Equal(t, DefaultSpillThreshold, p.SpillThreshold())
	assert.Empty(t, p.SpillDir())
	assert.Zero(t, p.MaxRewrites())
	transform, step, stats := p.TracePaths()
	assert.Empty(t, transform+step+stats)
	require.NoError(t, p.Validate())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("GRIDFLOW_RUNTIME_SPILL_THRESHOLD", "25")
	t.Setenv("GRIDFLOW_PLANNER_TRACE_STATS_PATH", "/tmp/stats")

	p := New()
	assert.Equal(t, 25, p.SpillThreshold())
	_, _, stats := p.TracePaths()
	assert.Equal(t, "/tmp/stats", stats)
}

func TestLoadFile(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		env     map[string]string
		want    int
		wantErr string
	}{
		{
			name:    "file value",
			content: "runtime:\n  spill:\n    threshold: 7\n    dir: /var/spill\n",
			want:    7,
		},
		{
			name:    "environment wins over file",
			content: "runtime:\n  spill:\n    threshold: 7\n",
			env:     map[string]string{"GRIDFLOW_RUNTIME_SPILL_THRESHOLD": "9"},
			want:    9,
		},
		{
			name:    "invalid threshold",
			content: "runtime:\n  spill:\n    threshold: 0\n",
			wantErr: "runtime.spill.threshold must be positive",
		},
		{
			name:    "malformed file",
			content: "runtime: [",
			wantErr: "failed to read properties file",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			file := filepath.Join(t.TempDir(), "gridflow.yaml")
			require.NoError(t, os.WriteFile(file, []byte(tc.content), 0o644))

			p, err := Load(file)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.SpillThreshold())
		})
	}
}

func TestSetOverridesEverything(t *testing.T) {
	t.Setenv("GRIDFLOW_RUNTIME_SPILL_DIR", "/from/env")
	p := New()
	p.Set(SpillDir, "/from/flag")
	assert.Equal(t, "/from/flag", p.SpillDir())
}
