// Package properties is the ambient configuration map shared by the planner
// and the runtime. Values come from defaults, an optional properties file
// and GRIDFLOW_ environment variables, in increasing priority.
package properties

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Keys.
const (
	TraceTransformPath = "planner.trace.transform.path"
	TraceStepPath      = "planner.trace.step.path"
	TraceStatsPath     = "planner.trace.stats.path"
	MaxRewrites        = "planner.rewrites.max"
	SpillThreshold     = "runtime.spill.threshold"
	SpillDir           = "runtime.spill.dir"
)

// EnvPrefix prefixes every environment override, e.g.
// GRIDFLOW_RUNTIME_SPILL_THRESHOLD.
const EnvPrefix = "GRIDFLOW"

// DefaultSpillThreshold is the number of values a spill list holds in memory.
const DefaultSpillThreshold = 10000

// Properties is a read-mostly view over the merged configuration.
type Properties struct {
	v *viper.Viper
}

// New returns properties holding the defaults and environment overrides.
func New() *Properties {
	v := viper.New()
	v.SetDefault(SpillThreshold, DefaultSpillThreshold)
	v.SetDefault(SpillDir, "")
	v.SetDefault(MaxRewrites, 0)
	v.SetDefault(TraceTransformPath, "")
	v.SetDefault(TraceStepPath, "")
	v.SetDefault(TraceStatsPath, "")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Properties{v: v}
}

// Load returns New plus the contents of file. The format follows the file
// extension (yaml, json, toml, properties...). An empty file is skipped.
func Load(file string) (*Properties, error) {
	p := New()
	if file == "" {
		return p, nil
	}
	p.v.SetConfigFile(file)
	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read properties file %s: %w", file, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate rejects values the runtime cannot use.
func (p *Properties) Validate() error {
	if n := p.v.GetInt(SpillThreshold); n < 1 {
		return fmt.Errorf("%s must be positive, got %d", SpillThreshold, n)
	}
	if n := p.v.GetInt(MaxRewrites); n < 0 {
		return fmt.Errorf("%s must not be negative, got %d", MaxRewrites, n)
	}
	return nil
}

// Set overrides key. Overrides win over every other source.
func (p *Properties) Set(key string, value any) {
	p.v.Set(key, value)
}

// String returns the value of key as a string.
func (p *Properties) String(key string) string {
	return p.v.GetString(key)
}

// Int returns the value of key as an int.
func (p *Properties) Int(key string) int {
	return p.v.GetInt(key)
}

// SpillThreshold returns runtime.spill.threshold.
func (p *Properties) SpillThreshold() int {
	return p.v.GetInt(SpillThreshold)
}

// SpillDir returns runtime.spill.dir; empty selects the OS temp directory.
func (p *Properties) SpillDir() string {
	return p.v.GetString(SpillDir)
}

// MaxRewrites returns planner.rewrites.max; zero selects the planner default.
func (p *Properties) MaxRewrites() int {
	return p.v.GetInt(MaxRewrites)
}

// TracePaths returns the transform, step and stats trace directories.
func (p *Properties) TracePaths() (transform, step, stats string) {
	return p.v.GetString(TraceTransformPath), p.v.GetString(TraceStepPath), p.v.GetString(TraceStatsPath)
}

// AllSettings returns the merged map, for logging.
func (p *Properties) AllSettings() map[string]any {
	return p.v.AllSettings()
}
