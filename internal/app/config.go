package app

import (
	"errors"
	"fmt"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	FlowPath       string // hcl files describing the flow
	ModulesPath    string // extra operation manifests, optional
	PropertiesFile string // planner and runtime properties, optional

	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	WorkerCount     int
	// PlanOnly writes the planned step graph instead of running it.
	PlanOnly bool
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.FlowPath == "" {
		return nil, errors.New("FlowPath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("WorkerCount must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.HealthcheckPort < 0 {
		return nil, fmt.Errorf("HealthcheckPort must not be negative, got %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
