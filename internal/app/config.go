package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// ExperimentPath is a single .hcl file or a directory of .hcl files.
	ExperimentPath string

	LogFormat string
	LogLevel  string

	// DryRun stops after composition and prints the resolved settings
	// surface instead of running the experiment.
	DryRun bool
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ExperimentPath == "" {
		return nil, errors.New("ExperimentPath is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
