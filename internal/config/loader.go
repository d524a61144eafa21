package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/facefit/internal/fit"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfigYAML parses a Config from YAML bytes and validates it.
// Fields missing from the document keep their Default values.
func ParseConfigYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the whole configuration
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}
	if err := c.Fit.Validate(); err != nil {
		return err
	}
	return c.Render.Validate()
}

// Validate checks a fitting job description; the target path is not required
// so a configuration file can leave it to the command line.
func (f *Fit) Validate() error {
	switch f.Method {
	case fit.MethodGradient, fit.MethodSampler, fit.MethodGlobal:
	default:
		return fmt.Errorf("invalid method: %q (must be %s, %s, or %s)", f.Method, fit.MethodGradient, fit.MethodSampler, fit.MethodGlobal)
	}
	if f.Dimensions < 0 {
		return fmt.Errorf("dimensions cannot be negative, got %d", f.Dimensions)
	}
	if f.Channel < 0 {
		return fmt.Errorf("channel cannot be negative, got %d", f.Channel)
	}
	if f.MaxLoops < 0 {
		return fmt.Errorf("max_loops cannot be negative, got %d", f.MaxLoops)
	}
	if f.CheckpointInterval < 0 {
		return fmt.Errorf("checkpoint_interval cannot be negative, got %d", f.CheckpointInterval)
	}

	switch f.Method {
	case fit.MethodGradient:
		if f.Gradient.Dx <= 0 {
			return fmt.Errorf("gradient.dx must be positive, got %v", f.Gradient.Dx)
		}
		if f.Gradient.Step < 0 {
			return fmt.Errorf("gradient.step cannot be negative, got %v", f.Gradient.Step)
		}
	case fit.MethodSampler:
		for i, s := range f.Sampler.Steps {
			if s < 1 {
				return fmt.Errorf("sampler.steps[%d] must be at least 1, got %d", i, s)
			}
		}
		if f.Sampler.DeterminedLoops < 0 {
			return fmt.Errorf("sampler.determined_loops cannot be negative, got %d", f.Sampler.DeterminedLoops)
		}
		if f.Sampler.StepsScale < 0 {
			return fmt.Errorf("sampler.steps_scale cannot be negative, got %v", f.Sampler.StepsScale)
		}
	case fit.MethodGlobal:
		if f.Mayfly.Iters <= 0 {
			return fmt.Errorf("mayfly.iters must be positive, got %d", f.Mayfly.Iters)
		}
		// the mayfly library rejects smaller populations
		if f.Mayfly.PopSize < 20 {
			return fmt.Errorf("mayfly.pop_size must be at least 20, got %d", f.Mayfly.PopSize)
		}
	}

	if c := f.Convergence; c.Enabled {
		if c.Patience <= 0 {
			return fmt.Errorf("convergence.patience must be positive, got %d", c.Patience)
		}
		if c.Threshold < 0 {
			return fmt.Errorf("convergence.threshold cannot be negative, got %v", c.Threshold)
		}
	}
	return nil
}

// Validate checks the render settings
func (r *Render) Validate() error {
	if r.Rows <= 0 || r.Cols <= 0 {
		return fmt.Errorf("render size must be positive, got %dx%d", r.Rows, r.Cols)
	}
	if r.Workers < 0 {
		return fmt.Errorf("render.workers cannot be negative, got %d", r.Workers)
	}
	if r.ModelResolution < 2 {
		return fmt.Errorf("render.model_resolution must be at least 2, got %d", r.ModelResolution)
	}
	return nil
}
