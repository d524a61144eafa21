package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cwbudde/facefit/internal/fit"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected default config to be valid, got %v", err)
	}
	if cfg.Fit.Method != fit.MethodGradient {
		t.Errorf("Expected default method %q, got %q", fit.MethodGradient, cfg.Fit.Method)
	}
	if cfg.Fit.Convergence.Enabled {
		t.Error("Expected convergence detection to be disabled by default")
	}
}

func TestParseConfigYAMLKeepsDefaults(t *testing.T) {
	data := []byte(`
log_level: debug
fit:
  method: sampler
  dimensions: 4
  sampler:
    steps: [2, 4, 6]
    determined_loops: 1
render:
  rows: 32
`)
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		t.Fatalf("ParseConfigYAML failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.Fit.Method != fit.MethodSampler {
		t.Errorf("Expected method sampler, got %s", cfg.Fit.Method)
	}
	if len(cfg.Fit.Sampler.Steps) != 3 || cfg.Fit.Sampler.Steps[2] != 6 {
		t.Errorf("Expected steps [2 4 6], got %v", cfg.Fit.Sampler.Steps)
	}
	if cfg.Render.Rows != 32 {
		t.Errorf("Expected 32 rows, got %d", cfg.Render.Rows)
	}
	// untouched fields keep their defaults
	if cfg.Render.Cols != 64 {
		t.Errorf("Expected default 64 cols, got %d", cfg.Render.Cols)
	}
	if cfg.Fit.Gradient.Dx != 0.1 {
		t.Errorf("Expected default dx 0.1, got %v", cfg.Fit.Gradient.Dx)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Expected default addr :8080, got %s", cfg.Server.Addr)
	}
}

func TestParseConfigYAMLValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad log level", "log_level: loud", "invalid log_level"},
		{"bad method", "fit: {method: simplex}", "invalid method"},
		{"negative dimensions", "fit: {dimensions: -1}", "dimensions cannot be negative"},
		{"negative loops", "fit: {max_loops: -2}", "max_loops cannot be negative"},
		{"zero dx", "fit: {gradient: {dx: 0}}", "gradient.dx must be positive"},
		{"zero step count", "fit: {method: sampler, sampler: {steps: [1, 0]}}", "sampler.steps[1]"},
		{"small population", "fit: {method: mayfly, mayfly: {pop_size: 5}}", "pop_size must be at least 20"},
		{"bad patience", "fit: {convergence: {enabled: true, patience: 0}}", "convergence.patience"},
		{"empty render", "render: {rows: 0}", "render size must be positive"},
		{"coarse model", "render: {model_resolution: 1}", "model_resolution"},
		{"malformed yaml", "fit: [", "failed to parse config yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfigYAML([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facefit.yaml")
	content := "fit:\n  target: face.png\n  max_loops: 3\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Fit.TargetPath != "face.png" {
		t.Errorf("Expected target face.png, got %s", cfg.Fit.TargetPath)
	}
	if cfg.Fit.MaxLoops != 3 {
		t.Errorf("Expected 3 loops, got %d", cfg.Fit.MaxLoops)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected read error, got %v", err)
	}
}
