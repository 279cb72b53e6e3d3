package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
injection:
  enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("default port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Playbook.Backend != "file" || cfg.Playbook.Path == "" {
		t.Errorf("playbook defaults not applied: %+v", cfg.Playbook)
	}
	if cfg.Experiment.RepetitionsPerRate != 50 {
		t.Errorf("default repetitions = %d, want 50", cfg.Experiment.RepetitionsPerRate)
	}
	if len(cfg.Experiment.Variants) != 2 {
		t.Errorf("default variants = %v, want both", cfg.Experiment.Variants)
	}
	if len(cfg.Experiment.FailureRates) == 0 {
		t.Error("default failure rates not applied")
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8088
  enabled: true
output:
  dir: /tmp/chaoslab-out
experiment:
  seed: 42
  failure_rates: [0.0, 0.5]
  repetitions_per_rate: 10
  variants: [baseline, strategy_aware]
  concurrency: 8
injection:
  enabled: true
  base_delay: 100ms
  jitter_factor: 0.5
  kind_weights:
    service_unavailable: 0.4
    rate_limited: 0.2
    timeout: 0.3
    malformed: 0.1
breaker:
  failure_threshold: 3
  success_threshold: 2
  cooldown: 5s
playbook:
  backend: file
  path: /tmp/playbook.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Experiment.Seed != 42 || cfg.Experiment.Concurrency != 8 {
		t.Errorf("experiment config = %+v", cfg.Experiment)
	}
	if cfg.Breaker.FailureThreshold != 3 || cfg.Breaker.SuccessThreshold != 2 {
		t.Errorf("breaker config = %+v", cfg.Breaker)
	}
	if w := cfg.Injection.KindWeights[domain.Timeout]; w != 0.3 {
		t.Errorf("timeout weight = %v, want 0.3", w)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("CHAOSLAB_OUT", "/tmp/from-env")
	path := writeConfig(t, `
output:
  dir: ${CHAOSLAB_OUT}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Output.Dir != "/tmp/from-env" {
		t.Errorf("output dir = %s, want expanded env var", cfg.Output.Dir)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "rate out of range",
			content: `
experiment:
  failure_rates: [0.5, 1.5]
`,
		},
		{
			name: "weights not summing to one",
			content: `
injection:
  kind_weights:
    timeout: 0.9
    malformed: 0.5
`,
		},
		{
			name:    "not yaml",
			content: "experiment: [unclosed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load() accepted malformed config")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() on missing file returned nil error")
	}
}
