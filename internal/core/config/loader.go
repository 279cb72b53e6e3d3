package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/chaoslab/internal/core/domain"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Experiment.Validate(); err != nil {
		return nil, fmt.Errorf("invalid experiment config: %w", err)
	}
	if err := cfg.Injection.Validate(); err != nil {
		return nil, fmt.Errorf("invalid injection config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9090
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "results"
	}
	if cfg.Playbook.Backend == "" {
		cfg.Playbook.Backend = "file"
	}
	if cfg.Playbook.Path == "" {
		cfg.Playbook.Path = "data/chaos_playbook.json"
	}
	if len(cfg.Experiment.FailureRates) == 0 {
		cfg.Experiment.FailureRates = []float64{0.0, 0.25, 0.5, 0.75, 1.0}
	}
	if cfg.Experiment.RepetitionsPerRate == 0 {
		cfg.Experiment.RepetitionsPerRate = 50
	}
	if len(cfg.Experiment.Variants) == 0 {
		cfg.Experiment.Variants = []domain.Variant{
			domain.VariantBaseline,
			domain.VariantStrategyAware,
		}
	}
	if cfg.Experiment.Concurrency == 0 {
		cfg.Experiment.Concurrency = 4
	}
}
