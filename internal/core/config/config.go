package config

import (
	"github.com/vietddude/chaoslab/internal/chaos/breaker"
	"github.com/vietddude/chaoslab/internal/chaos/inject"
	"github.com/vietddude/chaoslab/internal/chaos/playbook"
	"github.com/vietddude/chaoslab/internal/experiment"
	redisclient "github.com/vietddude/chaoslab/internal/infra/redis"
	"github.com/vietddude/chaoslab/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Logging    LoggingConfig      `yaml:"logging"`
	Output     OutputConfig       `yaml:"output"`
	Experiment experiment.Config  `yaml:"experiment"`
	Injection  inject.Config      `yaml:"injection"`
	Breaker    breaker.Config     `yaml:"breaker"`
	Playbook   playbook.Config    `yaml:"playbook"`
	Redis      redisclient.Config `yaml:"redis"`
	Database   postgres.Config    `yaml:"database"`
}

// ServerConfig holds the metrics/status HTTP server settings.
type ServerConfig struct {
	Port    int  `yaml:"port"`
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// OutputConfig holds experiment output locations.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}
