package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/callwatchio/callwatch/internal/overlay"
)

// Config is the daemon configuration. Every field has a flag counterpart; an
// explicitly set flag wins over the file.
type Config struct {
	// DBPath is the shared SQLite database file.
	DBPath string `yaml:"dbPath"`
	// Feed is where raw call signals arrive: "-" for stdin or a unix
	// socket path.
	Feed string `yaml:"feed"`
	// MetricsAddr is the Prometheus endpoint bind address.
	MetricsAddr string `yaml:"metricsAddr"`
	// SupervisorInterval is how often the overlay supervisor re-checks the
	// indicator during active calls.
	SupervisorInterval time.Duration `yaml:"supervisorInterval"`

	Webhook WebhookConfig `yaml:"webhook"`
}

// WebhookConfig configures the host notification webhook. An empty URL
// disables it.
type WebhookConfig struct {
	URL                string `yaml:"url"`
	TimeoutSeconds     int    `yaml:"timeoutSeconds"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	AuthToken          string `yaml:"authToken"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		DBPath:             "callwatch.db",
		Feed:               "-",
		MetricsAddr:        ":9184",
		SupervisorInterval: overlay.DefaultSupervisorInterval,
		Webhook: WebhookConfig{
			TimeoutSeconds: 10,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
