// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig       `yaml:"server"`
	Database      DatabaseConfig     `yaml:"database"`
	Prometheus    PrometheusConfig   `yaml:"prometheus"`
	Logging       LoggingConfig      `yaml:"logging"`
	Search        SearchConfig       `yaml:"search"`
	Health        HealthConfig       `yaml:"health"`
	Notifications NotificationConfig `yaml:"notifications"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path            string        `yaml:"path"`
	CompactInterval time.Duration `yaml:"compact_interval"`
}

type PrometheusConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MetricsPath string `yaml:"metrics_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

type HealthConfig struct {
	ListLimit         int `yaml:"list_limit"`
	RecentErrorsLimit int `yaml:"recent_errors_limit"`
}

type NotificationConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Pushover PushoverConfig `yaml:"pushover"`
}

type PushoverConfig struct {
	Enabled  bool           `yaml:"enabled"`
	APIToken string         `yaml:"api_token"`
	UserKey  string         `yaml:"user_key"`
	Title    string         `yaml:"title"`
	Throttle ThrottleConfig `yaml:"throttle"`
}

type ThrottleConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Window    time.Duration `yaml:"window"`
	MaxPerJob int           `yaml:"max_per_job"`
}

func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	setDefaults(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/missionctl.db"
	}
	if cfg.Prometheus.MetricsPath == "" {
		cfg.Prometheus.MetricsPath = "/metrics"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 20
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Health.ListLimit == 0 {
		cfg.Health.ListLimit = 100
	}
	if cfg.Health.RecentErrorsLimit == 0 {
		cfg.Health.RecentErrorsLimit = 10
	}
	if cfg.Notifications.Pushover.Title == "" {
		cfg.Notifications.Pushover.Title = "Mission Control"
	}
	if cfg.Notifications.Pushover.Throttle.Window == 0 {
		cfg.Notifications.Pushover.Throttle.Window = time.Hour
	}
	if cfg.Notifications.Pushover.Throttle.MaxPerJob == 0 {
		cfg.Notifications.Pushover.Throttle.MaxPerJob = 3
	}
}

func validate(cfg *Config) error {
	if !strings.HasPrefix(cfg.Server.Port, ":") {
		return fmt.Errorf("server port must be of the form \":8080\", got %q", cfg.Server.Port)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level %q", cfg.Logging.Level)
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown logging format %q", cfg.Logging.Format)
	}

	if cfg.Search.DefaultLimit > cfg.Search.MaxLimit {
		return fmt.Errorf("search default_limit %d exceeds max_limit %d",
			cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
	}

	if cfg.Notifications.Enabled && cfg.Notifications.Pushover.Enabled {
		if cfg.Notifications.Pushover.APIToken == "" || cfg.Notifications.Pushover.UserKey == "" {
			return fmt.Errorf("pushover notifications require api_token and user_key")
		}
	}

	return nil
}
