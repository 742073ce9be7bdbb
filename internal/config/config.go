package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Printer  PrinterConfig  `yaml:"printer"`
	Agent    AgentConfig    `yaml:"agent"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Webhooks WebhookConfig  `yaml:"webhooks"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type PrinterConfig struct {
	Address           string        `yaml:"address"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

type AgentConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	ServerURL    string        `yaml:"server_url"`
	UploadPrefix string        `yaml:"upload_prefix"`
}

type PricingConfig struct {
	FeeCents int64 `yaml:"fee_cents"`
}

type WebhookConfig struct {
	URLs        []string      `yaml:"urls"`
	Secret      string        `yaml:"secret"`
	Timeout     time.Duration `yaml:"timeout"`
	RetryCount  int           `yaml:"retry_count"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	WorkerCount int           `yaml:"worker_count"`
	QueueSize   int           `yaml:"queue_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:          "./data/kiln.db",
			RetentionDays: 7,
		},
		Printer: PrinterConfig{
			Address:           "http://127.0.0.1:5000",
			ConnectionTimeout: 10 * time.Second,
		},
		Agent: AgentConfig{
			PollInterval: 10 * time.Second,
			ServerURL:    "http://127.0.0.1:8080",
			UploadPrefix: "kiln",
		},
		Pricing: PricingConfig{
			FeeCents: 500,
		},
		Webhooks: WebhookConfig{
			Timeout:     10 * time.Second,
			RetryCount:  3,
			RetryDelay:  5 * time.Second,
			WorkerCount: 2,
			QueueSize:   100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the yaml config file at configPath over the defaults and
// then applies KILN_* environment overrides. A missing file is fine: the
// defaults plus environment are a complete configuration.
func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("KILN_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("KILN_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("KILN_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			c.Database.RetentionDays = days
		}
	}
	if v := os.Getenv("KILN_PRINTER_ADDRESS"); v != "" {
		c.Printer.Address = v
	}
	if v := os.Getenv("KILN_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Agent.PollInterval = d
		}
	}
	if v := os.Getenv("KILN_SERVER_URL"); v != "" {
		c.Agent.ServerURL = v
	}
	if v := os.Getenv("KILN_FEE_CENTS"); v != "" {
		if fee, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Pricing.FeeCents = fee
		}
	}
	if v := os.Getenv("KILN_WEBHOOK_URLS"); v != "" {
		c.Webhooks.URLs = strings.Split(v, ",")
	}
	if v := os.Getenv("KILN_WEBHOOK_SECRET"); v != "" {
		c.Webhooks.Secret = v
	}
	if v := os.Getenv("KILN_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Retention is the job-document TTL as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Database.RetentionDays) * 24 * time.Hour
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Database.RetentionDays < 1 {
		return fmt.Errorf("retention days must be at least 1")
	}

	if c.Printer.Address == "" {
		return fmt.Errorf("printer address is required")
	}

	if c.Printer.ConnectionTimeout < 0 {
		return fmt.Errorf("printer connection timeout must be non-negative")
	}

	if c.Agent.PollInterval <= 0 {
		return fmt.Errorf("agent poll interval must be positive")
	}

	if c.Pricing.FeeCents < 0 {
		return fmt.Errorf("pricing fee must be non-negative")
	}

	if c.Webhooks.Timeout < 0 {
		return fmt.Errorf("webhook timeout must be non-negative")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}
