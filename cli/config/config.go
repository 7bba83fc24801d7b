package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigFile is the config file name looked up in the working
// directory when --config is not given.
const DefaultConfigFile = "lighter.yaml"

// TokenEnvVar is the environment variable holding the account token.
// The token is never accepted as a CLI flag.
const TokenEnvVar = "LIGHTER_TOKEN"

// Config represents a lighter.yaml configuration file.
// All values are optional and act as defaults for deploy/plan flags.
// CLI flags always override config values.
type Config struct {
	// Project is the target project name.
	Project string `yaml:"project"`
	// Endpoint is the artifact store API base URL (api backend).
	Endpoint string `yaml:"endpoint"`
	// Token is the account token. Usually written as ${LIGHTER_TOKEN}
	// so the secret stays out of the file.
	Token string `yaml:"token"`
	// Root is the default site directory to deploy.
	Root string `yaml:"root"`
	// Backend selects the store implementation: api or s3 (default api).
	Backend string `yaml:"backend"`
	// Ignore entries are appended to the scanner's default ignore list.
	Ignore []string `yaml:"ignore"`
	// Concurrency bounds the hash worker pool.
	Concurrency int `yaml:"concurrency"`
	// MaxFileSize is the per-file size guard in bytes.
	MaxFileSize int64 `yaml:"max_file_size"`
	// Timeouts override the per-call network timeouts.
	Timeouts TimeoutConfig `yaml:"timeouts"`
	// S3 configures the s3 backend.
	S3 S3Config `yaml:"s3"`
	// History configures the local deploy journal.
	History HistoryConfig `yaml:"history"`
	// Notifiers configure post-run deploy_completed publishing.
	Notifiers NotifierConfig `yaml:"notifiers"`
}

// TimeoutConfig holds per-call network timeouts.
type TimeoutConfig struct {
	// Check bounds the check-missing call.
	Check Duration `yaml:"check"`
	// Upload bounds the upload call. Must exceed Check.
	Upload Duration `yaml:"upload"`
	// Deploy bounds project, credential, and deployment calls.
	Deploy Duration `yaml:"deploy"`
}

// S3Config holds s3 backend settings from the config file.
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
	PublicURL    string `yaml:"public_url"`
}

// HistoryConfig holds deploy journal settings.
type HistoryConfig struct {
	// Path is the journal file location (default ~/.lighter/history).
	Path string `yaml:"path"`
	// Disabled turns off journal writes entirely.
	Disabled bool `yaml:"disabled"`
}

// NotifierConfig holds notifier settings from the config file.
type NotifierConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
	Redis   RedisConfig   `yaml:"redis"`
}

// WebhookConfig configures the webhook notifier. Empty URL disables it.
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// RedisConfig configures the redis notifier. Empty URL disables it.
type RedisConfig struct {
	URL     string   `yaml:"url"`
	Channel string   `yaml:"channel,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
	Retries *int     `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks cross-field constraints and applies defaults.
func (c *Config) Validate() error {
	if c.Backend == "" {
		c.Backend = "api"
	}
	switch c.Backend {
	case "api", "s3":
	default:
		return fmt.Errorf("invalid backend %q (must be api or s3)", c.Backend)
	}

	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be >= 0, got %d", c.Concurrency)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be >= 0, got %d", c.MaxFileSize)
	}

	if c.Timeouts.Check.Duration > 0 && c.Timeouts.Upload.Duration > 0 &&
		c.Timeouts.Upload.Duration <= c.Timeouts.Check.Duration {
		return fmt.Errorf("timeouts.upload (%s) must exceed timeouts.check (%s)",
			c.Timeouts.Upload.Duration, c.Timeouts.Check.Duration)
	}

	if c.Backend == "s3" && c.S3.Bucket == "" {
		return fmt.Errorf("s3 backend requires s3.bucket")
	}

	if c.History.Path == "" {
		c.History.Path = DefaultHistoryPath()
	}

	return nil
}

// DefaultHistoryPath returns the default deploy journal location:
// ~/.lighter/history, falling back to a relative path when the home
// directory cannot be resolved.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".lighter", "history")
	}
	return filepath.Join(home, ".lighter", "history")
}
