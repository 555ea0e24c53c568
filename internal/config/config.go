package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/checkyourself/checkyourself/internal/risk"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPath        = "config.yml"
	DefaultTimeout     = 10 * time.Second
	DefaultConcurrency = 4
	DefaultMaxItems    = 100
	DefaultMetricsJob  = "checkyourself"
)

// PathEnv overrides DefaultPath when set.
const PathEnv = "CHECKYOURSELF_CONFIG"

// ErrConfig is wrapped by every error returned from Load.
var ErrConfig = errors.New("config")

// Config is the full job configuration. Fields map 1:1 to config.example.yml.
type Config struct {
	// SlackWebhookURL is the incoming-webhook URL messages are posted to.
	SlackWebhookURL string `yaml:"slack_webhook_url" toml:"slack_webhook_url"`

	// SlackWebhookURLEnv names an environment variable holding the webhook URL.
	// It takes precedence over SlackWebhookURL when the variable is set.
	SlackWebhookURLEnv string `yaml:"slack_webhook_url_env" toml:"slack_webhook_url_env"`

	SlackUsername string   `yaml:"slack_username" toml:"slack_username"`
	SlackEmoji    string   `yaml:"slack_emoji" toml:"slack_emoji"`
	SlackChannels []string `yaml:"slack_channels" toml:"slack_channels"`

	AWSDefaultRegion string `yaml:"aws_default_region" toml:"aws_default_region"`

	// AWSMaxItems is the IAM ListServerCertificates page size.
	AWSMaxItems int32 `yaml:"aws_max_items" toml:"aws_max_items"`

	AWSAccounts []AWSAccount `yaml:"aws_accounts" toml:"aws_accounts"`
	RemoteCerts []RemoteCert `yaml:"remote_certs" toml:"remote_certs"`

	// DaysRemainingWarningThreshold selects which certificates are reported.
	// It is required; nil means the key was absent.
	DaysRemainingWarningThreshold *int `yaml:"days_remaining_warning_threshold" toml:"days_remaining_warning_threshold"`

	// MediumThreshold and LowThreshold only group reported certificates by
	// severity. Both are filled in by Load when absent.
	MediumThreshold *int `yaml:"medium_threshold" toml:"medium_threshold"`
	LowThreshold    *int `yaml:"low_threshold" toml:"low_threshold"`

	// Timeout bounds every network call: IAM requests, TLS handshakes,
	// webhook posts and metrics pushes.
	Timeout Duration `yaml:"timeout" toml:"timeout"`

	// Concurrency is the maximum number of sources fetched at once.
	Concurrency int `yaml:"concurrency" toml:"concurrency"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level" toml:"log_level"`

	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`
}

// AWSAccount is one IAM account whose server certificates are inspected.
type AWSAccount struct {
	Name string `yaml:"name" toml:"name"`

	AccessKeyID     string `yaml:"aws_access_key_id" toml:"aws_access_key_id"`
	SecretAccessKey string `yaml:"aws_secret_access_key" toml:"aws_secret_access_key"`

	// AccessKeyIDEnv and SecretAccessKeyEnv name environment variables that
	// override the literal keys when set.
	AccessKeyIDEnv     string `yaml:"aws_access_key_id_env" toml:"aws_access_key_id_env"`
	SecretAccessKeyEnv string `yaml:"aws_secret_access_key_env" toml:"aws_secret_access_key_env"`
}

// Credentials returns the access key pair, preferring environment variables.
func (a AWSAccount) Credentials() (accessKeyID, secretAccessKey string) {
	return fromEnv(a.AccessKeyIDEnv, a.AccessKeyID), fromEnv(a.SecretAccessKeyEnv, a.SecretAccessKey)
}

// RemoteCert is a TLS endpoint whose presented certificate is inspected.
type RemoteCert struct {
	Name string `yaml:"name" toml:"name"`
	URL  string `yaml:"url" toml:"url"`
}

// MetricsConfig configures the optional Pushgateway export.
type MetricsConfig struct {
	// PushgatewayURL is the base URL of a Prometheus Pushgateway.
	// Empty disables the push.
	PushgatewayURL string `yaml:"pushgateway_url" toml:"pushgateway_url"`

	// Job is the grouping key used in the push path.
	Job string `yaml:"job" toml:"job"`
}

// WebhookURL returns the Slack webhook URL, preferring the environment.
func (c *Config) WebhookURL() string {
	return fromEnv(c.SlackWebhookURLEnv, c.SlackWebhookURL)
}

// Thresholds returns the warning filter and severity grouping thresholds.
func (c *Config) Thresholds() risk.Thresholds {
	var t risk.Thresholds
	if c.DaysRemainingWarningThreshold != nil {
		t.Warning = *c.DaysRemainingWarningThreshold
	}
	if c.MediumThreshold != nil {
		t.Medium = *c.MediumThreshold
	}
	if c.LowThreshold != nil {
		t.Low = *c.LowThreshold
	}
	return t
}

// Warnings reports settings that are accepted but probably wrong.
func (c *Config) Warnings() []string {
	var out []string
	t := c.Thresholds()
	if t.Low >= t.Medium {
		out = append(out, fmt.Sprintf(
			"low_threshold (%d) is not below medium_threshold (%d); severity groups will be unreliable",
			t.Low, t.Medium))
	}
	if t.Medium > t.Warning {
		out = append(out, fmt.Sprintf(
			"medium_threshold (%d) is above days_remaining_warning_threshold (%d); no reported certificate can be good",
			t.Medium, t.Warning))
	}
	if len(c.AWSAccounts) == 0 && len(c.RemoteCerts) == 0 {
		out = append(out, "no aws_accounts or remote_certs configured")
	}
	return out
}

// Path returns the config file location: $CHECKYOURSELF_CONFIG or config.yml.
func Path() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads and parses the config file at path.
// Missing optional fields are filled with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read file: %w", ErrConfig, err)
	}

	cfg := defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse toml: %w", ErrConfig, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %w", ErrConfig, err)
		}
	}

	fillThresholds(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		AWSMaxItems: DefaultMaxItems,
		Timeout:     Duration(DefaultTimeout),
		Concurrency: DefaultConcurrency,
		LogLevel:    "info",
		Metrics:     MetricsConfig{Job: DefaultMetricsJob},
	}
}

// fillThresholds derives the severity thresholds from the warning threshold
// when they are not configured. It does nothing until the warning threshold
// is set.
func fillThresholds(cfg *Config) {
	if cfg.DaysRemainingWarningThreshold == nil {
		return
	}
	warning := *cfg.DaysRemainingWarningThreshold
	if cfg.MediumThreshold == nil {
		medium := warning
		cfg.MediumThreshold = &medium
	}
	if cfg.LowThreshold == nil {
		low := warning / 3
		cfg.LowThreshold = &low
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.WebhookURL() == "" {
		return fmt.Errorf("slack_webhook_url is required")
	}
	if len(cfg.SlackChannels) == 0 {
		return fmt.Errorf("slack_channels must list at least one channel")
	}
	if cfg.DaysRemainingWarningThreshold == nil {
		return fmt.Errorf("days_remaining_warning_threshold is required")
	}
	if *cfg.DaysRemainingWarningThreshold < 0 {
		return fmt.Errorf("days_remaining_warning_threshold must not be negative")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if cfg.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if cfg.AWSMaxItems <= 0 {
		return fmt.Errorf("aws_max_items must be positive")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	if len(cfg.AWSAccounts) > 0 && cfg.AWSDefaultRegion == "" {
		return fmt.Errorf("aws_default_region is required when aws_accounts are configured")
	}
	for i, acct := range cfg.AWSAccounts {
		if acct.Name == "" {
			return fmt.Errorf("aws_accounts[%d]: name is required", i)
		}
		id, secret := acct.Credentials()
		if id == "" || secret == "" {
			return fmt.Errorf("aws_accounts[%d] %q: access key id and secret are required", i, acct.Name)
		}
	}
	for i, rc := range cfg.RemoteCerts {
		if rc.Name == "" {
			return fmt.Errorf("remote_certs[%d]: name is required", i)
		}
		u, err := url.Parse(rc.URL)
		if err != nil || u.Hostname() == "" {
			return fmt.Errorf("remote_certs[%d] %q: url %q has no host", i, rc.Name, rc.URL)
		}
	}
	if cfg.Metrics.PushgatewayURL != "" {
		if _, err := url.Parse(cfg.Metrics.PushgatewayURL); err != nil {
			return fmt.Errorf("metrics.pushgateway_url: %w", err)
		}
		if cfg.Metrics.Job == "" {
			return fmt.Errorf("metrics.job must not be empty")
		}
	}
	return nil
}

func fromEnv(env, literal string) string {
	if env != "" {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return literal
}
