package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/de-tools/cloud-sentry/pkg/services/rules"
)

type RiskSink struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

type Remediation struct {
	QueueURL    string `mapstructure:"queue_url"`
	PlaybookRef string `mapstructure:"playbook_ref"`
}

type Sweep struct {
	Concurrency int           `mapstructure:"concurrency"`
	RetryMax    uint64        `mapstructure:"retry_max"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	RunDeadline time.Duration `mapstructure:"run_deadline"`
}

// Config is the full external configuration of a sweep. Every value can come
// from the config file or from a SENTRY_-prefixed environment variable
// (e.g. SENTRY_RISK_SINK_API_KEY); secrets are expected through the latter.
type Config struct {
	Region      string      `mapstructure:"region"`
	Profile     string      `mapstructure:"profile"`
	RiskSink    RiskSink    `mapstructure:"risk_sink"`
	Remediation Remediation `mapstructure:"remediation"`
	Sweep       Sweep       `mapstructure:"sweep"`
}

// Load reads configuration from the given file path, if any, with
// environment overrides applied on top.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults double as env-var bindings: AutomaticEnv only resolves keys
	// viper already knows about.
	v.SetDefault("region", "")
	v.SetDefault("profile", "")
	v.SetDefault("risk_sink.url", "")
	v.SetDefault("risk_sink.api_key", "")
	v.SetDefault("remediation.queue_url", "")
	v.SetDefault("remediation.playbook_ref", rules.PlaybookRef)
	v.SetDefault("sweep.concurrency", 8)
	v.SetDefault("sweep.retry_max", 4)
	v.SetDefault("sweep.call_timeout", 10*time.Second)
	v.SetDefault("sweep.run_deadline", 5*time.Minute)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.RiskSink.URL == "" {
		return fmt.Errorf("risk sink URL is required (risk_sink.url or SENTRY_RISK_SINK_URL)")
	}
	if c.RiskSink.APIKey == "" {
		return fmt.Errorf("risk sink API key is required (SENTRY_RISK_SINK_API_KEY)")
	}
	if c.Remediation.QueueURL == "" {
		return fmt.Errorf("remediation queue URL is required (remediation.queue_url or SENTRY_REMEDIATION_QUEUE_URL)")
	}
	return nil
}
