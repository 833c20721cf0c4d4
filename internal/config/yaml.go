package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the YAML configuration file structure.
type YAMLConfig struct {
	API      APIYAMLConfig      `yaml:"api"`
	Fetch    FetchYAMLConfig    `yaml:"fetch"`
	Retry    RetryYAMLConfig    `yaml:"retry"`
	Cache    CacheYAMLConfig    `yaml:"cache"`
	Patterns PatternsYAMLConfig `yaml:"patterns"`
	Stats    StatsYAMLConfig    `yaml:"stats"`
	Log      LogYAMLConfig      `yaml:"log"`
}

// APIYAMLConfig holds reporting API settings. The auth token deliberately has
// no YAML field; it comes from the environment only.
type APIYAMLConfig struct {
	URL         string            `yaml:"url"`
	UserAgent   string            `yaml:"user_agent"`
	SourceField string            `yaml:"source_field"`
	Headers     map[string]string `yaml:"headers"`
}

// FetchYAMLConfig holds HTTP client settings.
type FetchYAMLConfig struct {
	Timeout             Duration `yaml:"timeout"`
	MaxIdleConnsPerHost int      `yaml:"max_idle_conns_per_host"`
}

// RetryYAMLConfig holds retry and budget settings.
type RetryYAMLConfig struct {
	BackoffInitial     Duration `yaml:"backoff_initial"`
	BackoffMax         Duration `yaml:"backoff_max"`
	Ceiling            Duration `yaml:"ceiling"`
	RuntimeBudget      Duration `yaml:"runtime_budget"`
	CheckRuntimeBudget *bool    `yaml:"check_runtime_budget"`
}

// CacheYAMLConfig holds response cache settings.
type CacheYAMLConfig struct {
	Enabled *bool    `yaml:"enabled"`
	TTL     Duration `yaml:"ttl"`
}

// PatternsYAMLConfig overrides the built-in message signature lists.
type PatternsYAMLConfig struct {
	Quota     []string `yaml:"quota"`
	Transient []string `yaml:"transient"`
	NonRandom []string `yaml:"non_random"`
}

// StatsYAMLConfig holds the stats endpoint settings.
type StatsYAMLConfig struct {
	Addr string `yaml:"addr"`
}

// LogYAMLConfig holds logging settings.
type LogYAMLConfig struct {
	Level string `yaml:"level"`
}

// Duration is a wrapper for time.Duration that supports YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	duration, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(duration)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// LoadYAML loads configuration from a YAML file.
func LoadYAML(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(data)
}

// ParseYAML parses YAML configuration from bytes.
func ParseYAML(data []byte) (*YAMLConfig, error) {
	cfg := &YAMLConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyTo copies set YAML values onto cfg, skipping any field whose flag the
// user passed explicitly.
func (y *YAMLConfig) applyTo(cfg *Config, explicit map[string]bool) {
	if y.API.URL != "" && !explicit["api-url"] {
		cfg.APIURL = y.API.URL
	}
	if y.API.UserAgent != "" && !explicit["user-agent"] {
		cfg.UserAgent = y.API.UserAgent
	}
	if y.API.SourceField != "" && !explicit["source-field"] {
		cfg.SourceField = y.API.SourceField
	}
	if len(y.API.Headers) > 0 {
		cfg.Headers = y.API.Headers
	}

	if y.Fetch.Timeout != 0 && !explicit["fetch-timeout"] {
		cfg.FetchTimeout = time.Duration(y.Fetch.Timeout)
	}
	if y.Fetch.MaxIdleConnsPerHost != 0 && !explicit["max-idle-conns-per-host"] {
		cfg.MaxIdleConnsPerHost = y.Fetch.MaxIdleConnsPerHost
	}

	if y.Retry.BackoffInitial != 0 && !explicit["backoff-initial"] {
		cfg.BackoffInitial = time.Duration(y.Retry.BackoffInitial)
	}
	if y.Retry.BackoffMax != 0 && !explicit["backoff-max"] {
		cfg.BackoffMax = time.Duration(y.Retry.BackoffMax)
	}
	if y.Retry.Ceiling != 0 && !explicit["retry-ceiling"] {
		cfg.RetryCeiling = time.Duration(y.Retry.Ceiling)
	}
	if y.Retry.RuntimeBudget != 0 && !explicit["runtime-budget"] {
		cfg.RuntimeBudget = time.Duration(y.Retry.RuntimeBudget)
	}
	if y.Retry.CheckRuntimeBudget != nil && !explicit["check-runtime-budget"] {
		cfg.CheckRuntimeBudget = *y.Retry.CheckRuntimeBudget
	}

	if y.Cache.Enabled != nil && !explicit["cache-enabled"] {
		cfg.CacheEnabled = *y.Cache.Enabled
	}
	if y.Cache.TTL != 0 && !explicit["cache-ttl"] {
		cfg.CacheTTL = time.Duration(y.Cache.TTL)
	}

	if len(y.Patterns.Quota) > 0 {
		cfg.QuotaPatterns = y.Patterns.Quota
	}
	if len(y.Patterns.Transient) > 0 {
		cfg.TransientPatterns = y.Patterns.Transient
	}
	if len(y.Patterns.NonRandom) > 0 {
		cfg.NonRandomPatterns = y.Patterns.NonRandom
	}

	if y.Stats.Addr != "" && !explicit["stats-addr"] {
		cfg.StatsAddr = y.Stats.Addr
	}
	if y.Log.Level != "" && !explicit["log-level"] {
		cfg.LogLevel = y.Log.Level
	}
}
