package config

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// version is set at build time via ldflags
var version = "dev"

// tokenEnvVar names the environment variable holding the API token. The
// token is never accepted as a flag or stored in the YAML file so it cannot
// leak through process listings or checked-in configuration.
const tokenEnvVar = "REPORTBRIDGE_TOKEN_AUTH"

// Config holds the application configuration.
type Config struct {
	// API settings
	APIURL      string
	TokenAuth   string
	UserAgent   string
	SourceField string
	Headers     map[string]string

	// Fetch settings
	FetchTimeout        time.Duration
	MaxIdleConnsPerHost int

	// Retry settings
	BackoffInitial     time.Duration
	BackoffMax         time.Duration
	RetryCeiling       time.Duration
	RuntimeBudget      time.Duration
	CheckRuntimeBudget bool

	// Cache settings
	CacheEnabled bool
	CacheTTL     time.Duration

	// Pattern overrides (empty = built-in defaults)
	QuotaPatterns     []string
	TransientPatterns []string
	NonRandomPatterns []string

	// Stats settings
	StatsAddr string

	// Logging settings
	LogLevel string

	// Flags
	ShowVersion bool
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		UserAgent:           "reportbridge/" + version,
		SourceField:         "fromReportBridge",
		FetchTimeout:        30 * time.Second,
		MaxIdleConnsPerHost: 10,
		BackoffInitial:      1 * time.Second,
		BackoffMax:          32 * time.Second,
		RetryCeiling:        60 * time.Second,
		RuntimeBudget:       5 * time.Minute,
		CacheEnabled:        true,
		CacheTTL:            10 * time.Minute,
		StatsAddr:           "",
		LogLevel:            "info",
	}
}

// ParseFlags parses command line flags and returns the configuration.
// Precedence, lowest to highest: defaults, YAML file, explicitly set flags.
func ParseFlags() (*Config, error) {
	return parseFlags(flag.CommandLine, os.Args[1:])
}

func parseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := DefaultConfig()

	var configFile string
	fs.StringVar(&configFile, "config", "", "Path to YAML configuration file")

	fs.StringVar(&cfg.APIURL, "api-url", cfg.APIURL, "Reporting API endpoint URL")
	fs.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header for API requests")
	fs.StringVar(&cfg.SourceField, "source-field", cfg.SourceField, "Marker parameter identifying this client to the API")

	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "Per-request HTTP timeout")
	fs.IntVar(&cfg.MaxIdleConnsPerHost, "max-idle-conns-per-host", cfg.MaxIdleConnsPerHost, "Maximum idle connections per host")

	fs.DurationVar(&cfg.BackoffInitial, "backoff-initial", cfg.BackoffInitial, "Initial retry backoff interval")
	fs.DurationVar(&cfg.BackoffMax, "backoff-max", cfg.BackoffMax, "Maximum retry backoff interval")
	fs.DurationVar(&cfg.RetryCeiling, "retry-ceiling", cfg.RetryCeiling, "Total time allowed for retrying a batch")
	fs.DurationVar(&cfg.RuntimeBudget, "runtime-budget", cfg.RuntimeBudget, "Invocation runtime budget for budget-checked dispatches")
	fs.BoolVar(&cfg.CheckRuntimeBudget, "check-runtime-budget", cfg.CheckRuntimeBudget, "Abort dispatches that would outlive the runtime budget")

	fs.BoolVar(&cfg.CacheEnabled, "cache-enabled", cfg.CacheEnabled, "Enable response caching")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "Cached response lifetime")

	fs.StringVar(&cfg.StatsAddr, "stats-addr", cfg.StatsAddr, "Stats/metrics HTTP endpoint address (empty = disabled)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configFile != "" {
		ycfg, err := LoadYAML(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configFile, err)
		}
		explicit := explicitFlags(fs)
		ycfg.applyTo(cfg, explicit)
	}

	if token := os.Getenv(tokenEnvVar); token != "" {
		cfg.TokenAuth = token
	}

	return cfg, nil
}

// explicitFlags returns the set of flag names the user passed on the command
// line. YAML values never override those.
func explicitFlags(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	return set
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var issues []string

	if c.APIURL == "" {
		issues = append(issues, "api-url is required")
	} else if u, err := url.Parse(c.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		issues = append(issues, fmt.Sprintf("api-url %q is not a valid URL", c.APIURL))
	}
	if c.TokenAuth == "" {
		issues = append(issues, tokenEnvVar+" environment variable is required")
	}
	if c.SourceField == "" {
		issues = append(issues, "source-field must not be empty")
	}
	if c.FetchTimeout <= 0 {
		issues = append(issues, "fetch-timeout must be positive")
	}
	if c.BackoffInitial <= 0 {
		issues = append(issues, "backoff-initial must be positive")
	}
	if c.BackoffMax < c.BackoffInitial {
		issues = append(issues, "backoff-max must be at least backoff-initial")
	}
	if c.RetryCeiling <= 0 {
		issues = append(issues, "retry-ceiling must be positive")
	}
	if c.RuntimeBudget <= 0 {
		issues = append(issues, "runtime-budget must be positive")
	}
	if c.CacheEnabled && c.CacheTTL <= 0 {
		issues = append(issues, "cache-ttl must be positive when caching is enabled")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log-level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if len(issues) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(issues, "; "))
	}
	return nil
}

// Version returns the build version string.
func Version() string {
	return version
}
