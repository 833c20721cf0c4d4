package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestParseYAML(t *testing.T) {
	data := []byte(`
api:
  url: http://analytics.example.com/index.php
  source_field: fromOurTool
  headers:
    X-Env: prod
fetch:
  timeout: 45s
retry:
  backoff_initial: 2s
  backoff_max: 1m
  ceiling: 5m
  runtime_budget: 6m
  check_runtime_budget: true
cache:
  enabled: false
  ttl: 20m
patterns:
  non_random:
    - "custom permanent failure"
stats:
  addr: ":9090"
`)
	ycfg, err := ParseYAML(data)
	if err != nil {
		t.Fatalf("ParseYAML failed: %v", err)
	}

	cfg := DefaultConfig()
	ycfg.applyTo(cfg, nil)

	if cfg.APIURL != "http://analytics.example.com/index.php" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.SourceField != "fromOurTool" {
		t.Errorf("SourceField = %q", cfg.SourceField)
	}
	if cfg.Headers["X-Env"] != "prod" {
		t.Errorf("Headers = %v", cfg.Headers)
	}
	if cfg.FetchTimeout != 45*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.FetchTimeout)
	}
	if cfg.BackoffInitial != 2*time.Second || cfg.BackoffMax != time.Minute {
		t.Errorf("backoff = %v/%v", cfg.BackoffInitial, cfg.BackoffMax)
	}
	if cfg.RetryCeiling != 5*time.Minute || cfg.RuntimeBudget != 6*time.Minute {
		t.Errorf("ceiling/budget = %v/%v", cfg.RetryCeiling, cfg.RuntimeBudget)
	}
	if !cfg.CheckRuntimeBudget {
		t.Error("retry.check_runtime_budget: true should apply")
	}
	if cfg.CacheEnabled {
		t.Error("cache.enabled: false should apply")
	}
	if cfg.CacheTTL != 20*time.Minute {
		t.Errorf("CacheTTL = %v", cfg.CacheTTL)
	}
	if len(cfg.NonRandomPatterns) != 1 || cfg.NonRandomPatterns[0] != "custom permanent failure" {
		t.Errorf("NonRandomPatterns = %v", cfg.NonRandomPatterns)
	}
	if cfg.StatsAddr != ":9090" {
		t.Errorf("StatsAddr = %q", cfg.StatsAddr)
	}
}

func TestParseYAMLEmptyKeepsDefaults(t *testing.T) {
	ycfg, err := ParseYAML([]byte(""))
	if err != nil {
		t.Fatalf("ParseYAML failed: %v", err)
	}
	cfg := DefaultConfig()
	want := *DefaultConfig()
	ycfg.applyTo(cfg, nil)
	if cfg.BackoffInitial != want.BackoffInitial || cfg.CacheEnabled != want.CacheEnabled {
		t.Error("empty YAML must not override defaults")
	}
}

func TestParseYAMLInvalid(t *testing.T) {
	if _, err := ParseYAML([]byte("api: [not a map")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{`timeout: 30s`, 30 * time.Second, false},
		{`timeout: 1m30s`, 90 * time.Second, false},
		{`timeout: ""`, 0, false},
		{`timeout: banana`, 0, true},
	}
	for _, tt := range tests {
		var out struct {
			Timeout Duration `yaml:"timeout"`
		}
		err := yaml.Unmarshal([]byte(tt.in), &out)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tt.in, err)
			continue
		}
		if time.Duration(out.Timeout) != tt.want {
			t.Errorf("%q: got %v, want %v", tt.in, time.Duration(out.Timeout), tt.want)
		}
	}
}
