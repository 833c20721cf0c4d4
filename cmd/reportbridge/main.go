package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reportbridge/reportbridge/internal/config"
	"github.com/reportbridge/reportbridge/internal/creds"
	"github.com/reportbridge/reportbridge/internal/fetch"
	"github.com/reportbridge/reportbridge/internal/formula"
	"github.com/reportbridge/reportbridge/internal/health"
	"github.com/reportbridge/reportbridge/internal/logging"
	"github.com/reportbridge/reportbridge/internal/reporting"
	"github.com/reportbridge/reportbridge/internal/respcache"
)

// paramList collects repeated -param key=value flags.
type paramList map[string]string

func (p paramList) String() string {
	pairs := make([]string, 0, len(p))
	for k, v := range p {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (p paramList) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("expected key=value, got %q", value)
	}
	p[key] = val
	return nil
}

func main() {
	// Missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	var (
		formulaSrc string
		method     string
		params     = make(paramList)
		batchFile  string
	)
	flag.StringVar(&formulaSrc, "formula", "", "Translate a metric formula and exit")
	flag.StringVar(&method, "method", "", "Reporting API method to call")
	flag.Var(params, "param", "Request parameter key=value (repeatable)")
	flag.StringVar(&batchFile, "batch", "", "Path to a JSON file with requests to dispatch as one batch")

	cfg, err := config.ParseFlags()
	if err != nil {
		logging.Fatal("failed to parse configuration", logging.F("error", err.Error()))
	}

	if cfg.ShowVersion {
		fmt.Println("reportbridge " + config.Version())
		os.Exit(0)
	}

	logging.SetLevel(logLevel(cfg.LogLevel))

	// Formula translation needs no credentials or network.
	if formulaSrc != "" {
		runTranslate(formulaSrc)
		return
	}

	if err := cfg.Validate(); err != nil {
		logging.Fatal("invalid configuration", logging.F("error", err.Error()))
	}
	if method == "" && batchFile == "" {
		logging.Fatal("nothing to do: pass -formula, -method or -batch")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.StatsAddr != "" {
		checker := health.New()
		checker.Register("credentials", func() error {
			if cfg.TokenAuth == "" {
				return fmt.Errorf("no API token configured")
			}
			return nil
		})
		go func() {
			<-ctx.Done()
			checker.MarkDraining()
		}()
		startStatsServer(ctx, cfg.StatsAddr, checker)
	}

	fetcher := fetch.NewHTTP(fetch.Config{
		Timeout:             cfg.FetchTimeout,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
	})
	defer fetcher.Close()

	var cache respcache.Cache = respcache.Nop{}
	if cfg.CacheEnabled {
		ttlCache := respcache.NewTTL()
		defer ttlCache.Stop()
		cache = ttlCache
	}

	client := reporting.New(fetcher, cache,
		creds.Static{URL: cfg.APIURL, AuthToken: cfg.TokenAuth}, nil,
		reporting.Config{
			UserAgent:      cfg.UserAgent,
			SourceField:    cfg.SourceField,
			ExtraHeaders:   cfg.Headers,
			BackoffInitial: cfg.BackoffInitial,
			BackoffMax:     cfg.BackoffMax,
			RetryCeiling:   cfg.RetryCeiling,
			RuntimeBudget:  cfg.RuntimeBudget,
			Patterns:       buildPatterns(cfg),
		})

	if batchFile != "" {
		runBatch(ctx, client, cfg, batchFile)
		return
	}
	runSingle(ctx, client, cfg, method, params)
}

func runTranslate(src string) {
	result, err := formula.Translate(src)
	if err != nil {
		logging.Fatal("formula translation failed", logging.F("error", err.Error()))
	}
	printJSON(struct {
		Formula          string   `json:"formula"`
		TemporaryMetrics []string `json:"temporaryMetrics"`
	}{result.Formula, result.TemporaryMetrics})
}

func runSingle(ctx context.Context, client *reporting.Client, cfg *config.Config, method string, params map[string]string) {
	start := time.Now()
	entry, err := client.Fetch(ctx, method, params, reporting.Options{
		CacheKey:           cacheKey(cfg, []reporting.Request{{Method: method, Params: params}}),
		CacheTTL:           cfg.CacheTTL,
		CheckRuntimeBudget: cfg.CheckRuntimeBudget,
		InvocationStart:    start,
	})
	if err != nil {
		logging.Fatal("request failed", logging.F("method", method, "error", err.Error()))
	}
	logging.Info("request complete", logging.F(
		"method", method,
		"duration", time.Since(start).String(),
	))
	printJSON(entry)
}

func runBatch(ctx context.Context, client *reporting.Client, cfg *config.Config, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logging.Fatal("failed to read batch file", logging.F("path", path, "error", err.Error()))
	}
	var specs []struct {
		Method string            `json:"method"`
		Params map[string]string `json:"params"`
	}
	if err := json.Unmarshal(data, &specs); err != nil {
		logging.Fatal("failed to parse batch file", logging.F("path", path, "error", err.Error()))
	}
	requests := make([]reporting.Request, len(specs))
	for i, s := range specs {
		requests[i] = reporting.Request{Method: s.Method, Params: s.Params}
	}

	start := time.Now()
	entries, err := client.Dispatch(ctx, requests, reporting.Options{
		CacheKey:           cacheKey(cfg, requests),
		CacheTTL:           cfg.CacheTTL,
		CheckRuntimeBudget: cfg.CheckRuntimeBudget,
		InvocationStart:    start,
	})
	if err != nil {
		logging.Fatal("batch dispatch failed", logging.F("requests", len(requests), "error", err.Error()))
	}
	logging.Info("batch complete", logging.F(
		"requests", len(requests),
		"duration", time.Since(start).String(),
	))
	printJSON(entries)
}

// buildPatterns starts from the stock signature lists and swaps in any list
// the configuration overrides, each independently.
func buildPatterns(cfg *config.Config) reporting.Patterns {
	patterns := reporting.DefaultPatterns()
	if len(cfg.QuotaPatterns) > 0 {
		patterns.Quota = cfg.QuotaPatterns
	}
	if len(cfg.TransientPatterns) > 0 {
		patterns.Transient = cfg.TransientPatterns
	}
	if len(cfg.NonRandomPatterns) > 0 {
		patterns.NonRandom = cfg.NonRandomPatterns
	}
	return patterns
}

// cacheKey derives a stable key from the request set. Empty when caching is
// disabled, which makes the dispatcher skip the cache entirely.
func cacheKey(cfg *config.Config, requests []reporting.Request) string {
	if !cfg.CacheEnabled {
		return ""
	}
	return reporting.CacheKey(cfg.SourceField, requests)
}

func startStatsServer(ctx context.Context, addr string, checker *health.Checker) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/live", checker.Live)
	mux.HandleFunc("/ready", checker.Ready)
	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.Info("stats endpoint started", logging.F("addr", addr, "path", "/metrics"))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("stats server error", logging.F("error", err.Error()))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logging.Fatal("failed to encode output", logging.F("error", err.Error()))
	}
}

func logLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}
