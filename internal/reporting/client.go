// Package reporting implements the batch request dispatcher for the analytics
// platform's HTTP API: canonical query construction, request deduplication,
// response classification, exponential backoff with a retry ceiling, a
// runtime-budget abort, and optional memoization of the aggregate result.
package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/reportbridge/reportbridge/internal/creds"
	"github.com/reportbridge/reportbridge/internal/fetch"
	"github.com/reportbridge/reportbridge/internal/logging"
	"github.com/reportbridge/reportbridge/internal/respcache"
)

// Config holds dispatcher settings.
type Config struct {
	// UserAgent is sent on every outbound request unless overridden by
	// ExtraHeaders.
	UserAgent string
	// SourceField is the source-identifier marker injected into every
	// canonical query as <SourceField>=1.
	SourceField string
	// ExtraHeaders are static headers attached to every outbound request.
	ExtraHeaders map[string]string
	// BackoffInitial is the wait before the second round; it doubles each
	// round up to BackoffMax.
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// RetryCeiling bounds total elapsed wall-clock time across all retry
	// rounds of one dispatch call.
	RetryCeiling time.Duration
	// RuntimeBudget bounds the caller-tracked host invocation time; checked
	// between rounds when Options.CheckRuntimeBudget is set.
	RuntimeBudget time.Duration
	// Patterns drives retryability decisions; zero value means defaults.
	Patterns Patterns
}

func (c *Config) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = "reportbridge/1.0"
	}
	if c.SourceField == "" {
		c.SourceField = "fromReportBridge"
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 32 * time.Second
	}
	if c.RetryCeiling <= 0 {
		c.RetryCeiling = 60 * time.Second
	}
	if c.RuntimeBudget <= 0 {
		c.RuntimeBudget = 5 * time.Minute
	}
	if len(c.Patterns.Quota) == 0 && len(c.Patterns.Transient) == 0 && len(c.Patterns.NonRandom) == 0 {
		c.Patterns = DefaultPatterns()
	}
}

// Options controls one dispatch call.
type Options struct {
	// APIURL and TokenAuth override the credential store when set.
	APIURL    string
	TokenAuth string
	// CacheKey and a positive CacheTTL enable memoization of the aggregate
	// result.
	CacheKey string
	CacheTTL time.Duration
	// ThrowOnFailedRequest makes Dispatch fail at finalization when any
	// entry is unresolved after all retries.
	ThrowOnFailedRequest bool
	// CheckRuntimeBudget enables the runtime-budget abort, measured from
	// InvocationStart.
	CheckRuntimeBudget bool
	InvocationStart    time.Time
}

// Client dispatches batched reporting API requests. All collaborators are
// injected so the state machine is testable with fakes.
type Client struct {
	fetcher fetch.Batch
	cache   respcache.Cache
	creds   creds.Store
	clock   clockwork.Clock
	cfg     Config
}

// New creates a dispatcher. A nil cache disables memoization; a nil clock
// uses the real one.
func New(fetcher fetch.Batch, cache respcache.Cache, store creds.Store, clock clockwork.Clock, cfg Config) *Client {
	cfg.applyDefaults()
	if cache == nil {
		cache = respcache.Nop{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Client{fetcher: fetcher, cache: cache, creds: store, clock: clock, cfg: cfg}
}

// retryState threads the per-call retry loop state through rounds: the
// pending canonical queries in first-occurrence order, the current backoff
// interval, and when the loop started.
type retryState struct {
	pending []string
	wait    time.Duration
	start   time.Time
}

// Dispatch sends every request, one entry per input position in input order.
// Duplicate requests collapse to one outbound fetch and fan back out. It
// returns an error only for whole-call failures (budget, quota, fatal
// transport, strict mode); per-request failures come back as error entries.
func (c *Client) Dispatch(ctx context.Context, requests []Request, opts Options) ([]Response, error) {
	if len(requests) == 0 {
		return nil, nil
	}

	useCache := opts.CacheKey != "" && opts.CacheTTL > 0
	if useCache {
		if cached, ok := c.readCache(opts.CacheKey); ok {
			return cached, nil
		}
	}

	endpoint := opts.APIURL
	if endpoint == "" {
		endpoint = c.creds.Endpoint()
	}
	token := opts.TokenAuth
	if token == "" {
		token = c.creds.Token()
	}
	if opts.CheckRuntimeBudget && opts.InvocationStart.IsZero() {
		opts.InvocationStart = c.clock.Now()
	}

	// Build: canonical query per request; duplicates collapse to one
	// outbound entry but remember every original position.
	entries := make([]Response, len(requests))
	queryIndexes := make(map[string][]int, len(requests))
	queryRequest := make(map[string]Request, len(requests))
	var order []string
	for i, req := range requests {
		q := req.canonicalQuery(c.cfg.SourceField)
		if _, seen := queryIndexes[q]; !seen {
			order = append(order, q)
			queryRequest[q] = req
		}
		queryIndexes[q] = append(queryIndexes[q], i)
	}

	state := &retryState{pending: order, wait: c.cfg.BackoffInitial, start: c.clock.Now()}
	headers := c.headers()

	for round := 0; ; round++ {
		if opts.CheckRuntimeBudget && c.clock.Since(opts.InvocationStart) > c.cfg.RuntimeBudget {
			budgetAbortsTotal.Inc()
			pending := make([]Request, len(state.pending))
			for i, q := range state.pending {
				pending[i] = queryRequest[q]
			}
			return nil, &BudgetExceededError{Pending: pending}
		}
		if round > 0 {
			retryRoundsTotal.Inc()
		}

		batch := make([]fetch.Request, len(state.pending))
		for j, q := range state.pending {
			batch[j] = fetch.Request{
				URL:                endpoint,
				Headers:            headers,
				Payload:            q + "&token_auth=" + url.QueryEscape(token),
				MuteHTTPExceptions: true,
			}
		}
		apiRequestsTotal.Add(float64(len(batch)))

		responses, err := c.fetcher.FetchAll(ctx, batch)
		switch {
		case err == nil:
			c.classifyRound(state, responses, entries, queryIndexes)
		case matchesAny(err.Error(), c.cfg.Patterns.Quota):
			quotaErrorsTotal.Inc()
			return nil, &QuotaError{Err: err}
		case matchesAny(err.Error(), c.cfg.Patterns.Transient):
			logging.Warn("transient transport failure, retrying batch", logging.F(
				"error", err.Error(),
				"pending", len(state.pending),
			))
		default:
			return nil, fmt.Errorf("batch fetch failed: %w", err)
		}

		if len(state.pending) == 0 {
			break
		}
		if c.clock.Since(state.start) >= c.cfg.RetryCeiling {
			logging.Warn("retry ceiling reached, giving up on pending requests", logging.F(
				"pending", len(state.pending),
			))
			for _, q := range state.pending {
				requestFailuresTotal.WithLabelValues(outcomeTerminal).Inc()
				resolve(entries, queryIndexes[q], errorResponse("request did not succeed within the retry time limit"))
			}
			state.pending = nil
			break
		}

		c.clock.Sleep(state.wait)
		state.wait *= 2
		if state.wait > c.cfg.BackoffMax {
			state.wait = c.cfg.BackoffMax
		}
	}

	if opts.ThrowOnFailedRequest {
		if err := strictError(requests, entries); err != nil {
			return nil, err
		}
	}

	if useCache {
		c.writeCache(opts.CacheKey, opts.CacheTTL, entries)
	}
	return entries, nil
}

// Fetch is the single-request convenience wrapper: strict mode forced on,
// sole entry returned.
func (c *Client) Fetch(ctx context.Context, method string, params map[string]string, opts Options) (Response, error) {
	opts.ThrowOnFailedRequest = true
	entries, err := c.Dispatch(ctx, []Request{{Method: method, Params: params}}, opts)
	if err != nil {
		return nil, err
	}
	return entries[0], nil
}

// classifyRound resolves or re-pends every in-flight canonical query based on
// its response. responses is parallel to state.pending.
func (c *Client) classifyRound(state *retryState, responses []fetch.Response, entries []Response, queryIndexes map[string][]int) {
	var still []string
	for j, q := range state.pending {
		resp := responses[j]
		switch {
		case isSuccessStatus(resp.StatusCode):
			var payload Response
			if err := json.Unmarshal(resp.Body, &payload); err != nil {
				// The API contract is a JSON object; a 2xx body that is
				// not one will not improve on retry.
				logging.Warn("undecodable API response", logging.F(
					"request", q,
					"status", resp.StatusCode,
				))
				requestFailuresTotal.WithLabelValues(outcomeTerminal).Inc()
				resolve(entries, queryIndexes[q], errorResponse(fmt.Sprintf(
					"undecodable response body: %s", truncateBody(resp.Body))))
				continue
			}
			if payload.IsError() && !matchesAny(payload.Message(), c.cfg.Patterns.NonRandom) {
				// Unrecognized API errors are assumed to be transient
				// server-side faults.
				logging.Warn("unrecognized API error, will retry", logging.F(
					"request", q,
					"message", payload.Message(),
				))
				requestFailuresTotal.WithLabelValues(outcomeRetryable).Inc()
				still = append(still, q)
				continue
			}
			if payload.IsError() {
				requestFailuresTotal.WithLabelValues(outcomeTerminal).Inc()
			}
			resolve(entries, queryIndexes[q], payload)

		case retryableStatus[resp.StatusCode]:
			logging.Warn("retryable HTTP status", logging.F(
				"request", q,
				"status", resp.StatusCode,
			))
			requestFailuresTotal.WithLabelValues(outcomeRetryable).Inc()
			still = append(still, q)

		default:
			requestFailuresTotal.WithLabelValues(outcomeTerminal).Inc()
			resolve(entries, queryIndexes[q], errorResponse(fmt.Sprintf(
				"request failed with status %d: %s", resp.StatusCode, truncateBody(resp.Body))))
		}
	}
	state.pending = still
}

// resolve stores payload at every original input position of one canonical
// query.
func resolve(entries []Response, indexes []int, payload Response) {
	for _, i := range indexes {
		entries[i] = payload
	}
}

// strictError inspects the final entries for strict mode: one failure names
// the request and message, several report only the count.
func strictError(requests []Request, entries []Response) error {
	var failed []int
	for i, e := range entries {
		if e == nil || e.IsError() {
			failed = append(failed, i)
		}
	}
	switch len(failed) {
	case 0:
		return nil
	case 1:
		i := failed[0]
		msg := "no response"
		if entries[i] != nil {
			msg = entries[i].Message()
		}
		return &FailedRequestError{Count: 1, Request: requests[i], Message: msg}
	default:
		return &FailedRequestError{Count: len(failed)}
	}
}

func (c *Client) headers() map[string]string {
	headers := map[string]string{"User-Agent": c.cfg.UserAgent}
	for k, v := range c.cfg.ExtraHeaders {
		headers[k] = v
	}
	return headers
}

func (c *Client) readCache(key string) ([]Response, bool) {
	raw, ok := c.cache.Get(key)
	if !ok {
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	entries, err := decodeEntries(raw)
	if err != nil {
		logging.Warn("discarding unreadable cache entry", logging.F(
			"cache_key", key,
			"error", err.Error(),
		))
		cacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	cacheLookupsTotal.WithLabelValues("hit").Inc()
	return entries, true
}

func (c *Client) writeCache(key string, ttl time.Duration, entries []Response) {
	raw, err := encodeEntries(entries)
	if err != nil {
		logging.Warn("failed to serialize responses for cache", logging.F(
			"cache_key", key,
			"error", err.Error(),
		))
		return
	}
	c.cache.Put(key, raw, ttl)
}
