package reporting

import "github.com/prometheus/client_golang/prometheus"

var (
	// apiRequestsTotal counts outbound API requests after deduplication.
	apiRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reportbridge_api_requests_total",
		Help: "Total deduplicated requests sent to the reporting API",
	})

	// retryRoundsTotal counts retry rounds beyond the first attempt.
	retryRoundsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reportbridge_retry_rounds_total",
		Help: "Total retry rounds across all dispatch calls",
	})

	// requestFailuresTotal counts per-request failures by outcome.
	requestFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reportbridge_request_failures_total",
		Help: "Total per-request failures by outcome",
	}, []string{"outcome"})

	// cacheLookupsTotal counts dispatch cache reads by result.
	cacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reportbridge_cache_lookups_total",
		Help: "Total dispatch cache lookups by result",
	}, []string{"result"})

	// quotaErrorsTotal counts aborts due to fetch quota exhaustion.
	quotaErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reportbridge_quota_errors_total",
		Help: "Total dispatch aborts due to outbound fetch quota exhaustion",
	})

	// budgetAbortsTotal counts aborts due to the runtime budget.
	budgetAbortsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reportbridge_budget_aborts_total",
		Help: "Total dispatch aborts due to the runtime budget ceiling",
	})
)

const (
	outcomeRetryable = "retryable"
	outcomeTerminal  = "terminal"
)

func init() {
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(retryRoundsTotal)
	prometheus.MustRegister(requestFailuresTotal)
	prometheus.MustRegister(cacheLookupsTotal)
	prometheus.MustRegister(quotaErrorsTotal)
	prometheus.MustRegister(budgetAbortsTotal)
}
