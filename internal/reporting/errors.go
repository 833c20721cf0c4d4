package reporting

import (
	"fmt"
	"strings"
)

// QuotaError reports that the outbound fetch quota is exhausted. It is
// surfaced distinctly so callers can tell the user to wait rather than retry.
type QuotaError struct {
	Err error
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("outbound fetch quota exceeded, try again later: %v", e.Err)
}

func (e *QuotaError) Unwrap() error { return e.Err }

// BudgetExceededError aborts a dispatch when the host invocation's runtime
// budget runs out with requests still pending. It names every pending request
// so the user can narrow the report.
type BudgetExceededError struct {
	Pending []Request
}

func (e *BudgetExceededError) Error() string {
	described := make([]string, len(e.Pending))
	for i, req := range e.Pending {
		described[i] = req.describe()
	}
	return fmt.Sprintf("runtime budget exceeded with %d request(s) still pending: %s",
		len(e.Pending), strings.Join(described, ", "))
}

// FailedRequestError is raised at finalization in strict mode. A single
// failure names the request and its message; multiple failures report only
// the count to keep the message bounded.
type FailedRequestError struct {
	Count   int
	Request Request
	Message string
}

func (e *FailedRequestError) Error() string {
	if e.Count == 1 {
		return fmt.Sprintf("request %s failed: %s", e.Request.describe(), e.Message)
	}
	return fmt.Sprintf("%d requests failed after retries", e.Count)
}
