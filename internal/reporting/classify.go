package reporting

import "strings"

// retryableStatus lists the HTTP status codes treated as transient server
// faults: the request stays pending and is retried next round.
var retryableStatus = map[int]bool{
	420: true,
	502: true,
	503: true,
	504: true,
}

func isSuccessStatus(code int) bool {
	return code >= 200 && code < 400
}

// Patterns holds the message signatures that drive retry decisions. All
// matching is case-insensitive substring against server- or transport-provided
// text. This is inherently fragile against wording changes, which is why the
// lists are configuration rather than code.
type Patterns struct {
	// Quota marks whole-batch transport errors meaning the outbound fetch
	// quota is exhausted; surfaced as a distinct user-facing error.
	Quota []string
	// Transient marks whole-batch transport errors worth retrying.
	Transient []string
	// NonRandom marks API error messages judged permanent: retrying will
	// reproduce them, so the request resolves as a terminal failure.
	NonRandom []string
}

// DefaultPatterns returns the stock signature lists.
func DefaultPatterns() Patterns {
	return Patterns{
		Quota: []string{
			"quota exceeded",
			"too many requests in a short time",
		},
		Transient: []string{
			"address unavailable",
			"dns error",
			"no such host",
			"unexpected eof",
		},
		NonRandom: []string{
			"was not found",
			"is not activated",
			"is not enabled",
			"check your token_auth",
			"you can't access this resource",
			"please specify a value for 'idsite'",
			"not supported when requesting multiple sites",
		},
	}
}

// matchesAny reports whether message contains any of the patterns,
// case-insensitively.
func matchesAny(message string, patterns []string) bool {
	lower := strings.ToLower(message)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
