package reporting

import "testing"

func TestIsSuccessStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{200, true},
		{204, true},
		{302, true},
		{399, true},
		{400, false},
		{404, false},
		{199, false},
		{503, false},
	}
	for _, tt := range tests {
		if got := isSuccessStatus(tt.code); got != tt.want {
			t.Errorf("isSuccessStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{420, 502, 503, 504} {
		if !retryableStatus[code] {
			t.Errorf("status %d should be retryable", code)
		}
	}
	for _, code := range []int{400, 401, 404, 429, 500, 501} {
		if retryableStatus[code] {
			t.Errorf("status %d should be terminal", code)
		}
	}
}

func TestMatchesAny(t *testing.T) {
	patterns := []string{"quota exceeded", "DNS error"}
	tests := []struct {
		message string
		want    bool
	}{
		{"Service quota exceeded for project", true},
		{"QUOTA EXCEEDED", true},
		{"dns error: no such host", true},
		{"connection reset by peer", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := matchesAny(tt.message, patterns); got != tt.want {
			t.Errorf("matchesAny(%q) = %v, want %v", tt.message, got, tt.want)
		}
	}
	if matchesAny("anything", nil) {
		t.Error("empty pattern list must never match")
	}
}

func TestDefaultPatternsRecognizeKnownSignatures(t *testing.T) {
	p := DefaultPatterns()
	if !matchesAny("Too many requests in a short time, please retry", p.Quota) {
		t.Error("expected quota signature match")
	}
	if !matchesAny("read: unexpected EOF", p.Transient) {
		t.Error("expected transient signature match")
	}
	if !matchesAny("Please check your token_auth parameter", p.NonRandom) {
		t.Error("expected non-random signature match")
	}
	if matchesAny("random hiccup, works on retry", p.NonRandom) {
		t.Error("unlisted messages must stay retryable")
	}
}
