package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) report {
	t.Helper()
	var rep report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("bad body %q: %v", rec.Body.String(), err)
	}
	return rep
}

func TestLive(t *testing.T) {
	c := New()
	rec := httptest.NewRecorder()
	c.Live(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rep := decode(t, rec); rep.Status != "up" {
		t.Errorf("status = %q", rep.Status)
	}
}

func TestReadyRunsProbes(t *testing.T) {
	c := New()
	c.Register("credentials", func() error { return nil })
	c.Register("endpoint", func() error { return errors.New("unreachable") })

	rec := httptest.NewRecorder()
	c.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
	rep := decode(t, rec)
	if rep.Status != "down" {
		t.Errorf("status = %q", rep.Status)
	}
	if rep.Checks["credentials"] != "ok" || rep.Checks["endpoint"] != "unreachable" {
		t.Errorf("checks = %v", rep.Checks)
	}
}

func TestReadyAllHealthy(t *testing.T) {
	c := New()
	c.Register("credentials", func() error { return nil })
	rec := httptest.NewRecorder()
	c.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestDraining(t *testing.T) {
	c := New()
	c.MarkDraining()
	for _, handler := range []http.HandlerFunc{c.Live, c.Ready} {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d", rec.Code)
		}
	}
}
