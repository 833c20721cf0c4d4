package health

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Probe reports nil when its component is usable.
type Probe func() error

// report is the JSON body served by the probe endpoints.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
	Time   string            `json:"time"`
}

// Checker serves liveness and readiness probes for the stats endpoint.
// Liveness only tracks draining; readiness runs every registered probe.
type Checker struct {
	mu       sync.RWMutex
	probes   map[string]Probe
	draining atomic.Bool
}

func New() *Checker {
	return &Checker{probes: make(map[string]Probe)}
}

// Register adds a named readiness probe, run on each /ready request.
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// MarkDraining makes both endpoints return 503 for the rest of shutdown.
func (c *Checker) MarkDraining() {
	c.draining.Store(true)
}

// Live handles the /live endpoint.
func (c *Checker) Live(w http.ResponseWriter, r *http.Request) {
	if c.draining.Load() {
		serve(w, http.StatusServiceUnavailable, report{Status: "draining", Time: now()})
		return
	}
	serve(w, http.StatusOK, report{Status: "up", Time: now()})
}

// Ready handles the /ready endpoint.
func (c *Checker) Ready(w http.ResponseWriter, r *http.Request) {
	if c.draining.Load() {
		serve(w, http.StatusServiceUnavailable, report{Status: "draining", Time: now()})
		return
	}

	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, probe := range c.probes {
		probes[name] = probe
	}
	c.mu.RUnlock()

	status, code := "up", http.StatusOK
	checks := make(map[string]string, len(probes))
	for name, probe := range probes {
		if err := probe(); err != nil {
			status, code = "down", http.StatusServiceUnavailable
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}
	serve(w, code, report{Status: status, Checks: checks, Time: now()})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func serve(w http.ResponseWriter, code int, rep report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}
