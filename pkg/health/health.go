// Package health serves liveness and readiness probes.
//
// Registered checks run periodically in the background. A check flips to
// failing only after FailAfter consecutive errors and back to passing after
// PassAfter consecutive successes, so a single slow ping does not flap the
// probe.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Probe selects which endpoint a check contributes to.
type Probe int

const (
	Liveness Probe = iota
	Readiness
)

// CheckFunc reports the health of one dependency. nil means healthy.
type CheckFunc func(ctx context.Context) error

// Check describes a registered check. Zero thresholds default to 3 failures
// and 1 success.
type Check struct {
	Name      string
	Probe     Probe
	Timeout   time.Duration
	FailAfter int
	PassAfter int
	Func      CheckFunc
}

type state struct {
	Check

	passing atomic.Bool
	lastErr atomic.Pointer[string]

	// Touched only by the goroutine that owns this check.
	fails, passes int
}

func (s *state) observe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	if err := s.Func(ctx); err != nil {
		msg := err.Error()
		s.lastErr.Store(&msg)
		s.passes = 0
		if s.fails++; s.fails >= s.FailAfter {
			s.passing.Store(false)
		}
		return
	}
	s.lastErr.Store(nil)
	s.fails = 0
	if s.passes++; s.passes >= s.PassAfter {
		s.passing.Store(true)
	}
}

func (s *state) failure() (string, bool) {
	if s.passing.Load() {
		return "", false
	}
	if msg := s.lastErr.Load(); msg != nil {
		return *msg, true
	}
	return "failing", true
}

// Health aggregates checks and a manual readiness switch.
type Health struct {
	ready atomic.Bool

	mu     sync.RWMutex
	checks []*state
	stop   context.CancelFunc
	wg     sync.WaitGroup
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// Register adds c. Checks start out passing.
func (h *Health) Register(c Check) {
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.FailAfter <= 0 {
		c.FailAfter = 3
	}
	if c.PassAfter <= 0 {
		c.PassAfter = 1
	}
	s := &state{Check: c}
	s.passing.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, s)
	h.mu.Unlock()
}

// SetReady toggles the manual readiness switch. Flip it off before draining.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// Start runs every registered check each interval until Stop or ctx ends.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.stop = cancel
	checks := append([]*state(nil), h.checks...)
	h.mu.Unlock()

	for _, s := range checks {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			s.observe(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.observe(ctx)
				}
			}
		}()
	}
}

// Stop cancels the background checks and waits for them to exit.
func (h *Health) Stop() {
	h.mu.Lock()
	stop := h.stop
	h.stop = nil
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
	h.wg.Wait()
}

// Report is the probe response body.
type Report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Evaluate returns the current report for probe p.
func (h *Health) Evaluate(p Probe) Report {
	failed := make(map[string]string)

	h.mu.RLock()
	for _, s := range h.checks {
		if s.Probe != p {
			continue
		}
		if msg, bad := s.failure(); bad {
			failed[s.Name] = msg
		}
	}
	h.mu.RUnlock()

	if p == Readiness && !h.ready.Load() {
		failed["ready"] = "not accepting traffic"
	}
	if len(failed) == 0 {
		return Report{Status: "ok"}
	}
	return Report{Status: "unhealthy", Checks: failed}
}

// Handler serves probe p: 200 when healthy, 503 otherwise.
func (h *Health) Handler(p Probe) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		rep := h.Evaluate(p)
		code := http.StatusOK
		if rep.Status != "ok" {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(rep)
	})
}
