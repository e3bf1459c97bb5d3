package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err atomic.Pointer[error] }

func (f *fakePinger) Ping(context.Context) error {
	if p := f.err.Load(); p != nil {
		return *p
	}
	return nil
}

func (f *fakePinger) fail(err error) { f.err.Store(&err) }
func (f *fakePinger) heal()          { f.err.Store(nil) }

func probe(t *testing.T, h *Health, p Probe) (int, Report) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Handler(p).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var rep Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rep))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	return rec.Code, rep
}

func TestReadiness_ManualSwitch(t *testing.T) {
	h := New()

	code, rep := probe(t, h, Readiness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, rep.Checks, "ready")

	h.SetReady(true)
	code, rep = probe(t, h, Readiness)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", rep.Status)

	// Liveness ignores the switch.
	h.SetReady(false)
	code, _ = probe(t, h, Liveness)
	assert.Equal(t, http.StatusOK, code)
}

func TestCheck_Thresholds(t *testing.T) {
	ctx := context.Background()
	h := New()
	h.SetReady(true)

	db := &fakePinger{}
	h.Register(Check{Name: "postgres", Probe: Readiness, Func: PingCheck(db), FailAfter: 2, PassAfter: 2})
	s := h.checks[0]

	db.fail(errors.New("connection refused"))
	s.observe(ctx)
	code, _ := probe(t, h, Readiness)
	assert.Equal(t, http.StatusOK, code, "one failure is tolerated")

	s.observe(ctx)
	code, rep := probe(t, h, Readiness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, rep.Checks["postgres"], "connection refused")

	// Liveness is unaffected by readiness checks.
	code, _ = probe(t, h, Liveness)
	assert.Equal(t, http.StatusOK, code)

	db.heal()
	s.observe(ctx)
	code, _ = probe(t, h, Readiness)
	assert.Equal(t, http.StatusServiceUnavailable, code, "needs two passes")
	s.observe(ctx)
	code, _ = probe(t, h, Readiness)
	assert.Equal(t, http.StatusOK, code)
}

func TestCheck_Timeout(t *testing.T) {
	h := New()
	h.Register(Check{
		Name:      "slow",
		Probe:     Liveness,
		Timeout:   10 * time.Millisecond,
		FailAfter: 1,
		Func: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	h.checks[0].observe(context.Background())

	code, rep := probe(t, h, Liveness)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, rep.Checks["slow"], "deadline")
}

func TestStartStop(t *testing.T) {
	h := New()
	var runs atomic.Int32
	h.Register(Check{Name: "count", Probe: Liveness, Func: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, time.Millisecond)
	h.Stop()
	h.Stop()

	n := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, runs.Load())
}

func TestGoroutineLimit(t *testing.T) {
	assert.NoError(t, GoroutineLimit(1_000_000)(context.Background()))
	assert.Error(t, GoroutineLimit(0)(context.Background()))
}
