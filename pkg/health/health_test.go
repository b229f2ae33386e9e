package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type probeBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func pass(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func call(t *testing.T, endpoint http.HandlerFunc) (int, probeBody) {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var body probeBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func runN(p *probe, n int) {
	for range n {
		p.run(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		fn         CheckFunc
		runs       int
		wantCode   int
		wantStatus string
		wantError  string
	}{
		{name: "no runs yet", fn: fail("down"), runs: 0, wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "passing", fn: pass, runs: 3, wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "below threshold", fn: fail("temporary"), runs: 2, wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "at threshold", fn: fail("connection refused"), runs: 3, wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy", wantError: "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(nil)
			h.AddLivenessCheck("db", time.Second, tt.fn)
			runN(h.liveness[0], tt.runs)

			code, body := call(t, h.LiveEndpoint)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, body.Status)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body.Checks["db"])
			} else {
				assert.Empty(t, body.Checks)
			}
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("not marked ready", func(t *testing.T) {
		h := New(nil)
		h.AddReadinessCheck("postgres", time.Second, pass)

		code, body := call(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Contains(t, body.Checks, "_readiness")
	})

	t.Run("ready toggles", func(t *testing.T) {
		h := New(nil)
		h.SetReady(true)
		code, _ := call(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusOK, code)

		h.SetReady(false)
		code, _ = call(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
	})

	t.Run("only failing checks listed", func(t *testing.T) {
		h := New(nil)
		h.AddReadinessCheck("postgres", time.Second, pass)
		h.AddReadinessCheck("cache", time.Second, fail("cache miss"))
		h.SetReady(true)
		runN(h.readiness[1], 3)

		code, body := call(t, h.ReadyEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, map[string]string{"cache": "cache miss"}, body.Checks)
		assert.False(t, h.IsReady())
	})
}

func TestIsReady(t *testing.T) {
	h := New(nil)
	h.AddReadinessCheck("postgres", time.Second, pass)

	assert.False(t, h.IsReady())
	h.SetReady(true)
	assert.True(t, h.IsReady())
	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestProbe_Recovers(t *testing.T) {
	down := true
	p := newProbe("flaky", time.Second, func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})

	assert.False(t, p.run(context.Background()))
	assert.False(t, p.run(context.Background()))
	assert.True(t, p.run(context.Background()), "third failure flips")
	msg, failing := p.failure()
	assert.True(t, failing)
	assert.Equal(t, "down", msg)

	down = false
	assert.True(t, p.run(context.Background()), "one success recovers")
	_, failing = p.failure()
	assert.False(t, failing)
}

func TestProbe_Timeout(t *testing.T) {
	p := newProbe("slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	runN(p, 3)

	msg, failing := p.failure()
	assert.True(t, failing)
	assert.Contains(t, msg, "deadline exceeded")
}

func TestStart_LogsFlips(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := New(zap.New(core))
	h.AddLivenessCheck("broken", time.Second, fail("nope"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("Health check failing").Len() > 0
	}, time.Second, 5*time.Millisecond)
	h.Stop()
	h.Stop()
}

func TestConcurrentAccess(t *testing.T) {
	h := New(nil)
	h.AddLivenessCheck("live", time.Second, fail("err"))
	h.AddReadinessCheck("ready", time.Second, pass)
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, PingCheck(pingerFunc(pass))(ctx))
	err := PingCheck(pingerFunc(fail("refused")))(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")

	assert.NoError(t, GoroutineCountCheck(100000)(ctx))
	assert.ErrorContains(t, GoroutineCountCheck(0)(ctx), "exceeds threshold")

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))
}
