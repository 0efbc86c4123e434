package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/growbot/internal/metrics"
)

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestRoot(t *testing.T) {
	rec := get(t, NewRouter(Options{}), "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bot is running...", rec.Body.String())
}

func TestHealthz(t *testing.T) {
	r := NewRouter(Options{Checks: map[string]Check{
		"db":    func(context.Context) error { return nil },
		"redis": func(context.Context) error { return nil },
	}})
	rec := get(t, r, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var reply healthReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "ok", reply.Status)
	assert.Equal(t, map[string]string{"db": "ok", "redis": "ok"}, reply.Checks)
}

func TestHealthzFailingCheck(t *testing.T) {
	r := NewRouter(Options{Checks: map[string]Check{
		"db": func(context.Context) error { return errors.New("connection refused") },
	}})
	rec := get(t, r, "/healthz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var reply healthReply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "fail", reply.Status)
	assert.Equal(t, "connection refused", reply.Checks["db"])
}

func TestMetricsMounted(t *testing.T) {
	m := metrics.New(false)
	m.Action("checkin", "ok")

	rec := get(t, NewRouter(Options{Metrics: m.Handler()}), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `growbot_actions_total{action="checkin",outcome="ok"} 1`)

	rec = get(t, NewRouter(Options{}), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewServer(ln.Addr().String(), NewRouter(Options{}))
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return string(body) == "Bot is running..."
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
