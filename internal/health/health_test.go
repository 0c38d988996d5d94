package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/voxdial/voxdial/internal/health"
	"github.com/voxdial/voxdial/internal/resilience"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error { return p.err }

func serve(t *testing.T, h *health.Handler, path string) (*http.Response, map[string]any) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp, body
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := health.New(health.Database(fakePinger{err: errors.New("down")}))
	resp, body := serve(t, h, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200: liveness ignores dependencies", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("body status = %v, want ok", body["status"])
	}
}

func TestReadyzAllPass(t *testing.T) {
	t.Parallel()
	cb := resilience.NewCircuitBreaker(resilience.Config{Name: "test"})
	h := health.New(health.Database(fakePinger{}), health.Breaker(cb))

	resp, body := serve(t, h, "/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	checks := body["checks"].(map[string]any)
	for _, name := range []string{"database", "breaker"} {
		if checks[name] != "ok" {
			t.Errorf("checks[%q] = %v, want ok", name, checks[name])
		}
	}
}

func TestReadyzFailingDatabase(t *testing.T) {
	t.Parallel()
	h := health.New(health.Database(fakePinger{err: errors.New("connection refused")}))

	resp, body := serve(t, h, "/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	if body["status"] != "fail" {
		t.Errorf("body status = %v, want fail", body["status"])
	}
	checks := body["checks"].(map[string]any)
	got, _ := checks["database"].(string)
	if !strings.HasPrefix(got, "fail:") || !strings.Contains(got, "connection refused") {
		t.Errorf("checks[database] = %q, want failure detail", got)
	}
}

func TestReadyzOpenBreaker(t *testing.T) {
	t.Parallel()
	cb := resilience.NewCircuitBreaker(resilience.Config{
		Name:      "postgres",
		Threshold: 1,
		Cooldown:  time.Hour,
	})
	_ = cb.Do(context.Background(), func(context.Context) error {
		return errors.New("backend down")
	})

	h := health.New(health.Breaker(cb))
	resp, _ := serve(t, h, "/readyz")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 while breaker is open", resp.StatusCode)
	}
}
