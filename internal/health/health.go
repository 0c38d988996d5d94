// Package health provides HTTP health and readiness check handlers for the
// voxdial server.
//
// The package exposes two endpoints:
//
//   - /healthz — liveness probe; always returns 200 OK.
//   - /readyz  — readiness probe; returns 200 only when all registered
//     [Checker] functions pass.
//
// Responses are JSON objects with a top-level "status" field ("ok" or "fail")
// and a "checks" map containing the result of each named checker.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voxdial/voxdial/internal/resilience"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named health check function. The Check function should return
// nil when the dependency is healthy and a non-nil error describing the
// failure otherwise.
type Checker struct {
	// Name is a short, human-readable label for this check (e.g.
	// "database", "breaker"). It appears as a key in the JSON response.
	Name string

	// Check probes the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error
}

// Pinger is the probe surface of a pgx pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Database returns a [Checker] that pings the storage backend.
func Database(db Pinger) Checker {
	return Checker{
		Name:  "database",
		Check: db.Ping,
	}
}

// Breaker returns a [Checker] that fails while the storage circuit breaker
// is open, so an instance with a tripped breaker drops out of rotation.
func Breaker(cb *resilience.CircuitBreaker) Checker {
	return Checker{
		Name: "breaker",
		Check: func(context.Context) error {
			return cb.Healthy()
		},
	}
}

// result is the JSON response body for health endpoints.
type result struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz endpoints. It is safe for concurrent
// use; the checker list is fixed at construction time.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that evaluates the given checkers on each /readyz
// request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is a liveness probe that always returns 200 OK. A running process
// that can serve HTTP is considered alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, result{Status: "ok"})
}

// Readyz is a readiness probe that returns 200 only when every registered
// [Checker] passes. Checkers run concurrently, each with a [checkTimeout]
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		checks = make(map[string]string, len(h.checkers))
		allOK  = true
	)
	g, ctx := errgroup.WithContext(r.Context())
	for _, c := range h.checkers {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			err := c.Check(checkCtx)
			cancel()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				checks[c.Name] = "fail: " + err.Error()
				allOK = false
			} else {
				checks[c.Name] = "ok"
			}
			return nil
		})
	}
	// Checkers report through the map, never through the group error.
	_ = g.Wait()

	res := result{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
