package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

var startTime = time.Now()

// DefaultHealthCheckTimeout bounds a check that sets no timeout of its own.
const DefaultHealthCheckTimeout = 5 * time.Second

// HealthChecker probes one dependency.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
	// Timeout bounds Check. Zero uses the registry default.
	Timeout() time.Duration
}

// HealthStatus is the overall status.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult is one check's outcome.
type HealthCheckResult struct {
	Name    string        `json:"name"`
	Status  string        `json:"status"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// HealthReport aggregates every check.
type HealthReport struct {
	Status    HealthStatus                 `json:"status"`
	Checks    map[string]HealthCheckResult `json:"checks"`
	Uptime    time.Duration                `json:"uptime"`
	Timestamp time.Time                    `json:"timestamp"`
}

// FuncHealthCheck adapts a function to HealthChecker.
type FuncHealthCheck struct {
	CheckName    string
	CheckFunc    func(ctx context.Context) error
	CheckTimeout time.Duration
}

func (c *FuncHealthCheck) Name() string                    { return c.CheckName }
func (c *FuncHealthCheck) Check(ctx context.Context) error { return c.CheckFunc(ctx) }
func (c *FuncHealthCheck) Timeout() time.Duration          { return c.CheckTimeout }

// HealthCheckRegistry runs registered checks concurrently.
type HealthCheckRegistry struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	timeout time.Duration
}

// NewHealthCheckRegistry creates a registry. A non-positive timeout uses
// DefaultHealthCheckTimeout.
func NewHealthCheckRegistry(timeout time.Duration) *HealthCheckRegistry {
	if timeout <= 0 {
		timeout = DefaultHealthCheckTimeout
	}
	return &HealthCheckRegistry{checks: make(map[string]HealthChecker), timeout: timeout}
}

// Register adds or replaces a check by name.
func (r *HealthCheckRegistry) Register(check HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[check.Name()] = check
}

// Names lists registered checks, sorted.
func (r *HealthCheckRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checks))
	for n := range r.checks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunAll runs every check and reports unhealthy if any fails.
func (r *HealthCheckRegistry) RunAll(ctx context.Context) HealthReport {
	r.mu.RLock()
	checks := make([]HealthChecker, 0, len(r.checks))
	for _, c := range r.checks {
		checks = append(checks, c)
	}
	r.mu.RUnlock()

	report := HealthReport{
		Status:    HealthStatusHealthy,
		Checks:    make(map[string]HealthCheckResult, len(checks)),
		Uptime:    time.Since(startTime),
		Timestamp: time.Now(),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, c := range checks {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()

			timeout := c.Timeout()
			if timeout <= 0 {
				timeout = r.timeout
			}
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := c.Check(checkCtx)
			result := HealthCheckResult{Name: c.Name(), Status: "ok", Latency: time.Since(start)}
			if err != nil {
				result.Status = "error"
				result.Error = err.Error()
			}

			mu.Lock()
			report.Checks[result.Name] = result
			if err != nil {
				report.Status = HealthStatusUnhealthy
			}
			mu.Unlock()
		}(c)
	}
	wg.Wait()

	return report
}

// ServeHTTP writes the report as JSON, with 503 when unhealthy.
func (r *HealthCheckRegistry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	report := r.RunAll(req.Context())

	w.Header().Set("Content-Type", "application/json")
	if report.Status != HealthStatusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}
