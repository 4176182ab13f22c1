package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"teamhub/backend/internal/logger"
)

type RequestMetrics struct {
	RequestCount   int64            `json:"request_count"`
	AvgDurationMs  float64          `json:"avg_request_duration_ms"`
	ActiveRequests int64            `json:"active_requests"`
	ErrorCount     int64            `json:"error_count"`
	StatusCodes    map[string]int64 `json:"status_codes"`
	Endpoints      map[string]int64 `json:"endpoint_calls"`
	StartTime      time.Time        `json:"start_time"`
	LastRequest    time.Time        `json:"last_request"`
}

type HealthCheck struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Critical  bool      `json:"critical"`
	LastRun   time.Time `json:"last_run"`
	LatencyMs int64     `json:"latency_ms"`
}

type HealthCheckFunc func(ctx context.Context) error

// StatsFunc contributes a named section to the /metrics payload.
type StatsFunc func() map[string]interface{}

type registeredCheck struct {
	fn       HealthCheckFunc
	critical bool
}

// Monitor collects request metrics and runs dependency health checks.
type Monitor struct {
	mu            sync.Mutex
	requests      int64
	active        int64
	errors        int64
	totalDuration time.Duration
	statusCodes   map[string]int64
	endpoints     map[string]int64
	startTime     time.Time
	lastRequest   time.Time

	checksMu     sync.RWMutex
	checks       map[string]registeredCheck
	stats        map[string]StatsFunc
	checkTimeout time.Duration
}

func NewMonitor() *Monitor {
	return &Monitor{
		statusCodes:  make(map[string]int64),
		endpoints:    make(map[string]int64),
		startTime:    time.Now(),
		checks:       make(map[string]registeredCheck),
		stats:        make(map[string]StatsFunc),
		checkTimeout: 5 * time.Second,
	}
}

func (m *Monitor) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		m.mu.Lock()
		m.active++
		m.mu.Unlock()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.mu.Lock()
		m.requests++
		m.active--
		m.totalDuration += duration
		m.lastRequest = time.Now()
		if status >= 400 {
			m.errors++
		}
		m.statusCodes[strconv.Itoa(status)]++
		m.endpoints[c.Request.Method+" "+route]++
		m.mu.Unlock()
	}
}

func (m *Monitor) Snapshot() RequestMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := RequestMetrics{
		RequestCount:   m.requests,
		ActiveRequests: m.active,
		ErrorCount:     m.errors,
		StatusCodes:    make(map[string]int64, len(m.statusCodes)),
		Endpoints:      make(map[string]int64, len(m.endpoints)),
		StartTime:      m.startTime,
		LastRequest:    m.lastRequest,
	}
	if m.requests > 0 {
		snap.AvgDurationMs = float64(m.totalDuration.Microseconds()) / float64(m.requests) / 1000
	}
	for k, v := range m.statusCodes {
		snap.StatusCodes[k] = v
	}
	for k, v := range m.endpoints {
		snap.Endpoints[k] = v
	}
	return snap
}

// RegisterHealthCheck adds a check. A failing critical check makes the
// service not ready; non-critical failures only degrade /health.
func (m *Monitor) RegisterHealthCheck(name string, critical bool, check HealthCheckFunc) {
	m.checksMu.Lock()
	defer m.checksMu.Unlock()
	m.checks[name] = registeredCheck{fn: check, critical: critical}
}

func (m *Monitor) RegisterStats(name string, fn StatsFunc) {
	m.checksMu.Lock()
	defer m.checksMu.Unlock()
	m.stats[name] = fn
}

// RunHealthChecks executes every registered check concurrently.
func (m *Monitor) RunHealthChecks(ctx context.Context) []HealthCheck {
	m.checksMu.RLock()
	checks := make(map[string]registeredCheck, len(m.checks))
	for name, c := range m.checks {
		checks[name] = c
	}
	m.checksMu.RUnlock()

	results := make([]HealthCheck, 0, len(checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, c := range checks {
		wg.Add(1)
		go func(name string, c registeredCheck) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, m.checkTimeout)
			defer cancel()

			start := time.Now()
			result := HealthCheck{Name: name, Status: "healthy", Critical: c.critical, LastRun: start}
			if err := c.fn(checkCtx); err != nil {
				result.Status = "unhealthy"
				result.Message = err.Error()
				logger.Warn("health check failed", "check", name, "error", err)
			}
			result.LatencyMs = time.Since(start).Milliseconds()

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
		}(name, c)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	return results
}

type SystemMetrics struct {
	Uptime         string      `json:"uptime"`
	MemoryUsage    MemoryStats `json:"memory"`
	GoroutineCount int         `json:"goroutine_count"`
	CPUCount       int         `json:"cpu_count"`
	GoVersion      string      `json:"go_version"`
}

type MemoryStats struct {
	Alloc        uint64 `json:"alloc_mb"`
	TotalAlloc   uint64 `json:"total_alloc_mb"`
	Sys          uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
	GCPauseTotal string `json:"gc_pause_total"`
}

func (m *Monitor) SystemMetrics() SystemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	return SystemMetrics{
		Uptime: time.Since(m.startTime).Round(time.Second).String(),
		MemoryUsage: MemoryStats{
			Alloc:        bToMb(ms.Alloc),
			TotalAlloc:   bToMb(ms.TotalAlloc),
			Sys:          bToMb(ms.Sys),
			NumGC:        ms.NumGC,
			GCPauseTotal: time.Duration(ms.PauseTotalNs).String(),
		},
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

func (m *Monitor) MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"application": m.Snapshot(),
			"system":      m.SystemMetrics(),
			"timestamp":   time.Now(),
		}

		m.checksMu.RLock()
		for name, fn := range m.stats {
			response[name] = fn()
		}
		m.checksMu.RUnlock()

		c.JSON(http.StatusOK, response)
	}
}

// HealthHandler reports every check. Only critical failures turn it into 503.
func (m *Monitor) HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := m.RunHealthChecks(c.Request.Context())

		overall := "healthy"
		code := http.StatusOK
		for _, check := range checks {
			if check.Status == "healthy" {
				continue
			}
			if check.Critical {
				overall = "unhealthy"
				code = http.StatusServiceUnavailable
				break
			}
			overall = "degraded"
		}

		c.JSON(code, gin.H{
			"status":    overall,
			"timestamp": time.Now(),
			"checks":    checks,
			"uptime":    time.Since(m.startTime).Round(time.Second).String(),
		})
	}
}

func (m *Monitor) ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, check := range m.RunHealthChecks(c.Request.Context()) {
			if check.Critical && check.Status != "healthy" {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "not ready",
					"failing":   check.Name,
					"timestamp": time.Now(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": time.Now()})
	}
}

func (m *Monitor) LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
			"uptime":    time.Since(m.startTime).Round(time.Second).String(),
		})
	}
}

// RegisterRoutes mounts the operational endpoints.
func (m *Monitor) RegisterRoutes(router gin.IRoutes) {
	router.GET("/health", m.HealthHandler())
	router.GET("/ready", m.ReadinessHandler())
	router.GET("/live", m.LivenessHandler())
	router.GET("/metrics", m.MetricsHandler())
}
