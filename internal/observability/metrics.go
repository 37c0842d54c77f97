package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/travelplanner-backend/internal/platform/envutil"
	"github.com/yungbote/travelplanner-backend/internal/platform/logger"
)

// Metrics is nil-safe: every method on a nil *Metrics is a no-op, so callers
// never check whether metrics are enabled.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	generations     *CounterVec
	attempts        *CounterVec
	genLatency      *HistogramVec
	cacheLookups    *CounterVec
	rateLimited     *CounterVec
	postgenFailures *CounterVec

	dbPool    *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry once. It returns nil when disabled.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// New returns an unregistered Metrics, mainly for tests.
func New() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("planner_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"planner_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		apiInflight: NewGauge("planner_api_inflight_requests", "In-flight API requests."),

		generations: NewCounterVec("planner_generations_total", "Completed report generations by source/mode/channel.", []string{"source", "mode", "channel"}),
		attempts:    NewCounterVec("planner_generation_attempts_total", "Generation attempts by backend/model/format/outcome.", []string{"backend", "model", "format", "outcome"}),
		genLatency: NewHistogramVec(
			"planner_generation_duration_seconds",
			"End-to-end generation time in seconds by backend/mode.",
			[]string{"backend", "mode"},
			[]float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 35, 60, 95, 120},
		),
		cacheLookups:    NewCounterVec("planner_cache_lookups_total", "Report cache lookups by result.", []string{"result"}),
		rateLimited:     NewCounterVec("planner_rate_limited_total", "Requests rejected by the rate limiter.", []string{"namespace"}),
		postgenFailures: NewCounterVec("planner_postgen_failures_total", "Failed post-generation steps.", []string{"step"}),

		dbPool:    NewGaugeVec("planner_db_pool", "database/sql pool stats.", []string{"stat"}),
		redisUp:   NewGauge("planner_redis_up", "Redis reachable (1) or not (0)."),
		redisPing: NewGauge("planner_redis_ping_seconds", "Last redis ping latency in seconds."),
	}
}

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.generations, m.attempts, m.genLatency,
		m.cacheLookups, m.rateLimited, m.postgenFailures,
		m.dbPool, m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// IncGeneration counts a delivered result. An empty source is reported as "direct".
func (m *Metrics) IncGeneration(source, mode, channel string) {
	if m == nil {
		return
	}
	if strings.TrimSpace(source) == "" {
		source = "direct"
	}
	m.generations.Inc(source, mode, channel)
}

func (m *Metrics) GenerationCount(source, mode, channel string) float64 {
	if m == nil {
		return 0
	}
	if strings.TrimSpace(source) == "" {
		source = "direct"
	}
	return m.generations.Value(source, mode, channel)
}

func (m *Metrics) IncAttempt(backend, model, format, outcome string) {
	if m == nil {
		return
	}
	m.attempts.Inc(backend, model, format, outcome)
}

func (m *Metrics) AttemptCount(backend, model, format, outcome string) float64 {
	if m == nil {
		return 0
	}
	return m.attempts.Value(backend, model, format, outcome)
}

func (m *Metrics) ObserveGeneration(backend, mode string, dur time.Duration) {
	if m == nil {
		return
	}
	m.genLatency.Observe(dur.Seconds(), backend, mode)
}

func (m *Metrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.Inc(result)
}

func (m *Metrics) CacheLookupCount(result string) float64 {
	if m == nil {
		return 0
	}
	return m.cacheLookups.Value(result)
}

func (m *Metrics) IncRateLimited(namespace string) {
	if m == nil {
		return
	}
	m.rateLimited.Inc(namespace)
}

func (m *Metrics) RateLimitedCount(namespace string) float64 {
	if m == nil {
		return 0
	}
	return m.rateLimited.Value(namespace)
}

func (m *Metrics) IncPostgenFailure(step string) {
	if m == nil {
		return
	}
	m.postgenFailures.Inc(step)
}

func (m *Metrics) PostgenFailureCount(step string) float64 {
	if m == nil {
		return 0
	}
	return m.postgenFailures.Value(step)
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: database stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbPool.Set(float64(stats.OpenConnections), "open_connections")
				m.dbPool.Set(float64(stats.InUse), "in_use")
				m.dbPool.Set(float64(stats.Idle), "idle")
				m.dbPool.Set(float64(stats.WaitCount), "wait_count")
				m.dbPool.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.dbPool.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

// StartRedisCollector pings the shared client; it does not own or close it.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
