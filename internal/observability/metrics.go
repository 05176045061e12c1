package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/adstudio-backend/internal/platform/envutil"
	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests  *CounterVec
	apiLatency   *HistogramVec
	apiInflight  *GaugeVec
	llmRequests  *CounterVec
	llmLatency   *HistogramVec
	imageLatency *HistogramVec
	generations  *CounterVec
	genStage     *HistogramVec
	simulations  *CounterVec
	simImpress   *CounterVec
	vectorOps    *HistogramVec
	pgStats      *GaugeVec
	redisUp      *GaugeVec
	redisPing    *GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool { return envutil.Bool("METRICS_ENABLED", false) }

// Current is nil until Init runs with metrics enabled. Every method is safe on
// a nil receiver.
func Current() *Metrics { return instance }

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10*time.Second)
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// NewMetrics builds an unregistered set, used directly by tests.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("ads_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"ads_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		apiInflight: NewGaugeVec("ads_api_inflight_requests", "In-flight API requests.", nil),
		llmRequests: NewCounterVec("ads_llm_requests_total", "Text model requests by provider/status.", []string{"provider", "status"}),
		llmLatency: NewHistogramVec(
			"ads_llm_request_duration_seconds",
			"Text model latency in seconds by provider.",
			[]string{"provider"},
			[]float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		),
		imageLatency: NewHistogramVec(
			"ads_image_generation_duration_seconds",
			"Image generation latency in seconds by provider/status.",
			[]string{"provider", "status"},
			[]float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		),
		generations: NewCounterVec("ads_generations_total", "Generation runs by mode/status.", []string{"mode", "status"}),
		genStage: NewHistogramVec(
			"ads_generation_stage_duration_seconds",
			"Generation stage duration in seconds by stage/status.",
			[]string{"stage", "status"},
			[]float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		simulations: NewCounterVec("ads_simulations_total", "Performance simulations by status.", []string{"status"}),
		simImpress:  NewCounterVec("ads_simulated_impressions_total", "Scaled impressions produced by simulations.", nil),
		vectorOps: NewHistogramVec(
			"ads_vector_store_operation_duration_seconds",
			"Vector store operation latency in seconds by operation/status.",
			[]string{"operation", "status"},
			[]float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		),
		pgStats:   NewGaugeVec("ads_postgres_stats", "Postgres connection pool stats.", []string{"metric"}),
		redisUp:   NewGaugeVec("ads_redis_up", "Redis connectivity (1=up, 0=down).", nil),
		redisPing: NewGaugeVec("ads_redis_ping_seconds", "Redis ping latency in seconds.", nil),
	}
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
		m.llmRequests, m.llmLatency, m.imageLatency,
		m.generations, m.genStage, m.simulations, m.simImpress,
		m.vectorOps, m.pgStats, m.redisUp, m.redisPing,
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
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

func (m *Metrics) ObserveLLMRequest(provider string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(provider, statusOf(err))
	m.llmLatency.Observe(dur.Seconds(), provider)
}

func (m *Metrics) ObserveImage(provider string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.imageLatency.Observe(dur.Seconds(), provider, statusOf(err))
}

func (m *Metrics) ObserveGeneration(mode string, err error) {
	if m == nil {
		return
	}
	m.generations.Inc(mode, statusOf(err))
}

func (m *Metrics) ObserveGenerationStage(stage string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.genStage.Observe(dur.Seconds(), stage, statusOf(err))
}

func (m *Metrics) ObserveSimulation(impressions int, err error) {
	if m == nil {
		return
	}
	m.simulations.Inc(statusOf(err))
	if err == nil && impressions > 0 {
		m.simImpress.Add(float64(impressions))
	}
}

func (m *Metrics) ObserveVectorStore(operation string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	m.vectorOps.Observe(dur.Seconds(), operation, statusOf(err))
}

func statusOf(err error) string {
	if err != nil {
		return "failed"
	}
	return "succeeded"
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
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			}
		}
	}()
}

// Pinger is satisfied by the realtime Redis bus.
type Pinger interface {
	Ping(ctx context.Context) error
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb Pinger) {
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
				if err := rdb.Ping(ctx); err != nil {
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
