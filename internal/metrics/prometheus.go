package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EngineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentience_engine_duration_seconds",
			Help:    "Analytics engine run time in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"engine"},
	)

	ReviewsImported = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentience_reviews_imported_total",
			Help: "Rows handled by CSV imports",
		},
		[]string{"outcome"},
	)

	ImportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentience_imports_total",
			Help: "CSV imports by status",
		},
		[]string{"status"},
	)

	ClassifierCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentience_classifier_calls_total",
			Help: "Sentiment classifier batch requests",
		},
		[]string{"status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentience_llm_tokens_used_total",
			Help: "Tokens consumed by the sentiment classifier",
		},
		[]string{"model", "type"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentience_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentience_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentience_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentience_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentience_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	WorkingSetReviews = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentience_working_set_reviews",
			Help: "Reviews in the current working set",
		},
	)

	EvidenceStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentience_evidence_streams",
			Help: "Open evidence websocket connections",
		},
	)
)

func Init() {
	prometheus.MustRegister(EngineDuration)
	prometheus.MustRegister(ReviewsImported)
	prometheus.MustRegister(ImportsTotal)
	prometheus.MustRegister(ClassifierCalls)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPDuration)
	prometheus.MustRegister(WorkingSetReviews)
	prometheus.MustRegister(EvidenceStreams)
}

// ObserveEngine records the time since start against engine.
func ObserveEngine(engine string, start time.Time) {
	EngineDuration.WithLabelValues(engine).Observe(time.Since(start).Seconds())
}

// Middleware counts requests per matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		HTTPRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
