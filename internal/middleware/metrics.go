package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const modelKey = "model"

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status", "model"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "model"},
	)

	llmTokenUsage = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_token_usage_total",
			Help: "Total number of LLM tokens processed",
		},
		[]string{"route", "model", "type"},
	)

	llmTTFT = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_ttft_seconds",
			Help:    "Time To First Token latency in seconds",
			Buckets: []float64{0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"route", "model"},
	)

	credentialResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credential_resolutions_total",
			Help: "API key resolutions by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	streamFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_stream_fallbacks_total",
			Help: "Streaming attempts that degraded to a JSON fallback response",
		},
		[]string{"route"},
	)
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		// Set by the chat handler once it knows which model it called
		model := "none"
		if val, exists := c.Get(modelKey); exists {
			if m, ok := val.(string); ok {
				model = m
			}
		}

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, status, model).Inc()
		httpRequestDuration.WithLabelValues(route, model).Observe(duration)
	}
}

// SetModel labels the current request's metrics with model.
func SetModel(c *gin.Context, model string) {
	c.Set(modelKey, model)
}

func RecordTokenUsage(route, model string, inputTokens, outputTokens int) {
	llmTokenUsage.WithLabelValues(route, model, "input").Add(float64(inputTokens))
	llmTokenUsage.WithLabelValues(route, model, "output").Add(float64(outputTokens))
}

func RecordTTFT(route, model string, durationSeconds float64) {
	llmTTFT.WithLabelValues(route, model).Observe(durationSeconds)
}

func RecordCredentialResolution(strategy string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	credentialResolutions.WithLabelValues(strategy, outcome).Inc()
}

func RecordStreamFallback(route string) {
	streamFallbacks.WithLabelValues(route).Inc()
}
