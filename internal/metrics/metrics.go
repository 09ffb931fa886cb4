package metrics

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Str("component", "metrics").Logger()

// Metrics holds the Prometheus instruments for the detection engine.
type Metrics struct {
	// Counters
	RequestsAnalyzed   *prometheus.CounterVec
	HoneyTokenTriggers *prometheus.CounterVec
	AnalysisDrops      prometheus.Counter
	StoreErrors        *prometheus.CounterVec
	SinkErrors         *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec

	// Gauges
	QueueDepth prometheus.Gauge

	// Histograms
	DetectionScore   prometheus.Histogram
	AnalysisDuration prometheus.Histogram
	HTTPDuration     *prometheus.HistogramVec
}

// Config holds configuration for the metrics server.
type Config struct {
	Enabled    bool
	Addr       string
	TLSCert    string
	TLSKey     string
	RequireTLS bool
}

// LoadConfig loads metrics configuration from environment variables.
func LoadConfig() Config {
	return Config{
		Enabled:    getBool("METRICS_ENABLED", false),
		Addr:       getOr("METRICS_ADDR", "127.0.0.1:9090"),
		TLSCert:    getOr("METRICS_TLS_CERT", ""),
		TLSKey:     getOr("METRICS_TLS_KEY", ""),
		RequireTLS: getBool("METRICS_REQUIRE_TLS", false),
	}
}

// NewMetrics creates and registers all instruments on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers on an explicit registry, which keeps
// tests independent of the process-global registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsAnalyzed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenttrap_requests_analyzed_total",
				Help: "Total requests analyzed, by resulting classification",
			},
			[]string{"classification"},
		),

		HoneyTokenTriggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenttrap_honey_token_triggers_total",
				Help: "Total honey token hits, by token type",
			},
			[]string{"token_type"},
		),

		AnalysisDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agenttrap_analysis_drops_total",
				Help: "Analyses dropped because the queue was full",
			},
		),

		StoreErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenttrap_store_errors_total",
				Help: "Errors against the persistent store, by operation",
			},
			[]string{"operation"},
		),

		SinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenttrap_sink_errors_total",
				Help: "Errors writing detection records to a sink",
			},
			[]string{"sink", "error_type"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agenttrap_http_requests_total",
				Help: "Honeypot HTTP requests, by method and status",
			},
			[]string{"method", "status"},
		),

		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "agenttrap_analysis_queue_depth",
				Help: "Current depth of the analysis queue",
			},
		),

		DetectionScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agenttrap_detection_score",
				Help:    "Agent-likeness score per analysis",
				Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),

		AnalysisDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "agenttrap_analysis_duration_seconds",
				Help:    "Wall time of one analysis pass",
				Buckets: prometheus.DefBuckets,
			},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agenttrap_http_duration_seconds",
				Help:    "Honeypot HTTP request duration",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"method"},
		),
	}

	reg.MustRegister(
		m.RequestsAnalyzed,
		m.HoneyTokenTriggers,
		m.AnalysisDrops,
		m.StoreErrors,
		m.SinkErrors,
		m.HTTPRequests,
		m.QueueDepth,
		m.DetectionScore,
		m.AnalysisDuration,
		m.HTTPDuration,
	)

	return m
}

// Server exposes /metrics and its own health check.
type Server struct {
	server *http.Server
	config Config
}

// NewServer creates a new metrics server.
func NewServer(config Config) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:         config.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if config.RequireTLS && config.TLSCert != "" && config.TLSKey != "" {
		srv.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &Server{server: srv, config: config}
}

// Start starts the metrics server in a separate goroutine.
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		logger.Info().Msg("metrics disabled (METRICS_ENABLED=false)")
		return nil
	}

	go func() {
		var err error
		if s.config.RequireTLS && s.config.TLSCert != "" && s.config.TLSKey != "" {
			logger.Info().Str("addr", s.config.Addr).Msg("metrics HTTPS server listening")
			err = s.server.ListenAndServeTLS(s.config.TLSCert, s.config.TLSKey)
		} else {
			logger.Info().Str("addr", s.config.Addr).Msg("metrics HTTP server listening")
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func getOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
