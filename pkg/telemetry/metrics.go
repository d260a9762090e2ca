package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for Rex.
type Metrics struct {
	config MetricsConfig

	// CMDB metrics
	cmdbLookups     *prometheus.CounterVec
	cmdbCacheHits   prometheus.Counter
	cmdbCacheMisses prometheus.Counter

	// Task metrics
	tasksExecuted *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec

	// Transport metrics
	connections  *prometheus.CounterVec
	execCommands *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op instance; every Record method tolerates it.
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "rex"
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		cmdbLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cmdb_lookups_total",
				Help:      "Total number of CMDB lookups",
			},
			[]string{"status"},
		),
		cmdbCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cmdb_cache_hits_total",
				Help:      "Total number of CMDB source cache hits",
			},
		),
		cmdbCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cmdb_cache_misses_total",
				Help:      "Total number of CMDB source cache misses",
			},
		),

		tasksExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_executed_total",
				Help:      "Total number of per-host task executions",
			},
			[]string{"task", "status"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Duration of per-host task execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"task"},
		),

		connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transport_connections_total",
				Help:      "Total number of transport connections opened",
			},
			[]string{"transport", "status"},
		),
		execCommands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transport_commands_total",
				Help:      "Total number of commands executed over transports",
			},
			[]string{"transport"},
		),
	}

	collectors := []prometheus.Collector{
		m.cmdbLookups,
		m.cmdbCacheHits,
		m.cmdbCacheMisses,
		m.tasksExecuted,
		m.taskDuration,
		m.connections,
		m.execCommands,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// RecordCMDBLookup records one completed lookup with its status
// (resolved, miss, error).
func (m *Metrics) RecordCMDBLookup(status string) {
	if m.registry == nil {
		return
	}
	m.cmdbLookups.WithLabelValues(status).Inc()
}

// RecordCMDBCache records cache counter deltas from a CMDB instance.
func (m *Metrics) RecordCMDBCache(hits, misses int64) {
	if m.registry == nil {
		return
	}
	m.cmdbCacheHits.Add(float64(hits))
	m.cmdbCacheMisses.Add(float64(misses))
}

// RecordTaskExecution records one per-host task execution.
func (m *Metrics) RecordTaskExecution(task, status string, duration time.Duration) {
	if m.registry == nil {
		return
	}
	m.tasksExecuted.WithLabelValues(task, status).Inc()
	m.taskDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// RecordConnection records a transport connection attempt.
func (m *Metrics) RecordConnection(transport, status string) {
	if m.registry == nil {
		return
	}
	m.connections.WithLabelValues(transport, status).Inc()
}

// RecordCommand records a command executed over a transport.
func (m *Metrics) RecordCommand(transport string) {
	if m.registry == nil {
		return
	}
	m.execCommands.WithLabelValues(transport).Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on the configured listen address. It returns
// immediately; the server runs until Shutdown.
func (m *Metrics) StartServer() error {
	if m.registry == nil || m.config.ListenAddress == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	return nil
}

// Shutdown stops the metrics server if one was started.
func (m *Metrics) Shutdown() error {
	if m.server == nil {
		return nil
	}
	return m.server.Close()
}
