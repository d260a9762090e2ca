// Package telemetry provides observability instrumentation for Rex.
//
// It wraps zerolog for structured, component-scoped logging and exposes
// Prometheus metrics for CMDB lookups and task execution.
//
// Initialize at startup:
//
//	logger, err := telemetry.NewLogger(telemetry.DefaultLoggingConfig())
//	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true})
//
// Component loggers carry their origin on every event:
//
//	log := logger.NewComponentLogger("cmdb")
//	log.WithField("server", server).Debug("lookup started")
package telemetry
