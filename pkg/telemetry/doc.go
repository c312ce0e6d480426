// Package telemetry provides observability instrumentation for buttond.
//
// The telemetry package integrates structured logging (zerolog) and
// metrics (Prometheus) into a unified system for monitoring the daemon.
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.NewComponentLogger("engine")
//	logger = logger.WithDevice("fujitsu:fi-5110").WithOption(3)
//	logger.Info("transition detected")
//	logger.WithError(err).Error("device open failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Metrics Collection
//
// Metrics cover sampling throughput, hardware failures, detected
// transitions, handler runs and durations, active workers, and
// configuration reloads. The collector is a no-op when disabled, so
// callers never need nil checks:
//
//	metrics, err := telemetry.NewMetrics(cfg.Metrics)
//	if err != nil {
//	    return err
//	}
//	http.Handle("/metrics", metrics.Handler())
package telemetry
