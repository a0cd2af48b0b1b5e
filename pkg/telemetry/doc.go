// Package telemetry provides logging, tracing and metrics for vtyctl.
//
// Structured logging uses zerolog, tracing uses OpenTelemetry with an OTLP
// or stdout exporter, and metrics are Prometheus collectors on a private
// registry. The three are bundled in Telemetry, built from the [logging],
// [tracing] and [metrics] tables of the settings file:
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//	ctx = tel.WithContext(ctx)
//
// Loggers carry the fields used across a reconcile run:
//
//	log := tel.Logger.NewComponentLogger("reconciler").
//	    WithTarget("edge1").
//	    WithRunID(runID)
//	log.Info().Int("commands", n).Msg("batch submitted")
//
// Metrics are no-ops when disabled, so callers never check. The watch
// command serves them with Metrics.Serve.
package telemetry
