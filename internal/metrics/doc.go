// Package metrics provides observability hooks for sitegen builds.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no call site needs a nil check:
//
//	exec := executor.New(oracle, executor.WithRecorder(metrics.NoopRecorder{}))
//
// The serve command swaps in a PrometheusRecorder and exposes it through
// HTTPHandler on /metrics.
package metrics
