// Package observability provides logging, metrics, and tracing for whm2bunny.
//
// The receiver daemon uses the structured slog-based Logger, Prometheus
// metrics (see Metrics), and optional OTLP trace export. The hook CLI uses
// NewHookLogger, a logrus logger that appends to the hook log file and
// mirrors messages to stdout/stderr for the invoking control panel.
package observability
