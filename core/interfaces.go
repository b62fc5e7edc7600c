// Package core provides the shared contracts of the agentgate framework:
// structured logging, telemetry, request correlation, and the sentinel
// errors the other packages wrap.
//
// Design principles:
//   - Small interfaces, NoOp defaults for every optional dependency
//   - Constructors return concrete types, not interfaces
//   - Components accept a Logger/Telemetry via functional options and
//     never fail when one is absent
package core

import "context"

// Logger is the structured logging interface used throughout the module.
// Fields are free-form key/value pairs; implementations decide the output
// format. The *WithContext variants attach request correlation fields
// (request_id) extracted from the context.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})

	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger is an optional extension that segregates log output
// by component. Components type-assert for it when a logger is injected:
//
//	if cal, ok := logger.(ComponentAwareLogger); ok {
//	    l = cal.WithComponent("agentgate/confirmation")
//	}
type ComponentAwareLogger interface {
	Logger

	// WithComponent returns a logger that stamps every record with the
	// given component name.
	WithComponent(name string) Logger
}

// Telemetry is the optional tracing interface. The telemetry package
// provides an OpenTelemetry-backed implementation.
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span represents a telemetry span.
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// NoOpLogger is the default for optional logger dependencies.
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

func (n *NoOpLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}

// NoOpTelemetry is the default for optional telemetry dependencies.
type NoOpTelemetry struct{}

func (n *NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (n *NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

// NoOpSpan is the span returned by NoOpTelemetry.
type NoOpSpan struct{}

func (n *NoOpSpan) End()                                       {}
func (n *NoOpSpan) SetAttribute(key string, value interface{}) {}
func (n *NoOpSpan) RecordError(err error)                      {}

// Compile-time interface compliance checks
var (
	_ Logger    = (*NoOpLogger)(nil)
	_ Telemetry = (*NoOpTelemetry)(nil)
	_ Span      = (*NoOpSpan)(nil)
)
