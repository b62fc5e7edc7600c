// Package telemetry provides simple, production-ready metrics and tracing
// helpers on top of OpenTelemetry.
//
// The metric API is designed with progressive disclosure: the functions in
// this file cover the common cases (counters, distributions, timings) with
// label key/value pairs; anything more exotic should use the OpenTelemetry
// API directly via otel.Meter.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/agentgate/agentgate"

// instruments caches created metric instruments by name. OpenTelemetry
// instrument creation is not free, and metric names are low-cardinality.
var instruments = struct {
	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
}{
	counters:   make(map[string]metric.Float64Counter),
	histograms: make(map[string]metric.Float64Histogram),
}

// Counter increments a counter metric by 1.
// Use for counting events: prepares, confirms, errors, cache misses.
// Labels are provided as key-value pairs.
// Example: Counter("confirmation.action_confirmed", "integration", "jira")
func Counter(name string, labels ...string) {
	Emit(name, 1, labels...)
}

// Emit adds value to the counter with the given name.
func Emit(name string, value float64, labels ...string) {
	instruments.mu.Lock()
	c, ok := instruments.counters[name]
	if !ok {
		var err error
		c, err = otel.Meter(instrumentationName).Float64Counter(name)
		if err != nil {
			instruments.mu.Unlock()
			return
		}
		instruments.counters[name] = c
	}
	instruments.mu.Unlock()

	c.Add(context.Background(), value, metric.WithAttributes(labelAttrs(labels)...))
}

// Histogram records a value in a distribution.
// Use for latencies, payload sizes, pending-queue lengths.
// Example: Histogram("confirmation.executor.duration_ms", 125.3, "integration", "jira")
func Histogram(name string, value float64, labels ...string) {
	instruments.mu.Lock()
	h, ok := instruments.histograms[name]
	if !ok {
		var err error
		h, err = otel.Meter(instrumentationName).Float64Histogram(name)
		if err != nil {
			instruments.mu.Unlock()
			return
		}
		instruments.histograms[name] = h
	}
	instruments.mu.Unlock()

	h.Record(context.Background(), value, metric.WithAttributes(labelAttrs(labels)...))
}

// Duration records elapsed time since startTime in milliseconds.
// Convenience for the common pattern of timing operations:
//
//	start := time.Now()
//	defer telemetry.Duration("confirmation.confirm.duration_ms", start, "module", telemetry.ModuleConfirmation)
func Duration(name string, startTime time.Time, labels ...string) {
	Histogram(name, float64(time.Since(startTime).Milliseconds()), labels...)
}

// labelAttrs converts variadic key-value pairs into OTel attributes.
// A trailing unpaired key is dropped.
func labelAttrs(labels []string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, attribute.String(labels[i], labels[i+1]))
	}
	return attrs
}
