package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// ProductionLogger is the default concrete Logger for deployments.
//
// Output format:
//   - JSON when running in Kubernetes (log aggregation friendly)
//   - text for local development
//
// Configuration priority:
//  1. Explicit options (highest)
//  2. Environment variables (AGENTGATE_LOG_LEVEL, AGENTGATE_LOG_FORMAT)
//  3. Auto-detection (KUBERNETES_SERVICE_HOST implies JSON)
//  4. Defaults (INFO, text)
type ProductionLogger struct {
	level     int
	format    string
	service   string
	component string
	output    io.Writer
	mu        *sync.Mutex
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

var levelNames = map[int]string{
	levelDebug: "DEBUG",
	levelInfo:  "INFO",
	levelWarn:  "WARN",
	levelError: "ERROR",
}

// LoggerOption configures a ProductionLogger.
type LoggerOption func(*ProductionLogger)

// WithLogLevel sets the minimum level ("DEBUG", "INFO", "WARN", "ERROR").
func WithLogLevel(level string) LoggerOption {
	return func(l *ProductionLogger) {
		l.level = parseLevel(level)
	}
}

// WithLogFormat forces the output format ("json" or "text").
func WithLogFormat(format string) LoggerOption {
	return func(l *ProductionLogger) {
		if format == "json" || format == "text" {
			l.format = format
		}
	}
}

// WithLogOutput redirects output, primarily for tests.
func WithLogOutput(w io.Writer) LoggerOption {
	return func(l *ProductionLogger) {
		if w != nil {
			l.output = w
		}
	}
}

// NewProductionLogger creates a logger for the given service name.
func NewProductionLogger(service string, opts ...LoggerOption) *ProductionLogger {
	level := os.Getenv("AGENTGATE_LOG_LEVEL")
	if level == "" {
		level = "INFO"
	}

	format := os.Getenv("AGENTGATE_LOG_FORMAT")
	if format == "" {
		if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
			format = "json"
		} else {
			format = "text"
		}
	}

	l := &ProductionLogger{
		level:   parseLevel(level),
		format:  format,
		service: service,
		output:  os.Stdout,
		mu:      &sync.Mutex{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func parseLevel(s string) int {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return levelDebug
	case "WARN", "WARNING":
		return levelWarn
	case "ERROR":
		return levelError
	default:
		return levelInfo
	}
}

// WithComponent returns a copy of the logger that stamps every record with
// the component name. Implements ComponentAwareLogger.
func (l *ProductionLogger) WithComponent(name string) Logger {
	clone := *l
	clone.component = name
	return &clone
}

func (l *ProductionLogger) log(level int, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	record := make(map[string]interface{}, len(fields)+5)
	for k, v := range fields {
		record[k] = v
	}
	record["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	record["level"] = levelNames[level]
	record["message"] = msg
	if l.service != "" {
		record["service"] = l.service
	}
	if l.component != "" {
		record["component"] = l.component
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "json" {
		if data, err := json.Marshal(record); err == nil {
			fmt.Fprintln(l.output, string(data))
			return
		}
	}

	// Text format: fixed prefix, then sorted key=value pairs.
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s", record["timestamp"], levelNames[level], msg)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, fields[k])
	}
	if l.component != "" {
		fmt.Fprintf(&sb, " component=%s", l.component)
	}
	fmt.Fprintln(l.output, sb.String())
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.log(levelInfo, msg, fields)
}

func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	l.log(levelError, msg, fields)
}

func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(levelWarn, msg, fields)
}

func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(levelDebug, msg, fields)
}

// logCtx merges the context request ID into the field map without mutating
// the caller's map.
func (l *ProductionLogger) logCtx(ctx context.Context, level int, msg string, fields map[string]interface{}) {
	if id := RequestIDFromContext(ctx); id != "" {
		merged := make(map[string]interface{}, len(fields)+1)
		for k, v := range fields {
			merged[k] = v
		}
		merged["request_id"] = id
		fields = merged
	}
	l.log(level, msg, fields)
}

func (l *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logCtx(ctx, levelInfo, msg, fields)
}

func (l *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logCtx(ctx, levelError, msg, fields)
}

func (l *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logCtx(ctx, levelWarn, msg, fields)
}

func (l *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	l.logCtx(ctx, levelDebug, msg, fields)
}

// Compile-time interface compliance checks
var (
	_ Logger               = (*ProductionLogger)(nil)
	_ ComponentAwareLogger = (*ProductionLogger)(nil)
)
