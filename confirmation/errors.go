package confirmation

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error taxonomy
// =============================================================================
//
// Every operation failure surfaces to the agent as one of five kinds. The
// typed errors below map onto the kinds; KindOf classifies any error the
// service returns. Clients see generic messages for InvalidAction (no
// distinction between missing, expired, and already-processed) and for
// PermissionDenied (no confirmation that the action exists for another
// user); internal logs carry the full detail.
// =============================================================================

// ErrorKind tags an operation failure for the agent-facing envelope.
type ErrorKind string

const (
	KindValidation       ErrorKind = "ValidationError"
	KindInvalidAction    ErrorKind = "InvalidAction"
	KindPermissionDenied ErrorKind = "PermissionDenied"
	KindExecutionFailed  ErrorKind = "ExecutionFailed"
	KindCacheUnavailable ErrorKind = "CacheUnavailable"

	// KindInternal is the fallback for errors outside the taxonomy. The
	// service itself never returns it; transport layers use it when handed
	// an unclassified error.
	KindInternal ErrorKind = "InternalError"
)

// ValidationError indicates malformed input on a specific field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ActionNotFoundError indicates the action is missing or expired. The
// message deliberately does not distinguish the two.
type ActionNotFoundError struct {
	ActionID string
}

func (e *ActionNotFoundError) Error() string {
	return fmt.Sprintf("action %s not found or expired", e.ActionID)
}

// ActionProcessedError indicates the action was already confirmed or
// cancelled in this process.
type ActionProcessedError struct {
	ActionID string
}

func (e *ActionProcessedError) Error() string {
	return fmt.Sprintf("action %s already processed", e.ActionID)
}

// IsInvalidAction reports whether err maps to the InvalidAction kind
// (not found, expired, or already processed).
func IsInvalidAction(err error) bool {
	var notFound *ActionNotFoundError
	var processed *ActionProcessedError
	return errors.As(err, &notFound) || errors.As(err, &processed)
}

// PermissionDeniedError indicates the caller is not the user who prepared
// the action. The message stays generic; it must not reveal whether the
// action exists to other users. The owner ID is carried for internal logs
// only and is excluded from Error().
type PermissionDeniedError struct {
	ActionID string
	UserID   string // the caller, not the owner
}

func (e *PermissionDeniedError) Error() string {
	return "permission denied: user mismatch"
}

// IsPermissionDenied reports whether err is a PermissionDeniedError.
func IsPermissionDenied(err error) bool {
	var denied *PermissionDeniedError
	return errors.As(err, &denied)
}

// ExecutionError wraps the executor's own failure. The action is consumed:
// a retry returns InvalidAction.
type ExecutionError struct {
	ActionID string
	Err      error
}

func (e *ExecutionError) Error() string {
	// The client sees the executor's own message.
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("execution of action %s failed", e.ActionID)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionFailed reports whether err is an ExecutionError.
func IsExecutionFailed(err error) bool {
	var failed *ExecutionError
	return errors.As(err, &failed)
}

// CacheUnavailableError indicates the cache backend failed a mutation the
// caller treats as required. Transient; callers may retry.
type CacheUnavailableError struct {
	Op  string
	Err error
}

func (e *CacheUnavailableError) Error() string {
	return fmt.Sprintf("cache unavailable during %s: %v", e.Op, e.Err)
}

func (e *CacheUnavailableError) Unwrap() error {
	return e.Err
}

// IsCacheUnavailable reports whether err is a CacheUnavailableError.
func IsCacheUnavailable(err error) bool {
	var unavailable *CacheUnavailableError
	return errors.As(err, &unavailable)
}

// KindOf classifies an error into its ErrorKind.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return KindValidation
	case IsInvalidAction(err):
		return KindInvalidAction
	case IsPermissionDenied(err):
		return KindPermissionDenied
	case IsExecutionFailed(err):
		return KindExecutionFailed
	case IsCacheUnavailable(err):
		return KindCacheUnavailable
	default:
		return KindInternal
	}
}

// ErrorEnvelope renders an operation failure in the agent-facing shape:
// {status: "error", kind: <ErrorKind>, message: <string>}.
func ErrorEnvelope(err error) map[string]interface{} {
	return map[string]interface{}{
		"status":  "error",
		"kind":    string(KindOf(err)),
		"message": err.Error(),
	}
}

// SuccessEnvelope renders a successful result in the agent-facing shape:
// {status: "success", ...operation-specific fields}.
func SuccessEnvelope(fields map[string]interface{}) map[string]interface{} {
	envelope := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		envelope[k] = v
	}
	envelope["status"] = "success"
	return envelope
}
