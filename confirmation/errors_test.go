package confirmation

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{&ValidationError{Field: "user_id", Reason: "empty"}, KindValidation},
		{&ActionNotFoundError{ActionID: "action_a"}, KindInvalidAction},
		{&ActionProcessedError{ActionID: "action_a"}, KindInvalidAction},
		{&PermissionDeniedError{ActionID: "action_a", UserID: "mallory"}, KindPermissionDenied},
		{&ExecutionError{ActionID: "action_a", Err: errors.New("boom")}, KindExecutionFailed},
		{&CacheUnavailableError{Op: "store", Err: errors.New("down")}, KindCacheUnavailable},
		{errors.New("mystery"), KindInternal},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", &ActionNotFoundError{ActionID: "action_a"})
	if got := KindOf(err); got != KindInvalidAction {
		t.Errorf("KindOf(wrapped) = %q, want %q", got, KindInvalidAction)
	}
}

func TestPermissionDeniedError_GenericMessage(t *testing.T) {
	err := &PermissionDeniedError{ActionID: "action_a", UserID: "mallory"}
	msg := err.Error()
	if msg != "permission denied: user mismatch" {
		t.Errorf("Error() = %q, want the generic message", msg)
	}
}

func TestNotFoundAndProcessed_IndistinguishableKind(t *testing.T) {
	notFound := &ActionNotFoundError{ActionID: "action_a"}
	processed := &ActionProcessedError{ActionID: "action_a"}

	if KindOf(notFound) != KindOf(processed) {
		t.Error("Not-found and already-processed must share one kind")
	}
	if !IsInvalidAction(notFound) || !IsInvalidAction(processed) {
		t.Error("IsInvalidAction must match both variants")
	}
}

func TestExecutionError_UnwrapAndMessage(t *testing.T) {
	cause := errors.New("API 503")
	err := &ExecutionError{ActionID: "action_a", Err: cause}

	if err.Error() != "API 503" {
		t.Errorf("Error() = %q, want the executor's message", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() does not reach the cause")
	}
}

func TestErrorEnvelope(t *testing.T) {
	env := ErrorEnvelope(&ValidationError{Field: "user_id", Reason: "must not be empty"})

	if env["status"] != "error" {
		t.Errorf("status = %v, want error", env["status"])
	}
	if env["kind"] != string(KindValidation) {
		t.Errorf("kind = %v, want %s", env["kind"], KindValidation)
	}
	if env["message"] != "invalid user_id: must not be empty" {
		t.Errorf("message = %v", env["message"])
	}
}

func TestSuccessEnvelope(t *testing.T) {
	env := SuccessEnvelope(map[string]interface{}{"action_id": "action_a"})

	if env["status"] != "success" {
		t.Errorf("status = %v, want success", env["status"])
	}
	if env["action_id"] != "action_a" {
		t.Errorf("action_id = %v", env["action_id"])
	}
}
