package confirmation

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/agentgate/agentgate/core"
	"github.com/agentgate/agentgate/telemetry"
)

// =============================================================================
// Service - the two-phase confirmation state machine
// =============================================================================
//
// Per action_id:
//
//	          Prepare
//	  (none) ─────────▶ PENDING
//	                    │
//	          ┌─────────┼─────────┐
//	          │         │         │
//	       Confirm    Cancel   TTL expiry
//	          │         │         │
//	          ▼         ▼         ▼
//	     EXECUTED   CANCELLED   EXPIRED
//
// All three terminal transitions are mutually exclusive. Within one
// process, the executor-map claim (a compare-and-remove under the mutex)
// decides the winner between Confirm and Cancel; across processes the
// store delete enforces it cooperatively.
//
// Two orderings are load-bearing:
//   - The claim is the FIRST side effect of Confirm/Cancel, before the
//     store delete. The claim, not the delete, is the source of truth for
//     at-most-once execution.
//   - No store key or lock is held across the executor call; once the
//     executor starts it runs to completion.
//
// The executor map is process-local. In a multi-replica deployment,
// Confirm must reach the replica that handled Prepare (session-affinity
// routing, or a rehydration model where executors are pure functions of
// the persisted tool_name and parameters).
// =============================================================================

// Service orchestrates prepare -> (confirm | cancel | expire). Dependencies
// are explicit constructor parameters; there are no package-level
// singletons.
type Service struct {
	store      *PendingActionStore
	formatters *FormatterRegistry

	mu        sync.Mutex
	executors map[string]Executor

	// Optional dependencies (injected per framework patterns)
	logger    core.Logger    // Defaults to NoOp
	telemetry core.Telemetry // Defaults to NoOp - always nil-check before use
}

// ServiceOption configures optional dependencies for Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for the service.
func WithServiceLogger(logger core.Logger) ServiceOption {
	return func(s *Service) {
		if logger == nil {
			return
		}
		if cal, ok := logger.(core.ComponentAwareLogger); ok {
			s.logger = cal.WithComponent("agentgate/confirmation")
		} else {
			s.logger = logger
		}
	}
}

// WithServiceTelemetry sets the telemetry provider for the service.
func WithServiceTelemetry(t core.Telemetry) ServiceOption {
	return func(s *Service) {
		s.telemetry = t
	}
}

// NewService creates a confirmation service over the given store and
// formatter registry. Returns a concrete type per Go idiom "return
// structs, accept interfaces".
func NewService(store *PendingActionStore, formatters *FormatterRegistry, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		formatters: formatters,
		executors:  make(map[string]Executor),
		logger:     &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepare captures a proposed action as a durable pending record, registers
// its executor in the process-local map, and returns the action ID with a
// human-readable preview.
func (s *Service) Prepare(ctx context.Context, in PrepareInput) (*PrepareResult, error) {
	if in.UserID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if in.ToolName == "" {
		return nil, &ValidationError{Field: "tool_name", Reason: "must not be empty"}
	}
	if !in.RiskLevel.Valid() {
		return nil, &ValidationError{Field: "risk_level", Reason: "must be one of low, medium, high"}
	}
	if in.Executor == nil {
		return nil, &ValidationError{Field: "executor", Reason: "must not be nil"}
	}

	integration, actionType := DeriveToolBinding(in.ToolName)

	action, err := s.store.Store(ctx, StoreInput{
		UserID:      in.UserID,
		SessionID:   in.SessionID,
		Integration: integration,
		ToolName:    in.ToolName,
		ActionType:  actionType,
		RiskLevel:   in.RiskLevel,
		Parameters:  in.ToolArgs,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.executors[action.ActionID] = in.Executor
	s.mu.Unlock()

	preview := s.formatters.Format(integration, in.ToolName, in.ToolArgs)

	telemetry.AddSpanEvent(ctx, "confirmation.action_prepared",
		attribute.String("action_id", action.ActionID),
		attribute.String("integration", integration),
		attribute.String("tool_name", in.ToolName),
		attribute.String("risk_level", string(in.RiskLevel)),
	)
	telemetry.Counter("confirmation.action_prepared",
		"integration", integration,
		"risk_level", string(in.RiskLevel),
		"module", telemetry.ModuleConfirmation,
	)
	if s.logger != nil {
		s.logger.InfoWithContext(ctx, "Action prepared", map[string]interface{}{
			"operation":   "confirmation_prepare",
			"action_id":   action.ActionID,
			"user_id":     in.UserID,
			"tool_name":   in.ToolName,
			"integration": integration,
			"risk_level":  in.RiskLevel,
		})
	}

	return &PrepareResult{
		ActionID:  action.ActionID,
		Preview:   preview,
		ExpiresAt: action.ExpiresAt,
	}, nil
}

// Confirm executes a pending action on behalf of its owner. The executor
// runs at most once: the claim on the executor map decides between
// concurrent Confirm/Cancel calls, and the loser sees InvalidAction.
func (s *Service) Confirm(ctx context.Context, actionID, userID string) (*ConfirmResult, error) {
	action, err := s.authorize(ctx, "confirmation_confirm", actionID, userID)
	if err != nil {
		return nil, err
	}

	executor, ok := s.claimExecutor(actionID)
	if !ok {
		return nil, &ActionProcessedError{ActionID: actionID}
	}

	// Best-effort cleanup. The claim above already decided at-most-once;
	// a failed delete leaves a record that expires on its own.
	if _, err := s.store.Delete(ctx, actionID); err != nil {
		if s.logger != nil {
			s.logger.WarnWithContext(ctx, "Failed to delete confirmed action", map[string]interface{}{
				"operation": "confirmation_confirm",
				"action_id": actionID,
				"error":     err.Error(),
			})
		}
	}

	telemetry.AddSpanEvent(ctx, "confirmation.executor_claimed",
		attribute.String("action_id", actionID),
		attribute.String("integration", action.Integration),
	)

	execCtx := ctx
	var span core.Span
	if s.telemetry != nil {
		execCtx, span = s.telemetry.StartSpan(ctx, "confirmation.execute")
		span.SetAttribute("action_id", actionID)
		span.SetAttribute("integration", action.Integration)
		span.SetAttribute("tool_name", action.ToolName)
	}

	start := time.Now()
	result, execErr := executor(execCtx)
	telemetry.Duration("confirmation.executor.duration_ms", start,
		"integration", action.Integration,
		"module", telemetry.ModuleConfirmation,
	)
	if span != nil {
		if execErr != nil {
			span.RecordError(execErr)
		}
		span.End()
	}

	if execErr != nil {
		telemetry.RecordSpanError(ctx, execErr)
		telemetry.Counter("confirmation.executor_failed",
			"integration", action.Integration,
			"module", telemetry.ModuleConfirmation,
		)
		if s.logger != nil {
			s.logger.ErrorWithContext(ctx, "Executor failed", map[string]interface{}{
				"operation": "confirmation_confirm",
				"action_id": actionID,
				"user_id":   userID,
				"tool_name": action.ToolName,
				"error":     execErr.Error(),
			})
		}
		// The action is consumed; a retry returns InvalidAction.
		return nil, &ExecutionError{ActionID: actionID, Err: execErr}
	}

	telemetry.Counter("confirmation.action_confirmed",
		"integration", action.Integration,
		"module", telemetry.ModuleConfirmation,
	)
	if s.logger != nil {
		s.logger.InfoWithContext(ctx, "Action confirmed and executed", map[string]interface{}{
			"operation": "confirmation_confirm",
			"action_id": actionID,
			"user_id":   userID,
			"tool_name": action.ToolName,
		})
	}

	return &ConfirmResult{
		ActionID:   actionID,
		Result:     result,
		ExecutedAt: time.Now().UTC(),
	}, nil
}

// Cancel discards a pending action on behalf of its owner without invoking
// the executor.
func (s *Service) Cancel(ctx context.Context, actionID, userID string) (*CancelResult, error) {
	action, err := s.authorize(ctx, "confirmation_cancel", actionID, userID)
	if err != nil {
		return nil, err
	}

	if _, ok := s.claimExecutor(actionID); !ok {
		return nil, &ActionProcessedError{ActionID: actionID}
	}

	if _, err := s.store.Delete(ctx, actionID); err != nil {
		if s.logger != nil {
			s.logger.WarnWithContext(ctx, "Failed to delete cancelled action", map[string]interface{}{
				"operation": "confirmation_cancel",
				"action_id": actionID,
				"error":     err.Error(),
			})
		}
	}

	telemetry.Counter("confirmation.action_cancelled",
		"integration", action.Integration,
		"module", telemetry.ModuleConfirmation,
	)
	if s.logger != nil {
		s.logger.InfoWithContext(ctx, "Action cancelled", map[string]interface{}{
			"operation": "confirmation_cancel",
			"action_id": actionID,
			"user_id":   userID,
			"tool_name": action.ToolName,
		})
	}

	return &CancelResult{
		ActionID:    actionID,
		CancelledAt: time.Now().UTC(),
	}, nil
}

// ListPending returns the live pending actions owned by userID, optionally
// filtered by session. Previews are re-derived from the stored parameters.
// The listing is a snapshot with no isolation guarantee against concurrent
// Prepare/Confirm/Cancel.
func (s *Service) ListPending(ctx context.Context, userID, sessionID string) ([]PendingActionSummary, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}

	actions, err := s.store.GetByUser(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	summaries := make([]PendingActionSummary, 0, len(actions))
	for _, action := range actions {
		summaries = append(summaries, PendingActionSummary{
			ActionID:    action.ActionID,
			ToolName:    action.ToolName,
			Integration: action.Integration,
			RiskLevel:   action.RiskLevel,
			Preview:     s.formatters.Format(action.Integration, action.ToolName, action.Parameters),
			CreatedAt:   action.CreatedAt,
			ExpiresAt:   action.ExpiresAt,
		})
	}
	return summaries, nil
}

// authorize loads the action and enforces ownership. Shared by Confirm and
// Cancel (their first two steps are identical).
func (s *Service) authorize(ctx context.Context, op, actionID, userID string) (*PendingAction, error) {
	if actionID == "" {
		return nil, &ValidationError{Field: "action_id", Reason: "must not be empty"}
	}
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}

	action, err := s.store.Get(ctx, actionID)
	if err != nil {
		return nil, err
	}

	if action.UserID != userID {
		telemetry.Counter("confirmation.permission_denied", "module", telemetry.ModuleConfirmation)
		if s.logger != nil {
			// Internal log carries both IDs; the error message stays generic.
			s.logger.WarnWithContext(ctx, "Ownership check failed", map[string]interface{}{
				"operation":     op,
				"action_id":     actionID,
				"caller_id":     userID,
				"owner_user_id": action.UserID,
			})
		}
		return nil, &PermissionDeniedError{ActionID: actionID, UserID: userID}
	}

	return action, nil
}

// claimExecutor atomically removes and returns the executor for actionID.
// The claim is the arbiter between concurrent terminal transitions: exactly
// one caller gets ok=true.
func (s *Service) claimExecutor(actionID string) (Executor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	executor, ok := s.executors[actionID]
	if ok {
		delete(s.executors, actionID)
	}
	return executor, ok
}

// PendingExecutors reports the number of executors currently registered.
// Diagnostic; the count includes executors whose records have expired but
// whose actions were never confirmed or cancelled.
func (s *Service) PendingExecutors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.executors)
}
