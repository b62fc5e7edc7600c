// Package confirmation implements the two-phase confirmation core of the
// agentgate platform: an agent proposes a mutating external action (create
// a ticket, send an email, write to a wiki), the action is captured as a
// durable pending record with a human-readable preview, and a user later
// confirms or cancels it. Confirmation invokes an executor closure captured
// at prepare time; the executor runs at most once per action.
//
// The package is built from four cooperating pieces:
//   - PendingActionStore: typed CRUD over pending actions on a cache.Provider
//   - FormatterRegistry: renders action parameters into Markdown previews
//   - Service: the prepare -> (confirm | cancel | expire) state machine
//   - Handler: an HTTP control surface for confirm/cancel/list
package confirmation

import (
	"context"
	"time"
)

// ActionType is advisory metadata classifying what a tool does.
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionUpdate ActionType = "update"
	ActionDelete ActionType = "delete"
	ActionSend   ActionType = "send"
	ActionOther  ActionType = "other"
)

// RiskLevel is advisory metadata that may gate UI prompts. The core
// validates and stores it but never gates behavior on it.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether the risk level is one of low/medium/high.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Executor performs the proposed mutating operation when invoked. It is
// captured at prepare time and held in-process only - never persisted,
// since it may close over connections and secrets. In a multi-replica
// deployment, Confirm must be routed to the replica that handled Prepare.
type Executor func(ctx context.Context) (interface{}, error)

// PendingAction is the durable record describing a proposed mutating
// operation awaiting user confirmation. Timestamps serialize as RFC 3339
// strings in JSON.
type PendingAction struct {
	ActionID    string                 `json:"action_id"`
	UserID      string                 `json:"user_id"`
	SessionID   string                 `json:"session_id,omitempty"`
	Integration string                 `json:"integration"`
	ToolName    string                 `json:"tool_name"`
	ActionType  ActionType             `json:"action_type"`
	RiskLevel   RiskLevel              `json:"risk_level"`
	Parameters  map[string]interface{} `json:"parameters"`
	CreatedAt   time.Time              `json:"created_at"`
	ExpiresAt   time.Time              `json:"expires_at"`
}

// Expired reports whether the action's local-clock expiry has passed. The
// cache backend's TTL is authoritative; this check only covers the window
// between backend expiry and lazy deletion.
func (a *PendingAction) Expired(now time.Time) bool {
	return !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt)
}

// PrepareInput carries the arguments to Service.Prepare.
type PrepareInput struct {
	UserID    string
	SessionID string
	ToolName  string
	ToolArgs  map[string]interface{}
	RiskLevel RiskLevel
	Executor  Executor
}

// PrepareResult is returned by Service.Prepare.
type PrepareResult struct {
	ActionID  string    `json:"action_id"`
	Preview   string    `json:"preview"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConfirmResult is returned by Service.Confirm after the executor ran.
type ConfirmResult struct {
	ActionID   string      `json:"action_id"`
	Result     interface{} `json:"result"`
	ExecutedAt time.Time   `json:"executed_at"`
}

// CancelResult is returned by Service.Cancel.
type CancelResult struct {
	ActionID    string    `json:"action_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// PendingActionSummary is one entry of Service.ListPending.
type PendingActionSummary struct {
	ActionID    string    `json:"action_id"`
	ToolName    string    `json:"tool_name"`
	Integration string    `json:"integration"`
	RiskLevel   RiskLevel `json:"risk_level"`
	Preview     string    `json:"preview"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
