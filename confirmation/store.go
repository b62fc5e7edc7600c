package confirmation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentgate/agentgate/cache"
	"github.com/agentgate/agentgate/core"
	"github.com/agentgate/agentgate/telemetry"
)

// Namespace is the cache namespace the confirmation subsystem writes
// under. Keyspace layout:
//
//	confirmation:<action_id>              -> JSON PendingAction
//	confirmation:user_actions:<user_id>   -> set of action_id strings
//
// Both carry the action TTL at write time; the set's TTL is refreshed on
// every addition.
const Namespace = "confirmation"

// UserActionsIndex is the secondary index mapping a user to their pending
// action IDs. It may contain stale members; readers filter them.
const UserActionsIndex = "user_actions"

// DefaultTTL is the pending-action lifetime when none is configured.
const DefaultTTL = 10 * time.Minute

// PendingActionStore is a typed façade over one cache.Provider. The
// provider is expected to be constructed with the "confirmation"
// namespace; the store composes logical keys as bare action IDs.
type PendingActionStore struct {
	cache  cache.Provider
	ttl    time.Duration
	logger core.Logger
}

// PendingActionStoreOption configures a PendingActionStore.
type PendingActionStoreOption func(*PendingActionStore)

// WithStoreTTL sets the TTL applied to stored actions.
func WithStoreTTL(ttl time.Duration) PendingActionStoreOption {
	return func(s *PendingActionStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithStoreLogger sets the logger.
func WithStoreLogger(logger core.Logger) PendingActionStoreOption {
	return func(s *PendingActionStore) {
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

// NewPendingActionStore creates a store over the given cache provider.
// Returns a concrete type per Go idiom "return structs, accept interfaces".
func NewPendingActionStore(provider cache.Provider, opts ...PendingActionStoreOption) *PendingActionStore {
	s := &PendingActionStore{
		cache:  provider,
		ttl:    DefaultTTL,
		logger: &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the store's configured action lifetime.
func (s *PendingActionStore) TTL() time.Duration {
	return s.ttl
}

// generateActionID draws 48 random bits from the CSPRNG and formats them
// as "action_<12 lowercase hex>". Collision probability is treated as zero
// at expected concurrency; no existence check is performed, and an ID is
// never reused.
func generateActionID() (string, error) {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to generate action ID: %w", err)
	}
	return "action_" + hex.EncodeToString(buf[:]), nil
}

// StoreInput carries the fields of a new pending action.
type StoreInput struct {
	UserID      string
	SessionID   string
	Integration string
	ToolName    string
	ActionType  ActionType
	RiskLevel   RiskLevel
	Parameters  map[string]interface{}
}

// Store composes a PendingAction with a fresh action ID and timestamps,
// and writes it with the store TTL, indexed by user.
func (s *PendingActionStore) Store(ctx context.Context, in StoreInput) (*PendingAction, error) {
	actionID, err := generateActionID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	action := &PendingAction{
		ActionID:    actionID,
		UserID:      in.UserID,
		SessionID:   in.SessionID,
		Integration: in.Integration,
		ToolName:    in.ToolName,
		ActionType:  in.ActionType,
		RiskLevel:   in.RiskLevel,
		Parameters:  in.Parameters,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	opts := &cache.SetOptions{
		TTL:     s.ttl,
		Indexes: map[string]string{UserActionsIndex: in.UserID},
	}
	if err := s.cache.Set(ctx, actionID, action, opts); err != nil {
		telemetry.RecordSpanError(ctx, err)
		if s.logger != nil {
			s.logger.ErrorWithContext(ctx, "Failed to store pending action", map[string]interface{}{
				"operation": "pending_action_store",
				"action_id": actionID,
				"user_id":   in.UserID,
				"error":     err.Error(),
			})
		}
		return nil, &CacheUnavailableError{Op: "store", Err: err}
	}

	if s.logger != nil {
		s.logger.DebugWithContext(ctx, "Pending action stored", map[string]interface{}{
			"operation":  "pending_action_store",
			"action_id":  actionID,
			"user_id":    in.UserID,
			"tool_name":  in.ToolName,
			"expires_at": action.ExpiresAt.Format(time.RFC3339),
		})
	}

	return action, nil
}

// Get loads a pending action. A record whose local-clock expiry has passed
// is deleted defensively and reported as not found.
func (s *PendingActionStore) Get(ctx context.Context, actionID string) (*PendingAction, error) {
	value, err := s.cache.Get(ctx, actionID)
	if err != nil {
		// Backend fault conflates with miss: every such case maps to
		// InvalidAction at the service boundary.
		return nil, &ActionNotFoundError{ActionID: actionID}
	}
	if value == nil {
		return nil, &ActionNotFoundError{ActionID: actionID}
	}

	action, err := decodePendingAction(value)
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorWithContext(ctx, "Failed to decode pending action", map[string]interface{}{
				"operation": "pending_action_get",
				"action_id": actionID,
				"error":     err.Error(),
			})
		}
		return nil, &ActionNotFoundError{ActionID: actionID}
	}

	if action.Expired(time.Now().UTC()) {
		if _, err := s.cache.Delete(ctx, actionID, nil); err != nil && s.logger != nil {
			s.logger.WarnWithContext(ctx, "Failed to delete expired action", map[string]interface{}{
				"operation": "pending_action_expire",
				"action_id": actionID,
				"error":     err.Error(),
			})
		}
		telemetry.Counter("confirmation.action_expired", "module", telemetry.ModuleConfirmation)
		return nil, &ActionNotFoundError{ActionID: actionID}
	}

	return action, nil
}

// Delete removes the primary key. Index cleanup is deferred to the
// stale-tolerant reads. Returns true iff the key existed.
func (s *PendingActionStore) Delete(ctx context.Context, actionID string) (bool, error) {
	deleted, err := s.cache.Delete(ctx, actionID, nil)
	if err != nil {
		return false, &CacheUnavailableError{Op: "delete", Err: err}
	}
	return deleted, nil
}

// GetByUser returns the live pending actions for a user, optionally
// filtered by session. Locally-expired entries are deleted best-effort and
// omitted.
func (s *PendingActionStore) GetByUser(ctx context.Context, userID, sessionID string) ([]*PendingAction, error) {
	values, err := s.cache.GetByIndex(ctx, UserActionsIndex, userID)
	if err != nil {
		return nil, &CacheUnavailableError{Op: "get_by_user", Err: err}
	}

	now := time.Now().UTC()
	actions := make([]*PendingAction, 0, len(values))
	for _, value := range values {
		action, err := decodePendingAction(value)
		if err != nil {
			if s.logger != nil {
				s.logger.WarnWithContext(ctx, "Skipping undecodable pending action", map[string]interface{}{
					"operation": "pending_action_list",
					"user_id":   userID,
					"error":     err.Error(),
				})
			}
			continue
		}
		if action.Expired(now) {
			if _, err := s.cache.Delete(ctx, action.ActionID, nil); err != nil && s.logger != nil {
				s.logger.WarnWithContext(ctx, "Failed to delete expired action", map[string]interface{}{
					"operation": "pending_action_expire",
					"action_id": action.ActionID,
					"error":     err.Error(),
				})
			}
			continue
		}
		if sessionID != "" && action.SessionID != sessionID {
			continue
		}
		actions = append(actions, action)
	}

	return actions, nil
}

// Touch extends a pending action's lifetime: the cache TTL is reset and
// the record's expires_at is rewritten to match.
func (s *PendingActionStore) Touch(ctx context.Context, actionID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	expiresAt := time.Now().UTC().Add(ttl)
	patch := map[string]interface{}{"expires_at": expiresAt.Format(time.RFC3339Nano)}
	if err := s.cache.Update(ctx, actionID, patch, ttl); err != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return &ActionNotFoundError{ActionID: actionID}
	}
	return nil
}

// decodePendingAction converts a cache value (decoded JSON map or raw
// string) into a PendingAction.
func decodePendingAction(value interface{}) (*PendingAction, error) {
	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode cached action: %w", err)
		}
		data = encoded
	}

	var action PendingAction
	if err := json.Unmarshal(data, &action); err != nil {
		return nil, fmt.Errorf("failed to decode cached action: %w", err)
	}
	if action.ActionID == "" {
		return nil, fmt.Errorf("cached action has no action_id")
	}
	return &action, nil
}
