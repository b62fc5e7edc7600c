package confirmation

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/agentgate/agentgate/cache"
)

// =============================================================================
// PendingActionStore Unit Tests
// =============================================================================

// newTestStore creates a store over an in-memory provider with the
// confirmation namespace.
func newTestStore(t *testing.T, opts ...PendingActionStoreOption) (*PendingActionStore, cache.Provider) {
	t.Helper()

	provider := cache.NewMemoryProvider(cache.WithMemoryNamespace(Namespace))
	return NewPendingActionStore(provider, opts...), provider
}

func testStoreInput(userID string) StoreInput {
	return StoreInput{
		UserID:      userID,
		SessionID:   "sess-1",
		Integration: "jira",
		ToolName:    "create_jira_issue",
		ActionType:  ActionCreate,
		RiskLevel:   RiskMedium,
		Parameters:  map[string]interface{}{"project": "PROJ", "summary": "Fix login bug"},
	}
}

// -----------------------------------------------------------------------------
// Action ID Tests
// -----------------------------------------------------------------------------

func TestStore_ActionIDFormat(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	pattern := regexp.MustCompile(`^action_[0-9a-f]{12}$`)
	seen := make(map[string]bool)

	for i := 0; i < 50; i++ {
		action, err := store.Store(ctx, testStoreInput("alice"))
		if err != nil {
			t.Fatalf("Store() error = %v", err)
		}
		if !pattern.MatchString(action.ActionID) {
			t.Fatalf("ActionID %q does not match action_<12 lowercase hex>", action.ActionID)
		}
		if seen[action.ActionID] {
			t.Fatalf("ActionID %q generated twice", action.ActionID)
		}
		seen[action.ActionID] = true
	}
}

// -----------------------------------------------------------------------------
// Store / Get Tests
// -----------------------------------------------------------------------------

func TestStore_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	before := time.Now().UTC()
	action, err := store.Store(ctx, testStoreInput("alice"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := store.Get(ctx, action.ActionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if got.ActionID != action.ActionID {
		t.Errorf("ActionID = %q, want %q", got.ActionID, action.ActionID)
	}
	if got.UserID != "alice" || got.SessionID != "sess-1" {
		t.Errorf("Ownership fields = (%q, %q)", got.UserID, got.SessionID)
	}
	if got.Integration != "jira" || got.ToolName != "create_jira_issue" {
		t.Errorf("Tool binding = (%q, %q)", got.Integration, got.ToolName)
	}
	if got.ActionType != ActionCreate || got.RiskLevel != RiskMedium {
		t.Errorf("Classification = (%q, %q)", got.ActionType, got.RiskLevel)
	}
	if got.Parameters["project"] != "PROJ" {
		t.Errorf("Parameters = %v", got.Parameters)
	}
	if got.CreatedAt.Before(before.Add(-time.Second)) {
		t.Errorf("CreatedAt = %v, unexpectedly old", got.CreatedAt)
	}
	wantExpiry := got.CreatedAt.Add(DefaultTTL)
	if !got.ExpiresAt.Equal(wantExpiry) {
		t.Errorf("ExpiresAt = %v, want CreatedAt+%v", got.ExpiresAt, DefaultTTL)
	}
}

func TestStore_Get_Missing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "action_000000000000")
	if !IsInvalidAction(err) {
		t.Errorf("Get(missing) error = %v, want InvalidAction", err)
	}
}

func TestStore_Get_ExpiredRecordIsDeleted(t *testing.T) {
	store, provider := newTestStore(t)
	ctx := context.Background()

	// A record whose expires_at has passed but whose cache entry is still
	// present (clock skew window).
	stale := &PendingAction{
		ActionID:  "action_aaaaaaaaaaaa",
		UserID:    "alice",
		ToolName:  "create_jira_issue",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		ExpiresAt: time.Now().UTC().Add(-30 * time.Minute),
	}
	if err := provider.Set(ctx, stale.ActionID, stale, nil); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	_, err := store.Get(ctx, stale.ActionID)
	if !IsInvalidAction(err) {
		t.Errorf("Get(expired) error = %v, want InvalidAction", err)
	}

	value, err := provider.Get(ctx, stale.ActionID)
	if err != nil {
		t.Fatalf("provider Get() error = %v", err)
	}
	if value != nil {
		t.Error("Expired record was not deleted lazily")
	}
}

func TestStore_CustomTTL(t *testing.T) {
	store, _ := newTestStore(t, WithStoreTTL(30*time.Second))
	ctx := context.Background()

	action, err := store.Store(ctx, testStoreInput("alice"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if got := action.ExpiresAt.Sub(action.CreatedAt); got != 30*time.Second {
		t.Errorf("TTL = %v, want 30s", got)
	}
	if store.TTL() != 30*time.Second {
		t.Errorf("TTL() = %v, want 30s", store.TTL())
	}
}

func TestStore_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()

	// Two stores over one Redis backend, separated only by namespace.
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	providerA, err := cache.NewRedisProvider(cache.WithRedisClient(client), cache.WithNamespace(Namespace))
	if err != nil {
		t.Fatalf("NewRedisProvider() error = %v", err)
	}
	providerB, err := cache.NewRedisProvider(cache.WithRedisClient(client), cache.WithNamespace("other"))
	if err != nil {
		t.Fatalf("NewRedisProvider() error = %v", err)
	}
	storeA := NewPendingActionStore(providerA)
	storeB := NewPendingActionStore(providerB)

	action, err := storeA.Store(ctx, testStoreInput("alice"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if _, err := storeB.Get(ctx, action.ActionID); !IsInvalidAction(err) {
		t.Errorf("Get() across namespaces error = %v, want InvalidAction", err)
	}
	actions, err := storeB.GetByUser(ctx, "alice", "")
	if err != nil {
		t.Fatalf("GetByUser() error = %v", err)
	}
	if len(actions) != 0 {
		t.Errorf("GetByUser() across namespaces returned %d actions, want 0", len(actions))
	}
}

// -----------------------------------------------------------------------------
// Delete Tests
// -----------------------------------------------------------------------------

func TestStore_Delete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	action, err := store.Store(ctx, testStoreInput("alice"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	deleted, err := store.Delete(ctx, action.ActionID)
	if err != nil || !deleted {
		t.Errorf("Delete() = (%v, %v), want (true, nil)", deleted, err)
	}

	deleted, err = store.Delete(ctx, action.ActionID)
	if err != nil || deleted {
		t.Errorf("Delete() second call = (%v, %v), want (false, nil)", deleted, err)
	}

	if _, err := store.Get(ctx, action.ActionID); !IsInvalidAction(err) {
		t.Errorf("Get() after delete error = %v, want InvalidAction", err)
	}
}

// -----------------------------------------------------------------------------
// GetByUser Tests
// -----------------------------------------------------------------------------

func TestStore_GetByUser(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	in1 := testStoreInput("alice")
	in1.SessionID = "sess-1"
	in2 := testStoreInput("alice")
	in2.SessionID = "sess-1"
	in3 := testStoreInput("alice")
	in3.SessionID = "sess-2"
	for _, in := range []StoreInput{in1, in2, in3} {
		if _, err := store.Store(ctx, in); err != nil {
			t.Fatalf("Store() error = %v", err)
		}
	}
	if _, err := store.Store(ctx, testStoreInput("bob")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	all, err := store.GetByUser(ctx, "alice", "")
	if err != nil {
		t.Fatalf("GetByUser() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("GetByUser(alice) returned %d actions, want 3", len(all))
	}
	for _, action := range all {
		if action.UserID != "alice" {
			t.Errorf("GetByUser(alice) returned action owned by %q", action.UserID)
		}
	}

	filtered, err := store.GetByUser(ctx, "alice", "sess-2")
	if err != nil {
		t.Fatalf("GetByUser() error = %v", err)
	}
	if len(filtered) != 1 {
		t.Errorf("GetByUser(alice, sess-2) returned %d actions, want 1", len(filtered))
	}

	none, err := store.GetByUser(ctx, "carol", "")
	if err != nil {
		t.Fatalf("GetByUser() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("GetByUser(carol) returned %d actions, want 0", len(none))
	}
}

func TestStore_GetByUser_OmitsExpired(t *testing.T) {
	store, provider := newTestStore(t)
	ctx := context.Background()

	live, err := store.Store(ctx, testStoreInput("alice"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	stale := &PendingAction{
		ActionID:  "action_bbbbbbbbbbbb",
		UserID:    "alice",
		ToolName:  "send_email",
		CreatedAt: time.Now().UTC().Add(-time.Hour),
		ExpiresAt: time.Now().UTC().Add(-30 * time.Minute),
	}
	opts := &cache.SetOptions{Indexes: map[string]string{UserActionsIndex: "alice"}}
	if err := provider.Set(ctx, stale.ActionID, stale, opts); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	actions, err := store.GetByUser(ctx, "alice", "")
	if err != nil {
		t.Fatalf("GetByUser() error = %v", err)
	}
	if len(actions) != 1 || actions[0].ActionID != live.ActionID {
		t.Errorf("GetByUser() = %v, want only the live action", actions)
	}
}

// -----------------------------------------------------------------------------
// Touch Tests
// -----------------------------------------------------------------------------

func TestStore_Touch_ExtendsExpiry(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	action, err := store.Store(ctx, testStoreInput("alice"))
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if err := store.Touch(ctx, action.ActionID, time.Hour); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	got, err := store.Get(ctx, action.ActionID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.ExpiresAt.After(action.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want later than %v", got.ExpiresAt, action.ExpiresAt)
	}
}

func TestStore_Touch_Missing(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.Touch(context.Background(), "action_000000000000", time.Hour)
	if !IsInvalidAction(err) {
		t.Errorf("Touch(missing) error = %v, want InvalidAction", err)
	}
}
