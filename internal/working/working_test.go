package working

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/quillon/agent-memory/internal/config"
	"github.com/quillon/agent-memory/internal/model"
	"github.com/quillon/agent-memory/internal/store"
)

func newTestManager(t *testing.T, capacity int) (*Manager, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := config.Default()
	cfg.Working.Capacity = capacity
	return NewManager(s, cfg, zap.NewNop()), s
}

func TestInsertRespectsCapacity(t *testing.T) {
	ctx := context.Background()
	m, s := newTestManager(t, 3)

	for i := 0; i < 10; i++ {
		err := m.Insert(ctx, "u1", "s1", &model.WorkingMemoryItem{
			Content: fmt.Sprintf("item %d", i),
			Type:    model.ItemConcept,
		})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}

		state, err := s.GetWorkingState(ctx, "u1", "s1")
		if err != nil {
			t.Fatalf("state: %v", err)
		}
		if len(state.Items) > state.Capacity {
			t.Fatalf("after insert %d: %d items exceed capacity %d", i, len(state.Items), state.Capacity)
		}
	}
}

func TestEvictionPicksLowestActivation(t *testing.T) {
	ctx := context.Background()
	m, s := newTestManager(t, 3)

	if err := s.EnsureWorkingState(ctx, "u1", "s1", 3); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	// Seed three items with distinct activations directly, bypassing the
	// manager's activation reset.
	now := time.Now().UTC()
	var ids [3]string
	for i, act := range []float64{0.9, 0.2, 0.5} {
		it := &model.WorkingMemoryItem{
			Content:      fmt.Sprintf("seed %d", i),
			Type:         model.ItemConcept,
			Activation:   act,
			LastAccessed: now,
		}
		if err := s.InsertWorkingItem(ctx, "u1", "s1", it); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
		ids[i] = it.ID
	}

	err := m.Insert(ctx, "u1", "s1", &model.WorkingMemoryItem{
		Content: "fourth", Type: model.ItemConcept,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	state, _ := s.GetWorkingState(ctx, "u1", "s1")
	if len(state.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(state.Items))
	}
	for _, it := range state.Items {
		if it.ID == ids[1] {
			t.Error("lowest-activation item survived eviction")
		}
	}
}

func TestEvictionTieBreaksOnOldestAccess(t *testing.T) {
	m, _ := newTestManager(t, 3)
	now := time.Now().UTC()

	// Both items carry the same stored activation and their last access is
	// not in the past relative to the evaluation time, so their effective
	// activations are identical; the one accessed longer ago loses.
	older := model.WorkingMemoryItem{ID: "older", Activation: 0.8, LastAccessed: now}
	newer := model.WorkingMemoryItem{ID: "newer", Activation: 0.8, LastAccessed: now.Add(time.Minute)}

	if v := m.weakest([]model.WorkingMemoryItem{newer, older}, now); v.ID != "older" {
		t.Errorf("victim = %q, want the oldest-accessed item", v.ID)
	}
	if v := m.weakest([]model.WorkingMemoryItem{older, newer}, now); v.ID != "older" {
		t.Errorf("victim = %q, want the oldest-accessed item regardless of order", v.ID)
	}
}

func TestAccessResetsActivation(t *testing.T) {
	ctx := context.Background()
	m, s := newTestManager(t, 7)

	it := &model.WorkingMemoryItem{Content: "x", Type: model.ItemTask}
	if err := m.Insert(ctx, "u1", "s1", it); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.Access(ctx, "u1", "s1", it.ID); err != nil {
		t.Fatalf("access: %v", err)
	}

	state, _ := s.GetWorkingState(ctx, "u1", "s1")
	if state.Items[0].Activation != 1.0 {
		t.Errorf("activation = %v, want 1.0", state.Items[0].Activation)
	}
	if state.Items[0].AccessCount != 1 {
		t.Errorf("access_count = %d, want 1", state.Items[0].AccessCount)
	}
}

func TestAccessMissingItem(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, 7)

	if err := m.Access(ctx, "u1", "s1", "missing"); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetFocusAndSnapshot(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t, 7)

	it := &model.WorkingMemoryItem{Content: "x", Type: model.ItemEntity}
	if err := m.Insert(ctx, "u1", "s1", it); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.SetFocus(ctx, "u1", "s1", it.ID); err != nil {
		t.Fatalf("focus: %v", err)
	}

	state, acts, err := m.Snapshot(ctx, "u1", "s1", time.Now())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if state.FocusItem != it.ID {
		t.Errorf("focus = %q, want %q", state.FocusItem, it.ID)
	}
	if len(acts) != 1 || acts[0] <= 0 || acts[0] > 1.0 {
		t.Errorf("activations = %v", acts)
	}
}
