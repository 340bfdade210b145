package store

import (
	"context"
	"testing"
	"time"

	"github.com/quillon/agent-memory/internal/model"
)

func TestEnsureWorkingStateIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.EnsureWorkingState(ctx, "u1", "s1", 5); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	// Second call with a different capacity must not overwrite.
	if err := s.EnsureWorkingState(ctx, "u1", "s1", 9); err != nil {
		t.Fatalf("repeat ensure: %v", err)
	}

	state, err := s.GetWorkingState(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if state.Capacity != 5 {
		t.Errorf("capacity = %d, want 5", state.Capacity)
	}
}

func TestGetWorkingStateUnknownSession(t *testing.T) {
	s := newTestStore(t)

	state, err := s.GetWorkingState(context.Background(), "u1", "never-seen")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if state.Capacity != model.DefaultCapacity {
		t.Errorf("capacity = %d, want default %d", state.Capacity, model.DefaultCapacity)
	}
	if len(state.Items) != 0 {
		t.Errorf("items = %+v, want empty", state.Items)
	}
}

func TestInsertAndAccessWorkingItem(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.EnsureWorkingState(ctx, "u1", "s1", 7)

	it := &model.WorkingMemoryItem{
		Content:    "current task: review contract",
		Type:       model.ItemTask,
		Activation: 1.0,
	}
	if err := s.InsertWorkingItem(ctx, "u1", "s1", it); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if it.ID == "" {
		t.Fatal("expected assigned ID")
	}

	if err := s.AccessWorkingItem(ctx, it.ID, time.Now()); err != nil {
		t.Fatalf("access: %v", err)
	}

	state, _ := s.GetWorkingState(ctx, "u1", "s1")
	if len(state.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(state.Items))
	}
	if state.Items[0].AccessCount != 1 {
		t.Errorf("access_count = %d, want 1", state.Items[0].AccessCount)
	}
	if state.Items[0].Activation != 1.0 {
		t.Errorf("activation = %v, want 1.0", state.Items[0].Activation)
	}

	if err := s.AccessWorkingItem(ctx, "missing", time.Now()); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteWorkingItem(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.EnsureWorkingState(ctx, "u1", "s1", 7)

	it := &model.WorkingMemoryItem{Content: "x", Type: model.ItemConcept, Activation: 1.0}
	s.InsertWorkingItem(ctx, "u1", "s1", it)

	if err := s.DeleteWorkingItem(ctx, it.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	state, _ := s.GetWorkingState(ctx, "u1", "s1")
	if len(state.Items) != 0 {
		t.Errorf("items after delete = %+v", state.Items)
	}
}

func TestSetFocus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.EnsureWorkingState(ctx, "u1", "s1", 7)

	it := &model.WorkingMemoryItem{Content: "x", Type: model.ItemContext, Activation: 1.0}
	s.InsertWorkingItem(ctx, "u1", "s1", it)

	if err := s.SetFocus(ctx, "u1", "s1", it.ID); err != nil {
		t.Fatalf("set focus: %v", err)
	}
	state, _ := s.GetWorkingState(ctx, "u1", "s1")
	if state.FocusItem != it.ID {
		t.Errorf("focus = %q, want %q", state.FocusItem, it.ID)
	}

	if err := s.SetFocus(ctx, "u1", "s1", "missing"); err != ErrNotFound {
		t.Errorf("focus on absent item: expected ErrNotFound, got %v", err)
	}
}
