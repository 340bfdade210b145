package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/quillon/agent-memory/internal/classify"
	"github.com/quillon/agent-memory/internal/config"
	"github.com/quillon/agent-memory/internal/model"
	"github.com/quillon/agent-memory/internal/retrieve"
	"github.com/quillon/agent-memory/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	e, err := New(s, nil, config.Default(), zap.NewNop())
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	return e, s
}

func TestRecordTurnStoresMemoryAndWorkingItem(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	res := e.RecordTurn(ctx, "u1", "", "s1",
		"vendor X requires 30-day notice before termination", "", nil)
	if res.Memory == nil {
		t.Fatal("turn stored no memory")
	}
	if res.Memory.MemoryType != model.TypeDomainKnowledge {
		t.Errorf("memory type = %q", res.Memory.MemoryType)
	}
	if !res.Memory.ShouldConsolidate {
		t.Error("domain knowledge not flagged for consolidation")
	}
	if res.WorkingItem == "" {
		t.Error("no working item mirrored")
	}

	state, _ := s.GetWorkingState(ctx, "u1", "s1")
	if len(state.Items) != 1 {
		t.Errorf("working items = %d, want 1", len(state.Items))
	}
}

func TestRecordTurnMintsSession(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	res := e.RecordTurn(ctx, "u1", "", "", "I prefer summaries as bullet points", "", nil)
	if res.SessionID == "" {
		t.Fatal("no session minted")
	}
	if res.Memory == nil || res.Memory.SessionID != res.SessionID {
		t.Errorf("memory not threaded onto minted session: %+v", res.Memory)
	}
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string, string, map[string]string) (classify.Result, error) {
	return classify.Result{}, errors.New("model unavailable")
}

func TestRecordTurnSwallowsClassifierFailure(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	e, err := New(s, failingClassifier{}, config.Default(), zap.NewNop())
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}

	res := e.RecordTurn(ctx, "u1", "", "s1", "anything", "", nil)
	if res == nil || res.SessionID != "s1" {
		t.Fatalf("turn result = %+v", res)
	}
	if res.Memory != nil {
		t.Error("memory stored despite classifier failure")
	}
}

func TestTurnToRetrievalRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	res := e.RecordTurn(ctx, "u1", "", "s1",
		"vendor X requires 30-day notice before termination", "", nil)
	if res.Memory == nil {
		t.Fatal("turn stored no memory")
	}

	job, err := e.TriggerConsolidation(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("consolidation: %v", err)
	}
	if job.Status != model.JobCompleted || len(job.OutputIDs) != 1 {
		t.Fatalf("job = %+v", job)
	}

	got, err := e.Retrieve(ctx, retrieve.Params{
		UserID: "u1", SessionID: "s1", Query: "termination notice",
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	found := false
	for _, it := range got.Items {
		if it.ID == job.OutputIDs[0] && it.Tier == retrieve.TierLongTerm {
			found = true
		}
	}
	if !found {
		t.Errorf("promoted memory missing from retrieval: %+v", got.Items)
	}
}

func TestReinforceIncrementsAndMissingIsRecoverable(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	m := &model.LongTermMemory{
		UserID: "u1", MemoryType: model.TypeDomainKnowledge,
		Content: "fact", Importance: model.ImportanceMedium,
		Strength: 0.4, DecayRate: 0.01,
	}
	if err := s.InsertLongTerm(ctx, m); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := e.Reinforce(ctx, m.ID); err != nil {
		t.Fatalf("reinforce: %v", err)
	}
	got, _ := s.GetLongTerm(ctx, m.ID)
	if got.ReinforcementCount != 2 {
		t.Errorf("reinforcement_count = %d, want 2", got.ReinforcementCount)
	}
	if got.Strength <= 0.4 {
		t.Errorf("strength = %v, want raised plateau", got.Strength)
	}

	err := e.Reinforce(ctx, "missing")
	if !IsNotFound(err) {
		t.Errorf("expected recoverable not-found, got %v", err)
	}
}

func TestContradictRejectsSelf(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.Contradict(context.Background(), "same", "same"); err == nil {
		t.Error("self contradiction accepted")
	}
}
