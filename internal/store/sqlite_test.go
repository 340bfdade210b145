package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/quillon/agent-memory/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func putTestShortTerm(t *testing.T, s *SQLiteStore, p PutShortTermParams) *model.ShortTermMemory {
	t.Helper()
	if p.MemoryType == "" {
		p.MemoryType = model.TypeDomainKnowledge
	}
	if p.Confidence == 0 {
		p.Confidence = 0.7
	}
	m, err := s.PutShortTerm(context.Background(), p)
	if err != nil {
		t.Fatalf("put short-term: %v", err)
	}
	return m
}

func TestPutAndGetShortTerm(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := putTestShortTerm(t, s, PutShortTermParams{
		UserID:     "u1",
		SessionID:  "s1",
		Content:    "vendor X requires 30-day notice",
		Importance: model.ImportanceMedium,
		Context:    map[string]string{"vendor": "v-7"},
	})
	if mem.ID == "" {
		t.Fatal("expected non-empty ID")
	}

	got, err := s.GetShortTerm(ctx, mem.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "vendor X requires 30-day notice" {
		t.Errorf("content = %q", got.Content)
	}
	if got.Context["vendor"] != "v-7" {
		t.Errorf("context = %v", got.Context)
	}

	// Access telemetry incremented by the read; verify with a second get.
	got2, _ := s.GetShortTerm(ctx, mem.ID)
	if got2.AccessCount != 1 {
		t.Errorf("access_count = %d, want 1", got2.AccessCount)
	}
	if got2.LastAccessedAt == nil {
		t.Error("last_accessed_at not set")
	}
}

func TestGetShortTermNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetShortTerm(context.Background(), "missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPutShortTermValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.PutShortTerm(ctx, PutShortTermParams{
		UserID: "u1", SessionID: "s1", MemoryType: "bogus", Content: "x",
	})
	if err == nil {
		t.Error("expected error for invalid memory type")
	}

	_, err = s.PutShortTerm(ctx, PutShortTermParams{
		UserID: "u1", SessionID: "s1", MemoryType: model.TypeFeedback, Content: "   ",
	})
	if err == nil {
		t.Error("expected error for empty content")
	}
}

func TestGetByUserAndSession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	putTestShortTerm(t, s, PutShortTermParams{UserID: "u1", SessionID: "s1", Content: "one"})
	putTestShortTerm(t, s, PutShortTermParams{UserID: "u1", SessionID: "s1", Content: "two"})
	putTestShortTerm(t, s, PutShortTermParams{UserID: "u1", SessionID: "s2", Content: "other session"})
	putTestShortTerm(t, s, PutShortTermParams{UserID: "u2", SessionID: "s1", Content: "other user"})

	got, err := s.GetByUserAndSession(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 records, got %d", len(got))
	}
}

func TestGetByTypeAndImportance(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	putTestShortTerm(t, s, PutShortTermParams{
		UserID: "u1", SessionID: "s1", Content: "pref",
		MemoryType: model.TypeUserPreference, Importance: model.ImportanceHigh,
	})
	putTestShortTerm(t, s, PutShortTermParams{
		UserID: "u1", SessionID: "s1", Content: "fact",
		MemoryType: model.TypeDomainKnowledge, Importance: model.ImportanceHigh,
	})

	got, err := s.GetByTypeAndImportance(ctx, "u1", model.TypeUserPreference, model.ImportanceHigh)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || got[0].Content != "pref" {
		t.Errorf("unexpected results: %+v", got)
	}
}

func TestExpiryFiltersAndPurge(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	putTestShortTerm(t, s, PutShortTermParams{
		UserID: "u1", SessionID: "s1", Content: "expired", ExpiresAt: &past,
	})
	putTestShortTerm(t, s, PutShortTermParams{
		UserID: "u1", SessionID: "s1", Content: "alive", ExpiresAt: &future,
	})

	// Expired records are invisible to session queries.
	live, _ := s.GetByUserAndSession(ctx, "u1", "s1")
	if len(live) != 1 || live[0].Content != "alive" {
		t.Errorf("expected only the live record, got %+v", live)
	}

	expired, _ := s.GetExpired(ctx, time.Now())
	if len(expired) != 1 || expired[0].Content != "expired" {
		t.Errorf("expected 1 expired record, got %+v", expired)
	}

	n, err := s.PurgeExpired(ctx, time.Now())
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
}

func TestEligibleForConsolidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	eligible := putTestShortTerm(t, s, PutShortTermParams{
		UserID: "u1", SessionID: "s1", Content: "flagged medium",
		Importance: model.ImportanceMedium, ShouldConsolidate: true,
	})
	putTestShortTerm(t, s, PutShortTermParams{
		UserID: "u1", SessionID: "s1", Content: "not flagged",
		Importance: model.ImportanceMedium,
	})
	lowUnused := putTestShortTerm(t, s, PutShortTermParams{
		UserID: "u1", SessionID: "s1", Content: "flagged low",
		Importance: model.ImportanceLow, ShouldConsolidate: true,
	})

	got, err := s.GetEligibleForConsolidation(ctx, "u1", "s1", 3)
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(got) != 1 || got[0].ID != eligible.ID {
		t.Fatalf("expected only the flagged medium record, got %+v", got)
	}

	// A reused low-importance record becomes eligible.
	for i := 0; i < 3; i++ {
		s.GetShortTerm(ctx, lowUnused.ID)
	}
	got, _ = s.GetEligibleForConsolidation(ctx, "u1", "s1", 3)
	if len(got) != 2 {
		t.Errorf("expected reused low record to be eligible, got %d records", len(got))
	}
}

func TestMarkConsolidatedExcludesFromEligible(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mem := putTestShortTerm(t, s, PutShortTermParams{
		UserID: "u1", SessionID: "s1", Content: "to promote",
		Importance: model.ImportanceMedium, ShouldConsolidate: true,
	})

	if err := s.MarkConsolidated(ctx, []string{mem.ID}, time.Now()); err != nil {
		t.Fatalf("mark: %v", err)
	}

	got, _ := s.GetEligibleForConsolidation(ctx, "u1", "s1", 3)
	if len(got) != 0 {
		t.Errorf("consolidated record still eligible: %+v", got)
	}

	stored, _ := s.GetShortTerm(ctx, mem.ID)
	if !stored.Consolidated() {
		t.Error("consolidated_at not set")
	}
	if !stored.IsProcessed {
		t.Error("is_processed not set")
	}
}
