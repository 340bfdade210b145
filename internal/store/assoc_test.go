package store

import (
	"context"
	"testing"
	"time"

	"github.com/quillon/agent-memory/internal/model"
)

func TestInsertAndGetAssociation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := insertTestLongTerm(t, s, &model.LongTermMemory{Content: "vendor X contract"})
	b := insertTestLongTerm(t, s, &model.LongTermMemory{Content: "vendor X billing contact"})

	edge := &model.MemoryAssociation{
		FromID: a.ID, ToID: b.ID, Type: model.AssocRelated,
		Strength: 0.3, Confidence: 0.8,
	}
	if err := s.InsertAssociation(ctx, edge); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetAssociation(ctx, a.ID, b.ID, model.AssocRelated)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Strength != 0.3 || got.Confidence != 0.8 {
		t.Errorf("edge = %+v", got)
	}
}

func TestInsertAssociationRejectsSelfLoop(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := insertTestLongTerm(t, s, &model.LongTermMemory{Content: "x"})
	err := s.InsertAssociation(ctx, &model.MemoryAssociation{
		FromID: a.ID, ToID: a.ID, Type: model.AssocRelated, Strength: 0.3,
	})
	if err == nil {
		t.Fatal("self-loop edge accepted")
	}
}

func TestBumpAssociation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := insertTestLongTerm(t, s, &model.LongTermMemory{Content: "a"})
	b := insertTestLongTerm(t, s, &model.LongTermMemory{Content: "b"})
	s.InsertAssociation(ctx, &model.MemoryAssociation{
		FromID: a.ID, ToID: b.ID, Type: model.AssocRelated, Strength: 0.95,
	})

	if err := s.BumpAssociation(ctx, a.ID, b.ID, model.AssocRelated, 0.1, time.Now()); err != nil {
		t.Fatalf("bump: %v", err)
	}
	got, _ := s.GetAssociation(ctx, a.ID, b.ID, model.AssocRelated)
	if got.Strength != 1.0 {
		t.Errorf("strength = %v, want clamp at 1.0", got.Strength)
	}

	err := s.BumpAssociation(ctx, a.ID, b.ID, model.AssocCausal, 0.1, time.Now())
	if err != ErrNotFound {
		t.Errorf("bump of absent edge: expected ErrNotFound, got %v", err)
	}
}

func TestLinksFromAndTo(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := insertTestLongTerm(t, s, &model.LongTermMemory{Content: "a"})
	b := insertTestLongTerm(t, s, &model.LongTermMemory{Content: "b"})
	c := insertTestLongTerm(t, s, &model.LongTermMemory{Content: "c"})

	s.InsertAssociation(ctx, &model.MemoryAssociation{FromID: a.ID, ToID: b.ID, Type: model.AssocRelated, Strength: 0.3})
	s.InsertAssociation(ctx, &model.MemoryAssociation{FromID: a.ID, ToID: c.ID, Type: model.AssocContradicts, Strength: 0.3})
	s.InsertAssociation(ctx, &model.MemoryAssociation{FromID: b.ID, ToID: a.ID, Type: model.AssocRelated, Strength: 0.3})

	out, err := s.LinksFrom(ctx, a.ID, "")
	if err != nil {
		t.Fatalf("links from: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("outgoing edges = %d, want 2", len(out))
	}

	typed, _ := s.LinksFrom(ctx, a.ID, model.AssocContradicts)
	if len(typed) != 1 || typed[0].ToID != c.ID {
		t.Errorf("typed filter = %+v", typed)
	}

	in, _ := s.LinksTo(ctx, a.ID, "")
	if len(in) != 1 || in[0].FromID != b.ID {
		t.Errorf("incoming edges = %+v", in)
	}
}
