// Package graph maintains the typed, weighted association edges between
// long-term memories and the one-hop traversal the retrieval ranker uses.
package graph

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quillon/agent-memory/internal/config"
	"github.com/quillon/agent-memory/internal/decay"
	"github.com/quillon/agent-memory/internal/model"
	"github.com/quillon/agent-memory/internal/store"
)

// ErrSelfAssociation is returned for edges where from == to. The graph
// never contains self-loops.
var ErrSelfAssociation = errors.New("association endpoints must differ")

// Service operates the association graph.
type Service struct {
	store  *store.SQLiteStore
	cfg    config.Config
	logger *zap.Logger
}

// Neighbor is one traversal result: the connected memory, the edge, and
// the edge's effective (decayed) strength at query time.
type Neighbor struct {
	Memory            *model.LongTermMemory
	Edge              model.MemoryAssociation
	EffectiveStrength float64
}

// NewService creates a graph service.
func NewService(s *store.SQLiteStore, cfg config.Config, logger *zap.Logger) *Service {
	return &Service{store: s, cfg: cfg, logger: logger}
}

// AddOrReinforce creates an edge or, if the exact (from, to, type) edge
// exists, raises its strength toward 1.0 and resets its decay clock.
func (g *Service) AddOrReinforce(ctx context.Context, fromID, toID string, t model.AssociationType) error {
	if fromID == toID {
		return ErrSelfAssociation
	}
	if !model.ValidAssociationTypes[t] {
		return fmt.Errorf("invalid association type %q", t)
	}

	now := time.Now().UTC()
	err := g.store.BumpAssociation(ctx, fromID, toID, t, g.cfg.Graph.ReinforceStep, now)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	return g.store.InsertAssociation(ctx, &model.MemoryAssociation{
		FromID:           fromID,
		ToID:             toID,
		Type:             t,
		Strength:         g.cfg.Graph.InitialStrength,
		Confidence:       0.5,
		CreatedAt:        now,
		LastReinforcedAt: now,
	})
}

// Reinforce applies a retrieval-time co-occurrence bump: smaller than an
// explicit AddOrReinforce, same clock reset. Best-effort.
func (g *Service) Reinforce(ctx context.Context, edge model.MemoryAssociation) {
	err := g.store.BumpAssociation(ctx, edge.FromID, edge.ToID, edge.Type, g.cfg.Graph.RetrievalStep, time.Now().UTC())
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		g.logger.Warn("association bump failed",
			zap.String("from", edge.FromID), zap.String("to", edge.ToID), zap.Error(err))
	}
}

// Neighbors returns memories connected to memoryID (either direction)
// whose effective edge strength is at least minStrength. Pass an empty
// type to traverse all edge types. Contradiction edges are always
// included regardless of the floor: they carry a ranking signal and are
// never silently dropped.
func (g *Service) Neighbors(ctx context.Context, memoryID string, t model.AssociationType, minStrength float64) ([]Neighbor, error) {
	outgoing, err := g.store.LinksFrom(ctx, memoryID, t)
	if err != nil {
		return nil, err
	}
	incoming, err := g.store.LinksTo(ctx, memoryID, t)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var out []Neighbor
	for _, edge := range append(outgoing, incoming...) {
		otherID := edge.ToID
		if otherID == memoryID {
			otherID = edge.FromID
		}

		eff := decay.AssociationStrength(&edge, now, g.cfg.Decay)
		if eff < minStrength && edge.Type != model.AssocContradicts {
			continue
		}

		mem, err := g.store.GetLongTerm(ctx, otherID)
		if errors.Is(err, store.ErrNotFound) {
			continue // dangling edge, endpoint pruned
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Neighbor{Memory: mem, Edge: edge, EffectiveStrength: eff})
	}
	return out, nil
}

// Contradict records a contradiction structurally: a contradicts edge in
// each direction plus contradicted_by back-references on both endpoints.
// Contradictions are never auto-resolved; the ranker turns them into a
// confidence penalty.
func (g *Service) Contradict(ctx context.Context, aID, bID string) error {
	if err := g.AddOrReinforce(ctx, aID, bID, model.AssocContradicts); err != nil {
		return err
	}
	if err := g.AddOrReinforce(ctx, bID, aID, model.AssocContradicts); err != nil {
		return err
	}
	if err := g.store.AddContradiction(ctx, aID, bID); err != nil {
		return err
	}
	return g.store.AddContradiction(ctx, bID, aID)
}
