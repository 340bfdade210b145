// Package retrieve scores and orders memories across all three tiers into
// a bounded result set for the chat assistant.
package retrieve

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/quillon/agent-memory/internal/config"
	"github.com/quillon/agent-memory/internal/decay"
	"github.com/quillon/agent-memory/internal/graph"
	"github.com/quillon/agent-memory/internal/model"
	"github.com/quillon/agent-memory/internal/simindex"
	"github.com/quillon/agent-memory/internal/store"
	"github.com/quillon/agent-memory/internal/textutil"
	"github.com/quillon/agent-memory/internal/working"
)

// Tier identifies where a result came from.
type Tier string

const (
	TierWorking     Tier = "working"
	TierShortTerm   Tier = "short_term"
	TierLongTerm    Tier = "long_term"
	TierAssociative Tier = "associative"
)

// Params is one retrieval request.
type Params struct {
	UserID        string
	SessionID     string
	Query         string
	EntityContext map[string]string
	Limit         int
}

// Ranked is one scored result.
type Ranked struct {
	Tier       Tier             `json:"tier"`
	ID         string           `json:"id"`
	Content    string           `json:"content"`
	MemoryType model.MemoryType `json:"memory_type,omitempty"`
	Score      float64          `json:"score"`
	Strength   float64          `json:"strength"` // effective strength or activation
	Relevance  float64          `json:"relevance"`
}

// Result is a bounded, score-ordered retrieval response.
type Result struct {
	Items []Ranked `json:"items"`
}

// Ranker gathers candidates from all tiers, expands one hop through the
// association graph, and ranks by the four required signals.
type Ranker struct {
	store   *store.SQLiteStore
	graph   *graph.Service
	working *working.Manager
	index   *simindex.Index // nil when embeddings are disabled
	cfg     config.Config
	logger  *zap.Logger
}

// NewRanker creates a retrieval ranker. index may be nil.
func NewRanker(s *store.SQLiteStore, g *graph.Service, wm *working.Manager, ix *simindex.Index, cfg config.Config, logger *zap.Logger) *Ranker {
	return &Ranker{store: s, graph: g, working: wm, index: ix, cfg: cfg, logger: logger}
}

type candidate struct {
	tier      Tier
	id        string
	content   string
	memType   model.MemoryType
	relevance float64
	strength  float64 // effective strength/activation
	imp       model.Importance
	recency   time.Time
	penalized bool
	edge      *model.MemoryAssociation // for associative candidates
	workItem  bool
}

// Retrieve runs the full pipeline. Side effects: returned long-term
// memories get a light reinforcement (decay clock reset), returned
// working items get an access, co-occurring edges get a small bump — all
// best-effort, losing one under race only affects ranking quality.
func (r *Ranker) Retrieve(ctx context.Context, p Params) (*Result, error) {
	if p.Limit <= 0 {
		p.Limit = r.cfg.Retrieval.DefaultLimit
	}
	now := time.Now().UTC()
	queryKW := textutil.Keywords(p.Query)

	cands := map[string]*candidate{}

	if err := r.gatherWorking(ctx, p, now, cands); err != nil {
		return nil, err
	}
	longTerm, err := r.gatherLongTerm(ctx, p, now, queryKW, cands)
	if err != nil {
		return nil, err
	}
	if err := r.gatherShortTerm(ctx, p, queryKW, cands); err != nil {
		return nil, err
	}
	if err := r.expand(ctx, p, now, queryKW, longTerm, cands); err != nil {
		return nil, err
	}

	ranked := r.score(cands)
	if len(ranked) > p.Limit {
		ranked = ranked[:p.Limit]
	}

	r.reinforce(ctx, p, ranked, cands, now)

	return &Result{Items: ranked}, nil
}

// gatherWorking collects working-memory items above the eviction
// threshold.
func (r *Ranker) gatherWorking(ctx context.Context, p Params, now time.Time, cands map[string]*candidate) error {
	state, activations, err := r.working.Snapshot(ctx, p.UserID, p.SessionID, now)
	if err != nil {
		return err
	}
	for i, it := range state.Items {
		if activations[i] < r.cfg.Working.EvictionThreshold {
			continue
		}
		cands[it.ID] = &candidate{
			tier:      TierWorking,
			id:        it.ID,
			content:   it.Content,
			relevance: textutil.Similarity(p.Query, it.Content),
			strength:  activations[i],
			imp:       model.ImportanceMedium,
			recency:   it.LastAccessed,
			workItem:  true,
		}
	}
	return nil
}

// gatherLongTerm collects keyword/FTS matches plus entity-context matches
// and returns the direct long-term candidates for graph expansion.
func (r *Ranker) gatherLongTerm(ctx context.Context, p Params, now time.Time, queryKW []string, cands map[string]*candidate) ([]model.LongTermMemory, error) {
	matches, err := r.store.SearchLongTerm(ctx, p.UserID, p.Query, 50)
	if err != nil {
		return nil, err
	}

	// Vector index supplements FTS when embeddings are configured.
	vecSim := map[string]float64{}
	if r.index != nil && p.Query != "" {
		hits, err := r.index.Query(ctx, p.UserID, p.Query, 20)
		if err != nil {
			r.logger.Warn("vector query failed", zap.Error(err))
		}
		seen := map[string]bool{}
		for _, m := range matches {
			seen[m.ID] = true
		}
		for _, h := range hits {
			vecSim[h.ID] = h.Similarity
			if seen[h.ID] {
				continue
			}
			m, err := r.store.GetLongTerm(ctx, h.ID)
			if err != nil {
				continue
			}
			matches = append(matches, *m)
		}
	}

	// Entity-context candidates: memories whose provenance shares an
	// entity id with the request.
	if len(p.EntityContext) > 0 {
		all, err := r.store.ListLongTermByUser(ctx, p.UserID, "", 200)
		if err != nil {
			return nil, err
		}
		for _, m := range all {
			if !entityMatch(p.EntityContext, m.Keywords) {
				continue
			}
			matches = append(matches, m)
		}
	}

	var direct []model.LongTermMemory
	for _, m := range matches {
		if _, ok := cands[m.ID]; ok {
			continue
		}
		rel := textutil.Overlap(queryKW, m.Content)
		if v, ok := vecSim[m.ID]; ok && v > rel {
			rel = v
		}
		cands[m.ID] = &candidate{
			tier:      TierLongTerm,
			id:        m.ID,
			content:   m.Content,
			memType:   m.MemoryType,
			relevance: rel,
			strength:  decay.LongTermStrength(&m, now, r.cfg.Decay),
			imp:       m.Importance,
			recency:   m.LastReinforcedAt,
			penalized: len(m.ContradictedBy) > 0,
		}
		direct = append(direct, m)
	}
	return direct, nil
}

// gatherShortTerm collects the active session's unconsolidated records.
func (r *Ranker) gatherShortTerm(ctx context.Context, p Params, queryKW []string, cands map[string]*candidate) error {
	records, err := r.store.GetByUserAndSession(ctx, p.UserID, p.SessionID)
	if err != nil {
		return err
	}
	for _, m := range records {
		if m.Consolidated() {
			continue
		}
		if _, ok := cands[m.ID]; ok {
			continue
		}
		cands[m.ID] = &candidate{
			tier:      TierShortTerm,
			id:        m.ID,
			content:   m.Content,
			memType:   m.MemoryType,
			relevance: textutil.Overlap(queryKW, m.Content),
			strength:  m.Confidence,
			imp:       m.Importance,
			recency:   m.CreatedAt,
		}
	}
	return nil
}

// expand pulls one-hop neighbors of each direct long-term candidate as
// lower-weighted associative candidates. Contradiction edges penalize
// both endpoints instead of adding candidates.
func (r *Ranker) expand(ctx context.Context, p Params, now time.Time, queryKW []string, direct []model.LongTermMemory, cands map[string]*candidate) error {
	for _, m := range direct {
		neighbors, err := r.graph.Neighbors(ctx, m.ID, "", r.cfg.Retrieval.NeighborMinStrength)
		if err != nil {
			return err
		}
		for _, n := range neighbors {
			if n.Edge.Type == model.AssocContradicts {
				if c, ok := cands[m.ID]; ok {
					c.penalized = true
				}
				if c, ok := cands[n.Memory.ID]; ok {
					c.penalized = true
				}
				continue
			}
			if _, ok := cands[n.Memory.ID]; ok {
				continue
			}
			edge := n.Edge
			cands[n.Memory.ID] = &candidate{
				tier:      TierAssociative,
				id:        n.Memory.ID,
				content:   n.Memory.Content,
				memType:   n.Memory.MemoryType,
				relevance: r.cfg.Retrieval.AssociativeDiscount * textutil.Overlap(queryKW, n.Memory.Content),
				strength:  decay.LongTermStrength(n.Memory, now, r.cfg.Decay) * n.EffectiveStrength,
				imp:       n.Memory.Importance,
				recency:   n.Memory.LastReinforcedAt,
				penalized: len(n.Memory.ContradictedBy) > 0,
				edge:      &edge,
			}
		}
	}
	return nil
}

// score computes the weighted composite and sorts descending.
func (r *Ranker) score(cands map[string]*candidate) []Ranked {
	w := r.cfg.Retrieval
	now := time.Now().UTC()

	out := make([]Ranked, 0, len(cands))
	for _, c := range cands {
		score := w.RelevanceWeight*c.relevance +
			w.StrengthWeight*c.strength +
			w.ImportanceWeight*c.imp.Weight() +
			w.RecencyWeight*decay.RecencyBoost(c.recency, now, w.RecencyHalfLifeHours)
		if c.penalized {
			score *= w.ContradictionPenalty
		}
		out = append(out, Ranked{
			Tier:       c.tier,
			ID:         c.id,
			Content:    c.content,
			MemoryType: c.memType,
			Score:      score,
			Strength:   c.strength,
			Relevance:  c.relevance,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// reinforce applies retrieval side effects: attention reinforces memory.
func (r *Ranker) reinforce(ctx context.Context, p Params, ranked []Ranked, cands map[string]*candidate, now time.Time) {
	for _, res := range ranked {
		c := cands[res.ID]
		switch res.Tier {
		case TierWorking:
			if err := r.working.Access(ctx, p.UserID, p.SessionID, res.ID); err != nil {
				r.logger.Debug("working access failed", zap.String("item", res.ID), zap.Error(err))
			}
		case TierShortTerm:
			if _, err := r.store.GetShortTerm(ctx, res.ID); err != nil {
				r.logger.Debug("short-term touch failed", zap.String("id", res.ID), zap.Error(err))
			}
		case TierLongTerm:
			if err := r.store.ResetReinforcementClock(ctx, res.ID, now); err != nil {
				r.logger.Debug("long-term bump failed", zap.String("id", res.ID), zap.Error(err))
			}
			if err := r.store.TouchLongTerm(ctx, res.ID, now); err != nil {
				r.logger.Debug("long-term touch failed", zap.String("id", res.ID), zap.Error(err))
			}
		case TierAssociative:
			if c.edge != nil {
				r.graph.Reinforce(ctx, *c.edge)
			}
			if err := r.store.TouchLongTerm(ctx, res.ID, now); err != nil {
				r.logger.Debug("associative touch failed", zap.String("id", res.ID), zap.Error(err))
			}
		}
	}
}

// entityMatch reports whether any entity id from the request appears in a
// memory's keyword set.
func entityMatch(entityCtx map[string]string, keywords []string) bool {
	for _, v := range entityCtx {
		norm := textutil.Normalize(v)
		for _, kw := range keywords {
			if kw == norm {
				return true
			}
		}
	}
	return false
}
