// Package consolidate implements the promotion path of the tiered memory:
// eligible short-term records are clustered by content similarity and
// either merged into an existing long-term memory (reinforcement) or
// distilled into a new one, with related memories linked in the
// association graph.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quillon/agent-memory/internal/config"
	"github.com/quillon/agent-memory/internal/decay"
	"github.com/quillon/agent-memory/internal/graph"
	"github.com/quillon/agent-memory/internal/model"
	"github.com/quillon/agent-memory/internal/store"
	"github.com/quillon/agent-memory/internal/textutil"
)

// Engine runs consolidation jobs. At most one job is in flight per
// (user, session): a trigger while one is processing coalesces into the
// running job instead of racing its duplicate detection.
type Engine struct {
	store  *store.SQLiteStore
	graph  *graph.Service
	cfg    config.Config
	logger *zap.Logger

	mu       sync.Mutex
	inflight map[string]string // session key -> job id

	// testHookRunning, if non-nil, is called after a job transitions to
	// processing and before the promotion pass runs.
	testHookRunning func()
}

// NewEngine creates a consolidation engine.
func NewEngine(s *store.SQLiteStore, g *graph.Service, cfg config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		store:    s,
		graph:    g,
		cfg:      cfg,
		logger:   logger,
		inflight: make(map[string]string),
	}
}

// Trigger runs a consolidation job for the session and returns the job
// record. If a job is already in flight for the session, that job is
// returned unchanged (coalesced no-op). The run is bounded by the
// configured job timeout; on expiry the job is marked failed rather than
// left processing, since a stuck processing job would block coalescing
// forever.
func (e *Engine) Trigger(ctx context.Context, userID, sessionID string) (*model.ConsolidationJob, error) {
	key := userID + "/" + sessionID

	e.mu.Lock()
	if jobID, ok := e.inflight[key]; ok {
		e.mu.Unlock()
		e.logger.Debug("consolidation coalesced", zap.String("session", key), zap.String("job", jobID))
		return e.store.GetJob(ctx, jobID)
	}

	job, err := e.store.CreateJob(ctx, userID, sessionID)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.inflight[key] = job.ID
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inflight, key)
		e.mu.Unlock()
	}()

	runCtx, cancel := context.WithTimeout(ctx, e.cfg.Consolidation.JobTimeout)
	defer cancel()

	now := time.Now().UTC()
	if err := e.store.StartJob(runCtx, job.ID, now); err != nil {
		return nil, err
	}

	if e.testHookRunning != nil {
		e.testHookRunning()
	}

	if err := e.run(runCtx, job); err != nil {
		// Partial progress stays committed: already-promoted short-term
		// records keep their consolidated_at stamp and created long-term
		// records remain. A re-run is safe because of the
		// reinforce-or-create check.
		e.logger.Error("consolidation failed",
			zap.String("job", job.ID), zap.String("session", key), zap.Error(err))
		if ferr := e.store.FailJob(context.WithoutCancel(runCtx), job.ID, err.Error(), time.Now().UTC()); ferr != nil {
			e.logger.Error("mark job failed", zap.String("job", job.ID), zap.Error(ferr))
		}
		return e.store.GetJob(context.WithoutCancel(runCtx), job.ID)
	}

	return e.store.GetJob(ctx, job.ID)
}

// touched tracks a long-term record handled by the current run, with the
// topic signature used for pairwise linking.
type touched struct {
	id       string
	keywords []string
	entities map[string]string
}

func (e *Engine) run(ctx context.Context, job *model.ConsolidationJob) error {
	now := time.Now().UTC()

	// Opportunistic cleanup: expired, never-consolidated records are dead.
	if n, err := e.store.PurgeExpired(ctx, now); err == nil && n > 0 {
		e.logger.Debug("purged expired short-term records", zap.Int("count", n))
	}

	candidates, err := e.store.GetEligibleForConsolidation(ctx, job.UserID, job.SessionID, e.cfg.Consolidation.ReuseThreshold)
	if err != nil {
		return fmt.Errorf("select candidates: %w", err)
	}

	var (
		stats     model.JobStats
		inputIDs  []string
		outputIDs []string
		handled   []touched
	)
	stats.Processed = len(candidates)

	for _, group := range groupByType(candidates) {
		clusters := e.cluster(group)
		for _, cl := range clusters {
			if err := ctx.Err(); err != nil {
				return err
			}

			t, created, err := e.promoteCluster(ctx, job.UserID, cl, now)
			if err != nil {
				return err
			}
			if created {
				stats.Consolidated++
				outputIDs = append(outputIDs, t.id)
			} else {
				stats.Reinforced++
			}
			handled = append(handled, *t)

			ids := clusterIDs(cl)
			if err := e.store.MarkConsolidated(ctx, ids, now); err != nil {
				return fmt.Errorf("mark consolidated: %w", err)
			}
			inputIDs = append(inputIDs, ids...)
		}
	}

	// Link long-term memories touched by this run that share a topic or
	// entity.
	stats.PatternsFound = e.linkRelated(ctx, handled)

	if err := e.store.CompleteJob(ctx, job.ID, inputIDs, outputIDs, stats, time.Now().UTC()); err != nil {
		return err
	}

	e.logger.Info("consolidation completed",
		zap.String("job", job.ID),
		zap.Int("processed", stats.Processed),
		zap.Int("consolidated", stats.Consolidated),
		zap.Int("reinforced", stats.Reinforced),
		zap.Int("patterns", stats.PatternsFound))
	return nil
}

// groupByType partitions candidates by memory type. Clustering never
// crosses type boundaries.
func groupByType(records []model.ShortTermMemory) map[model.MemoryType][]model.ShortTermMemory {
	groups := make(map[model.MemoryType][]model.ShortTermMemory)
	for _, r := range records {
		groups[r.MemoryType] = append(groups[r.MemoryType], r)
	}
	return groups
}

// cluster greedily merges records whose normalized content similarity
// meets the threshold — the same normalize-then-score matching used for
// vendor deduplication.
func (e *Engine) cluster(records []model.ShortTermMemory) [][]model.ShortTermMemory {
	var clusters [][]model.ShortTermMemory
	var signatures [][]string // keyword union per cluster

	for _, r := range records {
		kw := textutil.Keywords(r.Content)
		placed := false
		for i, sig := range signatures {
			if textutil.Jaccard(kw, sig) >= e.cfg.Consolidation.SimilarityThreshold {
				clusters[i] = append(clusters[i], r)
				signatures[i] = textutil.MergeKeywords(sig, kw)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []model.ShortTermMemory{r})
			signatures = append(signatures, kw)
		}
	}
	return clusters
}

// promoteCluster reinforces a matching existing long-term memory or
// creates a new one. The reinforce-or-create check is what makes re-runs
// idempotent: a second pass over the same inputs reinforces instead of
// duplicating.
func (e *Engine) promoteCluster(ctx context.Context, userID string, cl []model.ShortTermMemory, now time.Time) (*touched, bool, error) {
	rep := representative(cl)
	entities := clusterEntities(cl)
	kw := textutil.MergeKeywords(clusterKeywords(cl), entityTerms(entities))

	existing, err := e.findMatch(ctx, userID, rep.MemoryType, kw)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		newStrength := decay.Plateau(existing.ReinforcementCount+1, e.cfg.Decay)
		err := e.store.ReinforceLongTerm(ctx, existing.ID, newStrength, now)
		if errors.Is(err, store.ErrNotFound) {
			// Record vanished mid-run (pruned); fall through to creation.
			existing = nil
		} else if err != nil {
			return nil, false, fmt.Errorf("reinforce %s: %w", existing.ID, err)
		} else {
			merged := textutil.MergeKeywords(existing.Keywords, kw)
			summary := mergeSummary(existing.Summary, rep.Content)
			if err := e.store.UpdateLongTermDigest(ctx, existing.ID, merged, summary); err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, false, err
			}
			return &touched{id: existing.ID, keywords: merged, entities: entities}, false, nil
		}
	}

	// Each record in the cluster counts as one reinforcement: a cluster of
	// two near-duplicates yields a record that starts at count 2.
	lt := &model.LongTermMemory{
		UserID:             userID,
		EnterpriseID:       rep.EnterpriseID,
		MemoryType:         rep.MemoryType,
		Content:            rep.Content,
		Summary:            summarize(cl),
		Keywords:           kw,
		Importance:         highestImportance(cl),
		Confidence:         maxConfidence(cl),
		Strength:           decay.Plateau(len(cl), e.cfg.Decay),
		DecayRate:          e.cfg.Decay.DefaultRate,
		ReinforcementCount: len(cl),
		LastReinforcedAt:   now,
		ConsolidatedFrom:   clusterIDs(cl),
		CreatedAt:          now,
	}
	if lt.Importance == model.ImportanceCritical {
		lt.DecayRate = 0
	}
	if err := e.store.InsertLongTerm(ctx, lt); err != nil {
		return nil, false, err
	}
	return &touched{id: lt.ID, keywords: kw, entities: entities}, true, nil
}

// findMatch looks for an existing long-term memory of the same type whose
// keyword set matches above the similarity threshold.
func (e *Engine) findMatch(ctx context.Context, userID string, t model.MemoryType, kw []string) (*model.LongTermMemory, error) {
	existing, err := e.store.ListLongTermByUser(ctx, userID, t, 0)
	if err != nil {
		return nil, err
	}

	var best *model.LongTermMemory
	bestScore := 0.0
	for i := range existing {
		score := textutil.Jaccard(kw, existing[i].Keywords)
		if score >= e.cfg.Consolidation.SimilarityThreshold && score > bestScore {
			best = &existing[i]
			bestScore = score
		}
	}
	return best, nil
}

// linkRelated creates or reinforces a "related" edge between every pair
// of touched memories that share an entity or enough topic overlap.
// Association failures are skipped, not fatal.
func (e *Engine) linkRelated(ctx context.Context, handled []touched) int {
	linked := 0
	for i := 0; i < len(handled); i++ {
		for j := i + 1; j < len(handled); j++ {
			a, b := handled[i], handled[j]
			if a.id == b.id {
				continue
			}
			if !sharesEntity(a.entities, b.entities) &&
				textutil.Jaccard(a.keywords, b.keywords) < e.cfg.Consolidation.TopicOverlap {
				continue
			}
			if err := e.graph.AddOrReinforce(ctx, a.id, b.id, model.AssocRelated); err != nil {
				e.logger.Warn("link related memories",
					zap.String("from", a.id), zap.String("to", b.id), zap.Error(err))
				continue
			}
			linked++
		}
	}
	return linked
}

func sharesEntity(a, b map[string]string) bool {
	for k, v := range a {
		if bv, ok := b[k]; ok && bv == v {
			return true
		}
	}
	return false
}

// representative picks the longest content in a cluster as its canonical
// form.
func representative(cl []model.ShortTermMemory) model.ShortTermMemory {
	rep := cl[0]
	for _, r := range cl[1:] {
		if len(r.Content) > len(rep.Content) {
			rep = r
		}
	}
	return rep
}

func clusterIDs(cl []model.ShortTermMemory) []string {
	ids := make([]string, len(cl))
	for i, r := range cl {
		ids[i] = r.ID
	}
	return ids
}

func clusterKeywords(cl []model.ShortTermMemory) []string {
	sets := make([][]string, len(cl))
	for i, r := range cl {
		sets[i] = textutil.Keywords(r.Content)
	}
	return textutil.MergeKeywords(sets...)
}

// entityTerms normalizes entity ids into keyword-set entries. Multi-token
// ids ("c-42" -> "c 42") are kept whole so entity-context retrieval can
// match them against the promoted record.
func entityTerms(entities map[string]string) []string {
	var out []string
	for _, v := range entities {
		if n := textutil.Normalize(v); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func clusterEntities(cl []model.ShortTermMemory) map[string]string {
	out := map[string]string{}
	for _, r := range cl {
		for k, v := range r.Context {
			out[k] = v
		}
	}
	return out
}

func highestImportance(cl []model.ShortTermMemory) model.Importance {
	best := cl[0].Importance
	for _, r := range cl[1:] {
		if r.Importance.Weight() > best.Weight() {
			best = r.Importance
		}
	}
	return best
}

func maxConfidence(cl []model.ShortTermMemory) float64 {
	best := cl[0].Confidence
	for _, r := range cl[1:] {
		if r.Confidence > best {
			best = r.Confidence
		}
	}
	return best
}

// summarize condenses a cluster: the representative content, truncated.
func summarize(cl []model.ShortTermMemory) string {
	s := representative(cl).Content
	const maxSummary = 280
	if len(s) > maxSummary {
		s = s[:maxSummary]
	}
	return s
}

// mergeSummary appends newly learned content to an existing summary,
// bounded so repeated reinforcement cannot grow it without limit.
func mergeSummary(existing, addition string) string {
	if existing == "" {
		return addition
	}
	if addition == "" || textutil.Similarity(existing, addition) > 0.9 {
		return existing
	}
	merged := existing + " | " + addition
	const maxSummary = 560
	if len(merged) > maxSummary {
		merged = merged[len(merged)-maxSummary:]
	}
	return merged
}
