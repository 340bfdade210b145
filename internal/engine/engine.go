// Package engine is the library-level boundary the chat layer consumes:
// record a turn, retrieve context, touch working memory, trigger
// consolidation, reinforce. Memory is an enhancement, not a correctness
// requirement — a failed memory write never fails the chat turn.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillon/agent-memory/internal/classify"
	"github.com/quillon/agent-memory/internal/config"
	"github.com/quillon/agent-memory/internal/consolidate"
	"github.com/quillon/agent-memory/internal/decay"
	"github.com/quillon/agent-memory/internal/embedding"
	"github.com/quillon/agent-memory/internal/graph"
	"github.com/quillon/agent-memory/internal/model"
	"github.com/quillon/agent-memory/internal/retrieve"
	"github.com/quillon/agent-memory/internal/simindex"
	"github.com/quillon/agent-memory/internal/store"
	"github.com/quillon/agent-memory/internal/working"
)

// ErrNotFound is re-exported for callers that don't import the store.
var ErrNotFound = store.ErrNotFound

// Engine wires the memory subsystems behind one façade.
type Engine struct {
	store      *store.SQLiteStore
	classifier classify.Classifier
	working    *working.Manager
	graph      *graph.Service
	consolid   *consolidate.Engine
	ranker     *retrieve.Ranker
	index      *simindex.Index
	cfg        config.Config
	logger     *zap.Logger
}

// New builds an engine over an open store. classifier may be nil, which
// selects the rule-based reference classifier.
func New(s *store.SQLiteStore, classifier classify.Classifier, cfg config.Config, logger *zap.Logger) (*Engine, error) {
	if classifier == nil {
		classifier = classify.RuleBased{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var index *simindex.Index
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	if embedder != nil {
		index = simindex.New(embedder)
	}

	g := graph.NewService(s, cfg, logger)
	wm := working.NewManager(s, cfg, logger)

	return &Engine{
		store:      s,
		classifier: classifier,
		working:    wm,
		graph:      g,
		consolid:   consolidate.NewEngine(s, g, cfg, logger),
		ranker:     retrieve.NewRanker(s, g, wm, index, cfg, logger),
		index:      index,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// TurnResult reports what RecordTurn stored.
type TurnResult struct {
	SessionID   string                 `json:"session_id"`
	Memory      *model.ShortTermMemory `json:"memory,omitempty"`
	WorkingItem string                 `json:"working_item,omitempty"`
}

// RecordTurn classifies a conversational turn and stores the outcome:
// a short-term record plus a mirrored working-memory item. Errors are
// logged and swallowed — the turn always proceeds. A missing sessionID is
// minted so the caller can thread it through subsequent turns.
func (e *Engine) RecordTurn(ctx context.Context, userID, enterpriseID, sessionID, turnText, priorTurnText string, entityCtx map[string]string) *TurnResult {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	result := &TurnResult{SessionID: sessionID}

	cls, err := e.classifier.Classify(ctx, turnText, priorTurnText, entityCtx)
	if err != nil {
		e.logger.Warn("classifier failed, turn not stored", zap.Error(err))
		return result
	}

	var expires *time.Time
	if ttl, ok := e.cfg.ShortTermTTL(string(cls.Importance)); ok {
		t := time.Now().UTC().Add(ttl)
		expires = &t
	}

	payloadCtx := entityCtx
	if len(cls.ExtractedInfo) > 0 {
		payloadCtx = cls.ExtractedInfo
	}

	mem, err := e.store.PutShortTerm(ctx, store.PutShortTermParams{
		UserID:            userID,
		EnterpriseID:      enterpriseID,
		SessionID:         sessionID,
		MemoryType:        cls.MemoryType,
		Content:           turnText,
		Context:           payloadCtx,
		Importance:        cls.Importance,
		Confidence:        cls.Confidence,
		ExpiresAt:         expires,
		ShouldConsolidate: cls.ShouldConsolidate,
	})
	if err != nil {
		e.logger.Warn("short-term write failed, turn proceeds without memory",
			zap.String("user", userID), zap.Error(err))
		return result
	}
	result.Memory = mem

	item := &model.WorkingMemoryItem{
		Content: turnText,
		Type:    workingType(cls.MemoryType),
		Source:  "turn",
	}
	if err := e.working.Insert(ctx, userID, sessionID, item); err != nil {
		e.logger.Warn("working memory insert failed", zap.Error(err))
		return result
	}
	result.WorkingItem = item.ID

	return result
}

func workingType(t model.MemoryType) model.WorkingItemType {
	switch t {
	case model.TypeUserPreference:
		return model.ItemPreference
	case model.TypeTaskHistory:
		return model.ItemTask
	case model.TypeEntityRelation:
		return model.ItemEntity
	case model.TypeDomainKnowledge, model.TypeProcessKnowledge:
		return model.ItemConcept
	default:
		return model.ItemContext
	}
}

// Retrieve builds ranked context for the next turn.
func (e *Engine) Retrieve(ctx context.Context, p retrieve.Params) (*retrieve.Result, error) {
	return e.ranker.Retrieve(ctx, p)
}

// Insert adds a working-memory item.
func (e *Engine) Insert(ctx context.Context, userID, sessionID string, it *model.WorkingMemoryItem) error {
	return e.working.Insert(ctx, userID, sessionID, it)
}

// Access marks a working-memory item as used.
func (e *Engine) Access(ctx context.Context, userID, sessionID, itemID string) error {
	return e.working.Access(ctx, userID, sessionID, itemID)
}

// SetFocus marks the session's focus item.
func (e *Engine) SetFocus(ctx context.Context, userID, sessionID, itemID string) error {
	return e.working.SetFocus(ctx, userID, sessionID, itemID)
}

// TriggerConsolidation runs (or coalesces into) the session's
// consolidation job.
func (e *Engine) TriggerConsolidation(ctx context.Context, userID, sessionID string) (*model.ConsolidationJob, error) {
	job, err := e.consolid.Trigger(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	e.syncIndex(ctx, job)
	return job, nil
}

// syncIndex pushes newly created long-term summaries into the vector
// index. Best-effort.
func (e *Engine) syncIndex(ctx context.Context, job *model.ConsolidationJob) {
	if e.index == nil || job == nil {
		return
	}
	for _, id := range job.OutputIDs {
		m, err := e.store.GetLongTerm(ctx, id)
		if err != nil {
			continue
		}
		if err := e.index.Add(ctx, m.UserID, m.ID, m.Summary); err != nil {
			e.logger.Warn("index long-term memory", zap.String("id", m.ID), zap.Error(err))
		}
	}
}

// Reinforce explicitly reconfirms a long-term memory: count increments
// and the decay clock resets. ErrNotFound is recoverable; batch callers
// skip and continue.
func (e *Engine) Reinforce(ctx context.Context, memoryID string) error {
	m, err := e.store.GetLongTerm(ctx, memoryID)
	if err != nil {
		return err
	}
	newStrength := decay.Plateau(m.ReinforcementCount+1, e.cfg.Decay)
	return e.store.ReinforceLongTerm(ctx, memoryID, newStrength, time.Now().UTC())
}

// Verify marks a long-term memory user-confirmed.
func (e *Engine) Verify(ctx context.Context, memoryID string) error {
	return e.store.SetVerified(ctx, memoryID, true)
}

// Contradict records a contradiction between two long-term memories. Not
// an error state: both survive and the ranker discounts them.
func (e *Engine) Contradict(ctx context.Context, aID, bID string) error {
	if aID == bID {
		return graph.ErrSelfAssociation
	}
	return e.graph.Contradict(ctx, aID, bID)
}

// Associate creates or reinforces a typed edge.
func (e *Engine) Associate(ctx context.Context, fromID, toID string, t model.AssociationType) error {
	return e.graph.AddOrReinforce(ctx, fromID, toID, t)
}

// Neighbors exposes one-hop traversal.
func (e *Engine) Neighbors(ctx context.Context, memoryID string, t model.AssociationType, minStrength float64) ([]graph.Neighbor, error) {
	return e.graph.Neighbors(ctx, memoryID, t, minStrength)
}

// Prune removes long-term records that decayed below the strength floor
// and stayed there past the grace period.
func (e *Engine) Prune(ctx context.Context) (int, error) {
	return e.store.PruneWeak(ctx, time.Now().UTC(), e.cfg.Decay, e.cfg.Prune.StrengthFloor, e.cfg.Prune.Grace)
}

// PurgeExpired removes expired, unconsolidated short-term records.
func (e *Engine) PurgeExpired(ctx context.Context) (int, error) {
	return e.store.PurgeExpired(ctx, time.Now().UTC())
}

// IsNotFound reports whether err is the recoverable missing-record signal.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
