// Package working implements the bounded per-session working memory:
// activation-decaying items with eviction of the weakest item once the
// session exceeds its capacity.
package working

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quillon/agent-memory/internal/config"
	"github.com/quillon/agent-memory/internal/decay"
	"github.com/quillon/agent-memory/internal/model"
	"github.com/quillon/agent-memory/internal/store"
)

// Manager serializes mutations per (user, session). Concurrent turns in
// one session must observe each other's inserts before deciding eviction;
// the size invariant is exact, not eventually consistent.
type Manager struct {
	store  *store.SQLiteStore
	cfg    config.Config
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a working-memory manager.
func NewManager(s *store.SQLiteStore, cfg config.Config, logger *zap.Logger) *Manager {
	return &Manager{
		store:  s,
		cfg:    cfg,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (m *Manager) sessionLock(userID, sessionID string) *sync.Mutex {
	key := userID + "/" + sessionID
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Insert adds an item to a session, auto-creating the session state on
// first use. If the session is over capacity afterwards, the item with
// the lowest effective activation is evicted (ties broken by oldest
// access). Eviction is the expected backpressure mechanism, never an
// error.
func (m *Manager) Insert(ctx context.Context, userID, sessionID string, it *model.WorkingMemoryItem) error {
	l := m.sessionLock(userID, sessionID)
	l.Lock()
	defer l.Unlock()

	if err := m.store.EnsureWorkingState(ctx, userID, sessionID, m.cfg.Working.Capacity); err != nil {
		return fmt.Errorf("ensure session state: %w", err)
	}

	now := time.Now().UTC()
	it.Activation = 1.0
	it.LastAccessed = now
	if err := m.store.InsertWorkingItem(ctx, userID, sessionID, it); err != nil {
		return fmt.Errorf("insert working item: %w", err)
	}

	state, err := m.store.GetWorkingState(ctx, userID, sessionID)
	if err != nil {
		return err
	}

	for len(state.Items) > state.Capacity {
		victim := m.weakest(state.Items, now)
		if err := m.store.DeleteWorkingItem(ctx, victim.ID); err != nil {
			return fmt.Errorf("evict item: %w", err)
		}
		m.logger.Debug("evicted working memory item",
			zap.String("user", userID),
			zap.String("session", sessionID),
			zap.String("item", victim.ID),
			zap.Float64("activation", decay.WorkingActivation(&victim, now, m.cfg.Decay)))
		state.Items = remove(state.Items, victim.ID)
	}
	return nil
}

// weakest returns the item with minimum effective activation; ties break
// toward the oldest last access.
func (m *Manager) weakest(items []model.WorkingMemoryItem, now time.Time) model.WorkingMemoryItem {
	victim := items[0]
	victimAct := decay.WorkingActivation(&victim, now, m.cfg.Decay)
	for _, it := range items[1:] {
		act := decay.WorkingActivation(&it, now, m.cfg.Decay)
		if act < victimAct || (act == victimAct && it.LastAccessed.Before(victim.LastAccessed)) {
			victim = it
			victimAct = act
		}
	}
	return victim
}

func remove(items []model.WorkingMemoryItem, id string) []model.WorkingMemoryItem {
	out := items[:0]
	for _, it := range items {
		if it.ID != id {
			out = append(out, it)
		}
	}
	return out
}

// Access resets an item's activation to 1.0 and records the access.
// A missing item surfaces store.ErrNotFound, which callers treat as
// recoverable.
func (m *Manager) Access(ctx context.Context, userID, sessionID, itemID string) error {
	l := m.sessionLock(userID, sessionID)
	l.Lock()
	defer l.Unlock()

	return m.store.AccessWorkingItem(ctx, itemID, time.Now().UTC())
}

// SetFocus marks the session's focus item. Focus does not affect capacity
// accounting.
func (m *Manager) SetFocus(ctx context.Context, userID, sessionID, itemID string) error {
	l := m.sessionLock(userID, sessionID)
	l.Lock()
	defer l.Unlock()

	return m.store.SetFocus(ctx, userID, sessionID, itemID)
}

// Snapshot returns the session state with each item's effective
// activation computed as of now. Items are returned as stored; callers
// filter by activation themselves.
func (m *Manager) Snapshot(ctx context.Context, userID, sessionID string, now time.Time) (*model.WorkingMemoryState, []float64, error) {
	state, err := m.store.GetWorkingState(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	activations := make([]float64, len(state.Items))
	for i := range state.Items {
		activations[i] = decay.WorkingActivation(&state.Items[i], now, m.cfg.Decay)
	}
	return state, activations, nil
}
