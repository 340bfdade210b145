// Package decay computes effective strength and activation as pure
// functions of (record, now). Stored values are "as of last write";
// effective values are derived lazily at read time, so no background
// ticker exists anywhere in the engine.
package decay

import (
	"math"
	"time"

	"github.com/quillon/agent-memory/internal/config"
	"github.com/quillon/agent-memory/internal/model"
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Plateau is the strength a long-term memory decays from: it scales up
// with reinforcement count so repeatedly reinforced memories decay from a
// higher baseline. This is the only place the stored strength value may
// come from.
func Plateau(reinforcementCount int, cfg config.Decay) float64 {
	return clamp01(cfg.BaseStrength + cfg.ReinforceBonus*float64(reinforcementCount))
}

// LongTermStrength returns the effective strength of a long-term memory
// at time now:
//
//	strength(t) = plateau * exp(-rate * hoursSince(lastReinforcedAt))
//
// Critical memories are exempt from decay.
func LongTermStrength(m *model.LongTermMemory, now time.Time, cfg config.Decay) float64 {
	base := Plateau(m.ReinforcementCount, cfg)

	if m.Importance == model.ImportanceCritical {
		return base
	}

	rate := m.DecayRate
	if rate <= 0 {
		rate = cfg.DefaultRate
	}

	since := m.LastReinforcedAt
	if since.IsZero() {
		since = m.CreatedAt
	}
	hours := now.Sub(since).Hours()
	if hours < 0 {
		hours = 0
	}

	return clamp01(base * math.Exp(-rate*hours))
}

// AssociationStrength returns the effective strength of a graph edge at
// time now. Edges decay with the same exponential as long-term memories,
// from their stored strength instead of a reinforcement plateau.
func AssociationStrength(a *model.MemoryAssociation, now time.Time, cfg config.Decay) float64 {
	since := a.LastReinforcedAt
	if since.IsZero() {
		since = a.CreatedAt
	}
	hours := now.Sub(since).Hours()
	if hours < 0 {
		hours = 0
	}
	return clamp01(a.Strength * math.Exp(-cfg.DefaultRate*hours))
}

// WorkingActivation returns the effective activation of a working-memory
// item: geometric decay per minute since the last access. Every access
// resets the stored activation to 1.0, so the stored value is the starting
// point, not the current one.
func WorkingActivation(it *model.WorkingMemoryItem, now time.Time, cfg config.Decay) float64 {
	minutes := now.Sub(it.LastAccessed).Minutes()
	if minutes < 0 {
		minutes = 0
	}
	return clamp01(it.Activation * math.Pow(cfg.WorkingFactor, minutes))
}

// RecencyBoost maps age to a (0,1] boost with the given half-life, used by
// the retrieval ranker.
func RecencyBoost(ts time.Time, now time.Time, halfLifeHours float64) float64 {
	if halfLifeHours <= 0 {
		return 0
	}
	age := now.Sub(ts).Hours()
	if age < 0 {
		age = 0
	}
	return math.Exp(-math.Ln2 * age / halfLifeHours)
}
