// Package config holds the engine tunables. Every threshold the memory
// engine uses (decay rates, similarity cutoffs, capacity, retrieval
// weights) lives here so the services carry no magic literals.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Decay configures the lazy decay formulas.
type Decay struct {
	// BaseStrength is the plateau a long-term memory decays from before
	// any reinforcement: base = min(1, BaseStrength + ReinforceBonus*n).
	BaseStrength   float64 `yaml:"base_strength"`
	ReinforceBonus float64 `yaml:"reinforce_bonus"`
	// DefaultRate is the per-hour exponential decay coefficient used when
	// a record carries none of its own.
	DefaultRate float64 `yaml:"default_rate"`
	// WorkingFactor is the per-minute geometric decay of working-memory
	// activation.
	WorkingFactor float64 `yaml:"working_factor"`
}

// Working configures the working-memory manager.
type Working struct {
	Capacity          int     `yaml:"capacity"`
	EvictionThreshold float64 `yaml:"eviction_threshold"`
}

// Consolidation configures the promotion pipeline.
type Consolidation struct {
	// SimilarityThreshold is the normalized-content similarity above which
	// two records are considered the same knowledge.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	// ReuseThreshold is the access count that makes a low-importance
	// record eligible anyway.
	ReuseThreshold int `yaml:"reuse_threshold"`
	// TopicOverlap is the keyword/entity overlap above which two long-term
	// records touched by the same job get a "related" edge.
	TopicOverlap float64       `yaml:"topic_overlap"`
	JobTimeout   time.Duration `yaml:"job_timeout"`
}

// Graph configures the association graph.
type Graph struct {
	InitialStrength float64 `yaml:"initial_strength"`
	ReinforceStep   float64 `yaml:"reinforce_step"`
	// RetrievalStep is the lighter bump applied when an edge co-occurs in
	// a retrieval result.
	RetrievalStep float64 `yaml:"retrieval_step"`
}

// Retrieval configures the ranker. The four weights must keep their
// direction (higher relevance/strength/importance/recency scores higher);
// the exact values are policy.
type Retrieval struct {
	RelevanceWeight  float64 `yaml:"relevance_weight"`
	StrengthWeight   float64 `yaml:"strength_weight"`
	ImportanceWeight float64 `yaml:"importance_weight"`
	RecencyWeight    float64 `yaml:"recency_weight"`
	// RecencyHalfLifeHours controls the recency boost curve.
	RecencyHalfLifeHours float64 `yaml:"recency_half_life_hours"`
	// NeighborMinStrength is the effective-strength floor for one-hop
	// expansion.
	NeighborMinStrength float64 `yaml:"neighbor_min_strength"`
	// AssociativeDiscount down-weights candidates that arrived via graph
	// expansion rather than a direct match.
	AssociativeDiscount float64 `yaml:"associative_discount"`
	// ContradictionPenalty is the score multiplier applied to memories
	// with contradiction edges.
	ContradictionPenalty float64 `yaml:"contradiction_penalty"`
	DefaultLimit         int     `yaml:"default_limit"`
}

// Prune configures soft eviction of decayed long-term records.
type Prune struct {
	StrengthFloor float64       `yaml:"strength_floor"`
	Grace         time.Duration `yaml:"grace"`
}

// TTL maps importance levels to short-term retention.
type TTL struct {
	Temporary time.Duration `yaml:"temporary"`
	Low       time.Duration `yaml:"low"`
	Medium    time.Duration `yaml:"medium"`
	High      time.Duration `yaml:"high"`
	// Critical short-term records never expire.
}

// Embedding configures the optional embedding provider.
type Embedding struct {
	Provider string `yaml:"provider"` // "ollama", "openai", or "" (disabled)
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Dims     int    `yaml:"dims"`
}

// Config is the full engine configuration.
type Config struct {
	Decay         Decay         `yaml:"decay"`
	Working       Working       `yaml:"working"`
	Consolidation Consolidation `yaml:"consolidation"`
	Graph         Graph         `yaml:"graph"`
	Retrieval     Retrieval     `yaml:"retrieval"`
	Prune         Prune         `yaml:"prune"`
	TTL           TTL           `yaml:"ttl"`
	Embedding     Embedding     `yaml:"embedding"`
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		Decay: Decay{
			BaseStrength:   0.3,
			ReinforceBonus: 0.1,
			DefaultRate:    0.01, // ~half strength in 3 days
			WorkingFactor:  0.98, // below 0.5 after ~35 unused minutes
		},
		Working: Working{
			Capacity:          7,
			EvictionThreshold: 0.5,
		},
		Consolidation: Consolidation{
			SimilarityThreshold: 0.5,
			ReuseThreshold:      3,
			TopicOverlap:        0.2,
			JobTimeout:          2 * time.Minute,
		},
		Graph: Graph{
			InitialStrength: 0.3,
			ReinforceStep:   0.1,
			RetrievalStep:   0.02,
		},
		Retrieval: Retrieval{
			RelevanceWeight:      0.4,
			StrengthWeight:       0.3,
			ImportanceWeight:     0.2,
			RecencyWeight:        0.1,
			RecencyHalfLifeHours: 168,
			NeighborMinStrength:  0.4,
			AssociativeDiscount:  0.6,
			ContradictionPenalty: 0.7,
			DefaultLimit:         10,
		},
		Prune: Prune{
			StrengthFloor: 0.05,
			Grace:         30 * 24 * time.Hour,
		},
		TTL: TTL{
			Temporary: time.Hour,
			Low:       24 * time.Hour,
			Medium:    7 * 24 * time.Hour,
			High:      30 * 24 * time.Hour,
		},
	}
}

// Load reads a YAML config file, layering it over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ShortTermTTL returns the retention for an importance level, or false for
// importance levels that never expire. Importance names match
// model.Importance values; a string key keeps config free of upward
// imports.
func (c Config) ShortTermTTL(imp string) (time.Duration, bool) {
	switch imp {
	case "temporary":
		return c.TTL.Temporary, true
	case "low":
		return c.TTL.Low, true
	case "medium":
		return c.TTL.Medium, true
	case "high":
		return c.TTL.High, true
	default:
		return 0, false
	}
}
