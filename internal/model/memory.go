// Package model defines the core memory data types.
package model

import "time"

// MemoryType classifies what a memory is about.
type MemoryType string

const (
	TypeUserPreference      MemoryType = "user_preference"
	TypeInteractionPattern  MemoryType = "interaction_pattern"
	TypeDomainKnowledge     MemoryType = "domain_knowledge"
	TypeConversationContext MemoryType = "conversation_context"
	TypeTaskHistory         MemoryType = "task_history"
	TypeFeedback            MemoryType = "feedback"
	TypeEntityRelation      MemoryType = "entity_relation"
	TypeProcessKnowledge    MemoryType = "process_knowledge"
)

// ValidTypes are the allowed memory types.
var ValidTypes = map[MemoryType]bool{
	TypeUserPreference:      true,
	TypeInteractionPattern:  true,
	TypeDomainKnowledge:     true,
	TypeConversationContext: true,
	TypeTaskHistory:         true,
	TypeFeedback:            true,
	TypeEntityRelation:      true,
	TypeProcessKnowledge:    true,
}

// Importance is an author-assigned priority. It never decays.
type Importance string

const (
	ImportanceCritical  Importance = "critical"
	ImportanceHigh      Importance = "high"
	ImportanceMedium    Importance = "medium"
	ImportanceLow       Importance = "low"
	ImportanceTemporary Importance = "temporary"
)

// ValidImportances are the allowed importance levels.
var ValidImportances = map[Importance]bool{
	ImportanceCritical:  true,
	ImportanceHigh:      true,
	ImportanceMedium:    true,
	ImportanceLow:       true,
	ImportanceTemporary: true,
}

// Weight maps importance to a [0,1] scoring weight.
func (i Importance) Weight() float64 {
	switch i {
	case ImportanceCritical:
		return 1.0
	case ImportanceHigh:
		return 0.75
	case ImportanceMedium:
		return 0.5
	case ImportanceLow:
		return 0.25
	case ImportanceTemporary:
		return 0.1
	default:
		return 0.5
	}
}

// ShortTermMemory is one conversational fact awaiting triage.
type ShortTermMemory struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	EnterpriseID string            `json:"enterprise_id,omitempty"`
	SessionID    string            `json:"session_id"`
	MemoryType   MemoryType        `json:"memory_type"`
	Content      string            `json:"content"`
	Payload      string            `json:"payload,omitempty"` // optional structured payload (JSON)
	Context      map[string]string `json:"context,omitempty"` // related entity ids: contract/vendor/task
	Importance   Importance        `json:"importance"`
	Confidence   float64           `json:"confidence"`

	AccessCount    int        `json:"access_count"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`

	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	ConsolidatedAt *time.Time `json:"consolidated_at,omitempty"`

	IsProcessed       bool `json:"is_processed"`
	ShouldConsolidate bool `json:"should_consolidate"`
}

// Consolidated reports whether this record has already been promoted.
// A consolidated record is read-only and must never be promoted again.
func (m *ShortTermMemory) Consolidated() bool {
	return m.ConsolidatedAt != nil
}

// LongTermMemory is durable knowledge distilled from short-term records.
type LongTermMemory struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	EnterpriseID string     `json:"enterprise_id,omitempty"`
	MemoryType   MemoryType `json:"memory_type"`
	Content      string     `json:"content"`
	Summary      string     `json:"summary"`
	Keywords     []string   `json:"keywords,omitempty"`
	Embedding    []float32  `json:"embedding,omitempty"`
	Importance   Importance `json:"importance"`
	Confidence   float64    `json:"confidence"`

	// Strength is the stored base value; the effective value is always
	// computed through the decay formula, never read raw for ranking.
	Strength           float64 `json:"strength"`
	DecayRate          float64 `json:"decay_rate"`
	ReinforcementCount int     `json:"reinforcement_count"`

	AccessCount      int        `json:"access_count"`
	LastAccessedAt   *time.Time `json:"last_accessed_at,omitempty"`
	LastReinforcedAt time.Time  `json:"last_reinforced_at"`

	IsVerified     bool     `json:"is_verified"`
	ContradictedBy []string `json:"contradicted_by,omitempty"`

	// ConsolidatedFrom is provenance: the short-term ids this record was
	// distilled from. Never mutated after creation.
	ConsolidatedFrom []string `json:"consolidated_from,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// AssociationType classifies a directed edge between long-term memories.
type AssociationType string

const (
	AssocCausal      AssociationType = "causal"
	AssocContradicts AssociationType = "contradicts"
	AssocSupports    AssociationType = "supports"
	AssocRelated     AssociationType = "related"
	AssocPrecedes    AssociationType = "precedes"
	AssocPartOf      AssociationType = "part_of"
	AssocSimilar     AssociationType = "similar"
)

// ValidAssociationTypes are the allowed edge types.
var ValidAssociationTypes = map[AssociationType]bool{
	AssocCausal:      true,
	AssocContradicts: true,
	AssocSupports:    true,
	AssocRelated:     true,
	AssocPrecedes:    true,
	AssocPartOf:      true,
	AssocSimilar:     true,
}

// MemoryAssociation is a directed typed edge between two long-term memories.
// No self-loops: FromID != ToID always.
type MemoryAssociation struct {
	FromID           string          `json:"from_id"`
	ToID             string          `json:"to_id"`
	Type             AssociationType `json:"type"`
	Strength         float64         `json:"strength"`
	Confidence       float64         `json:"confidence"`
	CreatedAt        time.Time       `json:"created_at"`
	LastReinforcedAt time.Time       `json:"last_reinforced_at"`
}

// WorkingItemType classifies a working-memory item.
type WorkingItemType string

const (
	ItemConcept    WorkingItemType = "concept"
	ItemEntity     WorkingItemType = "entity"
	ItemTask       WorkingItemType = "task"
	ItemPreference WorkingItemType = "preference"
	ItemContext    WorkingItemType = "context"
)

// WorkingMemoryItem is a transient per-session item. Activation starts at
// 1.0 on creation and decays until the next access resets it.
type WorkingMemoryItem struct {
	ID           string          `json:"id"`
	Content      string          `json:"content"`
	Type         WorkingItemType `json:"type"`
	Activation   float64         `json:"activation"`
	LastAccessed time.Time       `json:"last_accessed"`
	AccessCount  int             `json:"access_count"`
	Associations []string        `json:"associations,omitempty"` // lightweight links, not graph edges
	Source       string          `json:"source,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// WorkingMemoryState is the bounded per-(user, session) container.
// Invariant: len(Items) <= Capacity after every mutation.
type WorkingMemoryState struct {
	UserID    string              `json:"user_id"`
	SessionID string              `json:"session_id"`
	Capacity  int                 `json:"capacity"`
	Items     []WorkingMemoryItem `json:"items"`
	FocusItem string              `json:"focus_item,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// DefaultCapacity is the working-memory soft bound (Miller's 7).
const DefaultCapacity = 7
