// Package classify defines the contract between the conversation layer
// and the memory engine. The engine itself never inspects raw turn text;
// everything heuristic lives behind the Classifier interface so the
// memory services stay free of fragile string matching.
package classify

import (
	"context"
	"strings"

	"github.com/quillon/agent-memory/internal/model"
)

// Result is the tagged outcome of classifying one conversational turn.
type Result struct {
	MemoryType        model.MemoryType
	Importance        model.Importance
	ShouldConsolidate bool
	Confidence        float64
	ExtractedInfo     map[string]string
}

// Classifier turns a conversational turn into a memory classification.
type Classifier interface {
	Classify(ctx context.Context, turnText, priorTurnText string, entityCtx map[string]string) (Result, error)
}

// RuleBased is the reference classifier: keyword heuristics over the turn
// text. Deployments typically replace it with an LLM-backed
// implementation behind the same interface.
type RuleBased struct{}

var _ Classifier = RuleBased{}

// Classify applies keyword rules to pick a memory type and importance.
func (RuleBased) Classify(_ context.Context, turnText, priorTurnText string, entityCtx map[string]string) (Result, error) {
	text := strings.ToLower(turnText)

	r := Result{
		MemoryType:    model.TypeConversationContext,
		Importance:    model.ImportanceLow,
		Confidence:    0.5,
		ExtractedInfo: map[string]string{},
	}
	for k, v := range entityCtx {
		r.ExtractedInfo[k] = v
	}

	switch {
	case containsAny(text, "i prefer", "i like", "always use", "never use", "my preference"):
		r.MemoryType = model.TypeUserPreference
		r.Importance = model.ImportanceHigh
		r.ShouldConsolidate = true
		r.Confidence = 0.8
	case containsAny(text, "requires", "must", "policy", "deadline", "notice period", "renewal", "termination"):
		r.MemoryType = model.TypeDomainKnowledge
		r.Importance = model.ImportanceMedium
		r.ShouldConsolidate = true
		r.Confidence = 0.7
	case containsAny(text, "because", "caused", "led to", "results in"):
		r.MemoryType = model.TypeEntityRelation
		r.Importance = model.ImportanceMedium
		r.ShouldConsolidate = true
		r.Confidence = 0.6
	case containsAny(text, "wrong", "incorrect", "that's not", "actually"):
		r.MemoryType = model.TypeFeedback
		r.Importance = model.ImportanceHigh
		r.ShouldConsolidate = true
		r.Confidence = 0.7
	case containsAny(text, "step", "process", "how to", "workflow", "procedure"):
		r.MemoryType = model.TypeProcessKnowledge
		r.Importance = model.ImportanceMedium
		r.ShouldConsolidate = true
		r.Confidence = 0.6
	case containsAny(text, "done", "completed", "finished", "created", "sent"):
		r.MemoryType = model.TypeTaskHistory
		r.Importance = model.ImportanceLow
		r.Confidence = 0.6
	case priorTurnText != "" && containsAny(text, "yes", "no", "ok", "sure"):
		r.MemoryType = model.TypeInteractionPattern
		r.Importance = model.ImportanceTemporary
		r.Confidence = 0.4
	}

	return r, nil
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
