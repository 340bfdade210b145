package classify

import (
	"context"
	"testing"

	"github.com/quillon/agent-memory/internal/model"
)

func TestRuleBasedClassify(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		prior       string
		wantType    model.MemoryType
		wantImp     model.Importance
		consolidate bool
	}{
		{
			name:        "preference",
			text:        "I prefer contract summaries as bullet points",
			wantType:    model.TypeUserPreference,
			wantImp:     model.ImportanceHigh,
			consolidate: true,
		},
		{
			name:        "domain knowledge",
			text:        "vendor X requires a 30-day notice period before termination",
			wantType:    model.TypeDomainKnowledge,
			wantImp:     model.ImportanceMedium,
			consolidate: true,
		},
		{
			name:        "causal relation",
			text:        "the renewal slipped because legal review ran long",
			wantType:    model.TypeDomainKnowledge, // "renewal" outranks "because"
			wantImp:     model.ImportanceMedium,
			consolidate: true,
		},
		{
			name:        "correction",
			text:        "that's wrong, the contact is Alex",
			wantType:    model.TypeFeedback,
			wantImp:     model.ImportanceHigh,
			consolidate: true,
		},
		{
			name:        "process",
			text:        "the first step is to open a procurement ticket",
			wantType:    model.TypeProcessKnowledge,
			wantImp:     model.ImportanceMedium,
			consolidate: true,
		},
		{
			name:     "task history",
			text:     "I sent the signed copy this morning",
			wantType: model.TypeTaskHistory,
			wantImp:  model.ImportanceLow,
		},
		{
			name:     "short ack",
			text:     "yes",
			prior:    "should I file it under vendor X?",
			wantType: model.TypeInteractionPattern,
			wantImp:  model.ImportanceTemporary,
		},
		{
			name:     "default context",
			text:     "hmm interesting",
			wantType: model.TypeConversationContext,
			wantImp:  model.ImportanceLow,
		},
	}

	c := RuleBased{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.text, tt.prior, nil)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if got.MemoryType != tt.wantType {
				t.Errorf("type = %q, want %q", got.MemoryType, tt.wantType)
			}
			if got.Importance != tt.wantImp {
				t.Errorf("importance = %q, want %q", got.Importance, tt.wantImp)
			}
			if got.ShouldConsolidate != tt.consolidate {
				t.Errorf("should_consolidate = %v, want %v", got.ShouldConsolidate, tt.consolidate)
			}
		})
	}
}

func TestRuleBasedCarriesEntityContext(t *testing.T) {
	got, err := RuleBased{}.Classify(context.Background(),
		"vendor X requires 30-day notice", "", map[string]string{"vendor": "v-7"})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if got.ExtractedInfo["vendor"] != "v-7" {
		t.Errorf("extracted = %v", got.ExtractedInfo)
	}
}
