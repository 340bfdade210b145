package textutil

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Vendor X requires 30-day notice!", "vendor x requires 30 day notice"},
		{"  Multiple   spaces\there ", "multiple spaces here"},
		{"", ""},
		{"ALL-CAPS", "all caps"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKeywords(t *testing.T) {
	got := Keywords("The vendor requires a 30-day notice from the vendor")
	want := []string{"day", "notice", "requires", "vendor"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Keywords = %v, want %v", got, want)
	}
}

func TestKeywordsDropsShortAndStopwords(t *testing.T) {
	got := Keywords("it is an of to be")
	if len(got) != 0 {
		t.Errorf("expected no keywords, got %v", got)
	}
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b []string
		want float64
	}{
		{[]string{"a", "b"}, []string{"a", "b"}, 1.0},
		{[]string{"a", "b"}, []string{"c", "d"}, 0.0},
		{[]string{"a", "b", "c"}, []string{"b", "c", "d"}, 0.5},
		{nil, nil, 0.0},
		{[]string{"a"}, nil, 0.0},
	}
	for _, tt := range tests {
		if got := Jaccard(tt.a, tt.b); got != tt.want {
			t.Errorf("Jaccard(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarityNearDuplicates(t *testing.T) {
	a := "vendor X requires 30-day notice"
	b := "vendor X requires 30 day notice period"
	if s := Similarity(a, b); s < 0.5 {
		t.Errorf("near-duplicates scored %v, want >= 0.5", s)
	}

	c := "invoices are paid monthly"
	if s := Similarity(a, c); s >= 0.5 {
		t.Errorf("unrelated texts scored %v, want < 0.5", s)
	}
}

func TestMergeKeywords(t *testing.T) {
	got := MergeKeywords([]string{"b", "a"}, []string{"c", "a"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MergeKeywords = %v, want %v", got, want)
	}
}
