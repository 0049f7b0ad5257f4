package memory

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"stop words removed", "What does the user enjoy on weekends?", []string{"user", "enjoy", "weekends"}},
		{"punctuation split", "hiking,camping;  biking!", []string{"hiking", "camping", "biking"}},
		{"digits kept", "room 42", []string{"room", "42"}},
		{"han runes", "我爱你", []string{"我", "爱", "你"}},
		{"empty", "   ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("tokenize(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeTags(t *testing.T) {
	got := normalizeTags([]string{" Hiking", "weekend", "hiking", "", "Art"})
	want := []string{"art", "hiking", "weekend"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if normalizeTags([]string{" ", ""}) != nil {
		t.Error("expected nil for blank tags")
	}
}

func TestTagJaccard(t *testing.T) {
	if got := tagJaccard(nil, nil); got != 0 {
		t.Errorf("empty sets should score 0, got %f", got)
	}
	if got := tagJaccard([]string{"a"}, nil); got != 0 {
		t.Errorf("disjoint sets should score 0, got %f", got)
	}
	if got := tagJaccard([]string{"a", "b"}, []string{"b", "c"}); math.Abs(got-1.0/3.0) > 1e-9 {
		t.Errorf("expected 1/3, got %f", got)
	}
	if got := tagJaccard([]string{"a", "b"}, []string{"a", "b"}); got != 1 {
		t.Errorf("identical sets should score 1, got %f", got)
	}
}

func TestOverlapRatio(t *testing.T) {
	a := termSet("love hiking mountains")
	b := termSet("hiking mountains favorite trail")
	if got := overlapRatio(a, b); got != 0.5 {
		t.Errorf("expected 0.5, got %f", got)
	}
	if got := overlapRatio(a, map[string]struct{}{}); got != 0 {
		t.Errorf("expected 0 against empty set, got %f", got)
	}
}

func TestSimilarity_Blend(t *testing.T) {
	opts := DefaultOptions()
	a := &Item{Kind: KindExperience, Tags: []string{"hiking"}}
	b := &Item{Kind: KindExperience, Tags: []string{"hiking"}}
	terms := termSet("hiking mountains")

	got := opts.similarity(a, b, terms, terms)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("identical items should score 1.0, got %f", got)
	}

	b.Kind = KindFact
	got = opts.similarity(a, b, terms, terms)
	if math.Abs(got-0.8) > 1e-9 {
		t.Errorf("different kind should drop the kind bonus, got %f", got)
	}
}

func TestRelevance(t *testing.T) {
	opts := DefaultOptions()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	item := &Item{Importance: 1, Tags: []string{"tea"}, CreatedAt: now}
	content := termSet("green tea every morning")

	// "green" hits content, "tea" hits content and a tag.
	got := opts.relevance(item, termSet("green tea"), content, now)
	if math.Abs(got-2.5) > 1e-9 {
		t.Errorf("expected overlap 2.5 with no boost or decay, got %f", got)
	}

	item.AccessCount = 1
	boosted := opts.relevance(item, termSet("green tea"), content, now)
	if boosted <= got {
		t.Errorf("access count should boost score: %f <= %f", boosted, got)
	}

	item.AccessCount = 0
	old := opts.relevance(item, termSet("green tea"), content, now.Add(30*24*time.Hour))
	if math.Abs(old-2.5/math.E) > 1e-9 {
		t.Errorf("expected one e-fold of recency decay, got %f", old)
	}

	if got := opts.relevance(item, termSet("coffee"), content, now); got != 0 {
		t.Errorf("expected zero score without overlap, got %f", got)
	}
}

func TestClamp01(t *testing.T) {
	for in, want := range map[float64]float64{1.5: 1, -0.2: 0, 0.4: 0.4, math.NaN(): 0} {
		if got := clamp01(in); got != want {
			t.Errorf("clamp01(%v) = %v, want %v", in, got, want)
		}
	}
}
