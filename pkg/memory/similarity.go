package memory

import (
	"math"
	"time"
)

// tagJaccard returns |A∩B| / |A∪B| over two normalized tag sets.
func tagJaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	inter := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// overlapRatio returns |A∩B| / max(|A|,|B|) over two term sets.
func overlapRatio(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(large))
}

// similarity blends tag, content and kind similarity between two items.
func (o Options) similarity(a, b *Item, aTerms, bTerms map[string]struct{}) float64 {
	score := o.TagWeight*tagJaccard(a.Tags, b.Tags) +
		o.ContentWeight*overlapRatio(aTerms, bTerms)
	if a.Kind == b.Kind {
		score += o.KindWeight
	}
	return score
}

// tagTerms returns the tags and their individual tokens.
func tagTerms(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
		for _, t := range tokenize(tag) {
			set[t] = struct{}{}
		}
	}
	return set
}

// termOverlap counts each distinct query term once per content hit and half
// per tag hit.
func termOverlap(query, content, tags map[string]struct{}) float64 {
	overlap := 0.0
	for term := range query {
		if _, ok := content[term]; ok {
			overlap++
		}
		if _, ok := tags[term]; ok {
			overlap += 0.5
		}
	}
	return overlap
}

// relevance scores item against the query terms at time now.
func (o Options) relevance(item *Item, query, content map[string]struct{}, now time.Time) float64 {
	overlap := termOverlap(query, content, tagTerms(item.Tags))
	if overlap == 0 {
		return 0
	}
	frequency := 1 + math.Log(float64(item.AccessCount)+1)
	age := now.Sub(item.CreatedAt)
	if age < 0 {
		age = 0
	}
	recency := math.Exp(-float64(age) / float64(o.RecencyScale))
	return overlap * item.Importance * frequency * recency
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
