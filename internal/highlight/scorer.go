package highlight

import "fmt"

// Scorer rates how closely a candidate quote matches a window of source
// tokens, from 0 (unrelated) to 1 (identical).
type Scorer interface {
	Score(candidate, window []string) float64
	// Bound is an upper bound on Score for a candidate of n tokens against a
	// window of size tokens sharing shared tokens (multiset intersection).
	Bound(shared, n, size int) float64
}

func NewScorer(name string) (Scorer, error) {
	switch name {
	case "", "edit":
		return EditScorer{}, nil
	case "overlap":
		return OverlapScorer{}, nil
	default:
		return nil, fmt.Errorf("unknown matcher: %s", name)
	}
}

// EditScorer is one minus the token-level Levenshtein distance divided by
// the longer length.
type EditScorer struct{}

func (EditScorer) Score(a, b []string) float64 {
	longest := max(len(a), len(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(editDistance(a, b))/float64(longest)
}

// Bound holds because every token of the longer side that is not kept
// unchanged costs at least one edit.
func (EditScorer) Bound(shared, n, size int) float64 {
	longest := max(n, size)
	if longest == 0 {
		return 1
	}
	return float64(shared) / float64(longest)
}

func editDistance(a, b []string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// OverlapScorer is the Dice coefficient over token multisets. Word order is
// ignored.
type OverlapScorer struct{}

func (OverlapScorer) Score(a, b []string) float64 {
	if len(a)+len(b) == 0 {
		return 1
	}
	counts := make(map[string]int, len(a))
	for _, t := range a {
		counts[t]++
	}
	shared := 0
	for _, t := range b {
		if counts[t] > 0 {
			counts[t]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(a)+len(b))
}

func (OverlapScorer) Bound(shared, n, size int) float64 {
	if n+size == 0 {
		return 1
	}
	return 2 * float64(shared) / float64(n+size)
}
