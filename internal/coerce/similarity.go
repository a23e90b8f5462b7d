package coerce

import (
	"github.com/sahilm/fuzzy"
)

// MostSimilar picks the choice closest to the input. Subsequence
// matches rank first; when no choice contains the input as a
// subsequence the comparison falls back to edit distance.
func MostSimilar(input string, choices []string) (string, bool) {
	if len(choices) == 0 {
		return "", false
	}
	if matches := fuzzy.Find(input, choices); len(matches) > 0 {
		return choices[matches[0].Index], true
	}
	best := choices[0]
	bestDist := levenshtein(input, choices[0])
	for _, choice := range choices[1:] {
		if d := levenshtein(input, choice); d < bestDist {
			best, bestDist = choice, d
		}
	}
	return best, true
}

// ReconcileKeys forces a mapping onto exactly the required key set:
// exact matches keep their values, unmatched values are reassigned to
// the most similar unused required key, leftover required keys are
// filled with nil, and surplus input keys are dropped.
func ReconcileKeys(m map[string]any, keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	missing := make([]string, 0, len(keys))
	for _, key := range keys {
		if v, ok := m[key]; ok {
			out[key] = v
		} else {
			missing = append(missing, key)
		}
	}
	for k, v := range m {
		if _, ok := out[k]; ok {
			continue
		}
		if len(missing) == 0 {
			break
		}
		target, ok := MostSimilar(k, missing)
		if !ok {
			break
		}
		out[target] = v
		missing = remove(missing, target)
	}
	for _, key := range missing {
		out[key] = nil
	}
	return out
}

func remove(list []string, value string) []string {
	for i, item := range list {
		if item == value {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		current := make([]int, len(rb)+1)
		current[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			current[j] = min3(prev[j]+1, current[j-1]+1, prev[j-1]+cost)
		}
		prev = current
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
