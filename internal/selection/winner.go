// Package selection picks the single best candidate under a policy and keeps
// at most one media asset selected per entity.
package selection

import "math"

// Winner returns the eligible candidate with the highest score. Equal scores
// are ordered by better, which must be a strict total order for the result
// to be deterministic. ok is false when no candidate is eligible.
func Winner[T any](candidates []T, score func(T) float64, eligible func(T) bool, better func(a, b T) bool) (best T, ok bool) {
	bestScore := math.Inf(-1)
	for _, c := range candidates {
		if eligible != nil && !eligible(c) {
			continue
		}
		s := score(c)
		if math.IsNaN(s) {
			s = math.Inf(-1)
		}
		switch {
		case !ok, s > bestScore:
			best, bestScore, ok = c, s, true
		case s == bestScore && better != nil && better(c, best):
			best = c
		}
	}
	return best, ok
}
