package fuzzysearch

import "sort"

// cancellationStride is how many candidates are scored between
// cancellation checks.
const cancellationStride = 64

// Search scores every candidate against the pattern, drops the ones the
// pattern does not fully match, and returns the rest sorted by descending
// score. Candidates with equal scores keep their input order.
//
// The cancelled function, if not nil, is consulted periodically; once it
// reports true the search unwinds and returns nil, so an interactive
// caller can abandon a stale search as the user keeps typing.
func Search(
	candidates []string,
	pattern string,
	cancelled func() bool,
) []MatchResult {
	matches := searchInOrder(candidates, pattern, cancelled)
	if matches == nil {
		return nil
	}

	sortMatches(matches)

	return matches
}

// searchInOrder returns the matches in candidate order, nil if cancelled.
func searchInOrder(
	candidates []string,
	pattern string,
	cancelled func() bool,
) []MatchResult {
	matches := make([]MatchResult, 0, len(candidates)/4+1)

	for i, c := range candidates {
		if cancelled != nil && i%cancellationStride == 0 && cancelled() {
			return nil
		}

		if res, ok := Match(c, pattern); ok {
			matches = append(matches, res)
		}
	}

	return matches
}

func sortMatches(matches []MatchResult) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
}
