package fuzzysearch

import (
	"strings"
	"sync"
)

const (
	// A filtered subset is cached only when it kept fewer than
	// retentionNum/retentionDen of its input candidates. Near-total
	// subsets prune too little to be worth an entry.
	retentionNum = 3
	retentionDen = 4

	maxCachedPrefixes = 8
)

// A CachedSearcher runs repeated searches over one fixed candidate
// collection. It remembers which candidates survived previously typed
// pattern prefixes, so that each further keystroke only re-searches the
// survivors of the longest known prefix. The ranked output is the same as
// searching the whole collection. Safe for concurrent use.
type CachedSearcher struct {
	mu         sync.Mutex
	candidates []string
	cached     []cachedPrefix
}

type cachedPrefix struct {
	pattern string
	subset  []string
}

// NewCachedSearcher creates a searcher over the given collection. The
// caller must not modify the slice afterwards.
func NewCachedSearcher(candidates []string) *CachedSearcher {
	return &CachedSearcher{candidates: candidates}
}

// NumCandidates returns the size of the underlying collection.
func (s *CachedSearcher) NumCandidates() int {
	return len(s.candidates)
}

// Search behaves like the package-level Search over the searcher's
// collection, narrowed through the prefix cache. A cancelled search
// returns nil and leaves the cache untouched.
func (s *CachedSearcher) Search(
	pattern string,
	cancelled func() bool,
) []MatchResult {
	input := s.narrowedInput(pattern)

	matches := searchInOrder(input, pattern, cancelled)
	if matches == nil {
		return nil
	}

	// The subset must be remembered in collection order, before sorting,
	// so that later narrowed searches tie-break like unnarrowed ones.
	s.maybeCache(pattern, len(input), matches)

	sortMatches(matches)

	return matches
}

func (s *CachedSearcher) narrowedInput(pattern string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	input := s.candidates
	bestLen := -1

	for _, e := range s.cached {
		if len(e.pattern) > bestLen && strings.HasPrefix(pattern, e.pattern) {
			input = e.subset
			bestLen = len(e.pattern)
		}
	}

	return input
}

func (s *CachedSearcher) maybeCache(
	pattern string,
	inputLen int,
	matches []MatchResult,
) {
	if len(pattern) == 0 {
		return
	}

	if len(matches)*retentionDen >= inputLen*retentionNum {
		return
	}

	subset := make([]string, len(matches))
	for i, m := range matches {
		subset[i] = m.Candidate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.cached {
		if e.pattern == pattern {
			s.cached[i].subset = subset
			return
		}
	}

	if len(s.cached) >= maxCachedPrefixes {
		copy(s.cached, s.cached[1:])
		s.cached = s.cached[:maxCachedPrefixes-1]
	}

	s.cached = append(s.cached, cachedPrefix{pattern: pattern, subset: subset})
}
