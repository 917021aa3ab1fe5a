// Package fuzzysearch ranks candidate identifiers against a typed pattern
// for type-ahead suggestion lists.
package fuzzysearch

// Alignment scoring weights. Matching the first pattern character at the
// start of the candidate or of a delimited segment is worth far more than
// a plain match, so prefix matches beat scattered ones.
const (
	matchScore    = 1
	mismatchScore = -8
	gapScore      = -1

	firstCharBonus = 10
	delimiterBonus = 4
	camelBonus     = 2
)

// Patterns shorter than this skip the full alignment table.
const shortPatternLimit = 3

// A MatchResult reports how well one candidate fits a pattern.
type MatchResult struct {
	Candidate string

	Score int

	// Positions holds the indices of the candidate characters the pattern
	// matched, in ascending order, for highlighting.
	Positions []int
}

// Match scores one candidate against the pattern, case-insensitively. The
// second return value is false when the best alignment does not cover the
// whole pattern. An empty pattern matches everything with a neutral score.
func Match(candidate, pattern string) (MatchResult, bool) {
	if len(pattern) == 0 {
		return MatchResult{Candidate: candidate}, true
	}

	if len(candidate) == 0 {
		return MatchResult{}, false
	}

	if len(pattern) < shortPatternLimit {
		return matchShort(candidate, pattern)
	}

	return matchFull(candidate, pattern)
}

const (
	moveNone byte = iota
	moveDiag
	moveUp
	moveLeft
)

// matchFull runs the alignment table. Cell (i,j) holds the best score of
// aligning the first i pattern characters against the candidate up to j.
// Row 0 is all zero, so skipping a candidate prefix is free; skipped
// pattern characters cost a gap each and disqualify the match during the
// final count.
func matchFull(candidate, pattern string) (MatchResult, bool) {
	m, n := len(pattern), len(candidate)
	width := n + 1
	score := make([]int, (m+1)*width)
	move := make([]byte, (m+1)*width)

	for i := 1; i <= m; i++ {
		score[i*width] = i * gapScore
		move[i*width] = moveUp
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			cell := i*width + j

			diag := score[cell-width-1]
			if foldEqual(pattern[i-1], candidate[j-1]) {
				diag += matchScore + matchBonus(candidate, i, j)
			} else {
				diag += mismatchScore
			}

			up := score[cell-width] + gapScore
			left := score[cell-1] + gapScore

			best, bestMove := diag, moveDiag
			if up > best {
				best, bestMove = up, moveUp
			}
			if left > best {
				best, bestMove = left, moveLeft
			}

			score[cell], move[cell] = best, bestMove
		}
	}

	bestI, bestJ, bestScore := 0, 0, 0
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			s := score[i*width+j]
			// Deeper rows win ties so a complete alignment beats a
			// same-scoring partial one.
			if s > bestScore || (s == bestScore && s > 0 && i > bestI) {
				bestI, bestJ, bestScore = i, j, s
			}
		}
	}

	if bestScore <= 0 {
		return MatchResult{}, false
	}

	positions := backtrack(candidate, pattern, move, width, bestI, bestJ)
	if len(positions) != m {
		return MatchResult{}, false
	}

	return MatchResult{
		Candidate: candidate,
		Score:     bestScore,
		Positions: positions,
	}, true
}

func backtrack(
	candidate, pattern string,
	move []byte,
	width, i, j int,
) []int {
	positions := make([]int, 0, len(pattern))

	for i > 0 {
		switch move[i*width+j] {
		case moveDiag:
			if foldEqual(pattern[i-1], candidate[j-1]) {
				positions = append(positions, j-1)
			}
			i--
			j--
		case moveUp:
			i--
		case moveLeft:
			j--
		}
	}

	for a, b := 0, len(positions)-1; a < b; a, b = a+1, b-1 {
		positions[a], positions[b] = positions[b], positions[a]
	}

	return positions
}

// matchShort anchors the pattern at the first and the last occurrence of
// its first character, extends each anchor while consecutive characters
// keep matching, and keeps the better anchor. Scattered short matches are
// missed on purpose; this path serves single and double keystrokes where
// latency matters more than recall.
func matchShort(candidate, pattern string) (MatchResult, bool) {
	head := toLower(pattern[0])

	first, last := -1, -1
	for j := 0; j < len(candidate); j++ {
		if toLower(candidate[j]) == head {
			if first < 0 {
				first = j
			}
			last = j
		}
	}

	if first < 0 {
		return MatchResult{}, false
	}

	res, ok := anchorMatch(candidate, pattern, first)
	if last != first {
		alt, altOK := anchorMatch(candidate, pattern, last)
		if altOK && (!ok || alt.Score > res.Score) {
			res, ok = alt, true
		}
	}

	return res, ok
}

func anchorMatch(candidate, pattern string, at int) (MatchResult, bool) {
	if at+len(pattern) > len(candidate) {
		return MatchResult{}, false
	}

	score := 0
	positions := make([]int, len(pattern))

	for k := 0; k < len(pattern); k++ {
		j := at + k
		if !foldEqual(pattern[k], candidate[j]) {
			return MatchResult{}, false
		}

		positions[k] = j
		score += matchScore + matchBonus(candidate, k+1, j+1)
	}

	return MatchResult{
		Candidate: candidate,
		Score:     score,
		Positions: positions,
	}, true
}

// matchBonus is the extra score for aligning pattern character i at
// candidate position j, both 1-based.
func matchBonus(candidate string, i, j int) int {
	bonus := 0

	if i == 1 && (j == 1 || isDelimiter(candidate[j-2])) {
		bonus += firstCharBonus
	}

	switch {
	case isDelimiter(candidate[j-1]):
		bonus += delimiterBonus
	case j >= 2 && isLower(candidate[j-2]) && isUpper(candidate[j-1]):
		bonus += camelBonus
	}

	return bonus
}

func foldEqual(a, b byte) bool {
	return toLower(a) == toLower(b)
}

func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}

	return c
}

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }

func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }

func isDelimiter(c byte) bool { return c == '.' || c == '$' || c == '/' }
