package search

import (
	"strings"
	"unicode/utf16"
)

func toLowerFold(s string) string { return strings.ToLower(s) }

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8RuneSelf {
			return false
		}
	}

	return true
}

const utf8RuneSelf = 0x80

// matchResult carries a scored match and whether it matched at all.
type matchResult struct {
	score int
	ok    bool
}

// scoreShort implements the ≤2-character scoring rule shared by fuzzy and
// the short-query index: score = m*10 - (m-1) - position, where m is the
// query's UTF-16 length and position is the first occurrence of the query
// as a substring (spec §4.5).
func scoreShort(queryLower, textLower string) matchResult {
	position := strings.Index(textLower, queryLower)
	if position < 0 {
		return matchResult{}
	}

	m := len(utf16.Encode([]rune(queryLower)))
	bytePos := position

	// Convert the byte offset to a UTF-16 code-unit offset so position is
	// comparable across ASCII and multi-byte text.
	u16Pos := len(utf16.Encode([]rune(textLower[:bytePos])))

	return matchResult{score: m*10 - (m - 1) - u16Pos, ok: true}
}

// scoreFuzzySubsequence runs the single-pass subsequence match of spec
// §4.5: every UTF-16 code unit of queryLower must appear, in order, inside
// textLower. Score = matched*10 - span - sum_of_gaps.
func scoreFuzzySubsequence(queryLower, textLower string) matchResult {
	q := utf16.Encode([]rune(queryLower))
	t := utf16.Encode([]rune(textLower))

	if len(q) == 0 {
		return matchResult{}
	}

	var (
		qi        int
		firstPos  = -1
		lastPos   int
		sumOfGaps int
	)

	for ti := 0; ti < len(t) && qi < len(q); ti++ {
		if t[ti] != q[qi] {
			continue
		}

		if firstPos < 0 {
			firstPos = ti
		} else {
			sumOfGaps += ti - lastPos - 1
		}

		lastPos = ti
		qi++
	}

	if qi != len(q) {
		return matchResult{}
	}

	span := lastPos - firstPos
	matched := len(q)

	return matchResult{score: matched*10 - span - sumOfGaps, ok: true}
}

// scoreFuzzy dispatches to the ≤2-char or subsequence scorer per spec §4.5.
func scoreFuzzy(queryLower, textLower string) matchResult {
	if len(utf16.Encode([]rune(queryLower))) <= 2 {
		return scoreShort(queryLower, textLower)
	}

	return scoreFuzzySubsequence(queryLower, textLower)
}

// fuzzyPlusTokenMinASCII is the minimum ASCII-character length a whitespace
// token must reach before it is required to appear as a contiguous
// substring rather than merely a fuzzy subsequence (spec §4.5).
const fuzzyPlusTokenMinASCII = 3

// scoreFuzzyPlus implements FuzzyPlus (spec §4.5): split the query on
// whitespace; tokens with ≥3 ASCII characters must appear as a contiguous
// substring (scored like scoreShort) or the candidate is vetoed; shorter
// or non-ASCII tokens fall back to scoreFuzzy. Scores sum.
func scoreFuzzyPlus(queryLower, textLower string) matchResult {
	tokens := strings.Fields(queryLower)
	if len(tokens) == 0 {
		return matchResult{}
	}

	total := 0

	for _, tok := range tokens {
		if isASCII(tok) && len(tok) >= fuzzyPlusTokenMinASCII {
			m := scoreShort(tok, textLower)
			if !m.ok {
				return matchResult{}
			}

			total += m.score

			continue
		}

		m := scoreFuzzy(tok, textLower)
		if !m.ok {
			return matchResult{}
		}

		total += m.score
	}

	return matchResult{score: total, ok: true}
}
