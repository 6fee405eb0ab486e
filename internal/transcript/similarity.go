package transcript

import (
	"strings"
	"unicode"
)

// normalizeForComparison lowercases s and strips whitespace, punctuation,
// and symbol runes. Comparing normalised forms makes the similarity and
// containment checks insensitive to the cosmetic edits a formatting model
// is supposed to make (punctuation, spacing, line breaks).
func normalizeForComparison(s string) []rune {
	var out []rune
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// similarityRatio computes the Ratcliff/Obershelp similarity of two rune
// sequences: 2×M / (len(a)+len(b)) where M is the total length of matching
// blocks. Two empty sequences are identical (ratio 1).
func similarityRatio(a, b []rune) float64 {
	if len(a)+len(b) == 0 {
		return 1.0
	}
	m := matchingBlocksTotal(a, b)
	return 2 * float64(m) / float64(len(a)+len(b))
}

// matchingBlocksTotal sums the lengths of all matching blocks found by
// recursively splitting around the longest common block, the same divide
// and conquer the Ratcliff/Obershelp algorithm uses.
func matchingBlocksTotal(a, b []rune) int {
	type span struct{ alo, ahi, blo, bhi int }

	total := 0
	stack := []span{{0, len(a), 0, len(b)}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ai, bi, size := longestCommonBlock(a, b, s.alo, s.ahi, s.blo, s.bhi)
		if size == 0 {
			continue
		}
		total += size
		stack = append(stack,
			span{s.alo, ai, s.blo, bi},
			span{ai + size, s.ahi, bi + size, s.bhi},
		)
	}
	return total
}

// longestCommonBlock finds the longest run of equal runes between
// a[alo:ahi] and b[blo:bhi]. It runs in O((ahi-alo)·(bhi-blo)) time with
// O(bhi-blo) extra space, which is fine for utterance-sized inputs.
func longestCommonBlock(a, b []rune, alo, ahi, blo, bhi int) (besti, bestj, bestsize int) {
	besti, bestj = alo, blo
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for j := blo; j < bhi; j++ {
			if a[i] != b[j] {
				continue
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return besti, bestj, bestsize
}

// contentRunes returns the letter and ideograph runes of s, lowercased.
// Digits, punctuation, and whitespace carry no signal for the novel-content
// check: a model may legitimately normalise numbers while reformatting.
func contentRunes(s string) []rune {
	var out []rune
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) {
			out = append(out, r)
		}
	}
	return out
}
