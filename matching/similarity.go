// Package matching scores spoken, possibly mis-transcribed names against a client
// directory. Every function here is pure and safe for concurrent use.
package matching

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	exactScore       = 1.0
	containmentScore = 0.9
	firstLetterBonus = 0.1

	wordMatchThreshold = 0.7
	wordMatchWeight    = 0.8
)

// Similarity scores two free-text strings in [0,1].
//
// Exact (after normalisation) is 1.0 and containment in either direction is 0.9. Otherwise
// the result is the best of the edit-distance, phonetic, consonant-skeleton and word-level
// scores, plus 0.1 when both strings start with the same phonetic letter group.
// The phonetic tiers are not guaranteed to be symmetric.
func Similarity(a, b string) float64 {
	na, nb := normalize(a), normalize(b)
	if na == nb {
		return exactScore
	}
	if na == "" || nb == "" {
		return 0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return containmentScore
	}

	best := max(
		editScore(na, nb),
		phoneticScore(na, nb),
		skeletonScore(na, nb),
		wordScore(na, nb),
	)
	if sameFirstLetterGroup(na, nb) {
		best += firstLetterBonus
	}
	return clamp01(best)
}

// normalize lower-cases, folds accents ("José" -> "jose") and collapses whitespace.
func normalize(s string) string {
	// Transformers carry state; build one per call so Similarity stays goroutine-safe.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// editScore is 1 - levenshtein(a,b)/max(len(a),len(b)), lengths in runes.
func editScore(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return exactScore
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// wordScore compares every word of a with every word of b and keeps the best pair
// whose edit ratio clears wordMatchThreshold, scaled by wordMatchWeight.
func wordScore(a, b string) float64 {
	best := 0.0
	for _, wa := range strings.Fields(a) {
		for _, wb := range strings.Fields(b) {
			ratio := editScore(wa, wb)
			if ratio > wordMatchThreshold && ratio > best {
				best = ratio
			}
		}
	}
	return best * wordMatchWeight
}

func sameFirstLetterGroup(a, b string) bool {
	ra, _ := utf8.DecodeRuneInString(a)
	rb, _ := utf8.DecodeRuneInString(b)
	return letterGroup(ra) == letterGroup(rb)
}

// letterGroup folds letters that transcription commonly swaps at the start of a name.
func letterGroup(r rune) rune {
	switch r {
	case 'c', 'k', 'q':
		return 'k'
	case 's', 'z':
		return 's'
	case 'g', 'j':
		return 'g'
	case 'f', 'v', 'p':
		return 'f'
	}
	return r
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
