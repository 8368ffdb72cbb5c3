package matching

import (
	"regexp"
	"strings"
)

const (
	substitutedEqualScore = 0.85
	soundexFullScore      = 0.8
	soundexPrefix3Score   = 0.7
	soundexPrefix2Score   = 0.6

	soundexLength = 4
)

type substitution struct {
	from, to string
}

var (
	// word-anchored rules run before the plain substitutions.
	leadingSilent = []struct {
		pattern *regexp.Regexp
		to      string
	}{
		{regexp.MustCompile(`\bwr`), "r"},
		{regexp.MustCompile(`\bkn`), "n"},
		{regexp.MustCompile(`\bgn`), "n"},
		{regexp.MustCompile(`mb\b`), "m"},
		{regexp.MustCompile(`mn\b`), "m"},
	}

	// Order matters: longer clusters first, soft c before hard c.
	phoneticSubstitutions = []substitution{
		{"sch", "sk"},
		{"tch", "ch"},
		{"tion", "shun"},
		{"sion", "shun"},
		{"ph", "f"},
		{"ck", "k"},
		{"qu", "kw"},
		{"x", "ks"},
		{"wh", "w"},
		{"dg", "j"},
		{"ee", "i"},
		{"ea", "i"},
		{"ie", "i"},
		{"oo", "u"},
		{"ce", "se"},
		{"ci", "si"},
		{"cy", "sy"},
		{"c", "k"},
		{"z", "s"},
	}

	soundexDigits = map[rune]byte{
		'b': '1', 'f': '1', 'p': '1', 'v': '1',
		'c': '2', 'g': '2', 'j': '2', 'k': '2', 'q': '2', 's': '2', 'x': '2', 'z': '2',
		'd': '3', 't': '3',
		'l': '4',
		'm': '5', 'n': '5',
		'r': '6',
	}
)

// applyPhoneticSubstitutions rewrites spellings that a transcriber confuses
// ("Philips" / "Filips", "Knight" / "Night") into one canonical form.
func applyPhoneticSubstitutions(s string) string {
	for _, rule := range leadingSilent {
		s = rule.pattern.ReplaceAllString(s, rule.to)
	}
	for _, sub := range phoneticSubstitutions {
		s = strings.ReplaceAll(s, sub.from, sub.to)
	}
	return s
}

func phoneticScore(a, b string) float64 {
	pa, pb := applyPhoneticSubstitutions(a), applyPhoneticSubstitutions(b)
	if pa == pb {
		return substitutedEqualScore
	}
	ca, cb := SoundexCode(pa), SoundexCode(pb)
	switch {
	case ca == cb:
		return soundexFullScore
	case ca[:3] == cb[:3]:
		return soundexPrefix3Score
	case ca[:2] == cb[:2]:
		return soundexPrefix2Score
	}
	return editScore(pa, pb)
}

// SoundexCode returns a 4-character phonetic fingerprint: the first letter's phonetic group
// (upper-cased) followed by consonant digits. Vowels, h, w and y break a run, so a repeated
// digit is only dropped when the consonants are truly adjacent. Inputs without letters
// yield "0000".
func SoundexCode(s string) string {
	letters := make([]rune, 0, len(s))
	for _, r := range normalize(s) {
		if r >= 'a' && r <= 'z' {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return strings.Repeat("0", soundexLength)
	}

	code := make([]byte, 0, soundexLength)
	code = append(code, byte(letterGroup(letters[0])-'a'+'A'))
	prev := soundexDigits[letters[0]]
	for _, r := range letters[1:] {
		if len(code) == soundexLength {
			break
		}
		digit, ok := soundexDigits[r]
		if !ok {
			prev = 0
			continue
		}
		if digit != prev {
			code = append(code, digit)
		}
		prev = digit
	}
	for len(code) < soundexLength {
		code = append(code, '0')
	}
	return string(code)
}
