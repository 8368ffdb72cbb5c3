package matching

import "strings"

const (
	skeletonEqualScore    = 0.75
	skeletonContainsScore = 0.65
)

var skeletonDigraphs = strings.NewReplacer(
	"ph", "f",
	"ck", "k",
	"gh", "",
	"wh", "w",
	"qu", "kw",
	"x", "ks",
)

// consonantSkeleton keeps the consonant outline of a name: "Philip" and "Filip"
// both reduce to "flp".
func consonantSkeleton(s string) string {
	var letters strings.Builder
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			letters.WriteRune(r)
		}
	}
	out := skeletonDigraphs.Replace(letters.String())
	out = strings.ReplaceAll(out, "c", "k")

	var b strings.Builder
	var last rune
	for _, r := range out {
		switch r {
		case 'a', 'e', 'i', 'o', 'u':
			continue
		}
		if r == last {
			continue
		}
		b.WriteRune(r)
		last = r
	}
	return b.String()
}

func skeletonScore(a, b string) float64 {
	sa, sb := consonantSkeleton(a), consonantSkeleton(b)
	if sa == "" || sb == "" {
		return 0
	}
	if sa == sb {
		return skeletonEqualScore
	}
	if strings.Contains(sa, sb) || strings.Contains(sb, sa) {
		return skeletonContainsScore
	}
	return 0
}
