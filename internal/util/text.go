package util

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"
)

var (
	reCompactGroup = regexp.MustCompile(`[0-9A-Za-z가-힣]+`)
	reTimeParen    = regexp.MustCompile(`\(\s*\d{1,2}\s*:\s*\d{2}\s*\)`)
	reTimeColon    = regexp.MustCompile(`\d{1,2}\s*:\s*\d{2}(?:\s*:\s*\d{2})?`)
	reTimeKorean   = regexp.MustCompile(`\d{1,2}\s*시\s*\d{1,2}\s*분`)

	labelRegexCache sync.Map
)

const valuePrefixChars = " :：|-"

// Span is a half-open byte range inside a line.
type Span struct {
	Start int
	End   int
}

// FuzzyThresholds controls when a fuzzy label window is accepted.
// Labels of ShortLength runes or fewer use Short, longer ones use Long.
type FuzzyThresholds struct {
	Long        float64
	Short       float64
	ShortLength int
}

var DefaultFuzzyThresholds = FuzzyThresholds{Long: 0.85, Short: 0.66, ShortLength: 3}

func NormalizeSpaces(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

func isCompactRune(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '가' && r <= '힣')
}

// CompactText keeps ASCII letters, digits and Hangul syllables only.
func CompactText(input string) string {
	out := strings.Builder{}
	for _, r := range input {
		if isCompactRune(r) {
			out.WriteRune(r)
		}
	}
	return out.String()
}

// BuildLabelRegex matches the label's characters in order with any whitespace between them.
func BuildLabelRegex(label string) *regexp.Regexp {
	key := strings.ReplaceAll(label, " ", "")
	if cached, ok := labelRegexCache.Load(key); ok {
		return cached.(*regexp.Regexp)
	}
	parts := make([]string, 0, utf8.RuneCountInString(key))
	for _, r := range key {
		parts = append(parts, regexp.QuoteMeta(string(r)))
	}
	re := regexp.MustCompile(strings.Join(parts, `\s*`))
	labelRegexCache.Store(key, re)
	return re
}

func FindLabelSpan(text string, labels []string) (Span, bool) {
	best := Span{}
	found := false
	for _, label := range labels {
		loc := BuildLabelRegex(label).FindStringIndex(text)
		if loc == nil {
			continue
		}
		if !found || loc[0] < best.Start {
			best = Span{Start: loc[0], End: loc[1]}
			found = true
		}
	}
	return best, found
}

func FindLabelSpanFuzzy(text string, labels []string, th FuzzyThresholds) (Span, bool) {
	best := Span{}
	found := false
	for _, label := range labels {
		span, ok := fuzzyLabelSpan(text, label, th)
		if !ok {
			continue
		}
		if !found || span.Start < best.Start {
			best = span
			found = true
		}
	}
	return best, found
}

func compactWithOffsets(text string) ([]rune, []int) {
	runes := make([]rune, 0, len(text))
	offsets := make([]int, 0, len(text))
	for idx, r := range text {
		if isCompactRune(r) {
			runes = append(runes, r)
			offsets = append(offsets, idx)
		}
	}
	return runes, offsets
}

func fuzzyLabelSpan(text, label string, th FuzzyThresholds) (Span, bool) {
	compact, offsets := compactWithOffsets(text)
	target := []rune(CompactText(label))
	n := len(target)
	if n == 0 || len(compact) < n {
		return Span{}, false
	}

	bestScore := 0.0
	bestStart := -1
	for start := 0; start+n <= len(compact); start++ {
		window := compact[start : start+n]
		if window[0] != target[0] {
			continue
		}
		score := sequenceRatio(target, window)
		if score > bestScore {
			bestScore = score
			bestStart = start
		}
	}

	threshold := th.Long
	if n <= th.ShortLength {
		threshold = th.Short
	}
	if bestStart < 0 || bestScore < threshold {
		return Span{}, false
	}
	last := bestStart + n - 1
	return Span{Start: offsets[bestStart], End: offsets[last] + utf8.RuneLen(compact[last])}, true
}

func StripValuePrefix(input string) string {
	return strings.TrimLeft(input, valuePrefixChars)
}

func CleanVehicleNo(input string) *string {
	parts := reCompactGroup.FindAllString(input, -1)
	if len(parts) == 0 {
		return nil
	}
	return StringPtr(strings.Join(parts, ""))
}

// CleanItemName drops spaces and a trailing "구분" column header glued onto the value.
func CleanItemName(input string) *string {
	compact := strings.ReplaceAll(input, " ", "")
	compact = strings.TrimSuffix(compact, "구분")
	if compact == "" {
		return nil
	}
	return StringPtr(compact)
}

// StripTimeTokens blanks clock readings so their digits are never read as weights.
func StripTimeTokens(input string) string {
	s := reTimeParen.ReplaceAllString(input, " ")
	s = reTimeColon.ReplaceAllString(s, " ")
	s = reTimeKorean.ReplaceAllString(s, " ")
	return s
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }
