package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	weightPattern = regexp.MustCompile(`(?i)(\d[\d,\s]*)\s*kg`)
	numericSep    = strings.NewReplacer(",", "", " ", "", "\t", "", "\n", "", "\r", "", "\f", "", "\v", "")
)

type ParsedWeight struct {
	Kg  *float64
	Raw *string
}

// ParseWeight reads the first "<digits> kg" reading of the line.
// Thousands separators (commas, spaces) inside the number are dropped.
func ParseWeight(input string) ParsedWeight {
	m := weightPattern.FindStringSubmatch(input)
	if len(m) < 2 {
		return ParsedWeight{}
	}
	raw := strings.TrimSpace(m[0])
	parsed, err := strconv.ParseFloat(normalizeNumericToken(m[1]), 64)
	if err != nil {
		return ParsedWeight{Raw: &raw}
	}
	return ParsedWeight{Kg: FloatPtr(parsed), Raw: &raw}
}

// ParseAllWeights returns every "<digits> kg" reading in order of appearance.
func ParseAllWeights(input string) []float64 {
	matches := weightPattern.FindAllStringSubmatch(input, -1)
	out := make([]float64, 0, len(matches))
	for _, m := range matches {
		token := normalizeNumericToken(m[1])
		if !isDigits(token) {
			continue
		}
		parsed, err := strconv.ParseFloat(token, 64)
		if err != nil {
			continue
		}
		out = append(out, parsed)
	}
	return out
}

func normalizeNumericToken(token string) string {
	return numericSep.Replace(token)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
