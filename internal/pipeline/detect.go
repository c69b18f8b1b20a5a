package pipeline

import (
	"strings"
	"unicode/utf8"

	"weighocr/internal"
	"weighocr/internal/util"
)

// DetectDirection returns the direction whose keyword appears in text. A bare token
// such as "출" is only accepted when it is the whole compacted text.
func (p *Parser) DetectDirection(text string) *string {
	for _, group := range p.vocab.DirectionKeywords {
		for _, keyword := range group.Keywords {
			if keyword != "" && strings.Contains(text, keyword) {
				return util.StringPtr(group.Direction)
			}
		}
	}
	if direction, ok := p.vocab.DirectionCompact[util.CompactText(text)]; ok {
		return util.StringPtr(direction)
	}
	return nil
}

func (p *Parser) DetectDocType(lines []internal.LineInfo) string {
	for _, line := range lines {
		for _, dt := range p.vocab.DocTypes {
			for _, variant := range dt.Variants {
				compact := util.CompactText(variant)
				if compact != "" && strings.Contains(line.Compact, compact) {
					return dt.Name
				}
			}
		}
	}
	for _, line := range lines {
		for _, prefix := range p.vocab.DocTypePrefixes {
			if prefix.Prefix != "" && strings.HasPrefix(line.Compact, prefix.Prefix) {
				return prefix.DocType
			}
		}
	}
	return internal.UnknownDocType
}

// FindIssuer prefers a corporate-marked line from the top of the document; otherwise it
// takes the last line that is not a label, a timestamp, GPS or certification boilerplate.
func (p *Parser) FindIssuer(lines []internal.LineInfo) *string {
	for _, line := range lines {
		spaceless := strings.ReplaceAll(line.Cleaned, " ", "")
		if containsAny(spaceless, p.vocab.IssuerMarkers) && !containsAny(line.Cleaned, p.vocab.IssuerExclude) {
			return util.StringPtr(spaceless)
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if strings.TrimSpace(line.Cleaned) == "" {
			continue
		}
		if ExtractTimestamp(line.Cleaned) != nil || ExtractGPS(line.Cleaned) != nil {
			continue
		}
		if containsAny(line.Cleaned, p.vocab.IssuerSkip) {
			continue
		}
		if p.isLabelLine(line) {
			continue
		}
		if utf8.RuneCountInString(line.Cleaned) >= 2 {
			return util.StringPtr(line.Cleaned)
		}
	}
	return nil
}

func (p *Parser) isLabelLine(line internal.LineInfo) bool {
	for _, family := range p.vocab.Labels.All() {
		if _, ok := util.FindLabelSpan(line.Cleaned, family); ok {
			return true
		}
	}
	return false
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if token != "" && strings.Contains(text, token) {
			return true
		}
	}
	return false
}
