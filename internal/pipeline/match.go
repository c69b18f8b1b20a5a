package pipeline

import (
	"strings"

	"weighocr/internal"
	"weighocr/internal/logger"
	"weighocr/internal/util"
	"weighocr/internal/warnings"
)

// labelMatch is where a label family was found on a line and which synonym hit.
type labelMatch struct {
	span  util.Span
	label string
	fuzzy bool
}

// matchLabel finds the earliest exact synonym; fuzzy matching is only tried when no
// synonym matches exactly.
func (p *Parser) matchLabel(text string, labels []string) (labelMatch, bool) {
	best := labelMatch{}
	found := false
	for _, label := range labels {
		span, ok := util.FindLabelSpan(text, []string{label})
		if ok && (!found || span.Start < best.span.Start) {
			best = labelMatch{span: span, label: label}
			found = true
		}
	}
	if found {
		return best, true
	}
	for _, label := range labels {
		span, ok := util.FindLabelSpanFuzzy(text, []string{label}, p.th.Fuzzy)
		if ok && (!found || span.Start < best.span.Start) {
			best = labelMatch{span: span, label: label, fuzzy: true}
			found = true
		}
	}
	return best, found
}

// selectValueAfterLabel returns the trimmed text after the label, or nil. A label with
// nothing after it is reported as label_empty_value.
func (p *Parser) selectValueAfterLabel(line internal.LineInfo, labels []string, warns *warnings.List) *string {
	m, ok := p.matchLabel(line.Cleaned, labels)
	if !ok {
		return nil
	}
	if m.fuzzy {
		logger.Debug("fuzzy label %q matched %q", m.label, line.Cleaned[m.span.Start:m.span.End])
	}
	value := strings.TrimSpace(util.StripValuePrefix(line.Cleaned[m.span.End:]))
	if value == "" {
		warns.Add(warnings.LabelEmptyValue, map[string]any{"label": strings.ReplaceAll(m.label, " ", "")})
		return nil
	}
	return &value
}

// splitItemDirection handles "품명: X 구분: Y" printed on one line.
func (p *Parser) splitItemDirection(line internal.LineInfo) (item *string, direction *string) {
	itemSpan, ok := util.FindLabelSpan(line.Cleaned, p.vocab.Labels.Item)
	if !ok {
		return nil, nil
	}
	dirSpan, ok := util.FindLabelSpan(line.Cleaned, p.vocab.Labels.Direction)
	if !ok {
		return nil, nil
	}
	if itemSpan.End >= dirSpan.Start {
		return nil, nil
	}
	itemValue := strings.TrimSpace(util.StripValuePrefix(line.Cleaned[itemSpan.End:dirSpan.Start]))
	dirValue := strings.TrimSpace(util.StripValuePrefix(line.Cleaned[dirSpan.End:]))
	if itemValue != "" {
		item = &itemValue
	}
	if dirValue != "" {
		direction = &dirValue
	}
	return item, direction
}
