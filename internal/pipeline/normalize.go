package pipeline

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"weighocr/internal"
	"weighocr/internal/util"
	"weighocr/internal/warnings"
)

type Preprocessed struct {
	RawText  string
	Lines    []internal.LineInfo
	Warnings *warnings.List
}

// ExtractLines picks the line source of a payload: page lines first, then whole page
// texts, then the top-level text. Empty texts are skipped.
func ExtractLines(payload internal.Payload) []string {
	if len(payload.Pages) > 0 {
		lines := []string{}
		for _, page := range payload.Pages {
			for _, line := range page.Lines {
				if line.Text != "" {
					lines = append(lines, line.Text)
				}
			}
		}
		if len(lines) > 0 {
			return lines
		}
		pageTexts := []string{}
		for _, page := range payload.Pages {
			if page.Text != "" {
				pageTexts = append(pageTexts, page.Text)
			}
		}
		if len(pageTexts) > 0 {
			return pageTexts
		}
	}
	if payload.Text != "" {
		return []string{payload.Text}
	}
	return []string{}
}

// BuildLineInfos composes decomposed Hangul before compacting so jamo sequences
// survive as syllables.
func BuildLineInfos(lines []string) []internal.LineInfo {
	out := make([]internal.LineInfo, 0, len(lines))
	for _, line := range lines {
		cleaned := util.NormalizeSpaces(norm.NFC.String(line))
		out = append(out, internal.LineInfo{
			Raw:     line,
			Cleaned: cleaned,
			Compact: util.CompactText(cleaned),
		})
	}
	return out
}

func IsNoiseLine(text string, noise map[string]struct{}) bool {
	if strings.TrimSpace(text) == "" {
		return true
	}
	_, ok := noise[util.CompactText(text)]
	return ok
}

// Preprocess never mutates initial; the returned list starts as a copy of it.
func (p *Parser) Preprocess(payload internal.Payload, initial *warnings.List) Preprocessed {
	warns := warnings.NewList()
	if initial != nil {
		warns = initial.Clone()
	}

	lines := ExtractLines(payload)
	all := BuildLineInfos(lines)
	kept := make([]internal.LineInfo, 0, len(all))
	for _, info := range all {
		if IsNoiseLine(info.Cleaned, p.noise) {
			continue
		}
		kept = append(kept, info)
	}

	if len(lines) == 0 {
		warns.Add(warnings.MissingPagesAndText, nil)
	}
	if removed := len(all) - len(kept); removed > 0 {
		warns.Add(warnings.NoiseLinesRemoved, map[string]any{"count": removed})
	}

	return Preprocessed{
		RawText:  strings.Join(lines, "\n"),
		Lines:    kept,
		Warnings: warns,
	}
}
