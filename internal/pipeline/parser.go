package pipeline

import (
	"weighocr/internal"
	"weighocr/internal/config"
	"weighocr/internal/logger"
	"weighocr/internal/warnings"
)

// Parser turns one OCR payload into a ParsedRecord. It holds only read-only tables, so a
// single Parser may serve concurrent callers; every Parse call owns its record and warnings.
type Parser struct {
	vocab config.Vocabulary
	th    config.Thresholds
	noise map[string]struct{}
}

func NewParser(vocab config.Vocabulary, th config.Thresholds) *Parser {
	noise := make(map[string]struct{}, len(vocab.NoiseTokens))
	for _, token := range vocab.NoiseTokens {
		noise[token] = struct{}{}
	}
	return &Parser{vocab: vocab, th: th, noise: noise}
}

func NewDefaultParser() *Parser {
	return NewParser(config.DefaultVocabulary(), config.DefaultThresholds())
}

func (p *Parser) Thresholds() config.Thresholds { return p.th }

// Parse runs preprocessing, assembly and finalization. initial carries warnings raised
// while loading the payload and is not modified.
func (p *Parser) Parse(payload internal.Payload, initial *warnings.List) internal.ParsedRecord {
	pre := p.Preprocess(payload, initial)
	rec, warns := p.Assemble(pre)
	rec = p.Finalize(rec, warns)
	logger.Debug("parsed doc_type=%s lines=%d warnings=%d confidence=%.2f", rec.DocType, len(pre.Lines), len(rec.Warnings), rec.ParseConfidence)
	return rec
}

func (p *Parser) IsLowConfidence(rec internal.ParsedRecord) bool {
	return rec.ParseConfidence < p.th.LowConfidence
}
