package pipeline

import (
	"weighocr/internal"
	"weighocr/internal/loader"
)

// ParseFile loads one payload from path and parses it. Load warnings lead the record's
// warning list.
func (p *Parser) ParseFile(path string) (internal.ParsedRecord, error) {
	payload, warns, err := loader.LoadFile(path)
	if err != nil {
		return internal.ParsedRecord{}, err
	}
	return p.Parse(payload, warns), nil
}

type SourceRecord struct {
	Name   string
	Record internal.ParsedRecord
}

// ParseSources parses every payload of a multi-source input such as an email.
func (p *Parser) ParseSources(sources []loader.Source) []SourceRecord {
	out := make([]SourceRecord, 0, len(sources))
	for _, src := range sources {
		out = append(out, SourceRecord{Name: src.Name, Record: p.Parse(src.Payload, src.Warnings)})
	}
	return out
}

func (p *Parser) ParseBytes(name string, blob []byte) ([]SourceRecord, error) {
	sources, err := loader.LoadSources(name, blob)
	if err != nil {
		return nil, err
	}
	return p.ParseSources(sources), nil
}
