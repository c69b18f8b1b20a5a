package loader

import (
	"bytes"
	"strings"

	"github.com/jhillyerd/enmime"

	"weighocr/internal"
	"weighocr/internal/logger"
	"weighocr/internal/warnings"
)

type EmailInfo struct {
	Subject string
	From    string
	Date    string
}

// LoadEmail yields one source per supported attachment. When no attachment can be used
// the message body becomes the only source. Skipped attachments are reported as
// source_unsupported on the first returned source.
func LoadEmail(raw []byte) ([]Source, error) {
	_, sources, err := ReadEmail(raw)
	return sources, err
}

func ReadEmail(raw []byte) (EmailInfo, []Source, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return EmailInfo{}, nil, loadFailed("", err)
	}
	info := EmailInfo{
		Subject: env.GetHeader("Subject"),
		From:    env.GetHeader("From"),
		Date:    env.GetHeader("Date"),
	}

	skipped := []map[string]any{}
	sources := []Source{}
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		if !Supported(filename) || Format(filename) == FormatEmail {
			logger.Debug("skip attachment %s", filename)
			skipped = append(skipped, map[string]any{"name": filename})
			continue
		}
		payload, warns, err := LoadBytes(filename, att.Content)
		if err != nil {
			logger.Warn("attachment %s: %v", filename, err)
			skipped = append(skipped, map[string]any{"name": filename, "error": err.Error()})
			continue
		}
		sources = append(sources, Source{Name: filename, Payload: payload, Warnings: warns})
	}

	if len(sources) == 0 {
		sources = append(sources, Source{Name: "body", Payload: bodyPayload(env), Warnings: warnings.NewList()})
	}

	for _, ctx := range skipped {
		sources[0].Warnings.Add(warnings.SourceUnsupported, ctx)
	}
	return info, sources, nil
}

func bodyPayload(env *enmime.Envelope) internal.Payload {
	if strings.TrimSpace(env.Text) != "" {
		return internal.Payload{Pages: []internal.Page{{Lines: toLines(splitLines(env.Text))}}}
	}
	if strings.TrimSpace(env.HTML) != "" {
		if page, err := parseHTML(env.HTML); err == nil {
			return internal.Payload{Pages: []internal.Page{page}}
		}
	}
	return internal.Payload{}
}
