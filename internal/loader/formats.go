package loader

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"weighocr/internal"
	"weighocr/internal/util"
)

// parsePDF reads the text layer; scanned PDFs without one yield empty pages.
func parsePDF(content []byte) ([]internal.Page, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := []internal.Page{}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		out = append(out, internal.Page{Lines: toLines(splitLines(text))})
	}
	return out, nil
}

// parseXLSX turns every sheet into a page and every non-empty row into a line.
func parseXLSX(content []byte) ([]internal.Page, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := []internal.Page{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		lines := []string{}
		for _, row := range rows {
			if line := strings.Join(normalizeCells(row), " "); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		out = append(out, internal.Page{Lines: toLines(lines)})
	}
	return out, nil
}

// parseHTML prefers table rows, which is how mailed certificates are usually laid out,
// and falls back to the visible body text.
func parseHTML(html string) (internal.Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return internal.Page{}, err
	}

	lines := []string{}
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := []string{}
		row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, cell.Text())
		})
		if line := strings.Join(normalizeCells(cells), " "); line != "" {
			lines = append(lines, line)
		}
	})
	if len(lines) > 0 {
		return internal.Page{Lines: toLines(lines)}, nil
	}

	doc.Find("script,style").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p,div,li,h1,h2,h3,h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return internal.Page{Lines: toLines(splitLines(doc.Text()))}, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		if c = util.NormalizeSpaces(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func toLines(texts []string) []internal.Line {
	out := make([]internal.Line, 0, len(texts))
	for _, t := range texts {
		out = append(out, internal.Line{Text: t})
	}
	return out
}
