// Package loader reads OCR payloads from files and mail attachments.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"weighocr/internal"
	"weighocr/internal/warnings"
)

var (
	ErrNotFound   = errors.New("file not found")
	ErrLoadFailed = errors.New("load failed")
)

// ValidationError is returned when an input cannot be read at all. Malformed JSON is not
// a ValidationError; it degrades to a text payload with a warning.
type ValidationError struct {
	Kind error
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Kind == ErrNotFound {
		return fmt.Sprintf("%v: %s", ErrNotFound, e.Path)
	}
	return fmt.Sprintf("%v: %v", ErrLoadFailed, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func notFound(path string, err error) error {
	return &ValidationError{Kind: ErrNotFound, Path: path, Err: err}
}

func loadFailed(path string, err error) error {
	return &ValidationError{Kind: ErrLoadFailed, Path: path, Err: err}
}

// Source is one parseable payload; an email may yield several.
type Source struct {
	Name     string
	Payload  internal.Payload
	Warnings *warnings.List
}

func LoadFile(path string) (internal.Payload, *warnings.List, error) {
	blob, err := readFile(path)
	if err != nil {
		return internal.Payload{}, nil, err
	}
	payload, warns, err := LoadBytes(filepath.Base(path), blob)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) && ve.Path == "" {
			ve.Path = path
		}
		return internal.Payload{}, nil, err
	}
	return payload, warns, nil
}

// LoadSourcesFile is LoadFile for inputs that may carry several payloads.
func LoadSourcesFile(path string) ([]Source, error) {
	blob, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return LoadSources(filepath.Base(path), blob)
}

func readFile(path string) ([]byte, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(path, err)
		}
		return nil, loadFailed(path, err)
	}
	return blob, nil
}

// LoadBytes decodes a single payload; the format is chosen by the extension of name.
// For an email, the first source LoadEmail returns is used.
func LoadBytes(name string, blob []byte) (internal.Payload, *warnings.List, error) {
	switch Format(name) {
	case FormatText:
		if !utf8.Valid(blob) {
			return internal.Payload{}, nil, loadFailed("", errors.New("input is not valid UTF-8"))
		}
		return internal.Payload{Text: string(blob)}, warnings.NewList(), nil
	case FormatPDF:
		pages, err := parsePDF(blob)
		if err != nil {
			return internal.Payload{}, nil, loadFailed("", err)
		}
		return internal.Payload{Pages: pages}, warnings.NewList(), nil
	case FormatXLSX:
		pages, err := parseXLSX(blob)
		if err != nil {
			return internal.Payload{}, nil, loadFailed("", err)
		}
		return internal.Payload{Pages: pages}, warnings.NewList(), nil
	case FormatHTML:
		if !utf8.Valid(blob) {
			return internal.Payload{}, nil, loadFailed("", errors.New("input is not valid UTF-8"))
		}
		page, err := parseHTML(string(blob))
		if err != nil {
			return internal.Payload{}, nil, loadFailed("", err)
		}
		return internal.Payload{Pages: []internal.Page{page}}, warnings.NewList(), nil
	case FormatEmail:
		sources, err := LoadEmail(blob)
		if err != nil {
			return internal.Payload{}, nil, err
		}
		return sources[0].Payload, sources[0].Warnings, nil
	default:
		return decodeJSON(blob)
	}
}

// LoadSources returns every payload inside blob: one for plain formats, one per
// supported attachment for an email.
func LoadSources(name string, blob []byte) ([]Source, error) {
	if Format(name) == FormatEmail {
		return LoadEmail(blob)
	}
	payload, warns, err := LoadBytes(name, blob)
	if err != nil {
		return nil, err
	}
	return []Source{{Name: name, Payload: payload, Warnings: warns}}, nil
}

func decodeJSON(blob []byte) (internal.Payload, *warnings.List, error) {
	if !utf8.Valid(blob) {
		return internal.Payload{}, nil, loadFailed("", errors.New("input is not valid UTF-8"))
	}
	warns := warnings.NewList()
	var payload internal.Payload
	if err := json.Unmarshal(blob, &payload); err != nil {
		warns.Add(warnings.InputJSONFallback, map[string]any{"error": err.Error()})
		return internal.Payload{Text: string(blob)}, warns, nil
	}
	return payload, warns, nil
}

const (
	FormatJSON  = "json"
	FormatText  = "text"
	FormatPDF   = "pdf"
	FormatXLSX  = "xlsx"
	FormatHTML  = "html"
	FormatEmail = "email"
)

// Format maps a file name to its input format; unknown extensions are read as JSON.
func Format(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return FormatText
	case ".pdf":
		return FormatPDF
	case ".xlsx":
		return FormatXLSX
	case ".html", ".htm":
		return FormatHTML
	case ".eml":
		return FormatEmail
	default:
		return FormatJSON
	}
}

// Supported reports whether name has an extension the loader handles explicitly.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".txt", ".pdf", ".xlsx", ".html", ".htm", ".eml":
		return true
	}
	return false
}
