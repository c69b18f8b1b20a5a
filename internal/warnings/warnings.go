// Package warnings holds the de-duplicated warning sequence a parse run accumulates.
// Warnings never change control flow; they only tell consumers how far to trust a record.
package warnings

import (
	"fmt"
	"sort"
	"strings"
)

type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

type Warning struct {
	Code     string         `json:"code"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Context  map[string]any `json:"context"`
}

// List is ordered and keyed by (code, sorted context); adding a known key is a no-op.
// A List belongs to one parse run and is not safe for concurrent use.
type List struct {
	items []Warning
	seen  map[string]struct{}
}

func NewList() *List {
	return &List{seen: map[string]struct{}{}}
}

func (l *List) Add(code string, ctx map[string]any) {
	l.add(code, ctx, "", "")
}

// AddWith overrides the table severity and/or message when they are non-empty.
func (l *List) AddWith(code string, ctx map[string]any, severity Severity, message string) {
	l.add(code, ctx, severity, message)
}

func (l *List) add(code string, ctx map[string]any, severity Severity, message string) {
	copied := make(map[string]any, len(ctx)+1)
	for k, v := range ctx {
		copied[k] = v
	}

	defSeverity, defMessage := defaults(code, copied)
	if severity == "" {
		severity = defSeverity
	}
	if message == "" {
		message = defMessage
	}

	standardized := Standardize(code)
	if standardized != code {
		if _, ok := copied[LegacyCodeKey]; !ok {
			copied[LegacyCodeKey] = code
		}
	}
	if len(copied) == 0 {
		copied = nil
	}

	w := Warning{Code: standardized, Severity: severity, Message: message, Context: copied}
	key := warningKey(w)
	if l.seen == nil {
		l.seen = map[string]struct{}{}
	}
	if _, exists := l.seen[key]; exists {
		return
	}
	l.seen[key] = struct{}{}
	l.items = append(l.items, w)
}

// Has accepts either the internal name or the standardized code.
func (l *List) Has(code string) bool {
	standardized := Standardize(code)
	for _, w := range l.items {
		if w.Code == standardized {
			return true
		}
		if legacy, ok := w.Context[LegacyCodeKey]; ok && legacy == code {
			return true
		}
	}
	return false
}

func (l *List) Len() int { return len(l.items) }

func (l *List) Items() []Warning {
	out := make([]Warning, len(l.items))
	copy(out, l.items)
	return out
}

func (l *List) Clone() *List {
	out := NewList()
	out.items = append(out.items, l.items...)
	for k := range l.seen {
		out.seen[k] = struct{}{}
	}
	return out
}

func (l *List) Codes() []string {
	out := make([]string, 0, len(l.items))
	for _, w := range l.items {
		out = append(out, w.Code)
	}
	return out
}

func warningKey(w Warning) string {
	if w.Context == nil {
		return w.Code
	}
	keys := make([]string, 0, len(w.Context))
	for k := range w.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := strings.Builder{}
	b.WriteString(w.Code)
	// quoted typed values: 3 and "3" differ and no value can fake a separator
	for _, k := range keys {
		v := w.Context[k]
		fmt.Fprintf(&b, "|%q=%q", k, fmt.Sprintf("%T:%v", v, v))
	}
	return b.String()
}
