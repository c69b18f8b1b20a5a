package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// LabelSet lists the printed synonyms of every field label. Spaces inside a synonym
// are optional when matching.
type LabelSet struct {
	Date      []string `toml:"date"`
	Serial    []string `toml:"serial"`
	Vehicle   []string `toml:"vehicle"`
	Partner   []string `toml:"partner"`
	Item      []string `toml:"item"`
	Direction []string `toml:"direction"`
	Gross     []string `toml:"gross"`
	Tare      []string `toml:"tare"`
	Net       []string `toml:"net"`
	Deduction []string `toml:"deduction"`
}

// All returns the label families in assembly order.
func (l LabelSet) All() [][]string {
	return [][]string{l.Date, l.Serial, l.Vehicle, l.Partner, l.Item, l.Direction, l.Gross, l.Tare, l.Net, l.Deduction}
}

type DocType struct {
	Name     string   `toml:"name"`
	Variants []string `toml:"variants"`
}

type DocTypePrefix struct {
	Prefix  string `toml:"prefix"`
	DocType string `toml:"doc_type"`
}

type DirectionGroup struct {
	Direction string   `toml:"direction"`
	Keywords  []string `toml:"keywords"`
}

// Vocabulary holds every lookup table of the parser. Order matters wherever a slice is
// used: earlier entries win.
type Vocabulary struct {
	Labels            LabelSet          `toml:"labels"`
	DocTypes          []DocType         `toml:"doc_types"`
	DocTypePrefixes   []DocTypePrefix   `toml:"doc_type_prefixes"`
	DirectionIn       string            `toml:"direction_in"`
	DirectionOut      string            `toml:"direction_out"`
	DirectionKeywords []DirectionGroup  `toml:"direction_keywords"`
	DirectionCompact  map[string]string `toml:"direction_compact"`
	Salutations       []string          `toml:"salutations"`
	NoiseTokens       []string          `toml:"noise_tokens"`
	IssuerMarkers     []string          `toml:"issuer_markers"`
	IssuerExclude     []string          `toml:"issuer_exclude"`
	IssuerSkip        []string          `toml:"issuer_skip"`
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Labels: LabelSet{
			Date:      []string{"계량일자", "일자", "일시", "날짜", "계량 일자"},
			Serial:    []string{"일련번호", "계량횟수", "전표번호", "ID-NO", "IDNO", "ID NO"},
			Vehicle:   []string{"차량번호", "차번호", "차량No", "차량NO", "차량 No", "차량 NO"},
			Partner:   []string{"거래처", "상호", "수신처", "회사명", "회 사 명"},
			Item:      []string{"품명", "제품명", "품 명", "제 품 명"},
			Direction: []string{"구분", "구 분"},
			Gross:     []string{"총중량", "총 중량"},
			Tare:      []string{"공차중량", "차중량", "공 차 중 량", "차 중 량"},
			Net:       []string{"실중량", "실 중 량"},
			Deduction: []string{"감량", "감 량"},
		},
		DocTypes: []DocType{
			{Name: "계량증명서", Variants: []string{"계량증명서", "계량 증명서"}},
			{Name: "계량증명표", Variants: []string{"계량증명표", "계량 증명 표", "계량 증명표"}},
			{Name: "계량표", Variants: []string{"계량표", "계 량 표", "계그표"}},
			{Name: "계량확인서", Variants: []string{"계량확인서", "계량 확인서", "계 량 확 인 서"}},
		},
		DocTypePrefixes: []DocTypePrefix{
			{Prefix: "계그표", DocType: "계량표"},
		},
		DirectionIn:  "입고",
		DirectionOut: "출고",
		DirectionKeywords: []DirectionGroup{
			{Direction: "입고", Keywords: []string{"입고", "반입"}},
			{Direction: "출고", Keywords: []string{"출고", "반출"}},
		},
		DirectionCompact: map[string]string{"출": "출고"},
		Salutations:      []string{"귀하"},
		NoiseTokens:      []string{"", "N", "없다"},
		IssuerMarkers:    []string{"(주)"},
		IssuerExclude:    []string{"경기도"},
		IssuerSkip:       []string{"계량하였음을", "증명"},
	}
}

// LoadVocabulary overlays the TOML file at path onto DefaultVocabulary. Keys missing from
// the file keep their defaults.
func LoadVocabulary(path string) (Vocabulary, error) {
	vocab := DefaultVocabulary()
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &vocab); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	if err := vocab.Validate(); err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary %s: %w", path, err)
	}
	return vocab, nil
}

func (v Vocabulary) Validate() error {
	names := []string{"date", "serial", "vehicle", "partner", "item", "direction", "gross", "tare", "net", "deduction"}
	for i, family := range v.Labels.All() {
		if len(family) == 0 {
			return fmt.Errorf("label family %q is empty", names[i])
		}
		for _, label := range family {
			if strings.TrimSpace(label) == "" {
				return fmt.Errorf("label family %q has a blank synonym", names[i])
			}
		}
	}
	if strings.TrimSpace(v.DirectionIn) == "" || strings.TrimSpace(v.DirectionOut) == "" {
		return fmt.Errorf("direction_in and direction_out are required")
	}
	for _, dt := range v.DocTypes {
		if strings.TrimSpace(dt.Name) == "" {
			return fmt.Errorf("doc type without name")
		}
	}
	return nil
}
