package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weighocr/internal"
	"weighocr/internal/warnings"
)

func linesOf(texts ...string) []internal.LineInfo {
	return BuildLineInfos(texts)
}

func TestDetectDirection(t *testing.T) {
	p := NewDefaultParser()
	cases := map[string]any{
		"입고":       "입고",
		"반입 차량":    "입고",
		"반출":       "출고",
		"입고 후 출고":  "입고",
		" 출 ":      "출고",
		"출하":       nil,
		"구분 없음":    nil,
	}
	for in, want := range cases {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, deref(p.DetectDirection(in)))
		})
	}
}

func TestDetectDocType(t *testing.T) {
	p := NewDefaultParser()
	assert.Equal(t, "계량확인서", p.DetectDocType(linesOf("주식회사", "계 량 확 인 서")))
	assert.Equal(t, "계량증명서", p.DetectDocType(linesOf("계량증명서", "계량표")))
	assert.Equal(t, "계량표", p.DetectDocType(linesOf("계그표")))
	assert.Equal(t, internal.UnknownDocType, p.DetectDocType(linesOf("영수증")))
	assert.Equal(t, internal.UnknownDocType, p.DetectDocType(nil))
}

func TestFindIssuer(t *testing.T) {
	p := NewDefaultParser()

	assert.Equal(t, "(주)하은펄프", deref(p.FindIssuer(linesOf("( 주 ) 하은 펄프", "총중량 1 kg"))))
	assert.Equal(t, "대한계량", deref(p.FindIssuer(linesOf(
		"(주)경기도청",
		"총중량: 100 kg",
		"대한계량",
		"위와 같이 계량하였음을 증명함",
		"2025-12-01 10:22:33",
		"37.1, 127.2",
	))))
	assert.Nil(t, p.FindIssuer(linesOf("총중량: 1 kg", "가")))
}

func TestSelectValueAfterLabel(t *testing.T) {
	p := NewDefaultParser()
	labels := p.vocab.Labels

	warns := warnings.NewList()
	line := linesOf("차 량 번 호 :： 12가 3456")[0]
	assert.Equal(t, "12가 3456", deref(p.selectValueAfterLabel(line, labels.Vehicle, warns)))

	line = linesOf("공차중량 | 7,470 kg")[0]
	assert.Equal(t, "7,470 kg", deref(p.selectValueAfterLabel(line, labels.Tare, warns)))

	line = linesOf("차중랑: 7,470 kg")[0]
	assert.Equal(t, "7,470 kg", deref(p.selectValueAfterLabel(line, labels.Tare, warns)))

	line = linesOf("공자중량: 7,470 kg")[0]
	assert.Nil(t, p.selectValueAfterLabel(line, labels.Tare, warns), "0.75 is below the long-label threshold")

	assert.Equal(t, 0, warns.Len())

	line = linesOf("회 사 명 -")[0]
	assert.Nil(t, p.selectValueAfterLabel(line, labels.Partner, warns))
	require.Equal(t, 1, warns.Len())
	assert.Equal(t, "회사명", warns.Items()[0].Context["label"])

	line = linesOf("총중량 1 kg")[0]
	assert.Nil(t, p.selectValueAfterLabel(line, labels.Partner, warns))
}

func TestSplitItemDirection(t *testing.T) {
	p := NewDefaultParser()

	item, dir := p.splitItemDirection(linesOf("품명: 국판 구분: 출고")[0])
	assert.Equal(t, "국판", deref(item))
	assert.Equal(t, "출고", deref(dir))

	item, dir = p.splitItemDirection(linesOf("구분: 출고 품명: 국판")[0])
	assert.Nil(t, item)
	assert.Nil(t, dir)

	item, dir = p.splitItemDirection(linesOf("품명 구분")[0])
	assert.Nil(t, item)
	assert.Nil(t, dir)
}

func TestAssemblyRuleOrder(t *testing.T) {
	names := make([]string, 0, len(assemblyRules))
	for _, r := range assemblyRules {
		names = append(names, r.name)
	}
	assert.Equal(t, []string{
		"salutation", "date", "serial", "vehicle", "partner", "item_direction",
		"item", "direction", "direction_text", "weights", "time_weight", "footer",
	}, names)
}

func TestPreprocessDropsNoise(t *testing.T) {
	p := NewDefaultParser()
	pre := p.Preprocess(payloadOf("  계량  표 ", "N", "-", "없다"), nil)

	require.Len(t, pre.Lines, 1)
	assert.Equal(t, "계량 표", pre.Lines[0].Cleaned)
	assert.Equal(t, "계량표", pre.Lines[0].Compact)
	assert.Equal(t, "  계량  표 ", pre.Lines[0].Raw)
	assert.Equal(t, "  계량  표 \nN\n-\n없다", pre.RawText)
	require.Equal(t, 1, pre.Warnings.Len())
	assert.Equal(t, 3, pre.Warnings.Items()[0].Context["count"])
}
