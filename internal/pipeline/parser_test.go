package pipeline

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"weighocr/internal"
	"weighocr/internal/config"
	"weighocr/internal/warnings"
)

func payloadOf(lines ...string) internal.Payload {
	page := internal.Page{}
	for _, l := range lines {
		page.Lines = append(page.Lines, internal.Line{Text: l})
	}
	return internal.Payload{Pages: []internal.Page{page}}
}

func codesOf(rec internal.ParsedRecord) []string {
	out := []string{}
	for _, w := range rec.Warnings {
		out = append(out, w.Code)
	}
	return out
}

var fullCertificate = []string{
	"(주)하은펄프 경기도 화성시",
	"계량증명표",
	"계량일자: 2025-12-01 0012",
	"차량번호: 경기12가0580",
	"거래처: 신성(푸디스트)",
	"품명: 국판 구분: 출고",
	"총중량: 14,230 kg",
	"공차중량: 12,910 kg",
	"실중량: 1,320 kg",
	"감량: 0 kg",
	"위와 같이 계량하였음을 증명합니다.",
	"(주)하은펄프",
	"2025-12-01 10:22:33",
	"37.5665, 126.9780",
}

func TestParseFullCertificate(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf(fullCertificate...), nil)

	assert.Equal(t, "계량증명표", rec.DocType)
	assert.Equal(t, "2025-12-01", deref(rec.WeighDate))
	assert.Equal(t, "0012", deref(rec.SerialNo))
	assert.Equal(t, "경기12가0580", deref(rec.VehicleNo))
	assert.Equal(t, "신성(푸디스트)", deref(rec.PartnerName))
	assert.Equal(t, "국판", deref(rec.ItemName))
	assert.Equal(t, "출고", deref(rec.Direction))
	assert.Equal(t, 14230.0, deref(rec.GrossWeightKg))
	assert.Equal(t, 12910.0, deref(rec.TareWeightKg))
	assert.Equal(t, 1320.0, deref(rec.NetWeightKg))
	assert.Equal(t, 0.0, deref(rec.DeductionWeightKg))
	assert.Equal(t, "(주)하은펄프", deref(rec.Issuer))
	assert.Equal(t, "2025-12-01 10:22:33", deref(rec.Timestamp))
	require.NotNil(t, rec.GPS)
	assert.Equal(t, internal.GPS{Lat: 37.5665, Lng: 126.978}, *rec.GPS)
	assert.Nil(t, rec.WeighTimeIn)
	assert.Nil(t, rec.WeighTimeOut)
	assert.Empty(t, rec.Warnings)
	assert.Equal(t, 1.0, rec.ParseConfidence)
}

func TestParseFuzzyLabel(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf("총중량: 1,500 kg", "차중랑: 1,200 kg", "실중량: 300 kg"), nil)

	assert.Equal(t, 1500.0, deref(rec.GrossWeightKg))
	assert.Equal(t, 1200.0, deref(rec.TareWeightKg))
	assert.Equal(t, 300.0, deref(rec.NetWeightKg))
	assert.Empty(t, rec.Warnings)
	assert.InDelta(t, 0.85, rec.ParseConfidence, 1e-9)
}

func TestParseMultipleTimeWeightPairs(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf("01:00 1,000 kg", "01:10 800 kg", "01:20 900 kg"), nil)

	assert.Equal(t, 1000.0, deref(rec.GrossWeightKg))
	assert.Equal(t, 800.0, deref(rec.TareWeightKg))
	assert.Equal(t, 200.0, deref(rec.NetWeightKg))
	assert.Equal(t, "01:00", deref(rec.WeighTimeIn))
	assert.Equal(t, "01:10", deref(rec.WeighTimeOut))
	assert.Equal(t, []string{"PRS-MAP-001", "PRS-MAP-002", "VAL-CHK-002"}, codesOf(rec))
	assert.InDelta(t, 0.72, rec.ParseConfidence, 1e-9)
}

func TestParseInferredWithLabeledNet(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf(
		"계량증명서",
		"일자 2026.02.02",
		"차량번호 8713 입고",
		"10:01 12,480 kg",
		"10:25 7,470 kg",
		"실중량 5,010 kg",
		"2026-02-02 10:30:00",
	), nil)

	assert.Equal(t, "계량증명서", rec.DocType)
	assert.Equal(t, "2026-02-02", deref(rec.WeighDate))
	assert.Equal(t, "8713", deref(rec.VehicleNo))
	assert.Equal(t, "입고", deref(rec.Direction))
	assert.Equal(t, 12480.0, deref(rec.GrossWeightKg))
	assert.Equal(t, 7470.0, deref(rec.TareWeightKg))
	assert.Equal(t, 5010.0, deref(rec.NetWeightKg))
	assert.Equal(t, "10:25 7,470 kg", deref(rec.Issuer))
	assert.Equal(t, []string{"PRS-MAP-001", "PRS-MAP-002"}, codesOf(rec))
	assert.InDelta(t, 0.80, rec.ParseConfidence, 1e-9)
}

func TestParseExtremeWeight(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf("총중량: 200,000 kg", "공차중량: 0 kg"), nil)

	assert.Equal(t, 0.0, deref(rec.TareWeightKg))
	assert.Equal(t, 200000.0, deref(rec.NetWeightKg))
	require.Contains(t, codesOf(rec), "VAL-CHK-005")
	assert.Contains(t, codesOf(rec), "VAL-CHK-002")

	w := rec.Warnings[0]
	assert.Equal(t, "VAL-CHK-005", w.Code)
	assert.Equal(t, warnings.SeverityWarn, w.Severity)
	assert.Equal(t, "gross_weight_kg", w.Context["field"])
	assert.Equal(t, 200000.0, w.Context["value"])
}

func TestParseMalformedDate(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf("날짜: 2026-2-1", "총중량: 100 kg"), nil)
	assert.Nil(t, rec.WeighDate)
	assert.Equal(t, 100.0, deref(rec.GrossWeightKg))
}

func TestParseMissingLabelValues(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf(
		"계량표", "거래처:", "품명 :", "총중량: 10,000 kg", "공차중량: 4,000 kg", "실중량: 6,000 kg", "2026-01-05 09:00:00",
	), nil)

	assert.Equal(t, "계량표", rec.DocType)
	assert.Nil(t, rec.PartnerName)
	assert.Nil(t, rec.ItemName)
	assert.Equal(t, []string{"PRS-MISS-001", "PRS-MISS-001"}, codesOf(rec))
	assert.Equal(t, "라벨 값 누락: 거래처", rec.Warnings[0].Message)
	assert.Equal(t, "라벨 값 누락: 품명", rec.Warnings[1].Message)
	assert.InDelta(t, 0.90, rec.ParseConfidence, 1e-9)
}

func TestParseDeduplicatesWarnings(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf("품명:", "품명:", "거래처 :", "품명 :"), nil)

	require.Len(t, rec.Warnings, 2)
	assert.Equal(t, "품명", rec.Warnings[0].Context["label"])
	assert.Equal(t, "거래처", rec.Warnings[1].Context["label"])
}

func TestParseSalutationReversedTimesAndMismatch(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf(
		"신성 상사 귀하",
		"구분: 반입",
		"차량번호: 12가3456 출고",
		"총중량 (09:10) 9,000 kg",
		"공차중량 (08:50) 3,000 kg",
		"실중량 5,000 kg",
	), nil)

	assert.Equal(t, "신성상사", deref(rec.PartnerName))
	assert.Equal(t, "12가3456", deref(rec.VehicleNo))
	assert.Equal(t, "출고", deref(rec.Direction))
	assert.Equal(t, "09:10", deref(rec.WeighTimeIn))
	assert.Equal(t, "08:50", deref(rec.WeighTimeOut))
	assert.Equal(t, []string{"VAL-CHK-003", "VAL-CHK-001"}, codesOf(rec))
	assert.Equal(t, "입차 시간이 출차 시간보다 늦음: 09:10>08:50", rec.Warnings[0].Message)
	assert.Equal(t, warnings.SeverityError, rec.Warnings[1].Severity)
	assert.InDelta(t, 0.80, rec.ParseConfidence, 1e-9)
}

func TestParseWeakDirectionEscalatesToOutbound(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf("차량번호: 12가3456 입고", "반출 처리", "품명: 고철"), nil)
	assert.Equal(t, "출고", deref(rec.Direction))
	assert.Equal(t, "고철", deref(rec.ItemName))

	rec = NewDefaultParser().Parse(payloadOf("반출", "반입"), nil)
	assert.Equal(t, "출고", deref(rec.Direction), "weak inbound never replaces weak outbound")
}

func TestParseItemDirectionOnOneLine(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf("제품명: 고 철 구분", "구분 : 출"), nil)

	assert.Equal(t, "고철", deref(rec.ItemName))
	assert.Equal(t, "출고", deref(rec.Direction))
	assert.Equal(t, []string{"PRS-MISS-001"}, codesOf(rec))
	assert.Equal(t, "구분", rec.Warnings[0].Context["label"])
	assert.Nil(t, rec.Issuer)
}

func TestParseKoreanTimes(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf("총중량 9시 5분 1,000kg", "공차중량 9시 30분 400kg"), nil)

	assert.Equal(t, "09:05", deref(rec.WeighTimeIn))
	assert.Equal(t, "09:30", deref(rec.WeighTimeOut))
	assert.Equal(t, 600.0, deref(rec.NetWeightKg))
	assert.Equal(t, []string{"VAL-CHK-002"}, codesOf(rec))
	assert.InDelta(t, 0.82, rec.ParseConfidence, 1e-9)
}

func TestParseNoiseAndSerial(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf("N", "  ", "없다", "계그표 번호", "일련번호:", "ID-NO: 77 12"), nil)

	assert.Equal(t, "계량표", rec.DocType)
	assert.Equal(t, "7712", deref(rec.SerialNo))
	require.Len(t, rec.Warnings, 2)
	assert.Equal(t, "PRE-CHK-001", rec.Warnings[0].Code)
	assert.Equal(t, 3, rec.Warnings[0].Context["count"])
	assert.Equal(t, warnings.SeverityInfo, rec.Warnings[0].Severity)
	assert.Equal(t, "일련번호", rec.Warnings[1].Context["label"])
}

func TestParseEmptyPayload(t *testing.T) {
	rec := NewDefaultParser().Parse(internal.Payload{}, nil)

	assert.Equal(t, internal.UnknownDocType, rec.DocType)
	assert.Equal(t, "", rec.RawText)
	assert.Equal(t, []string{"INP-MISS-002"}, codesOf(rec))
	assert.Equal(t, warnings.SeverityError, rec.Warnings[0].Severity)
	assert.InDelta(t, 0.85, rec.ParseConfidence, 1e-9)
}

func TestParsePageTextFallback(t *testing.T) {
	payload := internal.Payload{Pages: []internal.Page{{Text: "총중량 100 kg"}, {}}, Text: "ignored"}
	rec := NewDefaultParser().Parse(payload, nil)

	assert.Equal(t, 100.0, deref(rec.GrossWeightKg))
	assert.Equal(t, "총중량 100 kg", rec.RawText)
	assert.Empty(t, rec.Warnings)
}

func TestParseKeepsInitialWarningsFirst(t *testing.T) {
	initial := warnings.NewList()
	initial.Add(warnings.InputJSONFallback, map[string]any{"error": "invalid character"})

	rec := NewDefaultParser().Parse(internal.Payload{Text: "{ invalid json"}, initial)

	assert.Equal(t, "INP-FMT-001", rec.Warnings[0].Code)
	assert.Equal(t, "{ invalid json", rec.RawText)
	assert.Equal(t, 1, initial.Len())
}

func TestParseComposesDecomposedHangul(t *testing.T) {
	decomposed := norm.NFD.String("총중량: 1,500 kg")
	require.NotEqual(t, "총중량: 1,500 kg", decomposed)

	rec := NewDefaultParser().Parse(payloadOf(decomposed), nil)
	assert.Equal(t, 1500.0, deref(rec.GrossWeightKg))
	assert.Equal(t, decomposed, rec.RawText)
}

func TestParseIsDeterministic(t *testing.T) {
	p := NewDefaultParser()
	payload := payloadOf(append([]string{"품명:", "01:00 1,000 kg", "01:10 800 kg"}, fullCertificate...)...)

	first, err := json.Marshal(p.Parse(payload, nil))
	require.NoError(t, err)
	second, err := json.Marshal(p.Parse(payload, nil))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestParserIsSafeForConcurrentUse(t *testing.T) {
	p := NewDefaultParser()
	payload := payloadOf(fullCertificate...)
	want, err := json.Marshal(p.Parse(payload, nil))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]byte, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = json.Marshal(p.Parse(payload, nil))
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, string(want), string(got))
	}
}

func TestParseHonoursThresholds(t *testing.T) {
	th := config.DefaultThresholds()
	th.MaxWeightKg = 1000
	th.MinWeightKg = 500
	th.NetToleranceKg = 50
	p := NewParser(config.DefaultVocabulary(), th)

	rec := p.Parse(payloadOf("총중량: 1,200 kg", "공차중량: 400 kg", "실중량: 760 kg"), nil)

	assert.Equal(t, []string{"VAL-CHK-005", "VAL-CHK-004"}, codesOf(rec))
	assert.Equal(t, "gross_weight_kg", rec.Warnings[0].Context["field"])
	assert.Equal(t, "음수 무게 감지: tare_weight_kg", rec.Warnings[1].Message)
	assert.True(t, p.IsLowConfidence(internal.ParsedRecord{ParseConfidence: 0.5}))
	assert.False(t, p.IsLowConfidence(rec))
}

func TestParseRecordJSONShape(t *testing.T) {
	rec := NewDefaultParser().Parse(payloadOf("총중량: 100 kg"), nil)
	blob, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(blob, &decoded))
	assert.Contains(t, decoded, "weigh_date")
	assert.Nil(t, decoded["weigh_date"])
	assert.Nil(t, decoded["gps"])
	assert.Equal(t, []any{}, decoded["warnings"])
	assert.Equal(t, 100.0, decoded["gross_weight_kg"])
}

func TestParseVehicleKeywordDowngradesLabeledDirection(t *testing.T) {
	p := NewDefaultParser()

	rec := p.Parse(payloadOf("구분: 반입", "차량번호: 12가3456 출고"), nil)
	assert.Equal(t, "출고", deref(rec.Direction))
	assert.Equal(t, "12가3456", deref(rec.VehicleNo))

	// an inbound keyword never overrides once the source is weak
	rec = p.Parse(payloadOf("구분: 반출", "차량번호: 12가3456 입고"), nil)
	assert.Equal(t, "출고", deref(rec.Direction))
}
