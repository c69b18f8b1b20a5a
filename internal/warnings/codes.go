package warnings

import (
	"fmt"
	"regexp"
)

// Internal warning names. Stored records and API consumers see the standardized
// codes from codeTable instead; the internal name survives under LegacyCodeKey.
const (
	InputJSONFallback   = "input_json_fallback"
	MissingPagesAndText = "missing_pages_and_text"
	NoiseLinesRemoved   = "noise_lines_removed"
	LabelEmptyValue     = "label_empty_value"
	GrossInferred       = "gross_inferred_from_time_weight"
	TareInferred        = "tare_inferred_from_time_weight"
	NetInferred         = "net_inferred_from_gross_tare"
	NetMismatch         = "net_mismatch"
	TimeOrderReversed   = "time_order_reversed"
	NegativeWeight      = "negative_weight"
	WeightExceedsLimit  = "weight_exceeds_limit"
	SourceUnsupported   = "source_unsupported"
)

const LegacyCodeKey = "legacy_code"

var standardCodeShape = regexp.MustCompile(`^[A-Z]{3}-[A-Z]{3,4}-\d{3}$`)

type codeInfo struct {
	code     string
	severity Severity
	message  func(ctx map[string]any) string
}

func fixed(msg string) func(map[string]any) string {
	return func(map[string]any) string { return msg }
}

// codeTable is versioned: a new warning kind needs its code, severity and message here.
var codeTable = map[string]codeInfo{
	InputJSONFallback:   {"INP-FMT-001", SeverityWarn, fixed("입력 JSON 파싱 실패로 텍스트 기반 파싱 수행")},
	SourceUnsupported:   {"INP-FMT-002", SeverityWarn, withField("name", "지원하지 않는 첨부 형식", "지원하지 않는 첨부 형식: %v")},
	MissingPagesAndText: {"INP-MISS-002", SeverityError, fixed("입력에 pages/text가 없어 라인 추출 실패")},
	NoiseLinesRemoved:   {"PRE-CHK-001", SeverityInfo, withField("count", "노이즈 라인 제거", "노이즈 라인 %v개 제거")},
	LabelEmptyValue:     {"PRS-MISS-001", SeverityWarn, withField("label", "라벨 값 누락", "라벨 값 누락: %v")},
	GrossInferred:       {"PRS-MAP-001", SeverityWarn, fixed("총중량을 시간/무게 패턴으로 추정")},
	TareInferred:        {"PRS-MAP-002", SeverityWarn, fixed("공차중량을 시간/무게 패턴으로 추정")},
	NetInferred:         {"VAL-CHK-002", SeverityWarn, fixed("실중량을 총/공차 차이로 계산")},
	NetMismatch:         {"VAL-CHK-001", SeverityError, fixed("총중량-공차중량과 실중량 불일치")},
	TimeOrderReversed:   {"VAL-CHK-003", SeverityWarn, timeOrderMessage},
	NegativeWeight:      {"VAL-CHK-004", SeverityError, withDefault("field", "음수 무게 감지: %v")},
	WeightExceedsLimit:  {"VAL-CHK-005", SeverityWarn, withDefault("field", "무게 범위 초과: %v")},
}

func withField(key, bare, format string) func(map[string]any) string {
	return func(ctx map[string]any) string {
		if v, ok := ctx[key]; ok && v != nil && v != "" {
			return fmt.Sprintf(format, v)
		}
		return bare
	}
}

func withDefault(key, format string) func(map[string]any) string {
	return func(ctx map[string]any) string {
		if v, ok := ctx[key]; ok && v != nil {
			return fmt.Sprintf(format, v)
		}
		return fmt.Sprintf(format, "unknown")
	}
}

func timeOrderMessage(ctx map[string]any) string {
	in, _ := ctx["time_in"].(string)
	out, _ := ctx["time_out"].(string)
	if in != "" && out != "" {
		return fmt.Sprintf("입차 시간이 출차 시간보다 늦음: %s>%s", in, out)
	}
	return "입차/출차 시간 순서 이상"
}

// Standardize maps an internal warning name to its external code. Codes that already
// have the external shape, and names missing from the table, are returned unchanged.
func Standardize(code string) string {
	if standardCodeShape.MatchString(code) {
		return code
	}
	if info, ok := codeTable[code]; ok {
		return info.code
	}
	return code
}

func defaults(code string, ctx map[string]any) (Severity, string) {
	info, ok := codeTable[code]
	if !ok {
		return SeverityWarn, code
	}
	return info.severity, info.message(ctx)
}
