package warnings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddStandardizesAndKeepsLegacyCode(t *testing.T) {
	l := NewList()
	l.Add(NetMismatch, nil)

	items := l.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "VAL-CHK-001", items[0].Code)
	assert.Equal(t, SeverityError, items[0].Severity)
	assert.Equal(t, NetMismatch, items[0].Context[LegacyCodeKey])
}

func TestAddDeduplicatesByCodeAndContext(t *testing.T) {
	l := NewList()
	l.Add(LabelEmptyValue, map[string]any{"label": "품명"})
	l.Add(LabelEmptyValue, map[string]any{"label": "품명"})
	l.Add(LabelEmptyValue, map[string]any{"label": "거래처"})

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, "라벨 값 누락: 품명", l.Items()[0].Message)
}

func TestAddPassesThroughUnknownAndStandardCodes(t *testing.T) {
	l := NewList()
	l.Add("custom_thing", nil)
	l.Add("ABC-DEF-123", map[string]any{"x": 1})

	items := l.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "custom_thing", items[0].Code)
	assert.Equal(t, SeverityWarn, items[0].Severity)
	assert.Nil(t, items[0].Context)
	assert.Equal(t, "ABC-DEF-123", items[1].Code)
	assert.NotContains(t, items[1].Context, LegacyCodeKey)
}

func TestAddDoesNotAliasCallerContext(t *testing.T) {
	ctx := map[string]any{"count": 2}
	l := NewList()
	l.Add(NoiseLinesRemoved, ctx)

	assert.NotContains(t, ctx, LegacyCodeKey)
	assert.Equal(t, "노이즈 라인 2개 제거", l.Items()[0].Message)
	assert.Equal(t, SeverityInfo, l.Items()[0].Severity)
}

func TestHasMatchesInternalAndExternalNames(t *testing.T) {
	l := NewList()
	l.Add(GrossInferred, nil)

	assert.True(t, l.Has(GrossInferred))
	assert.True(t, l.Has("PRS-MAP-001"))
	assert.False(t, l.Has(TareInferred))
}

func TestAddWithOverridesSeverity(t *testing.T) {
	l := NewList()
	l.AddWith(WeightExceedsLimit, map[string]any{"field": "gross_weight_kg"}, SeverityError, "")

	w := l.Items()[0]
	assert.Equal(t, SeverityError, w.Severity)
	assert.Equal(t, "무게 범위 초과: gross_weight_kg", w.Message)
}

func TestTimeOrderMessage(t *testing.T) {
	l := NewList()
	l.Add(TimeOrderReversed, map[string]any{"time_in": "10:00", "time_out": "09:00"})
	assert.Equal(t, "입차 시간이 출차 시간보다 늦음: 10:00>09:00", l.Items()[0].Message)
}

func TestStandardize(t *testing.T) {
	assert.Equal(t, "INP-FMT-001", Standardize(InputJSONFallback))
	assert.Equal(t, "INP-MISS-002", Standardize("INP-MISS-002"))
	assert.Equal(t, "whatever", Standardize("whatever"))
}

func TestCloneIsIndependent(t *testing.T) {
	l := NewList()
	l.Add(InputJSONFallback, map[string]any{"error": "boom"})
	c := l.Clone()
	c.Add(NetMismatch, nil)

	assert.Equal(t, 1, l.Len())
	assert.Equal(t, []string{"INP-FMT-001", "VAL-CHK-001"}, c.Codes())
}

func TestAddKeepsContextsThatDifferByType(t *testing.T) {
	l := NewList()
	l.Add(NoiseLinesRemoved, map[string]any{"count": 3})
	l.Add(NoiseLinesRemoved, map[string]any{"count": "3"})
	l.Add(NoiseLinesRemoved, map[string]any{"count": 3})
	assert.Equal(t, 2, l.Len())
}

func TestAddKeepsContextsThatOnlyLookAlike(t *testing.T) {
	l := NewList()
	l.Add("custom_thing", map[string]any{"a": "1|b=2"})
	l.Add("custom_thing", map[string]any{"a": "1", "b": "2"})
	assert.Equal(t, 2, l.Len())
}
