package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWeight(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "thousand comma", input: "1,500 kg", want: 1500},
		{name: "thousand space", input: "12 480kg", want: 12480},
		{name: "upper case unit", input: "총 7,470 KG", want: 7470},
		{name: "zero", input: "0 kg", want: 0},
		{name: "first of two", input: "14,230 kg 12,910 kg", want: 14230},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed := ParseWeight(tc.input)
			require.NotNil(t, parsed.Kg)
			assert.Equal(t, tc.want, *parsed.Kg)
		})
	}
}

func TestParseWeightWithoutUnit(t *testing.T) {
	parsed := ParseWeight("1,500")
	assert.Nil(t, parsed.Kg)
	assert.Nil(t, parsed.Raw)
}

func TestParseAllWeights(t *testing.T) {
	assert.Equal(t, []float64{14230, 12910, 1320}, ParseAllWeights("14,230 kg / 12,910 kg / 1,320 kg"))
	assert.Empty(t, ParseAllWeights("no weights here"))
}
