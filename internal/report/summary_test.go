package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"weighocr/internal"
	"weighocr/internal/warnings"
)

func TestSummary(t *testing.T) {
	rec := internal.NewParsedRecord()
	rec.DocType = "계량표"
	vehicle := "12가3456"
	gross, tare := 9000.0, 3000.0
	rec.VehicleNo = &vehicle
	rec.GrossWeightKg = &gross
	rec.TareWeightKg = &tare
	rec.ParseConfidence = 0.72
	warns := warnings.NewList()
	warns.Add(warnings.NetInferred, nil)
	rec.Warnings = warns.Items()

	out := Summary("cert.txt", rec, 0.8)

	assert.Contains(t, out, "cert.txt")
	assert.Contains(t, out, "12가3456")
	assert.Contains(t, out, "9000 kg")
	assert.Contains(t, out, "0.72")
	assert.Contains(t, out, "VAL-CHK-002")
	assert.Contains(t, out, "실중량을 총/공차 차이로 계산")
	assert.True(t, strings.HasPrefix(out, "╭"), "rounded border")
}
