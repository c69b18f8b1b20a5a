package pipeline

import (
	"math"

	"weighocr/internal"
	"weighocr/internal/util"
	"weighocr/internal/warnings"
)

// Finalize runs the post-assembly checks in order: weight ranges, time order, net
// inference, net consistency and finally the confidence score.
func (p *Parser) Finalize(rec internal.ParsedRecord, warns *warnings.List) internal.ParsedRecord {
	if warns == nil {
		warns = warnings.NewList()
	}

	p.validateWeights(rec, warns)
	validateTimeOrder(rec, warns)

	if rec.NetWeightKg == nil && rec.GrossWeightKg != nil && rec.TareWeightKg != nil {
		rec.NetWeightKg = util.FloatPtr(*rec.GrossWeightKg - *rec.TareWeightKg)
		warns.Add(warnings.NetInferred, nil)
	}

	if rec.NetWeightKg != nil && rec.GrossWeightKg != nil && rec.TareWeightKg != nil {
		if math.Abs(*rec.GrossWeightKg-*rec.TareWeightKg-*rec.NetWeightKg) > p.th.NetToleranceKg {
			warns.Add(warnings.NetMismatch, nil)
		}
	}

	rec.Warnings = warns.Items()
	rec.ParseConfidence = p.confidence(rec, warns)
	return rec
}

func (p *Parser) validateWeights(rec internal.ParsedRecord, warns *warnings.List) {
	fields := []struct {
		name  string
		value *float64
	}{
		{"gross_weight_kg", rec.GrossWeightKg},
		{"tare_weight_kg", rec.TareWeightKg},
		{"net_weight_kg", rec.NetWeightKg},
		{"deduction_weight_kg", rec.DeductionWeightKg},
	}
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		ctx := map[string]any{"field": f.name, "value": *f.value}
		if *f.value < p.th.MinWeightKg {
			warns.AddWith(warnings.NegativeWeight, ctx, warnings.SeverityError, "")
		}
		if *f.value > p.th.MaxWeightKg {
			warns.AddWith(warnings.WeightExceedsLimit, ctx, warnings.SeverityWarn, "")
		}
	}
}

// Times are zero-padded, so lexical order is clock order.
func validateTimeOrder(rec internal.ParsedRecord, warns *warnings.List) {
	if rec.WeighTimeIn == nil || rec.WeighTimeOut == nil {
		return
	}
	if *rec.WeighTimeIn > *rec.WeighTimeOut {
		warns.Add(warnings.TimeOrderReversed, map[string]any{"time_in": *rec.WeighTimeIn, "time_out": *rec.WeighTimeOut})
	}
}

// confidence is an additive penalty score, not a probability.
func (p *Parser) confidence(rec internal.ParsedRecord, warns *warnings.List) float64 {
	score := 1.0
	if warns.Has(warnings.GrossInferred) {
		score -= p.th.LabelInferencePenalty
	}
	if warns.Has(warnings.TareInferred) {
		score -= p.th.LabelInferencePenalty
	}
	if warns.Has(warnings.NetInferred) {
		score -= p.th.NetInferencePenalty
	}
	if warns.Has(warnings.NetMismatch) {
		score -= p.th.MismatchPenalty
	}
	if rec.PartnerName == nil {
		score -= p.th.FieldMissingPenalty
	}
	if rec.ItemName == nil {
		score -= p.th.FieldMissingPenalty
	}
	if rec.Timestamp == nil {
		score -= p.th.FieldMissingPenalty
	}
	return math.Max(0, math.Min(1, score))
}
