package pipeline

import (
	"strings"

	"weighocr/internal"
	"weighocr/internal/logger"
	"weighocr/internal/util"
	"weighocr/internal/warnings"
)

type directionSource int

const (
	directionNone directionSource = iota
	directionWeak
	directionLabel
)

// timeWeight is an unlabeled "time + weight" reading kept for gross/tare inference.
type timeWeight struct {
	time   string
	weight float64
	index  int
}

// assembly is the cross-line state of one parse run.
type assembly struct {
	p          *Parser
	rec        *internal.ParsedRecord
	warns      *warnings.List
	source     directionSource
	candidates []timeWeight
}

type lineRule struct {
	name  string
	apply func(a *assembly, idx int, line internal.LineInfo)
}

// assemblyRules run in this order on every line. Fields follow first writer wins;
// only the direction rules may overwrite.
var assemblyRules = []lineRule{
	{"salutation", (*assembly).salutation},
	{"date", (*assembly).dateSerial},
	{"serial", (*assembly).serial},
	{"vehicle", (*assembly).vehicle},
	{"partner", (*assembly).partner},
	{"item_direction", (*assembly).itemDirection},
	{"item", (*assembly).item},
	{"direction", (*assembly).directionLabel},
	{"direction_text", (*assembly).directionText},
	{"weights", (*assembly).weights},
	{"time_weight", (*assembly).timeWeightCandidate},
	{"footer", (*assembly).footer},
}

func (p *Parser) Assemble(pre Preprocessed) (internal.ParsedRecord, *warnings.List) {
	rec := internal.NewParsedRecord()
	rec.RawText = pre.RawText
	rec.DocType = p.DetectDocType(pre.Lines)

	warns := pre.Warnings
	if warns == nil {
		warns = warnings.NewList()
	}

	a := &assembly{p: p, rec: &rec, warns: warns}
	for idx, line := range pre.Lines {
		for _, rule := range assemblyRules {
			rule.apply(a, idx, line)
		}
	}
	a.inferFromCandidates()

	if issuer := p.FindIssuer(pre.Lines); issuer != nil {
		rec.Issuer = issuer
	}
	return rec, warns
}

func (a *assembly) salutation(_ int, line internal.LineInfo) {
	if a.rec.PartnerName != nil {
		return
	}
	for _, keyword := range a.p.vocab.Salutations {
		if keyword == "" || !strings.Contains(line.Cleaned, keyword) {
			continue
		}
		value := strings.TrimSpace(strings.ReplaceAll(line.Cleaned, keyword, ""))
		if value != "" {
			a.rec.PartnerName = util.StringPtr(strings.ReplaceAll(value, " ", ""))
		}
		return
	}
}

func (a *assembly) dateSerial(_ int, line internal.LineInfo) {
	if _, ok := util.FindLabelSpan(line.Cleaned, a.p.vocab.Labels.Date); !ok {
		return
	}
	date, serial := ExtractDateSerial(line.Cleaned)
	if date != nil && a.rec.WeighDate == nil {
		a.rec.WeighDate = date
	}
	if serial != nil && a.rec.SerialNo == nil {
		a.rec.SerialNo = serial
	}
}

// serial always looks the label up so an empty serial label is still reported.
func (a *assembly) serial(_ int, line internal.LineInfo) {
	text := a.p.selectValueAfterLabel(line, a.p.vocab.Labels.Serial, a.warns)
	if text == nil || a.rec.SerialNo != nil {
		return
	}
	if serial := ExtractSerial(strings.ReplaceAll(*text, " ", "")); serial != nil {
		a.rec.SerialNo = serial
	}
}

func (a *assembly) vehicle(_ int, line internal.LineInfo) {
	text := a.p.selectValueAfterLabel(line, a.p.vocab.Labels.Vehicle, a.warns)
	if text == nil {
		return
	}
	value := *text
	if direction := a.p.DetectDirection(value); direction != nil {
		if a.rec.Direction == nil {
			a.rec.Direction = direction
		}
		// a keyword inside the plate value downgrades even a labeled direction
		a.source = directionWeak
		for _, group := range a.p.vocab.DirectionKeywords {
			for _, keyword := range group.Keywords {
				if keyword != "" {
					value = strings.ReplaceAll(value, keyword, "")
				}
			}
		}
		value = strings.TrimSpace(value)
	}
	if vehicle := util.CleanVehicleNo(value); vehicle != nil && a.rec.VehicleNo == nil {
		a.rec.VehicleNo = vehicle
	}
}

func (a *assembly) partner(_ int, line internal.LineInfo) {
	text := a.p.selectValueAfterLabel(line, a.p.vocab.Labels.Partner, a.warns)
	if text != nil && a.rec.PartnerName == nil {
		a.rec.PartnerName = util.StringPtr(strings.ReplaceAll(*text, " ", ""))
	}
}

func (a *assembly) itemDirection(_ int, line internal.LineInfo) {
	item, direction := a.p.splitItemDirection(line)
	if item != nil && a.rec.ItemName == nil {
		a.rec.ItemName = util.CleanItemName(*item)
	}
	if direction != nil {
		a.setLabelDirection(*direction)
	}
}

func (a *assembly) item(_ int, line internal.LineInfo) {
	text := a.p.selectValueAfterLabel(line, a.p.vocab.Labels.Item, a.warns)
	if text != nil && a.rec.ItemName == nil {
		a.rec.ItemName = util.CleanItemName(*text)
	}
}

func (a *assembly) directionLabel(_ int, line internal.LineInfo) {
	if text := a.p.selectValueAfterLabel(line, a.p.vocab.Labels.Direction, a.warns); text != nil {
		a.setLabelDirection(*text)
	}
}

func (a *assembly) setLabelDirection(text string) {
	if detected := a.p.DetectDirection(text); detected != nil {
		a.rec.Direction = detected
		a.source = directionLabel
	}
}

// directionText reads direction keywords anywhere on the line until a labeled direction
// is seen. A weak direction may only be replaced by the outbound one.
func (a *assembly) directionText(_ int, line internal.LineInfo) {
	if a.source == directionLabel {
		return
	}
	detected := a.p.DetectDirection(line.Cleaned)
	if detected == nil {
		return
	}
	switch a.source {
	case directionWeak:
		if *detected == a.p.vocab.DirectionOut {
			a.rec.Direction = detected
		}
	case directionNone:
		a.rec.Direction = detected
	}
	a.source = directionWeak
}

func (a *assembly) weights(_ int, line internal.LineInfo) {
	labels := a.p.vocab.Labels

	if text := a.p.selectValueAfterLabel(line, labels.Gross, a.warns); text != nil {
		if w := ExtractWeight(*text); w != nil && a.rec.GrossWeightKg == nil {
			a.rec.GrossWeightKg = w
		}
		if t := ExtractTime(*text); t != nil && a.rec.WeighTimeIn == nil {
			a.rec.WeighTimeIn = t
		}
	}
	if text := a.p.selectValueAfterLabel(line, labels.Tare, a.warns); text != nil {
		if w := ExtractWeight(*text); w != nil && a.rec.TareWeightKg == nil {
			a.rec.TareWeightKg = w
		}
		if t := ExtractTime(*text); t != nil && a.rec.WeighTimeOut == nil {
			a.rec.WeighTimeOut = t
		}
	}
	if text := a.p.selectValueAfterLabel(line, labels.Net, a.warns); text != nil {
		if w := ExtractWeight(*text); w != nil && a.rec.NetWeightKg == nil {
			a.rec.NetWeightKg = w
		}
	}
	if text := a.p.selectValueAfterLabel(line, labels.Deduction, a.warns); text != nil {
		if w := ExtractWeight(*text); w != nil && a.rec.DeductionWeightKg == nil {
			a.rec.DeductionWeightKg = w
		}
	}
}

// timeWeightCandidate defers unlabeled readings; only exact weight labels exclude a line.
func (a *assembly) timeWeightCandidate(idx int, line internal.LineInfo) {
	labels := a.p.vocab.Labels
	for _, family := range [][]string{labels.Gross, labels.Tare, labels.Net, labels.Deduction} {
		if _, ok := util.FindLabelSpan(line.Cleaned, family); ok {
			return
		}
	}
	weight := ExtractWeight(line.Cleaned)
	clock := ExtractTime(line.Cleaned)
	if weight == nil || clock == nil {
		return
	}
	logger.Debug("time/weight candidate line=%d time=%s weight=%g", idx, *clock, *weight)
	a.candidates = append(a.candidates, timeWeight{time: *clock, weight: *weight, index: idx})
}

func (a *assembly) footer(_ int, line internal.LineInfo) {
	if a.rec.Timestamp == nil {
		a.rec.Timestamp = ExtractTimestamp(line.Cleaned)
	}
	if a.rec.GPS == nil {
		a.rec.GPS = ExtractGPS(line.Cleaned)
	}
}

// inferFromCandidates fills gross and then tare from the first two deferred readings.
// Any further readings are ignored.
func (a *assembly) inferFromCandidates() {
	if len(a.candidates) == 0 {
		return
	}
	if a.rec.GrossWeightKg == nil {
		first := a.candidates[0]
		a.rec.GrossWeightKg = util.FloatPtr(first.weight)
		if a.rec.WeighTimeIn == nil {
			a.rec.WeighTimeIn = util.StringPtr(first.time)
		}
		a.warns.Add(warnings.GrossInferred, nil)
	}
	if len(a.candidates) > 1 && a.rec.TareWeightKg == nil {
		second := a.candidates[1]
		a.rec.TareWeightKg = util.FloatPtr(second.weight)
		if a.rec.WeighTimeOut == nil {
			a.rec.WeighTimeOut = util.StringPtr(second.time)
		}
		a.warns.Add(warnings.TareInferred, nil)
	}
}
