package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"weighocr/internal"
)

// EncodeJSON renders v as two-space indented UTF-8 JSON with HTML characters kept literal.
func EncodeJSON(v any) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func WriteRecordJSON(record any, outputPath string) error {
	blob, err := EncodeJSON(record)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, blob, 0o644)
}

var exportHeaders = []string{
	"record_id", "document_id", "source", "name", "attachment", "doc_type",
	"weigh_date", "weigh_time_in", "weigh_time_out", "serial_no", "vehicle_no",
	"partner_name", "item_name", "direction",
	"gross_weight_kg", "tare_weight_kg", "net_weight_kg", "deduction_weight_kg",
	"issuer", "timestamp", "parse_confidence", "warning_codes",
}

func ExportRecordsToXLSX(rows []internal.RecordExportRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.RecordID)
		set(2, row.DocumentID)
		set(3, row.Source)
		set(4, row.Name)
		set(5, row.Attachment)
		set(6, row.DocType)
		set(7, derefString(row.WeighDate))
		set(8, derefString(row.WeighTimeIn))
		set(9, derefString(row.WeighTimeOut))
		set(10, derefString(row.SerialNo))
		set(11, derefString(row.VehicleNo))
		set(12, derefString(row.PartnerName))
		set(13, derefString(row.ItemName))
		set(14, derefString(row.Direction))
		set(15, derefFloat(row.GrossWeightKg))
		set(16, derefFloat(row.TareWeightKg))
		set(17, derefFloat(row.NetWeightKg))
		set(18, derefFloat(row.DeductionWeightKg))
		set(19, derefString(row.Issuer))
		set(20, derefString(row.Timestamp))
		set(21, row.ParseConfidence)
		set(22, row.WarningCodes)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// RecordExportRowOf flattens a record that has not been stored yet.
func RecordExportRowOf(name, attachment string, rec internal.ParsedRecord) internal.RecordExportRow {
	return internal.RecordExportRow{
		Source:            "file",
		Name:              name,
		Attachment:        attachment,
		DocType:           rec.DocType,
		WeighDate:         rec.WeighDate,
		WeighTimeIn:       rec.WeighTimeIn,
		WeighTimeOut:      rec.WeighTimeOut,
		SerialNo:          rec.SerialNo,
		VehicleNo:         rec.VehicleNo,
		PartnerName:       rec.PartnerName,
		ItemName:          rec.ItemName,
		Direction:         rec.Direction,
		GrossWeightKg:     rec.GrossWeightKg,
		TareWeightKg:      rec.TareWeightKg,
		NetWeightKg:       rec.NetWeightKg,
		DeductionWeightKg: rec.DeductionWeightKg,
		Issuer:            rec.Issuer,
		Timestamp:         rec.Timestamp,
		ParseConfidence:   rec.ParseConfidence,
		WarningCodes:      WarningCodes(rec),
	}
}

// WarningCodes joins the record's warning codes with ", ".
func WarningCodes(rec internal.ParsedRecord) string {
	out := bytes.NewBuffer(nil)
	for i, w := range rec.Warnings {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(w.Code)
	}
	return out.String()
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
