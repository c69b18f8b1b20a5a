package internal

import "weighocr/internal/warnings"

const UnknownDocType = "unknown"

type Line struct {
	Text string `json:"text"`
}

type Page struct {
	Lines []Line `json:"lines"`
	Text  string `json:"text"`
}

// Payload is the decoded OCR engine output.
type Payload struct {
	Pages []Page `json:"pages"`
	Text  string `json:"text"`
}

// LineInfo is created once per input line and never mutated.
type LineInfo struct {
	Raw     string
	Cleaned string
	Compact string
}

type GPS struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type ParsedRecord struct {
	DocType           string             `json:"doc_type"`
	WeighDate         *string            `json:"weigh_date"`
	WeighTimeIn       *string            `json:"weigh_time_in"`
	WeighTimeOut      *string            `json:"weigh_time_out"`
	SerialNo          *string            `json:"serial_no"`
	VehicleNo         *string            `json:"vehicle_no"`
	PartnerName       *string            `json:"partner_name"`
	ItemName          *string            `json:"item_name"`
	Direction         *string            `json:"direction"`
	GrossWeightKg     *float64           `json:"gross_weight_kg"`
	TareWeightKg      *float64           `json:"tare_weight_kg"`
	NetWeightKg       *float64           `json:"net_weight_kg"`
	DeductionWeightKg *float64           `json:"deduction_weight_kg"`
	Issuer            *string            `json:"issuer"`
	Timestamp         *string            `json:"timestamp"`
	GPS               *GPS               `json:"gps"`
	RawText           string             `json:"raw_text"`
	ParseConfidence   float64            `json:"parse_confidence"`
	Warnings          []warnings.Warning `json:"warnings"`
}

func NewParsedRecord() ParsedRecord {
	return ParsedRecord{DocType: UnknownDocType, Warnings: []warnings.Warning{}}
}

type DocumentRow struct {
	ID        int
	Source    string
	Name      string
	Subject   string
	Sender    string
	Received  string
	Hash      string
	Status    string
	RawRef    string
	UpdatedAt string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type StoredRecord struct {
	ID         int64
	DocumentID int
	Attachment string
	RunID      string
	CreatedAt  string
	Record     ParsedRecord
}

type RecordExportRow struct {
	RecordID          int64
	DocumentID        int
	Source            string
	Name              string
	Attachment        string
	DocType           string
	WeighDate         *string
	WeighTimeIn       *string
	WeighTimeOut      *string
	SerialNo          *string
	VehicleNo         *string
	PartnerName       *string
	ItemName          *string
	Direction         *string
	GrossWeightKg     *float64
	TareWeightKg      *float64
	NetWeightKg       *float64
	DeductionWeightKg *float64
	Issuer            *string
	Timestamp         *string
	ParseConfidence   float64
	WarningCodes      string
}
