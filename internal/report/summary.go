// Package report renders parsed records for the terminal.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"weighocr/internal"
	"weighocr/internal/warnings"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6C7086")
	colorSuccess = lipgloss.Color("#A6E3A1")
	colorWarning = lipgloss.Color("#F9E2AF")
	colorError   = lipgloss.Color("#F38BA8")
	colorBorder  = lipgloss.Color("#45475A")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	labelStyle = lipgloss.NewStyle().Foreground(colorMuted).Width(14)
	cardStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1)
)

type field struct {
	label string
	value string
}

// Summary renders rec as a bordered card; confidence below lowConfidence is highlighted.
func Summary(name string, rec internal.ParsedRecord, lowConfidence float64) string {
	fields := []field{
		{"doc_type", rec.DocType},
		{"weigh_date", str(rec.WeighDate)},
		{"time in/out", str(rec.WeighTimeIn) + " / " + str(rec.WeighTimeOut)},
		{"serial_no", str(rec.SerialNo)},
		{"vehicle_no", str(rec.VehicleNo)},
		{"partner", str(rec.PartnerName)},
		{"item", str(rec.ItemName)},
		{"direction", str(rec.Direction)},
		{"gross", kg(rec.GrossWeightKg)},
		{"tare", kg(rec.TareWeightKg)},
		{"net", kg(rec.NetWeightKg)},
		{"deduction", kg(rec.DeductionWeightKg)},
		{"issuer", str(rec.Issuer)},
		{"timestamp", str(rec.Timestamp)},
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(name))
	b.WriteString("\n")
	for _, f := range fields {
		b.WriteString(labelStyle.Render(f.label))
		b.WriteString(f.value)
		b.WriteString("\n")
	}

	confStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	if rec.ParseConfidence < lowConfidence {
		confStyle = confStyle.Foreground(colorError)
	}
	b.WriteString(labelStyle.Render("confidence"))
	b.WriteString(confStyle.Render(fmt.Sprintf("%.2f", rec.ParseConfidence)))

	for _, w := range rec.Warnings {
		b.WriteString("\n")
		b.WriteString(severityStyle(w.Severity).Render(fmt.Sprintf("%-5s %s", w.Severity, w.Code)))
		b.WriteString(" ")
		b.WriteString(w.Message)
	}

	return cardStyle.Render(b.String())
}

func severityStyle(s warnings.Severity) lipgloss.Style {
	switch s {
	case warnings.SeverityError:
		return lipgloss.NewStyle().Foreground(colorError)
	case warnings.SeverityWarn:
		return lipgloss.NewStyle().Foreground(colorWarning)
	default:
		return lipgloss.NewStyle().Foreground(colorMuted)
	}
}

func str(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}

func kg(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f kg", *v)
}
