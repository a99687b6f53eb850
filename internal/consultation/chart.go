package consultation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const chartWidth = 60

// RenderChart lays the record out as a fixed-width text card for a
// clinician to read. Unknown scalars print as "-".
func RenderChart(rec *PatientRecord, now time.Time) string {
	var c chartWriter
	c.rule('=')
	c.line(center("PATIENT CHART", chartWidth-4))
	c.rule('=')
	c.field("Patient ID", rec.ID.String())
	c.field("Printed", now.Format("2006-01-02 15:04"))

	c.section("Basic information")
	c.field("Name", valueOr(rec.BasicInfo.Name, "-"))
	c.field("Age", valueOr(rec.BasicInfo.Age, "-"))
	c.field("Gender", valueOr(rec.BasicInfo.Gender, "-"))

	c.section("Chief complaint")
	c.wrap(valueOr(rec.ChiefComplaint, "-"))

	c.section("Symptom details")
	c.field("Onset", valueOr(rec.SymptomDetails.Onset, "-"))
	c.field("Duration", valueOr(rec.SymptomDetails.Duration, "-"))
	c.field("Severity", valueOr(rec.SymptomDetails.Severity, "-"))
	c.field("Affected side", valueOr(rec.SymptomDetails.AffectedSide, "-"))
	c.field("Progression", valueOr(rec.SymptomDetails.Progression, "-"))

	c.section("Symptoms")
	c.list(rec.Symptoms)
	c.section("Additional symptoms")
	c.list(rec.AdditionalSymptoms)

	c.section("History")
	c.field("Medical", joinOr(rec.MedicalHistory))
	c.field("Family", joinOr(rec.FamilyHistory))
	c.field("Medications", joinOr(rec.Medications))
	c.field("Occupation", valueOr(rec.Lifestyle.Occupation, "-"))
	c.field("Noise exposure", valueOr(rec.Lifestyle.NoiseExposure, "-"))

	if len(rec.SuspectedDiagnosis) > 0 || len(rec.DifferentialDiagnosis) > 0 {
		c.section("Suspected diagnoses")
		c.list(rec.SuspectedDiagnosis)
		if len(rec.DifferentialDiagnosis) > 0 {
			c.line("Differential: " + strings.Join(rec.DifferentialDiagnosis, ", "))
		}
	}
	c.rule('=')
	return c.b.String()
}

// ExportChart returns the record as an indented JSON document.
func ExportChart(rec *PatientRecord) ([]byte, error) {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export chart: %w", err)
	}
	return data, nil
}

type chartWriter struct {
	b strings.Builder
}

func (c *chartWriter) rule(ch rune) {
	c.b.WriteString(strings.Repeat(string(ch), chartWidth))
	c.b.WriteByte('\n')
}

// line writes one boxed row, truncating anything wider than the card.
func (c *chartWriter) line(s string) {
	inner := chartWidth - 4
	if utf8.RuneCountInString(s) > inner {
		s = string([]rune(s)[:inner-1]) + "~"
	}
	pad := inner - utf8.RuneCountInString(s)
	c.b.WriteString("| ")
	c.b.WriteString(s)
	c.b.WriteString(strings.Repeat(" ", pad))
	c.b.WriteString(" |\n")
}

func (c *chartWriter) section(title string) {
	c.rule('-')
	c.line("[" + title + "]")
}

func (c *chartWriter) field(label, value string) {
	c.line(fmt.Sprintf("%-15s %s", label+":", value))
}

func (c *chartWriter) list(items []string) {
	if len(items) == 0 {
		c.line("-")
		return
	}
	for _, it := range items {
		c.wrap("* " + it)
	}
}

// wrap breaks s on spaces so no row is truncated.
func (c *chartWriter) wrap(s string) {
	inner := chartWidth - 4
	var cur string
	for _, word := range strings.Fields(s) {
		switch {
		case cur == "":
			cur = word
		case utf8.RuneCountInString(cur)+1+utf8.RuneCountInString(word) <= inner:
			cur += " " + word
		default:
			c.line(cur)
			cur = "  " + word
		}
	}
	if cur != "" {
		c.line(cur)
	}
}

func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	left := (width - n) / 2
	return strings.Repeat(" ", left) + s
}

func joinOr(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
