package report

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/signintech/gopdf"

	"hearing-intake/internal/consultation"
)

// ErrNoFont is returned when none of the candidate TTF fonts could be loaded.
var ErrNoFont = errors.New("no usable TTF font for the PDF report")

const (
	fontFamily = "DejaVu"
	textWidth  = 500.0
	pageBottom = 780.0
	lineHeight = 14.0
	sectionGap = 10.0
	marginLeft = 50.0
	marginTop  = 50.0
)

var defaultFontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

// RenderPDF lays out a report as an A4 document. fontPath, when set, is
// tried before the usual DejaVu locations.
func RenderPDF(rec *consultation.PatientRecord, r *consultation.Report, fontPath string) ([]byte, error) {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.SetMargins(marginLeft, marginTop, marginLeft, marginTop)
	pdf.AddPage()

	if err := loadFont(pdf, fontPath); err != nil {
		return nil, err
	}

	w := &pdfWriter{pdf: pdf}
	w.heading(20, "Hearing Loss Consultation Report")
	w.text(11, fmt.Sprintf("Date: %s", r.GeneratedAt.Format("2006-01-02 15:04")))
	w.text(11, fmt.Sprintf("Patient ID: %s", r.PatientID))
	if rec.BasicInfo.Name != nil {
		w.text(11, fmt.Sprintf("Name: %s", *rec.BasicInfo.Name))
	}
	w.gap()

	w.heading(14, "Symptom summary")
	for _, line := range strings.Split(strings.TrimSpace(r.Summary), "\n") {
		w.text(11, line)
	}
	w.gap()

	w.heading(14, "Reference-based analysis")
	for _, para := range strings.Split(strings.TrimSpace(r.Answer), "\n") {
		w.text(11, para)
	}
	w.gap()

	if len(r.Context) > 0 {
		pages := make([]string, 0, len(r.Context))
		for _, p := range r.Context {
			pages = append(pages, fmt.Sprintf("%d", p.Number+1))
		}
		w.text(9, "Reference pages: "+strings.Join(pages, ", "))
	}
	w.text(9, "This report is generated from an online interview and is not a diagnosis. A clinical examination is required.")

	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func loadFont(pdf *gopdf.GoPdf, fontPath string) error {
	paths := defaultFontPaths
	if fontPath != "" {
		paths = append([]string{fontPath}, paths...)
	}
	var lastErr error
	for _, path := range paths {
		if err := pdf.AddTTFFont(fontFamily, path); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrNoFont, lastErr)
}

// pdfWriter keeps the first layout error so callers can check once.
type pdfWriter struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *pdfWriter) heading(size float64, s string) {
	w.text(size, s)
	w.pdf.Br(4)
}

func (w *pdfWriter) text(size float64, s string) {
	if w.err != nil {
		return
	}
	if w.err = w.pdf.SetFont(fontFamily, "", size); w.err != nil {
		return
	}
	if strings.TrimSpace(s) == "" {
		w.pdf.Br(lineHeight)
		return
	}
	lines, err := w.pdf.SplitText(s, textWidth)
	if err != nil {
		w.err = err
		return
	}
	for _, l := range lines {
		if w.pdf.GetY() > pageBottom {
			w.pdf.AddPage()
		}
		w.pdf.SetX(marginLeft)
		if w.err = w.pdf.Cell(nil, l); w.err != nil {
			return
		}
		w.pdf.Br(size + 4)
	}
}

func (w *pdfWriter) gap() {
	w.pdf.Br(sectionGap)
}
