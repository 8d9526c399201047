package report

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-pdf/fpdf"

	"github.com/i474232898/weather-timeline/internal/weather"
)

const (
	fontFamily = "Helvetica"
	lineHeight = 5.0
)

// hourlyColumns are the hourly table headers and widths in mm.
var hourlyColumns = []struct {
	title string
	width float64
}{
	{"Time", 38},
	{"Wind km/h", 20},
	{"Gust km/h", 20},
	{"Precip mm", 20},
	{"Sources (w/g/p)", 52},
	{"Thunder", 30},
}

// PDFRenderer turns a finished report into a PDF document.
type PDFRenderer struct {
	Title string
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{Title: "Weather report"}
}

// Render builds the document and returns its bytes. Any fpdf failure is
// returned as a *weather.RenderError.
func (r *PDFRenderer) Render(rep *weather.Report) ([]byte, error) {
	if rep == nil {
		return nil, &weather.RenderError{Err: fmt.Errorf("nil report")}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(r.Title, true)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("%s  |  page %d/{nb}", rep.ID, pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 10, tr(r.Title), "", 1, "L", false, 0, "")

	pdf.SetFont(fontFamily, "", 10)
	place := fmt.Sprintf("%s (%.4f, %.4f)", rep.Place.Name, rep.Place.Lat, rep.Place.Lon)
	if rep.Place.Admin1 != "" {
		place = fmt.Sprintf("%s, %s", place, rep.Place.Admin1)
	}
	pdf.CellFormat(0, lineHeight+1, tr("Place: "+place), "", 1, "L", false, 0, "")
	if rep.Airport != "" {
		pdf.CellFormat(0, lineHeight+1, "Reference airport: "+rep.Airport, "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, lineHeight+1, fmt.Sprintf("Period: %s to %s (%s)", rep.Period.Start, rep.Period.End, rep.Timezone), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	r.daily(pdf, rep.Daily)
	r.hourly(pdf, rep.Records)
	r.warnings(pdf, tr, rep.Warnings)
	r.list(pdf, tr, "Sources", sourceLines(rep.Sources))
	r.list(pdf, tr, "Notes", rep.Notes)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &weather.RenderError{Err: err}
	}
	return buf.Bytes(), nil
}

func (r *PDFRenderer) heading(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont(fontFamily, "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 8)
}

func (r *PDFRenderer) daily(pdf *fpdf.Fpdf, days []weather.DailySummary) {
	r.heading(pdf, "Daily summary")
	headers := []string{"Date", "Hours", "Mean wind", "Max gust", "Max precip", "Thunder h"}
	widths := []float64{30, 18, 28, 28, 28, 24}

	pdf.SetFillColor(230, 230, 230)
	for i, h := range headers {
		pdf.CellFormat(widths[i], lineHeight+1, h, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	for _, d := range days {
		cells := []string{
			d.Date,
			fmt.Sprint(d.Hours),
			formatValue(d.MeanWindKmh),
			formatValue(d.MaxGustKmh),
			formatValue(d.MaxPrecipMm),
			fmt.Sprint(d.ThunderHours),
		}
		for i, c := range cells {
			pdf.CellFormat(widths[i], lineHeight, c, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func (r *PDFRenderer) hourly(pdf *fpdf.Fpdf, records []weather.MergedRecord) {
	r.heading(pdf, "Hourly timeline")
	header := func() {
		pdf.SetFont(fontFamily, "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for _, col := range hourlyColumns {
			pdf.CellFormat(col.width, lineHeight+1, col.title, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(fontFamily, "", 8)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, rec := range records {
		if pdf.GetY()+lineHeight > pageHeight-bottom-10 {
			pdf.AddPage()
			header()
		}
		cells := []string{
			rec.Time,
			formatValue(rec.WindKmh),
			formatValue(rec.GustKmh),
			formatValue(rec.PrecipMm),
			fmt.Sprintf("%s / %s / %s", tagOf(rec.Sources.Wind), tagOf(rec.Sources.Gust), tagOf(rec.Sources.Precip)),
			FormatThunder(rec.Thunder),
		}
		for i, c := range cells {
			pdf.CellFormat(hourlyColumns[i].width, lineHeight, c, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func (r *PDFRenderer) warnings(pdf *fpdf.Fpdf, tr func(string) string, ws []weather.Warning) {
	r.heading(pdf, "Warnings")
	if len(ws) == 0 {
		pdf.CellFormat(0, lineHeight, "None in period.", "", 1, "L", false, 0, "")
		pdf.Ln(2)
		return
	}
	for _, w := range ws {
		line := fmt.Sprintf("%s  %s  %s to %s", strings.ToUpper(w.Level), w.Phenomenon,
			w.Start.Format("2006-01-02 15:04Z"), w.End.Format("2006-01-02 15:04Z"))
		if w.Region != "" {
			line += "  (" + w.Region + ")"
		}
		pdf.MultiCell(0, lineHeight, tr(line), "", "L", false)
	}
	pdf.Ln(2)
}

func (r *PDFRenderer) list(pdf *fpdf.Fpdf, tr func(string) string, title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	r.heading(pdf, title)
	for _, l := range lines {
		pdf.MultiCell(0, lineHeight, tr("- "+l), "", "L", false)
	}
	pdf.Ln(2)
}

func sourceLines(links weather.SourceLinks) []string {
	order := []string{"station", "reanalysis", "thunder", "warnings"}
	out := make([]string, 0, len(links))
	for _, k := range order {
		if u, ok := links[k]; ok {
			out = append(out, k+": "+u)
		}
	}
	return out
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func tagOf(t *weather.SourceTag) string {
	if t == nil {
		return "-"
	}
	return string(*t)
}

// FormatThunder renders evidence for a table cell.
func FormatThunder(ev weather.ThunderEvidence) string {
	switch e := ev.(type) {
	case weather.StrikeCount:
		return fmt.Sprintf("%d strikes", e.Value)
	case weather.FlagEvidence:
		if e.Value == weather.FlagNone {
			return "-"
		}
		return string(e.Value)
	default:
		return "-"
	}
}

// FileName is the attachment name for a rendered report.
func FileName(place string, period weather.Period) string {
	return fmt.Sprintf("weather-%s-%s-%s.pdf", slug(place), period.Start, period.End)
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "place"
	}
	return out
}
