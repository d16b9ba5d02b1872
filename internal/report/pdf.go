package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// SaveSessionPDF renders the report into a PDF document with a QR code
// carrying the verification hash.
func SaveSessionPDF(rep SessionReport, lang Language, out string) error {
	tr := NewTranslator(lang)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(tr.T("title"), false)
	pdf.SetAuthor("svctl", false)
	pdf.SetCreator("svctl", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, tr.T("title"))
	addSummarySection(pdf, tr, rep)
	addTransmissionSection(pdf, tr, rep)
	addSourcesSection(pdf, tr, rep.Sources)
	addVerificationSection(pdf, tr, rep)

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, tr Translator, rep SessionReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr.T("section.summary"))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: tr.T("label.session"), value: rep.SessionID},
		{label: tr.T("label.generated"), value: timeLabel(rep.GeneratedAt)},
		{label: tr.T("label.mode"), value: rep.Mode},
		{label: tr.T("label.interface"), value: rep.Interface},
		{label: tr.T("label.svid"), value: rep.SVID},
		{label: tr.T("label.appid"), value: fmt.Sprintf("0x%04X", rep.AppID)},
		{label: tr.T("label.sample_rate"), value: fmt.Sprintf("%d Hz", rep.SampleRate)},
		{label: tr.T("label.destination"), value: rep.DstMAC},
		{label: tr.T("label.vlan"), value: vlanLabel(rep.VLANID, rep.VLANPriority)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addTransmissionSection(pdf *gofpdf.Fpdf, tr Translator, rep SessionReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr.T("section.transmission"))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: tr.T("label.start"), value: timeLabel(rep.StartTime)},
		{label: tr.T("label.end"), value: timeLabel(rep.EndTime)},
		{label: tr.T("label.duration"), value: fmt.Sprintf("%.3f s", rep.DurationS)},
		{label: tr.T("label.sent"), value: strconv.FormatUint(uint64(rep.PacketsSent), 10)},
		{label: tr.T("label.failed"), value: strconv.FormatUint(uint64(rep.PacketsFailed), 10)},
		{label: tr.T("label.rate"), value: fmt.Sprintf("%.1f pkt/s", rep.AvgRate)},
		{label: tr.T("label.goose_frames"), value: strconv.FormatInt(rep.GooseFrames, 10)},
		{label: tr.T("label.stopped_by_goose"), value: boolLabel(tr, rep.StoppedByGoose)},
	}
	if rep.GooseStopReason != "" {
		items = append(items, struct {
			label string
			value string
		}{label: tr.T("label.stop_reason"), value: rep.GooseStopReason})
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
}

func addSourcesSection(pdf *gofpdf.Fpdf, tr Translator, sources []SourceFile) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr.T("section.sources"))
	pdf.Ln(9)

	if len(sources) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr.T("sources.none"), "", "L", false)
		pdf.Ln(4)
		return
	}

	headers := []string{tr.T("th.file"), tr.T("th.sha256"), tr.T("th.size")}
	widths := []float64{60, 100, 20}

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 8)
	for _, src := range sources {
		values := []string{src.Path, src.SHA256, strconv.FormatInt(src.Size, 10)}
		renderTableRow(pdf, widths, values, 4.5)
	}
	pdf.Ln(4)
}

func addVerificationSection(pdf *gofpdf.Fpdf, tr Translator, rep SessionReport) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, tr.T("section.verification"))
	pdf.Ln(9)

	hash, err := rep.VerificationHash()
	if err != nil {
		pdf.SetError(err)
		return
	}
	png, err := HashToQR(hash, 256)
	if err != nil {
		pdf.SetError(err)
		return
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("verification-qr", opts, bytes.NewReader(png))
	x := pdf.GetX()
	pdf.ImageOptions("verification-qr", x, pdf.GetY(), 35, 35, false, opts, 0, "")
	pdf.SetXY(x+40, pdf.GetY())

	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 4.5, strings.ToUpper(hash), "", "L", false)
	pdf.SetX(x + 40)
	pdf.MultiCell(0, 4.5, tr.T("qr.caption"), "", "L", false)
}

func renderTableRow(pdf *gofpdf.Fpdf, widths []float64, values []string, lineHeight float64) {
	xStart := pdf.GetX()
	yStart := pdf.GetY()
	maxLines := 1
	splitCols := make([][]string, len(values))
	for i, val := range values {
		text := strings.TrimSpace(val)
		if text == "" {
			text = "-"
		}
		lines := pdf.SplitText(text, widths[i]-2)
		if len(lines) == 0 {
			lines = []string{""}
		}
		splitCols[i] = lines
		if len(lines) > maxLines {
			maxLines = len(lines)
		}
	}
	rowHeight := float64(maxLines) * lineHeight
	x := xStart
	for i, lines := range splitCols {
		pdf.SetXY(x, yStart)
		cellText := strings.Join(lines, "\n")
		pdf.MultiCell(widths[i], lineHeight, cellText, "1", "L", false)
		x += widths[i]
	}
	pdf.SetXY(xStart, yStart+rowHeight)
}

func boolLabel(tr Translator, v bool) string {
	if v {
		return tr.T("value.yes")
	}
	return tr.T("value.no")
}

func vlanLabel(id uint16, prio uint8) string {
	if id == 0 && prio == 0 {
		return "-"
	}
	return fmt.Sprintf("id %d, priority %d", id, prio)
}

func timeLabel(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
